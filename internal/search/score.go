package search

// Queue priorities. File scores are bounded by MaxScore, so every
// sentinel except ENUMERATE sorts after every real file.
const (
	MaxScore          = 1000
	PriorityEnumerate = 0
	PriorityShutdown  = 1001
	PriorityFinalize  = 1010
)

// Score ranks filename as a place to look for a symbol associated with
// name. It starts at MaxScore and drops by one for every leading character
// the two strings share. Lower is better.
func Score(filename, name string) int {
	score := MaxScore
	for i := 0; i < len(filename) && i < len(name); i++ {
		if filename[i] != name[i] {
			break
		}
		score--
	}
	return score
}
