package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jward/cnav/internal/semantic"
)

// InsertSearch records a finished Extensive Search session.
func (s *Store) InsertSearch(r *SearchRecord) error {
	var targetFile sql.NullString
	var targetLine, targetCol sql.NullInt64
	if r.Target != nil {
		targetFile = sql.NullString{String: r.Target.File, Valid: true}
		targetLine = sql.NullInt64{Int64: int64(r.Target.Line), Valid: true}
		targetCol = sql.NullInt64{Int64: int64(r.Target.Column), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO searches (id, mode, spelling, origin_file, target_file, target_line, target_col,
		  candidates, faults, timed_out, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Spelling, r.OriginFile, targetFile, targetLine, targetCol,
		r.Candidates, r.Faults, r.TimedOut, r.StartedAt, r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	return nil
}

// RecentSearches returns up to limit sessions, newest first.
func (s *Store) RecentSearches(limit int) ([]*SearchRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, mode, spelling, origin_file, target_file, target_line, target_col,
		  candidates, faults, timed_out, started_at, duration_ms
		 FROM searches ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	defer rows.Close()

	var out []*SearchRecord
	for rows.Next() {
		r := &SearchRecord{}
		var origin, targetFile sql.NullString
		var targetLine, targetCol sql.NullInt64
		var ms int64
		if err := rows.Scan(&r.ID, &r.Mode, &r.Spelling, &origin, &targetFile, &targetLine, &targetCol,
			&r.Candidates, &r.Faults, &r.TimedOut, &r.StartedAt, &ms); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		r.OriginFile = origin.String
		if targetFile.Valid {
			r.Target = &semantic.Location{File: targetFile.String, Line: int(targetLine.Int64), Column: int(targetCol.Int64)}
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
