package runtime

import (
	"context"
	"log/slog"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/risor-io/risor/object"
)

// makeExistsFn creates the "exists" host function.
//
// exists(path) → bool
func makeExistsFn() *object.Builtin {
	return object.NewBuiltin("exists", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("exists", 1, len(args))
		}
		pathStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("exists: path must be a string, got %s", args[0].Type())
		}
		_, err := os.Stat(pathStr.Value())
		return object.NewBool(err == nil)
	})
}

// makeGlobFn creates the "glob" host function. Patterns support "**".
//
// glob(pattern) → list of paths
func makeGlobFn() *object.Builtin {
	return object.NewBuiltin("glob", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("glob", 1, len(args))
		}
		pattern, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("glob: pattern must be a string, got %s", args[0].Type())
		}
		matches, err := doublestar.FilepathGlob(pattern.Value())
		if err != nil {
			return object.Errorf("glob: %v", err)
		}
		return stringList(matches)
	})
}

// makeReadFileFn creates the "read_file" host function.
//
// read_file(path) → string
func makeReadFileFn() *object.Builtin {
	return object.NewBuiltin("read_file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("read_file", 1, len(args))
		}
		pathStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("read_file: path must be a string, got %s", args[0].Type())
		}
		data, err := os.ReadFile(pathStr.Value())
		if err != nil {
			return object.Errorf("read_file: reading %s: %v", pathStr.Value(), err)
		}
		return object.NewString(string(data))
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "source", "options_script")
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "source", "options_script")
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "source", "options_script")
}
