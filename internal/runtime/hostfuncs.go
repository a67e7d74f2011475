package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/tracemark/internal/marker"
)

// makeMarkersFn creates the "markers" host function.
//
// markers(text) → []string
func makeMarkersFn() *object.Builtin {
	return object.NewBuiltin("markers", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("markers", 1, len(args))
		}
		text, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("markers: text must be a string, got %s", args[0].Type())
		}
		return stringList(marker.Extract(text.Value()))
	})
}

// makeSegmentsFn creates the "segments" host function.
//
// segments(marker) → []string
func makeSegmentsFn() *object.Builtin {
	return object.NewBuiltin("segments", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("segments", 1, len(args))
		}
		m, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("segments: marker must be a string, got %s", args[0].Type())
		}
		return stringList(marker.Segments(m.Value()))
	})
}

// makeSolutionPathFn creates the "solution_path" host function.
//
// solution_path(folder, marker) → string
func makeSolutionPathFn() *object.Builtin {
	return object.NewBuiltin("solution_path", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("solution_path", 2, len(args))
		}
		folder, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("solution_path: folder must be a string, got %s", args[0].Type())
		}
		m, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("solution_path: marker must be a string, got %s", args[1].Type())
		}
		return object.NewString(marker.SolutionPath(folder.Value(), m.Value()))
	})
}

func stringList(values []string) *object.List {
	items := make([]object.Object, 0, len(values))
	for _, v := range values {
		items = append(items, object.NewString(v))
	}
	return object.NewList(items)
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
	script string
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg, "script", l.script)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg, "script", l.script)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg, "script", l.script)
}
