package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"
)

// Transformer rewrites the extracted comments of one source file with a
// Risor script. The script sees the globals comments and source_path and
// must evaluate to a string.
type Transformer struct {
	rt     *Runtime
	path   string
	source string
}

// NewTransformer loads the script at scriptPath once.
func NewTransformer(rt *Runtime, scriptPath string) (*Transformer, error) {
	src, err := rt.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return &Transformer{rt: rt, path: scriptPath, source: src}, nil
}

// NewInlineTransformer wraps script source directly.
func NewInlineTransformer(rt *Runtime, source string) *Transformer {
	return &Transformer{rt: rt, path: "<inline>", source: source}
}

// Apply runs the script. A nil result leaves the comments unchanged.
func (t *Transformer) Apply(ctx context.Context, sourcePath, comments string) (string, error) {
	result, err := t.rt.eval(ctx, t.source, t.path, map[string]any{
		"comments":    comments,
		"source_path": sourcePath,
	})
	if err != nil {
		return comments, err
	}
	switch v := result.(type) {
	case *object.String:
		return v.Value(), nil
	case *object.NilType:
		return comments, nil
	default:
		return comments, fmt.Errorf("runtime: script %s returned %s, want string", t.path, result.Type())
	}
}
