// Package lexer isolates documentation comments from source text.
//
// Two implementations share the [Lexer] interface: [Rules] is a hand-written
// scanner with an explicit mode stack that understands nested doc comments,
// string literals and configurable line tokens; [Syntax] walks a tree-sitter
// parse of the file and collects its comment nodes.
package lexer

import (
	"context"
	"errors"
	"regexp"
)

var (
	// ErrSyntax is returned when the syntax lexer's parse tree contains errors.
	ErrSyntax = errors.New("lexer: syntax errors in source")
	// ErrUnsupported is returned when no grammar exists for a file extension.
	ErrUnsupported = errors.New("lexer: unsupported language")
)

const (
	DocOpen  = "/**"
	DocClose = "*/"

	// DefaultLineToken opens a single-line business comment.
	DefaultLineToken = "//bus"

	// replacement stands in for invalid UTF-8 in lexer output.
	replacement = "\uFFFD"
)

// Lexer extracts the concatenated documentation comments of one source file.
// On failure it returns whatever output was produced before the failure
// together with the error.
type Lexer interface {
	Lex(ctx context.Context, path string, src []byte) (string, error)
}

var continuation = regexp.MustCompile(`\n\s*\*`)

// Normalize strips leading continuation asterisks from every line.
func Normalize(s string) string {
	return continuation.ReplaceAllString(s, "\n")
}
