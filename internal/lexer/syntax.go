package lexer

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Syntax collects documentation comments from a tree-sitter parse of the
// source. The grammar is chosen from the file extension. Nested doc
// comments are not tracked: a comment node's body is emitted verbatim.
type Syntax struct {
	lineTokens []string
}

// NewSyntax creates a Syntax lexer recognising the given line-comment tokens.
func NewSyntax(lineTokens ...string) *Syntax {
	return &Syntax{lineTokens: NewRules(lineTokens...).lineTokens}
}

// Lex implements Lexer.
func (x *Syntax) Lex(ctx context.Context, path string, src []byte) (string, error) {
	g, err := grammarFor(path)
	if err != nil {
		return "", err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.load())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return "", fmt.Errorf("parse %s as %s: %w", path, g.name, err)
	}
	root := tree.RootNode()

	var out strings.Builder
	x.walk(root, src, &out)

	text := Normalize(strings.ToValidUTF8(out.String(), replacement))
	if root.HasError() {
		return text, fmt.Errorf("%w: %s", ErrSyntax, path)
	}
	return text, nil
}

func (x *Syntax) walk(node *sitter.Node, src []byte, out *strings.Builder) {
	if strings.HasSuffix(node.Type(), "comment") {
		x.emit(node.Content(src), out)
		return
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		x.walk(node.Child(int(i)), src, out)
	}
}

func (x *Syntax) emit(text string, out *strings.Builder) {
	if text != "/**/" && strings.HasPrefix(text, DocOpen) {
		body := strings.TrimPrefix(text, DocOpen)
		body = strings.TrimSuffix(body, DocClose)
		out.WriteString(body)
		out.WriteByte('\n')
		return
	}
	for _, tok := range x.lineTokens {
		if strings.HasPrefix(text, tok) {
			line := strings.TrimPrefix(text, tok)
			out.WriteString(strings.TrimRight(line, "\r\n"))
			out.WriteByte('\n')
			return
		}
	}
}
