package lexer

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// grammar is a tree-sitter language whose comments use the /** */ and //
// forms the Syntax lexer emits. Loading is deferred to the first parse.
type grammar struct {
	name string
	load func() *sitter.Language
}

func lazy(name string, get func() *sitter.Language) grammar {
	return grammar{name: name, load: sync.OnceValue(get)}
}

var (
	javaGrammar = lazy("java", java.GetLanguage)
	goGrammar   = lazy("go", golang.GetLanguage)
	tsGrammar   = lazy("typescript", ts.GetLanguage)
	jsGrammar   = lazy("javascript", javascript.GetLanguage)
	rustGrammar = lazy("rust", rust.GetLanguage)
	cGrammar    = lazy("c", c.GetLanguage)
	cppGrammar  = lazy("cpp", cpp.GetLanguage)
	phpGrammar  = lazy("php", php.GetLanguage)
)

// grammars is keyed by lower-case extension. Languages with # comments are
// left out since they cannot carry doc comments.
var grammars = map[string]grammar{
	".java": javaGrammar,
	".go":   goGrammar,
	".ts":   tsGrammar,
	".tsx":  tsGrammar,
	".js":   jsGrammar,
	".jsx":  jsGrammar,
	".rs":   rustGrammar,
	".c":    cGrammar,
	".h":    cGrammar,
	".cpp":  cppGrammar,
	".cc":   cppGrammar,
	".cxx":  cppGrammar,
	".hpp":  cppGrammar,
	".php":  phpGrammar,
}

// grammarFor picks the grammar for path by extension.
func grammarFor(path string) (grammar, error) {
	g, ok := grammars[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return grammar{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return g, nil
}
