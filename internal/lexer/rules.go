package lexer

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"unicode/utf8"
)

// mode is one frame of the scanner's mode stack.
type mode int

const (
	modeCode mode = iota
	modeDoc
	modeString
	modeTextBlock
	modeRemark
)

// escapes is the fixed set of characters accepted after a backslash inside a
// string literal.
var escapes = map[byte]bool{
	't': true, 'b': true, 'n': true, 'r': true, 'f': true,
	'\'': true, '"': true, '\\': true,
}

// ctxCheckInterval is how many steps run between context checks.
const ctxCheckInterval = 4096

// Rules is the hand-written comment lexer.
type Rules struct {
	lineTokens []string
}

// NewRules creates a Rules lexer recognising the given line-comment tokens.
// With no tokens, DefaultLineToken is used.
func NewRules(lineTokens ...string) *Rules {
	if len(lineTokens) == 0 {
		lineTokens = []string{DefaultLineToken}
	}
	toks := make([]string, 0, len(lineTokens))
	for _, t := range lineTokens {
		if t = strings.TrimSpace(t); t != "" {
			toks = append(toks, t)
		}
	}
	// Longest first so "///" wins over "//".
	sort.SliceStable(toks, func(i, j int) bool { return len(toks[i]) > len(toks[j]) })
	return &Rules{lineTokens: toks}
}

// Lex implements Lexer. The path is unused.
func (r *Rules) Lex(ctx context.Context, _ string, src []byte) (string, error) {
	s := &scanner{src: src, lineTokens: r.lineTokens, stack: []mode{modeCode}}
	for n := 0; s.step(); n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				s.err = err
				break
			}
		}
	}
	return Normalize(strings.ToValidUTF8(s.out.String(), replacement)), s.err
}

type scanner struct {
	src        []byte
	pos        int
	stack      []mode
	lineTokens []string
	out        strings.Builder
	err        error
}

func (s *scanner) top() mode { return s.stack[len(s.stack)-1] }

func (s *scanner) push(m mode) { s.stack = append(s.stack, m) }

func (s *scanner) pop() {
	if len(s.stack) > 1 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// depth is the current doc comment nesting depth.
func (s *scanner) depth() int {
	n := 0
	for _, m := range s.stack {
		if m == modeDoc {
			n++
		}
	}
	return n
}

func (s *scanner) at(tok string) bool {
	return bytes.HasPrefix(s.src[s.pos:], []byte(tok))
}

// step advances the scanner by one token. It returns false once the end of
// input is reached.
func (s *scanner) step() bool {
	if s.pos >= len(s.src) {
		return false
	}
	// Invalid UTF-8 decodes as a one byte rune and is scanned like any
	// other character.
	_, size := utf8.DecodeRune(s.src[s.pos:])

	switch s.top() {
	case modeCode:
		s.code(size)
	case modeDoc:
		s.doc(size)
	case modeString:
		s.str(size)
	case modeTextBlock:
		s.textBlock(size)
	case modeRemark:
		s.remark(size)
	}
	return true
}

func (s *scanner) code(size int) {
	switch {
	case s.at("/**/"):
		s.pos += 4
		return
	case s.at(DocOpen):
		s.push(modeDoc)
		s.pos += len(DocOpen)
		return
	}
	for _, tok := range s.lineTokens {
		if s.at(tok) {
			s.pos += len(tok)
			s.lineComment()
			return
		}
	}
	switch {
	case s.at("/*"):
		s.push(modeRemark)
		s.pos += 2
	case s.at("//"):
		s.skipLine()
	case s.at(`"""`):
		s.push(modeTextBlock)
		s.pos += 3
	case s.src[s.pos] == '"':
		s.push(modeString)
		s.pos++
	case s.src[s.pos] == '\'':
		s.charLiteral()
	default:
		s.pos += size
	}
}

func (s *scanner) doc(size int) {
	switch {
	case s.at(DocClose):
		s.pop()
		s.pos += len(DocClose)
		if s.depth() == 0 {
			s.out.WriteByte('\n')
		}
	case s.at("/**/"):
		s.pos += 4
	case s.at(DocOpen):
		s.push(modeDoc)
		s.pos += len(DocOpen)
	default:
		s.out.Write(s.src[s.pos : s.pos+size])
		s.pos += size
	}
}

func (s *scanner) str(size int) {
	switch s.src[s.pos] {
	case '\\':
		s.pos += 2
		// An unrecognised escape rewinds one so its character is scanned
		// again as ordinary string content.
		if s.pos > len(s.src) || !escapes[s.src[s.pos-1]] {
			s.pos--
		}
	case '"':
		s.pop()
		s.pos++
	default:
		s.pos += size
	}
}

func (s *scanner) textBlock(size int) {
	switch {
	case s.at(`"""`):
		s.pop()
		s.pos += 3
	case s.src[s.pos] == '\\':
		s.pos = min(s.pos+2, len(s.src))
	default:
		s.pos += size
	}
}

func (s *scanner) remark(size int) {
	if s.at("*/") {
		s.pop()
		s.pos += 2
		return
	}
	s.pos += size
}

// lineComment emits the rest of the current line followed by a newline.
func (s *scanner) lineComment() {
	end := s.lineEnd()
	s.out.Write(s.src[s.pos:end])
	s.out.WriteByte('\n')
	s.pos = end
}

func (s *scanner) skipLine() {
	s.pos = s.lineEnd()
}

func (s *scanner) lineEnd() int {
	if i := bytes.IndexAny(s.src[s.pos:], "\n\r"); i >= 0 {
		return s.pos + i
	}
	return len(s.src)
}

// maxCharLiteral bounds how far a character literal may extend, enough for
// a unicode escape.
const maxCharLiteral = 8

// charLiteral skips a quoted character so a quote inside it never opens a
// string. A lone apostrophe is skipped on its own.
func (s *scanner) charLiteral() {
	for i := s.pos + 1; i < len(s.src) && i-s.pos < maxCharLiteral; i++ {
		switch s.src[i] {
		case '\\':
			i++
		case '\'':
			s.pos = i + 1
			return
		case '\n', '\r':
			s.pos++
			return
		}
	}
	s.pos++
}
