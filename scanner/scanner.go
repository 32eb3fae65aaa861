// Package scanner provides comment- and literal-aware scanning of C source
// text. It encapsulates the tracking of string literals, character constants,
// escape sequences, and both comment styles, eliminating the need for every
// header-processing function to re-implement this state machine.
package scanner

import (
	"fmt"
	"strings"
)

// CodeScanner iterates byte-by-byte over C source, tracking string literal,
// character constant, and comment boundaries plus escape sequences. Callers
// check InComment()/InString() instead of maintaining their own flags.
//
// InComment() returns true for the entire comment span including the opening
// and closing delimiters. A line comment ends just before its newline, so the
// newline itself is reported as code.
type CodeScanner struct {
	src        string
	pos        int
	line       int
	inStr      bool
	inChar     bool
	inLine     bool
	inBlock    bool
	escaped    bool
	closedLit  bool // the last byte closed a string or char literal
	closedBlk  bool // the last byte closed a block comment
	blockLine  int  // line where the current block comment opened
	blockStart int  // byte offset of the opening slash
}

// New creates a CodeScanner for the given source text.
// Call Next() to advance to the first byte.
func New(src string) *CodeScanner {
	return &CodeScanner{src: src, pos: -1, line: 1}
}

// Next advances to the next byte, updating comment/literal state.
// Returns the byte and true, or (0, false) at end of input.
func (s *CodeScanner) Next() (byte, bool) {
	s.closedLit = false
	s.closedBlk = false
	s.pos++
	if s.pos >= len(s.src) {
		return 0, false
	}
	ch := s.src[s.pos]
	if ch == '\n' {
		s.line++
		// C has no multiline string literals; a stray newline inside one
		// means the header is damaged, but recovering here keeps a single
		// bad literal from cascading into every later line.
		s.inStr = false
		s.inChar = false
		s.inLine = false
		s.escaped = false
		return ch, true
	}

	if s.inLine {
		return ch, true
	}
	if s.inBlock {
		// The closing star must come after the opening "/*", so "/*/" stays open.
		if ch == '/' && s.pos >= s.blockStart+3 && s.src[s.pos-1] == '*' {
			s.inBlock = false
			s.closedBlk = true
		}
		return ch, true
	}

	if s.escaped {
		s.escaped = false
		return ch, true
	}
	if ch == '\\' && (s.inStr || s.inChar) {
		s.escaped = true
		return ch, true
	}
	if ch == '"' && !s.inChar {
		if s.inStr {
			s.closedLit = true
		}
		s.inStr = !s.inStr
		return ch, true
	}
	if ch == '\'' && !s.inStr {
		if s.inChar {
			s.closedLit = true
		}
		s.inChar = !s.inChar
		return ch, true
	}
	if ch == '/' && !s.inStr && !s.inChar {
		if next, ok := s.Peek(); ok {
			if next == '*' {
				s.inBlock = true
				s.blockLine = s.line
				s.blockStart = s.pos
			} else if next == '/' {
				s.inLine = true
			}
		}
	}
	return ch, true
}

// InString reports whether the current position is inside a string literal
// or character constant, including both delimiters.
func (s *CodeScanner) InString() bool {
	return s.inStr || s.inChar || s.closedLit
}

// InComment reports whether the current position is inside a comment,
// including the opening and closing delimiters.
func (s *CodeScanner) InComment() bool {
	return s.inLine || s.inBlock || s.closedBlk
}

// InCode reports whether the current position is outside comments and
// literals.
func (s *CodeScanner) InCode() bool { return !s.InString() && !s.InComment() }

// Pos returns the current byte offset (the position of the last byte
// returned by Next). Returns -1 before the first call to Next.
func (s *CodeScanner) Pos() int { return s.pos }

// Line returns the current 1-based line number.
func (s *CodeScanner) Line() int { return s.line }

// Peek returns the next byte without advancing, or (0, false) at end.
func (s *CodeScanner) Peek() (byte, bool) {
	if s.pos+1 >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos+1], true
}

// StripComments removes both comment styles from C source, replacing each
// comment byte with a space so that byte offsets and line numbers of the
// surrounding code are preserved. Newlines inside block comments are kept.
// Returns an error for a block comment left open at end of input.
func StripComments(src string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(src))
	sc := New(src)
	for ch, ok := sc.Next(); ok; ch, ok = sc.Next() {
		if sc.InComment() && ch != '\n' {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteByte(ch)
	}
	if sc.inBlock {
		return "", fmt.Errorf("%d: unterminated block comment", sc.blockLine)
	}
	return sb.String(), nil
}

// SplitTopLevel splits s on sep at paren/bracket/brace depth 0, outside
// string literals and comments. Used to break parameter lists on commas
// without splitting inside function-pointer parameter types.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	sc := New(s)
	for ch, ok := sc.Next(); ok; ch, ok = sc.Next() {
		if !sc.InCode() {
			continue
		}
		switch ch {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:sc.Pos()])
				start = sc.Pos() + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
