package header

import "fmt"

// ParseError reports a top-level declaration that could not be tokenized into
// a recognized grammar production. It aborts the whole run: a partially
// parsed binding surface is worse than none.
type ParseError struct {
	Span Span
	Decl string // offending declaration text, trimmed
	Msg  string
}

func (e *ParseError) Error() string {
	decl := e.Decl
	if len(decl) > 60 {
		decl = decl[:57] + "..."
	}
	if decl == "" {
		return fmt.Sprintf("%s: %s", e.Span, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %q", e.Span, e.Msg, decl)
}

// ConflictError reports two declarations of the same function name with
// incompatible signatures. Identical re-declarations are collapsed instead.
type ConflictError struct {
	Name   string
	First  Span
	Second Span
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting declarations of %s: %s and %s", e.Name, e.First, e.Second)
}
