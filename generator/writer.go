package generator

import (
	"fmt"
	"strings"
)

// goWriter manages indented Go source output for the wrapper generator.
// It encapsulates the output buffer and indentation level.
type goWriter struct {
	sb     strings.Builder
	indent int
}

// Linef writes an indented, formatted line with a trailing newline appended.
func (w *goWriter) Linef(format string, args ...interface{}) {
	if format == "" {
		w.sb.WriteByte('\n')
		return
	}
	w.sb.WriteString(strings.Repeat("\t", w.indent))
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

// Indent increases the indentation level.
func (w *goWriter) Indent() { w.indent++ }

// Dedent decreases the indentation level.
func (w *goWriter) Dedent() { w.indent-- }

// String returns the accumulated output.
func (w *goWriter) String() string { return w.sb.String() }
