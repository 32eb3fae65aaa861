// Package header turns C header files into a flat, conflict-free set of
// function prototypes and the auxiliary type declarations needed to interpret
// them. Comments and preprocessor noise are stripped, declarations are parsed
// into type descriptors, and prototypes are resolved against the collected
// declarations in a second pass so header order never matters.
package header

import (
	"fmt"
	"strconv"
	"strings"
)

// Span locates a declaration in its source header.
type Span struct {
	File string
	Line int
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// TypeExpr describes a C type: a base identifier plus qualifiers, pointer
// depth, and an optional fixed array length. Function-pointer types carry
// only the FuncPtr flag; their inner signature is not modeled since they
// cross the wrapper boundary as opaque addresses.
type TypeExpr struct {
	Base     string
	Const    bool
	Unsigned bool
	Signed   bool
	Pointers int
	ArrayLen int
	FuncPtr  bool
	Opaque   bool // base does not resolve to a known declaration or builtin
}

// CKey renders the canonical C spelling used as the type-mapping lookup key,
// e.g. "const char *" or "TimestampTz".
func (t TypeExpr) CKey() string {
	var sb strings.Builder
	if t.Const {
		sb.WriteString("const ")
	}
	if t.Unsigned {
		sb.WriteString("unsigned ")
	}
	if t.Signed {
		sb.WriteString("signed ")
	}
	sb.WriteString(t.Base)
	if t.Pointers > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Repeat("*", t.Pointers))
	}
	return sb.String()
}

func (t TypeExpr) String() string {
	s := t.CKey()
	if t.FuncPtr {
		s += " (fn ptr)"
	}
	if t.ArrayLen > 0 {
		s += "[" + strconv.Itoa(t.ArrayLen) + "]"
	}
	return s
}

// IsVoid reports a bare void type (not void*).
func (t TypeExpr) IsVoid() bool {
	return t.Base == "void" && t.Pointers == 0 && !t.FuncPtr
}

// IsPointer reports any pointer-shaped type, including function pointers.
func (t TypeExpr) IsPointer() bool {
	return t.Pointers > 0 || t.FuncPtr
}

// Param is one function parameter. Name may be empty for unnamed parameters.
type Param struct {
	Name string
	Type TypeExpr
}

// Prototype is one parsed C function declaration.
type Prototype struct {
	Name     string
	Return   TypeExpr
	Params   []Param
	Variadic bool
	Span     Span
}

// Signature renders the canonical type-only signature used for duplicate
// collapsing and conflict detection. Parameter names are ignored: two
// declarations that differ only in parameter naming are the same function.
func (p *Prototype) Signature() string {
	parts := make([]string, 0, len(p.Params))
	for _, prm := range p.Params {
		parts = append(parts, prm.Type.String())
	}
	if p.Variadic {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("%s %s(%s)", p.Return.String(), p.Name, strings.Join(parts, ", "))
}

// DeclKind discriminates TypeDecl variants.
type DeclKind int

const (
	TypedefDecl DeclKind = iota
	StructDecl
	EnumDecl
	ConstDecl
)

// Field is one member of a struct declaration.
type Field struct {
	Name string
	Type TypeExpr
}

// EnumValue is one enumerator, with its literal value text when explicit.
type EnumValue struct {
	Name  string
	Value string
}

// TypeDecl is an auxiliary type declaration collected in pass one: a typedef,
// a struct or enum definition, or a numeric constant retained from a #define.
type TypeDecl struct {
	Kind    DeclKind
	Name    string
	Source  TypeExpr // typedef source type
	Fields  []Field
	Values  []EnumValue
	Opaque  bool   // body never seen, or pointer typedef to an unseen struct
	Handle  bool   // typedef of the form "typedef struct X_s *Name"
	Value   string // ConstDecl literal
	Span    Span
}

// Set is the normalized output of one run: prototypes sorted by name and the
// type declarations they resolve against, in first-seen order.
type Set struct {
	Prototypes []Prototype
	Decls      []TypeDecl

	declsByName map[string]*TypeDecl
}

// Decl looks up a type declaration by name.
func (s *Set) Decl(name string) (*TypeDecl, bool) {
	d, ok := s.declsByName[name]
	return d, ok
}

// IsHandle reports whether t crosses the wrapper boundary as an opaque
// pointer: a pointer to an unknown or opaque struct, a pointer typedef, or a
// function pointer.
func (s *Set) IsHandle(t TypeExpr) bool {
	if t.FuncPtr {
		return true
	}
	if d, ok := s.Decl(t.Base); ok {
		if d.Handle && t.Pointers == 0 {
			return true
		}
		if t.Pointers > 0 && (d.Kind == StructDecl || d.Handle) {
			return true
		}
	}
	return t.Opaque && t.Pointers > 0
}

// ResolveBase follows typedef chains until it reaches a builtin, a struct or
// enum, or an unknown name. The returned pointer count accumulates pointer
// typedefs along the way.
func (s *Set) ResolveBase(t TypeExpr) (TypeExpr, bool) {
	cur := t
	for i := 0; i < 16; i++ { // typedef cycles are malformed input, not worth diagnosing
		d, ok := s.declsByName[cur.Base]
		if !ok || d.Kind != TypedefDecl {
			return cur, ok || isBuiltinBase(cur.Base)
		}
		src := d.Source
		src.Pointers += cur.Pointers
		src.Const = src.Const || cur.Const
		if d.Handle {
			src.Pointers++
		}
		cur = src
	}
	return cur, false
}

var builtinBases = map[string]bool{
	"void": true, "bool": true, "char": true, "short": true, "int": true,
	"long": true, "long int": true, "long long": true, "short int": true,
	"float": true, "double": true, "long double": true,
	"int8_t": true, "uint8_t": true, "int16_t": true, "uint16_t": true,
	"int32_t": true, "uint32_t": true, "int64_t": true, "uint64_t": true,
	"size_t": true, "ssize_t": true, "uintptr_t": true, "intptr_t": true,
}

func isBuiltinBase(base string) bool {
	return builtinBases[base]
}
