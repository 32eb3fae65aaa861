// Package typemap decides how C types and function signatures translate into
// Go. A built-in table covers the C scalar and string types; everything
// project-specific (the library's lifecycle hooks, extra type conversions,
// per-function parameter roles) is layered on top from a YAML file.
package typemap

import (
	"github.com/ffibuild/ffiwrap/header"
)

// Kind classifies how a value crosses the FFI boundary.
type Kind string

const (
	KindVoid   Kind = "void"
	KindScalar Kind = "scalar"
	KindString Kind = "string"
	KindHandle Kind = "handle"
)

// Conversion is one C-type-to-Go-type translation. FFI names the libffi type
// descriptor the generated registration uses.
type Conversion struct {
	Go   string
	FFI  string
	Kind Kind
}

// Role assigns special handling to one named parameter of one function.
type Role string

const (
	// RoleResult marks an output pointer that carries the real result; the
	// C return value becomes a found/ok flag.
	RoleResult Role = "result"
	// RoleOut marks an output pointer returned as an extra Go result.
	RoleOut Role = "out"
	// RoleCountOut marks an output pointer receiving an element count for a
	// returned array.
	RoleCountOut Role = "count-out"
	// RoleNullable marks a pointer parameter that accepts nil.
	RoleNullable Role = "nullable"
)

// FuncRules carries the curated per-function knowledge that a C prototype
// cannot express on its own.
type FuncRules struct {
	// Params maps parameter names to roles.
	Params map[string]Role `yaml:"params"`
	// Arrays maps an array parameter name to the parameter carrying its
	// length, so the pair collapses into one Go slice argument.
	Arrays map[string]string `yaml:"arrays"`
	// Owned states whether pointers returned by this function belong to the
	// caller and must be released through the library's free hook. Nil means
	// unknown, and unknown pointer returns are not wrapped.
	Owned *bool `yaml:"owned"`
	// Skip drops the function from generation entirely.
	Skip bool `yaml:"skip"`
}

// Library names the handful of symbols the runtime needs beyond the wrapped
// functions themselves.
type Library struct {
	Name         string `yaml:"name"`
	Init         string `yaml:"init"`
	Finalize     string `yaml:"finalize"`
	ErrorCode    string `yaml:"error_code"`
	ErrorMessage string `yaml:"error_message"`
	Free         string `yaml:"free"`
}

// Mapping is the complete translation configuration for one library.
type Mapping struct {
	Library     Library
	Conversions map[string]Conversion
	Functions   map[string]FuncRules
}

// Hooks lists the library symbols that serve the runtime rather than the
// public API. They are registered by the session, never wrapped.
func (m *Mapping) Hooks() []string {
	var hooks []string
	for _, s := range []string{
		m.Library.Init, m.Library.Finalize,
		m.Library.ErrorCode, m.Library.ErrorMessage, m.Library.Free,
	} {
		if s != "" {
			hooks = append(hooks, s)
		}
	}
	return hooks
}

// Rules returns the curated rules for a function, or the zero rules.
func (m *Mapping) Rules(name string) FuncRules {
	return m.Functions[name]
}

// Builtin returns the default mapping: C scalars, strings, and void pointers.
func Builtin() *Mapping {
	scalar := func(goType, ffiType string) Conversion {
		return Conversion{Go: goType, FFI: ffiType, Kind: KindScalar}
	}
	return &Mapping{
		Conversions: map[string]Conversion{
			"void": {FFI: "&ffi.TypeVoid", Kind: KindVoid},

			"bool":          scalar("bool", "&ffi.TypeUint8"),
			"char":          scalar("byte", "&ffi.TypeUint8"),
			"signed char":   scalar("int8", "&ffi.TypeSint8"),
			"unsigned char": scalar("uint8", "&ffi.TypeUint8"),
			"int8_t":        scalar("int8", "&ffi.TypeSint8"),
			"uint8_t":       scalar("uint8", "&ffi.TypeUint8"),

			"short":          scalar("int16", "&ffi.TypeSint16"),
			"unsigned short": scalar("uint16", "&ffi.TypeUint16"),
			"int16_t":        scalar("int16", "&ffi.TypeSint16"),
			"uint16_t":       scalar("uint16", "&ffi.TypeUint16"),

			"int":          scalar("int32", "&ffi.TypeSint32"),
			"unsigned int": scalar("uint32", "&ffi.TypeUint32"),
			"int32_t":      scalar("int32", "&ffi.TypeSint32"),
			"uint32_t":     scalar("uint32", "&ffi.TypeUint32"),

			"long":               scalar("int64", "&ffi.TypeSint64"),
			"long int":           scalar("int64", "&ffi.TypeSint64"),
			"long long":          scalar("int64", "&ffi.TypeSint64"),
			"unsigned long":      scalar("uint64", "&ffi.TypeUint64"),
			"unsigned long long": scalar("uint64", "&ffi.TypeUint64"),
			"int64_t":            scalar("int64", "&ffi.TypeSint64"),
			"uint64_t":           scalar("uint64", "&ffi.TypeUint64"),
			"size_t":             scalar("uint64", "&ffi.TypeUint64"),
			"ssize_t":            scalar("int64", "&ffi.TypeSint64"),
			"uintptr_t":          scalar("uintptr", "&ffi.TypePointer"),

			"float":  scalar("float32", "&ffi.TypeFloat"),
			"double": scalar("float64", "&ffi.TypeDouble"),

			"char *":       {Go: "string", FFI: "&ffi.TypePointer", Kind: KindString},
			"const char *": {Go: "string", FFI: "&ffi.TypePointer", Kind: KindString},
			"void *":       {Go: "native.Handle", FFI: "&ffi.TypePointer", Kind: KindHandle},
		},
		Functions: map[string]FuncRules{},
	}
}

var handleConversion = Conversion{Go: "native.Handle", FFI: "&ffi.TypePointer", Kind: KindHandle}

// Lookup translates one C type. Handles and enums come from the declaration
// set; everything else from the conversion table, trying the exact type
// first, then without const, then with typedefs resolved.
func (m *Mapping) Lookup(set *header.Set, t header.TypeExpr) (Conversion, bool) {
	if conv, ok := m.table(t); ok {
		return conv, true
	}
	if t.FuncPtr {
		return Conversion{}, false // callbacks are not wrapped
	}
	if set == nil {
		return Conversion{}, false
	}
	if set.IsHandle(t) {
		return handleConversion, true
	}
	if resolved, known := set.ResolveBase(t); known {
		if conv, ok := m.table(resolved); ok {
			return conv, true
		}
		if d, ok := set.Decl(resolved.Base); ok && d.Kind == header.EnumDecl && resolved.Pointers == 0 {
			return Conversion{Go: "int32", FFI: "&ffi.TypeSint32", Kind: KindScalar}, true
		}
	}
	return Conversion{}, false
}

func (m *Mapping) table(t header.TypeExpr) (Conversion, bool) {
	if conv, ok := m.Conversions[t.CKey()]; ok {
		return conv, true
	}
	if t.Const {
		bare := t
		bare.Const = false
		if conv, ok := m.Conversions[bare.CKey()]; ok {
			return conv, true
		}
	}
	return Conversion{}, false
}
