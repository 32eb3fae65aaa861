// Package generator turns a normalized prototype set into a Go wrapper
// package. Each wrapped C function becomes a method on a Lib struct that
// dispatches through a native.Session, converts arguments and results, and
// consults the library's error channel after every call.
package generator

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ffibuild/ffiwrap/header"
	"github.com/ffibuild/ffiwrap/typemap"
)

// Options controls one generation run.
type Options struct {
	// Package is the generated package name.
	Package string
	// ModulePath is the import path prefix for the runtime package.
	ModulePath string
	Mapping    *typemap.Mapping
	Logger     zerolog.Logger
}

// Wrapper describes one generated method, for reporting.
type Wrapper struct {
	CName     string
	GoName    string
	Signature string
}

// Skip records a function that was not wrapped and why.
type Skip struct {
	Name   string
	Reason string
}

// Result is the outcome of one generation run.
type Result struct {
	Source  string
	Wrapped []Wrapper
	Skipped []Skip
}

// Generate renders the wrapper package for the given prototype set. The
// output is deterministic: prototypes arrive sorted by name and every
// construct is emitted in that order.
func Generate(set *header.Set, opts Options) (*Result, error) {
	if opts.Package == "" {
		return nil, fmt.Errorf("generate: package name is required")
	}
	if opts.Mapping == nil {
		opts.Mapping = typemap.Builtin()
	}
	if opts.ModulePath == "" {
		opts.ModulePath = "github.com/ffibuild/ffiwrap"
	}

	hooks := make(map[string]bool)
	for _, h := range opts.Mapping.Hooks() {
		hooks[h] = true
	}

	res := &Result{}
	var plans []*funcPlan
	for i := range set.Prototypes {
		p := &set.Prototypes[i]
		if hooks[p.Name] {
			res.Skipped = append(res.Skipped, Skip{Name: p.Name, Reason: "runtime hook"})
			continue
		}
		plan, err := buildPlan(set, opts.Mapping, p)
		if err != nil {
			opts.Logger.Warn().Str("function", p.Name).Str("reason", err.Error()).Msg("skipping function")
			res.Skipped = append(res.Skipped, Skip{Name: p.Name, Reason: err.Error()})
			continue
		}
		plans = append(plans, plan)
		res.Wrapped = append(res.Wrapped, Wrapper{
			CName:     p.Name,
			GoName:    plan.goName,
			Signature: plan.signature(),
		})
	}

	res.Source = render(plans, opts)
	return res, nil
}

type paramClass int

const (
	classValue paramClass = iota // scalar or handle passed by value
	classString
	classNullableString
	classNullableScalar // optional scalar via pointer, nil passes NULL
	classArray          // slice collapsed from pointer+count pair
	classArrayCount     // the count half of an array pair, fed from the slice
	classOut            // output pointer returned as an extra result
	classResult         // output pointer carrying the real result, C return is the ok flag
	classCountOut       // output pointer receiving the returned array's length
)

type paramPlan struct {
	cName  string
	goName string
	goType string // empty for params absent from the Go signature
	ffi    string
	class  paramClass
	elem   typemap.Conversion // pointed-to conversion for array/out/result
	array  string             // for classArrayCount, the goName of the slice
}

type funcPlan struct {
	cName  string
	goName string
	params []paramPlan

	retConv   typemap.Conversion
	retKind   retKind
	arrayElem typemap.Conversion // element conversion for retArray
	owned     bool

	// resolved result shape
	resultParam   *paramPlan // classResult param, if any
	countParam    *paramPlan // classCountOut param, if any
	outParams     []*paramPlan
	returnsOkFlag bool
}

type retKind int

const (
	retVoid retKind = iota
	retScalarArg        // integral scalar returned through an ffi.Arg cell
	retScalarWide       // 64-bit or floating scalar returned directly
	retString
	retHandle
	retArray // pointer to scalar, paired with a count-out param
)

// buildPlan decides how one prototype is wrapped, or returns the reason it
// cannot be.
func buildPlan(set *header.Set, m *typemap.Mapping, p *header.Prototype) (*funcPlan, error) {
	rules := m.Rules(p.Name)
	if rules.Skip {
		return nil, fmt.Errorf("listed as skipped in the mapping")
	}
	if p.Variadic {
		return nil, fmt.Errorf("variadic")
	}

	plan := &funcPlan{cName: p.Name, goName: goName(p.Name)}

	countFor := make(map[string]string) // count param -> array param
	for arr, count := range rules.Arrays {
		countFor[count] = arr
	}

	for i := range p.Params {
		prm := &p.Params[i]
		name := prm.Name
		if name == "" {
			name = fmt.Sprintf("p%d", i)
		}
		pp := paramPlan{cName: name, goName: name}

		role := rules.Params[prm.Name]
		switch {
		case role == typemap.RoleResult, role == typemap.RoleOut, role == typemap.RoleCountOut:
			if !prm.Type.IsPointer() {
				return nil, fmt.Errorf("parameter %s has role %s but is not a pointer", name, role)
			}
			elem := prm.Type
			elem.Pointers--
			conv, ok := m.Lookup(set, elem)
			if !ok || conv.Kind == typemap.KindString {
				return nil, fmt.Errorf("no conversion for output parameter %s (%s)", name, prm.Type)
			}
			pp.elem = conv
			pp.ffi = "&ffi.TypePointer"
			switch role {
			case typemap.RoleResult:
				pp.class = classResult
			case typemap.RoleOut:
				pp.class = classOut
			case typemap.RoleCountOut:
				pp.class = classCountOut
				if conv.Go != "int32" {
					return nil, fmt.Errorf("count parameter %s must be int-sized, got %s", name, conv.Go)
				}
			}

		case rules.Arrays[prm.Name] != "":
			if !prm.Type.IsPointer() {
				return nil, fmt.Errorf("array parameter %s is not a pointer", name)
			}
			elem := prm.Type
			elem.Pointers--
			elem.Const = false
			conv, ok := m.Lookup(set, elem)
			if !ok || conv.Kind != typemap.KindScalar {
				return nil, fmt.Errorf("no element conversion for array parameter %s (%s)", name, prm.Type)
			}
			pp.class = classArray
			pp.elem = conv
			pp.goType = "[]" + conv.Go
			pp.ffi = "&ffi.TypePointer"

		case countFor[prm.Name] != "":
			conv, ok := m.Lookup(set, prm.Type)
			if !ok || conv.Go != "int32" {
				return nil, fmt.Errorf("array count parameter %s must be int-sized", name)
			}
			pp.class = classArrayCount
			pp.array = countFor[prm.Name]
			pp.ffi = conv.FFI

		case role == typemap.RoleNullable && prm.Type.Pointers > 0 && isNullableScalar(set, m, prm.Type):
			elem := prm.Type
			elem.Pointers--
			elem.Const = false
			econv, _ := m.Lookup(set, elem)
			pp.class = classNullableScalar
			pp.elem = econv
			pp.goType = "*" + econv.Go
			pp.ffi = "&ffi.TypePointer"

		default:
			conv, ok := m.Lookup(set, prm.Type)
			if !ok {
				return nil, fmt.Errorf("no conversion for parameter %s (%s)", name, prm.Type)
			}
			pp.ffi = conv.FFI
			switch {
			case conv.Kind == typemap.KindString && role == typemap.RoleNullable:
				pp.class = classNullableString
				pp.goType = "*string"
			case conv.Kind == typemap.KindString:
				pp.class = classString
				pp.goType = "string"
			default:
				pp.class = classValue
				pp.goType = conv.Go
			}
		}

		plan.params = append(plan.params, pp)
	}

	// second pass over roles now that every param exists
	for i := range plan.params {
		pp := &plan.params[i]
		switch pp.class {
		case classResult:
			if plan.resultParam != nil {
				return nil, fmt.Errorf("more than one result parameter")
			}
			plan.resultParam = pp
		case classCountOut:
			if plan.countParam != nil {
				return nil, fmt.Errorf("more than one count parameter")
			}
			plan.countParam = pp
		case classOut:
			plan.outParams = append(plan.outParams, pp)
		}
	}

	if err := planReturn(set, m, p, rules, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func planReturn(set *header.Set, m *typemap.Mapping, p *header.Prototype, rules typemap.FuncRules, plan *funcPlan) error {
	if rules.Owned != nil {
		plan.owned = *rules.Owned
	}

	if p.Return.IsVoid() {
		plan.retKind = retVoid
		plan.retConv = typemap.Conversion{FFI: "&ffi.TypeVoid", Kind: typemap.KindVoid}
		if plan.resultParam != nil {
			return fmt.Errorf("result parameter needs a non-void return to carry the ok flag")
		}
		if plan.countParam != nil {
			return fmt.Errorf("count parameter without a returned array")
		}
		return nil
	}

	conv, ok := m.Lookup(set, p.Return)
	if !ok {
		// a pointer-to-scalar return is an array when a count-out param names
		// its length
		if plan.countParam != nil && p.Return.Pointers == 1 {
			elem := p.Return
			elem.Pointers--
			elem.Const = false
			econv, eok := m.Lookup(set, elem)
			if eok && econv.Kind == typemap.KindScalar {
				if rules.Owned == nil {
					return fmt.Errorf("returned array has no ownership annotation")
				}
				plan.retKind = retArray
				plan.retConv = typemap.Conversion{Go: "[]" + econv.Go, FFI: "&ffi.TypePointer"}
				plan.arrayElem = econv
				return nil
			}
		}
		return fmt.Errorf("no conversion for return type %s", p.Return)
	}

	switch conv.Kind {
	case typemap.KindScalar:
		plan.retConv = conv
		if isWideScalar(conv.Go) {
			plan.retKind = retScalarWide
		} else {
			plan.retKind = retScalarArg
		}
		if plan.resultParam != nil {
			if conv.Go != "bool" {
				return fmt.Errorf("result parameter needs a bool return as the ok flag, got %s", conv.Go)
			}
			plan.returnsOkFlag = true
		}
	case typemap.KindString:
		if rules.Owned == nil {
			return fmt.Errorf("returned string has no ownership annotation")
		}
		plan.retConv = conv
		plan.retKind = retString
	case typemap.KindHandle:
		plan.retConv = conv
		plan.retKind = retHandle
	default:
		return fmt.Errorf("unsupported return kind %s", conv.Kind)
	}

	if plan.countParam != nil && plan.retKind != retArray {
		return fmt.Errorf("count parameter without a returned array")
	}
	return nil
}

// isNullableScalar reports a pointer to a mapped scalar, the shape an
// optional in-parameter takes.
func isNullableScalar(set *header.Set, m *typemap.Mapping, t header.TypeExpr) bool {
	if t.FuncPtr {
		return false
	}
	if _, ok := m.Lookup(set, t); ok {
		// the whole type maps already (string, handle), not an optional scalar
		return false
	}
	elem := t
	elem.Pointers--
	elem.Const = false
	conv, ok := m.Lookup(set, elem)
	return ok && conv.Kind == typemap.KindScalar
}

func isWideScalar(goType string) bool {
	switch goType {
	case "int64", "uint64", "uintptr", "float32", "float64":
		return true
	}
	return false
}

// goName converts a C identifier to an exported Go name.
func goName(cName string) string {
	parts := strings.Split(cName, "_")
	var sb strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}
