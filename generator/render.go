package generator

import (
	"fmt"
	"strings"
)

// signature is the Go-side signature used in reports, without the receiver.
func (plan *funcPlan) signature() string {
	var params []string
	for i := range plan.params {
		pp := &plan.params[i]
		if pp.goType != "" {
			params = append(params, pp.goName+" "+pp.goType)
		}
	}
	return fmt.Sprintf("%s(%s) %s", plan.goName, strings.Join(params, ", "), renderResults(plan.results()))
}

func renderResults(results []string) string {
	if len(results) == 1 {
		return results[0]
	}
	return "(" + strings.Join(results, ", ") + ")"
}

// results lists the Go result types in order: the main value, output
// parameters, the ok flag, and the trailing error.
func (plan *funcPlan) results() []string {
	var results []string
	if plan.resultParam != nil {
		results = append(results, plan.resultParam.elem.Go)
	} else {
		switch plan.retKind {
		case retVoid:
		case retString:
			results = append(results, "string")
		default:
			results = append(results, plan.retConv.Go)
		}
	}
	for _, out := range plan.outParams {
		results = append(results, out.elem.Go)
	}
	if plan.returnsOkFlag {
		results = append(results, "bool")
	}
	results = append(results, "error")
	return results
}

// zeroResults renders the early-return values for an error path.
func (plan *funcPlan) zeroResults(errExpr string) string {
	results := plan.results()
	vals := make([]string, 0, len(results))
	for _, r := range results[:len(results)-1] {
		vals = append(vals, zeroExpr(r))
	}
	vals = append(vals, errExpr)
	return strings.Join(vals, ", ")
}

func zeroExpr(goType string) string {
	switch {
	case goType == "string":
		return `""`
	case goType == "bool":
		return "false"
	case strings.HasPrefix(goType, "[]") || strings.HasPrefix(goType, "*"):
		return "nil"
	default:
		return "0" // numeric kinds and native.Handle
	}
}

func render(plans []*funcPlan, opts Options) string {
	w := &goWriter{}
	w.Linef("// Code generated by ffiwrap. DO NOT EDIT.")
	w.Linef("")
	w.Linef("package %s", opts.Package)
	w.Linef("")
	w.Linef("import (")
	w.Indent()
	if len(plans) > 0 {
		w.Linef(`"unsafe"`)
		w.Linef("")
		w.Linef(`"github.com/jupiterrider/ffi"`)
		w.Linef("")
	}
	w.Linef(`"%s/native"`, opts.ModulePath)
	w.Dedent()
	w.Linef(")")
	w.Linef("")
	if len(plans) > 0 {
		w.Linef("var _ = unsafe.Pointer(nil)")
		w.Linef("")
	}

	renderRegistry(w, plans)

	w.Linef("")
	w.Linef("// Lib exposes the wrapped library API over an open session.")
	w.Linef("type Lib struct {")
	w.Indent()
	w.Linef("s *native.Session")
	w.Dedent()
	w.Linef("}")
	w.Linef("")
	w.Linef("// New registers every wrapped function on the session.")
	w.Linef("func New(s *native.Session) (*Lib, error) {")
	w.Indent()
	w.Linef("if err := s.Register(Functions); err != nil {")
	w.Indent()
	w.Linef("return nil, err")
	w.Dedent()
	w.Linef("}")
	w.Linef("return &Lib{s: s}, nil")
	w.Dedent()
	w.Linef("}")
	w.Linef("")
	w.Linef("// Session returns the underlying session.")
	w.Linef("func (l *Lib) Session() *native.Session { return l.s }")

	for _, plan := range plans {
		w.Linef("")
		renderMethod(w, plan)
	}
	return w.String()
}

func renderRegistry(w *goWriter, plans []*funcPlan) {
	w.Linef("// Functions lists every wrapped symbol for session registration.")
	w.Linef("var Functions = []native.FuncDef{")
	w.Indent()
	for _, plan := range plans {
		args := make([]string, 0, len(plan.params))
		for i := range plan.params {
			args = append(args, plan.params[i].ffi)
		}
		if len(args) == 0 {
			w.Linef("{Name: %q, Ret: %s},", plan.cName, plan.retConv.FFI)
		} else {
			w.Linef("{Name: %q, Ret: %s, Args: []*ffi.Type{%s}},",
				plan.cName, plan.retConv.FFI, strings.Join(args, ", "))
		}
	}
	w.Dedent()
	w.Linef("}")
}

func renderMethod(w *goWriter, plan *funcPlan) {
	var params []string
	for i := range plan.params {
		pp := &plan.params[i]
		if pp.goType != "" {
			params = append(params, pp.goName+" "+pp.goType)
		}
	}
	w.Linef("func (l *Lib) %s(%s) %s {", plan.goName, strings.Join(params, ", "), renderResults(plan.results()))
	w.Indent()

	// argument setup
	for i := range plan.params {
		pp := &plan.params[i]
		switch pp.class {
		case classString:
			w.Linef("%sC := native.CString(%s)", pp.goName, pp.goName)
		case classNullableString:
			w.Linef("var %sC *byte", pp.goName)
			w.Linef("if %s != nil {", pp.goName)
			w.Indent()
			w.Linef("%sC = native.CString(*%s)", pp.goName, pp.goName)
			w.Dedent()
			w.Linef("}")
		case classArray:
			w.Linef("%sPtr, %sLen := native.SlicePtr(%s)", pp.goName, pp.goName, pp.goName)
		case classOut, classResult, classCountOut:
			w.Linef("var %sOut %s", pp.goName, pp.elem.Go)
			w.Linef("%sPtr := &%sOut", pp.goName, pp.goName)
		}
	}

	// return cell
	retArg := "nil"
	switch plan.retKind {
	case retVoid:
	case retScalarArg:
		w.Linef("var ret ffi.Arg")
		retArg = "unsafe.Pointer(&ret)"
	case retScalarWide:
		w.Linef("var ret %s", plan.retConv.Go)
		retArg = "unsafe.Pointer(&ret)"
	case retString:
		w.Linef("var ret *byte")
		retArg = "unsafe.Pointer(&ret)"
	case retHandle:
		w.Linef("var ret native.Handle")
		retArg = "unsafe.Pointer(&ret)"
	case retArray:
		w.Linef("var ret *%s", plan.arrayElem.Go)
		retArg = "unsafe.Pointer(&ret)"
	}

	callArgs := []string{fmt.Sprintf("%q", plan.cName), retArg}
	for i := range plan.params {
		pp := &plan.params[i]
		switch pp.class {
		case classString, classNullableString:
			callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%sC)", pp.goName))
		case classArray:
			callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%sPtr)", pp.goName))
		case classArrayCount:
			callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%sLen)", pp.array))
		case classOut, classResult, classCountOut:
			callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%sPtr)", pp.goName))
		default:
			callArgs = append(callArgs, fmt.Sprintf("unsafe.Pointer(&%s)", pp.goName))
		}
	}

	w.Linef("if err := l.s.Call(%s); err != nil {", strings.Join(callArgs, ", "))
	w.Indent()
	w.Linef("return %s", plan.zeroResults("err"))
	w.Dedent()
	w.Linef("}")
	w.Linef("if err := l.s.LastError(); err != nil {")
	w.Indent()
	w.Linef("return %s", plan.zeroResults("err"))
	w.Dedent()
	w.Linef("}")

	// result conversion
	var mainVal string
	if plan.resultParam != nil {
		mainVal = plan.resultParam.goName + "Out"
	} else {
		switch plan.retKind {
		case retVoid:
		case retScalarArg:
			if plan.retConv.Go == "bool" {
				mainVal = "ret.Bool()"
			} else {
				mainVal = fmt.Sprintf("%s(ret)", plan.retConv.Go)
			}
		case retString:
			w.Linef("out := native.GoString(ret)")
			if plan.owned {
				w.Linef("l.s.Free(unsafe.Pointer(ret))")
			}
			mainVal = "out"
		case retArray:
			w.Linef("out := native.GoSlice(ret, %sOut)", plan.countParam.goName)
			if plan.owned {
				w.Linef("l.s.Free(unsafe.Pointer(ret))")
			}
			mainVal = "out"
		default:
			mainVal = "ret"
		}
	}

	var retVals []string
	if mainVal != "" {
		retVals = append(retVals, mainVal)
	}
	for _, out := range plan.outParams {
		retVals = append(retVals, out.goName+"Out")
	}
	if plan.returnsOkFlag {
		retVals = append(retVals, "ret.Bool()")
	}
	retVals = append(retVals, "nil")
	w.Linef("return %s", strings.Join(retVals, ", "))
	w.Dedent()
	w.Linef("}")
}
