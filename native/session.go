// Package native is the runtime under every generated wrapper: it loads the
// shared library, registers symbols, dispatches calls, and surfaces the
// library's own error channel as Go errors.
package native

import (
	"fmt"
	"unsafe"

	"github.com/jupiterrider/ffi"
	"github.com/rs/zerolog"
)

// FuncDef describes one foreign function: its symbol name and libffi type
// descriptors. Generated packages export a slice of these for registration.
type FuncDef struct {
	Name string
	Ret  *ffi.Type
	Args []*ffi.Type
}

// Invoker resolves and calls foreign functions. The production implementation
// wraps a loaded shared library; tests substitute a stub.
type Invoker interface {
	Prep(def FuncDef) error
	Invoke(name string, ret unsafe.Pointer, args ...unsafe.Pointer) error
	Close() error
}

// Options names the library's lifecycle and error hooks. Empty fields
// disable the corresponding behavior.
type Options struct {
	// Init is called once when the session opens.
	Init string
	// Finalize is called once when the session closes.
	Finalize string
	// ErrorCode returns the library's last error code, zero meaning none.
	ErrorCode string
	// ErrorMessage returns the library's last error text.
	ErrorMessage string
	// Free releases library-owned memory handed to the caller.
	Free string

	Logger zerolog.Logger
}

// Session is one open library with its registered functions. Call dispatch
// is safe for concurrent use once registration is done; Register and Close
// are not meant to race with calls.
type Session struct {
	inv    Invoker
	opts   Options
	closed bool
}

// Open loads the shared library at path and starts a session over it.
func Open(path string, opts Options) (*Session, error) {
	lib, err := ffi.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return NewSession(&libInvoker{lib: lib, funcs: make(map[string]ffi.Fun)}, opts)
}

// NewSession wires a session over an invoker, registers the configured hooks
// and runs the init hook. A missing hook symbol fails the whole session;
// a library that names hooks it does not export is misconfigured.
func NewSession(inv Invoker, opts Options) (*Session, error) {
	s := &Session{inv: inv, opts: opts}
	for _, def := range s.hookDefs() {
		if err := inv.Prep(def); err != nil {
			inv.Close()
			return nil, err
		}
	}
	if opts.Init != "" {
		if err := inv.Invoke(opts.Init, nil); err != nil {
			inv.Close()
			return nil, err
		}
		opts.Logger.Debug().Str("hook", opts.Init).Msg("library initialized")
	}
	return s, nil
}

func (s *Session) hookDefs() []FuncDef {
	var defs []FuncDef
	if s.opts.Init != "" {
		defs = append(defs, FuncDef{Name: s.opts.Init, Ret: &ffi.TypeVoid})
	}
	if s.opts.Finalize != "" {
		defs = append(defs, FuncDef{Name: s.opts.Finalize, Ret: &ffi.TypeVoid})
	}
	if s.opts.ErrorCode != "" {
		defs = append(defs, FuncDef{Name: s.opts.ErrorCode, Ret: &ffi.TypeSint32})
	}
	if s.opts.ErrorMessage != "" {
		defs = append(defs, FuncDef{Name: s.opts.ErrorMessage, Ret: &ffi.TypePointer})
	}
	if s.opts.Free != "" {
		defs = append(defs, FuncDef{Name: s.opts.Free, Ret: &ffi.TypeVoid, Args: []*ffi.Type{&ffi.TypePointer}})
	}
	return defs
}

// Register prepares a batch of functions for calling.
func (s *Session) Register(defs []FuncDef) error {
	for _, def := range defs {
		if err := s.inv.Prep(def); err != nil {
			return err
		}
	}
	return nil
}

// Call invokes a registered function. ret may be nil for void functions;
// args are pointers to the argument values.
func (s *Session) Call(name string, ret unsafe.Pointer, args ...unsafe.Pointer) error {
	return s.inv.Invoke(name, ret, args...)
}

// LastError reads the library's error channel. It returns nil when the
// library reports no error, and a *CallError otherwise. Without a configured
// error-code hook there is no channel to read and LastError is always nil,
// so calls are taken at face value.
func (s *Session) LastError() error {
	if s.opts.ErrorCode == "" {
		return nil
	}
	var code ffi.Arg
	if err := s.inv.Invoke(s.opts.ErrorCode, unsafe.Pointer(&code)); err != nil {
		return err
	}
	if int32(code) == 0 {
		return nil
	}
	msg := ""
	if s.opts.ErrorMessage != "" {
		var p *byte
		if err := s.inv.Invoke(s.opts.ErrorMessage, unsafe.Pointer(&p)); err != nil {
			return err
		}
		msg = GoString(p)
	}
	return &CallError{Code: int32(code), Message: msg}
}

// Free releases library-owned memory through the free hook. Without one it
// is a no-op, which leaks; mappings for libraries that hand out owned
// pointers must name a free hook.
func (s *Session) Free(ptr unsafe.Pointer) {
	if s.opts.Free == "" || ptr == nil {
		return
	}
	if err := s.inv.Invoke(s.opts.Free, nil, unsafe.Pointer(&ptr)); err != nil {
		s.opts.Logger.Warn().Err(err).Msg("free hook failed")
	}
}

// FreeHandle releases a library-owned handle.
func (s *Session) FreeHandle(h Handle) {
	s.Free(unsafe.Pointer(h)) //nolint:govet // the handle is foreign memory, not a Go pointer
}

// Close runs the finalize hook and unloads the library. Closing twice is
// harmless.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.opts.Finalize != "" {
		if err := s.inv.Invoke(s.opts.Finalize, nil); err != nil {
			s.inv.Close()
			return err
		}
	}
	return s.inv.Close()
}

// libInvoker dispatches through a loaded shared library.
type libInvoker struct {
	lib   ffi.Lib
	funcs map[string]ffi.Fun
}

func (l *libInvoker) Prep(def FuncDef) error {
	fun, err := l.lib.Prep(def.Name, def.Ret, def.Args...)
	if err != nil {
		return &SymbolError{Name: def.Name, Err: err}
	}
	l.funcs[def.Name] = fun
	return nil
}

func (l *libInvoker) Invoke(name string, ret unsafe.Pointer, args ...unsafe.Pointer) error {
	fun, ok := l.funcs[name]
	if !ok {
		return &SymbolError{Name: name}
	}
	ffi.Call(fun.Cif, fun.Addr, ret, args...)
	return nil
}

func (l *libInvoker) Close() error {
	return l.lib.Close()
}
