package native

import (
	"sync"
	"unsafe"
)

// StubFunc fakes one foreign function. ret is where the result is stored
// (nil for void) and args point at the argument values, matching the calling
// convention of Session.Call.
type StubFunc func(ret unsafe.Pointer, args []unsafe.Pointer)

// Stub is an in-memory Invoker for tests: generated wrappers and the session
// run against it without any shared library. Install fakes in Funcs before
// passing the stub to NewSession.
type Stub struct {
	mu sync.Mutex

	// Funcs maps symbol names to fakes. Prep fails for names not present,
	// mirroring a library that does not export the symbol.
	Funcs map[string]StubFunc

	// Prepped records every registered symbol in order.
	Prepped []string
	// Calls records every invoked symbol in order.
	Calls []string
	// Closed reports whether Close ran.
	Closed bool
}

// NewStub returns an empty stub.
func NewStub() *Stub {
	return &Stub{Funcs: make(map[string]StubFunc)}
}

// SetError installs conventional error hooks under the given symbol names.
// The returned setter changes the reported code and message at any point in
// the test.
func (s *Stub) SetError(codeSym, msgSym string) func(code int32, msg string) {
	var (
		mu   sync.Mutex
		code int32
		msg  *byte
	)
	s.Funcs[codeSym] = func(ret unsafe.Pointer, _ []unsafe.Pointer) {
		mu.Lock()
		defer mu.Unlock()
		*(*int32)(ret) = code
	}
	s.Funcs[msgSym] = func(ret unsafe.Pointer, _ []unsafe.Pointer) {
		mu.Lock()
		defer mu.Unlock()
		*(**byte)(ret) = msg
	}
	return func(c int32, m string) {
		mu.Lock()
		defer mu.Unlock()
		code = c
		msg = CString(m)
	}
}

func (s *Stub) Prep(def FuncDef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Funcs[def.Name]; !ok {
		return &SymbolError{Name: def.Name}
	}
	s.Prepped = append(s.Prepped, def.Name)
	return nil
}

func (s *Stub) Invoke(name string, ret unsafe.Pointer, args ...unsafe.Pointer) error {
	s.mu.Lock()
	fn, ok := s.Funcs[name]
	if ok {
		s.Calls = append(s.Calls, name)
	}
	s.mu.Unlock()
	if !ok {
		return &SymbolError{Name: name}
	}
	fn(ret, args)
	return nil
}

func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// CallCount reports how many times the named symbol was invoked.
func (s *Stub) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == name {
			n++
		}
	}
	return n
}
