package native

import (
	"testing"
	"unsafe"

	"github.com/jupiterrider/ffi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		Init:         "lib_init",
		Finalize:     "lib_finish",
		ErrorCode:    "lib_errno",
		ErrorMessage: "lib_errmsg",
		Free:         "lib_free",
	}
}

func noop(unsafe.Pointer, []unsafe.Pointer) {}

func newTestStub() (*Stub, func(int32, string)) {
	stub := NewStub()
	stub.Funcs["lib_init"] = noop
	stub.Funcs["lib_finish"] = noop
	stub.Funcs["lib_free"] = noop
	setErr := stub.SetError("lib_errno", "lib_errmsg")
	return stub, setErr
}

func TestSessionLifecycle(t *testing.T) {
	stub, _ := newTestStub()
	s, err := NewSession(stub, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, stub.CallCount("lib_init"))
	assert.Contains(t, stub.Prepped, "lib_errno")
	assert.Contains(t, stub.Prepped, "lib_free")

	require.NoError(t, s.Close())
	assert.Equal(t, 1, stub.CallCount("lib_finish"))
	assert.True(t, stub.Closed)

	// closing again does not re-finalize
	require.NoError(t, s.Close())
	assert.Equal(t, 1, stub.CallCount("lib_finish"))
}

func TestSessionMissingHookSymbol(t *testing.T) {
	stub := NewStub() // exports nothing
	_, err := NewSession(stub, testOptions())
	var symErr *SymbolError
	require.ErrorAs(t, err, &symErr)
	assert.Equal(t, "lib_init", symErr.Name)
	assert.True(t, stub.Closed)
}

func TestSessionCallDispatch(t *testing.T) {
	stub, _ := newTestStub()
	stub.Funcs["add"] = func(ret unsafe.Pointer, args []unsafe.Pointer) {
		a := *(*int32)(args[0])
		b := *(*int32)(args[1])
		*(*int32)(ret) = a + b
	}
	s, err := NewSession(stub, testOptions())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Register([]FuncDef{{
		Name: "add",
		Ret:  &ffi.TypeSint32,
		Args: []*ffi.Type{&ffi.TypeSint32, &ffi.TypeSint32},
	}}))

	a, b := int32(3), int32(4)
	var sum int32
	require.NoError(t, s.Call("add", unsafe.Pointer(&sum), unsafe.Pointer(&a), unsafe.Pointer(&b)))
	assert.Equal(t, int32(7), sum)

	err = s.Call("never_registered", nil)
	var symErr *SymbolError
	require.ErrorAs(t, err, &symErr)
	assert.Equal(t, "never_registered", symErr.Name)
}

func TestSessionLastError(t *testing.T) {
	stub, setErr := newTestStub()
	s, err := NewSession(stub, testOptions())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.LastError())

	setErr(12, "sequence is empty")
	callErr := s.LastError()
	var ce *CallError
	require.ErrorAs(t, callErr, &ce)
	assert.Equal(t, int32(12), ce.Code)
	assert.Equal(t, "sequence is empty", ce.Message)
	assert.Contains(t, ce.Error(), "sequence is empty")

	setErr(0, "")
	require.NoError(t, s.LastError())
}

func TestSessionLastErrorWithoutHooks(t *testing.T) {
	// a mapping that names no error channel leaves nothing to consult, so
	// successful calls stay successful
	stub := NewStub()
	stub.Funcs["add"] = func(ret unsafe.Pointer, args []unsafe.Pointer) {
		*(*int32)(ret) = *(*int32)(args[0]) + *(*int32)(args[1])
	}
	s, err := NewSession(stub, Options{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Register([]FuncDef{{
		Name: "add",
		Ret:  &ffi.TypeSint32,
		Args: []*ffi.Type{&ffi.TypeSint32, &ffi.TypeSint32},
	}}))

	a, b := int32(3), int32(4)
	var sum int32
	require.NoError(t, s.Call("add", unsafe.Pointer(&sum), unsafe.Pointer(&a), unsafe.Pointer(&b)))
	require.NoError(t, s.LastError())
	assert.Equal(t, int32(7), sum)
}

func TestLibInvokerUnknownSymbol(t *testing.T) {
	inv := &libInvoker{funcs: make(map[string]ffi.Fun)}
	err := inv.Invoke("never_prepped", nil)
	var symErr *SymbolError
	require.ErrorAs(t, err, &symErr)
	assert.Equal(t, "never_prepped", symErr.Name)
}

func TestSessionFree(t *testing.T) {
	stub, _ := newTestStub()
	var freed []unsafe.Pointer
	stub.Funcs["lib_free"] = func(_ unsafe.Pointer, args []unsafe.Pointer) {
		freed = append(freed, *(*unsafe.Pointer)(args[0]))
	}
	s, err := NewSession(stub, testOptions())
	require.NoError(t, err)
	defer s.Close()

	buf := []byte{1}
	s.Free(unsafe.Pointer(&buf[0]))
	require.Len(t, freed, 1)
	assert.Equal(t, unsafe.Pointer(&buf[0]), freed[0])

	s.Free(nil) // nil is never passed to the hook
	assert.Len(t, freed, 1)
}
