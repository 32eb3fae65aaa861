package generator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffibuild/ffiwrap/header"
	"github.com/ffibuild/ffiwrap/typemap"
)

const testHeader = `
typedef struct vseq_s *vseq;

extern void lib_init(void);
extern void lib_finish(void);
extern int vseq_errno(void);
extern const char *vseq_errmsg(void);
extern void vseq_release(void *ptr);

extern int vseq_add_int(int a, int b);
extern double vseq_sum(vseq s);
extern vseq vseq_make(const double *values, int count);
extern bool vseq_value_at(vseq s, int idx, double *result);
extern double *vseq_values(vseq s, int *count);
extern void vseq_minmax(vseq s, double *lo, double *hi);
extern char *vseq_out(vseq s, int digits);
extern char *vseq_leaky(vseq s);
extern int vseq_clamp(vseq s, const int *limit, const char *label);
extern int vseq_printf(const char *fmt, ...);
extern void vseq_exotic(GEOM g);
extern int vseq_hidden(vseq s);
`

const testMapping = `
library:
  name: libvseq
  init: lib_init
  finalize: lib_finish
  error_code: vseq_errno
  error_message: vseq_errmsg
  free: vseq_release

functions:
  vseq_value_at:
    params:
      result: result
  vseq_values:
    params:
      count: count-out
    owned: true
  vseq_make:
    arrays:
      values: count
  vseq_minmax:
    params:
      lo: out
      hi: out
  vseq_out:
    owned: true
  vseq_clamp:
    params:
      limit: nullable
      label: nullable
  vseq_hidden:
    skip: true
`

func generate(t *testing.T) *Result {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vseq.h")
	require.NoError(t, os.WriteFile(path, []byte(testHeader), 0o644))
	set, err := header.Normalize([]string{path}, header.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	m, err := typemap.Parse([]byte(testMapping))
	require.NoError(t, err)

	res, err := Generate(set, Options{Package: "vec", Mapping: m, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return res
}

func TestGenerateSignatures(t *testing.T) {
	res := generate(t)

	for _, want := range []string{
		"func (l *Lib) VseqAddInt(a int32, b int32) (int32, error) {",
		"func (l *Lib) VseqSum(s native.Handle) (float64, error) {",
		"func (l *Lib) VseqMake(values []float64) (native.Handle, error) {",
		"func (l *Lib) VseqValueAt(s native.Handle, idx int32) (float64, bool, error) {",
		"func (l *Lib) VseqValues(s native.Handle) ([]float64, error) {",
		"func (l *Lib) VseqMinmax(s native.Handle) (float64, float64, error) {",
		"func (l *Lib) VseqOut(s native.Handle, digits int32) (string, error) {",
		"func (l *Lib) VseqClamp(s native.Handle, limit *int32, label *string) (int32, error) {",
	} {
		assert.Contains(t, res.Source, want)
	}
}

func TestGenerateRegistry(t *testing.T) {
	res := generate(t)

	for _, want := range []string{
		`{Name: "vseq_add_int", Ret: &ffi.TypeSint32, Args: []*ffi.Type{&ffi.TypeSint32, &ffi.TypeSint32}},`,
		`{Name: "vseq_make", Ret: &ffi.TypePointer, Args: []*ffi.Type{&ffi.TypePointer, &ffi.TypeSint32}},`,
		`{Name: "vseq_value_at", Ret: &ffi.TypeUint8, Args: []*ffi.Type{&ffi.TypePointer, &ffi.TypeSint32, &ffi.TypePointer}},`,
		`{Name: "vseq_values", Ret: &ffi.TypePointer, Args: []*ffi.Type{&ffi.TypePointer, &ffi.TypePointer}},`,
		`{Name: "vseq_minmax", Ret: &ffi.TypeVoid, Args: []*ffi.Type{&ffi.TypePointer, &ffi.TypePointer, &ffi.TypePointer}},`,
	} {
		assert.Contains(t, res.Source, want)
	}
	// hooks never land in the registry
	assert.NotContains(t, res.Source, `"lib_init"`)
	assert.NotContains(t, res.Source, `"vseq_release"`)
}

func TestGenerateBodies(t *testing.T) {
	res := generate(t)

	// array in: slice collapses to pointer plus length
	assert.Contains(t, res.Source, "valuesPtr, valuesLen := native.SlicePtr(values)")
	assert.Contains(t, res.Source, "unsafe.Pointer(&valuesLen)")

	// result param: value through the out pointer, ok flag from the return
	assert.Contains(t, res.Source, "var resultOut float64")
	assert.Contains(t, res.Source, "return resultOut, ret.Bool(), nil")

	// owned string: copy out, then hand the C buffer back
	assert.Contains(t, res.Source, "out := native.GoString(ret)")
	assert.Contains(t, res.Source, "l.s.Free(unsafe.Pointer(ret))")

	// owned array: copy with the reported count
	assert.Contains(t, res.Source, "out := native.GoSlice(ret, countOut)")

	// out params: caller-allocated cells read back as extra results
	assert.Contains(t, res.Source, "var loOut float64")
	assert.Contains(t, res.Source, "loPtr := &loOut")
	assert.Contains(t, res.Source, "return loOut, hiOut, nil")

	// nullable string: nil passes NULL
	assert.Contains(t, res.Source, "var labelC *byte")
	assert.Contains(t, res.Source, "labelC = native.CString(*label)")

	// error channel consulted after the call
	assert.Contains(t, res.Source, "if err := l.s.LastError(); err != nil {")
}

func TestGenerateSkips(t *testing.T) {
	res := generate(t)

	reasons := make(map[string]string)
	for _, s := range res.Skipped {
		reasons[s.Name] = s.Reason
	}
	assert.Contains(t, reasons["vseq_printf"], "variadic")
	assert.Contains(t, reasons["vseq_exotic"], "no conversion")
	assert.Contains(t, reasons["vseq_leaky"], "ownership")
	assert.Contains(t, reasons["vseq_hidden"], "skipped")
	assert.Equal(t, "runtime hook", reasons["lib_init"])
	assert.Equal(t, "runtime hook", reasons["vseq_errmsg"])

	for name := range reasons {
		assert.NotContains(t, res.Source, `"`+name+`"`, "skipped function leaked into output")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := generate(t)
	b := generate(t)
	assert.Equal(t, a.Source, b.Source)

	// wrapped methods follow prototype order, which is sorted
	var names []string
	for _, wr := range a.Wrapped {
		names = append(names, wr.CName)
	}
	assert.IsNonDecreasing(t, names)
}

func TestGoName(t *testing.T) {
	assert.Equal(t, "VseqValueAt", goName("vseq_value_at"))
	assert.Equal(t, "Pg2d", goName("pg2d"))
	assert.Equal(t, "AB", goName("a__b"))
}

func TestGenerateHeaderLine(t *testing.T) {
	res := generate(t)
	assert.True(t, strings.HasPrefix(res.Source, "// Code generated by ffiwrap. DO NOT EDIT.\n"))
	assert.Contains(t, res.Source, "package vec\n")
}
