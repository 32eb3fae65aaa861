package header

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHeader(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func nopOpts() Options {
	return Options{Logger: zerolog.Nop()}
}

func TestNormalizeBasic(t *testing.T) {
	path := writeHeader(t, "basic.h", `
typedef struct vseq_s *vseq;

extern vseq vseq_make(const int *values, int count);
extern int vseq_length(vseq s);
extern void vseq_free(vseq s);
`)
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 3)

	// alphabetical, regardless of declaration order
	assert.Equal(t, "vseq_free", set.Prototypes[0].Name)
	assert.Equal(t, "vseq_length", set.Prototypes[1].Name)
	assert.Equal(t, "vseq_make", set.Prototypes[2].Name)

	mk := set.Prototypes[2]
	assert.Equal(t, "vseq", mk.Return.Base)
	require.Len(t, mk.Params, 2)
	assert.Equal(t, "values", mk.Params[0].Name)
	assert.True(t, mk.Params[0].Type.Const)
	assert.Equal(t, 1, mk.Params[0].Type.Pointers)
	assert.Equal(t, "count", mk.Params[1].Name)

	assert.True(t, set.IsHandle(mk.Return))
}

func TestNormalizeDedupeAcrossHeaders(t *testing.T) {
	a := writeHeader(t, "a.h", "extern int twice(int x);\n")
	b := writeHeader(t, "b.h", "extern int twice(int value);\n")
	set, err := Normalize([]string{a, b}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 1)
	// parameter names do not make declarations conflict
	assert.Equal(t, "x", set.Prototypes[0].Params[0].Name)
}

func TestNormalizeConflict(t *testing.T) {
	a := writeHeader(t, "a.h", "extern int clash(int x);\n")
	b := writeHeader(t, "b.h", "extern int clash(double x);\n")
	_, err := Normalize([]string{a, b}, nopOpts())
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "clash", conflict.Name)
	assert.NotEqual(t, conflict.First.File, conflict.Second.File)
}

func TestNormalizeParseError(t *testing.T) {
	path := writeHeader(t, "bad.h", "extern int ok(void);\nthis is not C at all\n")
	_, err := Normalize([]string{path}, nopOpts())
	var parse *ParseError
	require.ErrorAs(t, err, &parse)
	assert.Equal(t, 2, parse.Span.Line)
}

func TestNormalizeIfZeroRegions(t *testing.T) {
	path := writeHeader(t, "guarded.h", `
#if 0
extern int hidden(void);
#if defined(NESTED)
extern int nested_hidden(void);
#endif
#endif
extern int visible(void);
`)
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 1)
	assert.Equal(t, "visible", set.Prototypes[0].Name)
}

func TestNormalizeIfZeroElseBranch(t *testing.T) {
	path := writeHeader(t, "branched.h", `
#if 0
extern int hidden(void);
#if defined(NESTED)
extern int nested_hidden(void);
#else
extern int nested_also_hidden(void);
#endif
#else
extern int active(void);
#endif
extern int visible(void);
`)
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 2)
	assert.Equal(t, "active", set.Prototypes[0].Name)
	assert.Equal(t, "visible", set.Prototypes[1].Name)
}

func TestNormalizeNumericDefines(t *testing.T) {
	path := writeHeader(t, "defs.h", `
#define VSEQ_MAX 4096
#define VSEQ_NAME "vseq"
#define VSEQ_EXPR (1 << 4)
extern int vseq_cap(void);
`)
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)

	var consts []TypeDecl
	for _, d := range set.Decls {
		if d.Kind == ConstDecl {
			consts = append(consts, d)
		}
	}
	require.Len(t, consts, 1)
	assert.Equal(t, "VSEQ_MAX", consts[0].Name)
	assert.Equal(t, "4096", consts[0].Value)
}

func TestNormalizeTypeDecls(t *testing.T) {
	path := writeHeader(t, "types.h", `
typedef struct pair_s {
	double lo;
	double hi;
} pair;

typedef enum status {
	STATUS_OK = 0,
	STATUS_FAIL
} status;

typedef long long bigint;
typedef void (*callback)(int code);
`)
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)

	pair, ok := set.Decl("pair")
	require.True(t, ok)
	assert.Equal(t, StructDecl, pair.Kind)
	require.Len(t, pair.Fields, 2)
	assert.Equal(t, "lo", pair.Fields[0].Name)
	assert.Equal(t, "double", pair.Fields[0].Type.Base)

	st, ok := set.Decl("status")
	require.True(t, ok)
	assert.Equal(t, EnumDecl, st.Kind)
	require.Len(t, st.Values, 2)
	assert.Equal(t, "STATUS_OK", st.Values[0].Name)
	assert.Equal(t, "0", st.Values[0].Value)
	assert.Equal(t, "STATUS_FAIL", st.Values[1].Name)

	big, ok := set.Decl("bigint")
	require.True(t, ok)
	assert.Equal(t, "long long", big.Source.Base)

	cb, ok := set.Decl("callback")
	require.True(t, ok)
	assert.True(t, cb.Source.FuncPtr)
}

func TestNormalizeVariadic(t *testing.T) {
	path := writeHeader(t, "varargs.h", "extern int vlog(const char *fmt, ...);\n")
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 1)
	assert.True(t, set.Prototypes[0].Variadic)
	require.Len(t, set.Prototypes[0].Params, 1)
}

func TestNormalizeFunctionPointerParam(t *testing.T) {
	path := writeHeader(t, "cb.h", "extern void vseq_each(vseq s, void (*fn)(int value, void *ctx));\n")
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 1)
	p := set.Prototypes[0]
	require.Len(t, p.Params, 2)
	assert.Equal(t, "fn", p.Params[1].Name)
	assert.True(t, p.Params[1].Type.FuncPtr)
}

func TestNormalizeUnknownTypesAreOpaque(t *testing.T) {
	path := writeHeader(t, "ext.h", "extern GSERIALIZED *geo_export(int srid);\n")
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 1)
	assert.True(t, set.Prototypes[0].Return.Opaque)
}

func TestNormalizeFilter(t *testing.T) {
	path := writeHeader(t, "f.h", `
extern int keep_me(void);
extern int drop_me(void);
extern int drop_me_too(void);
`)
	f, err := ParseFilter("# internal helpers\ndrop_*\n")
	require.NoError(t, err)
	opts := nopOpts()
	opts.Filter = f
	set, err := Normalize([]string{path}, opts)
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 1)
	assert.Equal(t, "keep_me", set.Prototypes[0].Name)

	// an allowlist entry turns the filter exclusive
	f, err = ParseFilter("+keep_me\n+drop_me\n")
	require.NoError(t, err)
	opts.Filter = f
	set, err = Normalize([]string{path}, opts)
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 2)
	assert.Equal(t, "drop_me", set.Prototypes[0].Name)
	assert.Equal(t, "keep_me", set.Prototypes[1].Name)
}

func TestNormalizeOrderIndependence(t *testing.T) {
	a := writeHeader(t, "a.h", "extern tset tset_union(tset x, tset y);\n")
	b := writeHeader(t, "b.h", "typedef struct tset_s *tset;\n")

	// declarations land in pass one no matter which file carries them
	set, err := Normalize([]string{a, b}, nopOpts())
	require.NoError(t, err)
	require.Len(t, set.Prototypes, 1)
	assert.False(t, set.Prototypes[0].Return.Opaque)
	assert.True(t, set.IsHandle(set.Prototypes[0].Return))
}
