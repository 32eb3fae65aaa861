package header

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emitSample = `
#define VSEQ_MAX 4096

struct no_body_s;
typedef struct vseq_s *vseq;
typedef struct pair_s {
	double lo;
	double hi;
} pair;
typedef enum status {
	STATUS_OK = 0,
	STATUS_FAIL
} status;
typedef void (*callback)(int code);

extern vseq vseq_make(const int *values, int count);
extern pair vseq_bounds(vseq s);
extern char *vseq_out(vseq s, int digits);
extern void vseq_free(void *ptr);
`

func normalizeSource(t *testing.T, src string) *Set {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.h")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	set, err := Normalize([]string{path}, nopOpts())
	require.NoError(t, err)
	return set
}

func render(t *testing.T, set *Set) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, WriteNormalized(&sb, set))
	return sb.String()
}

func TestWriteNormalizedRoundTrip(t *testing.T) {
	set := normalizeSource(t, emitSample)
	out := render(t, set)

	again := normalizeSource(t, out)
	require.Len(t, again.Prototypes, len(set.Prototypes))
	for i := range set.Prototypes {
		assert.Equal(t, set.Prototypes[i].Signature(), again.Prototypes[i].Signature())
	}
	for _, name := range []string{"VSEQ_MAX", "vseq", "pair", "status", "callback", "no_body_s"} {
		_, ok := again.Decl(name)
		assert.True(t, ok, "declaration %s lost in round trip", name)
	}
	h, ok := again.Decl("vseq")
	require.True(t, ok)
	assert.True(t, h.Handle)
}

func TestWriteNormalizedDeterministic(t *testing.T) {
	set := normalizeSource(t, emitSample)
	assert.Equal(t, render(t, set), render(t, set))
}

func TestWriteNormalizedShape(t *testing.T) {
	out := render(t, normalizeSource(t, emitSample))

	assert.True(t, strings.HasPrefix(out, "#define VSEQ_MAX 4096\n"))
	assert.Contains(t, out, "typedef struct vseq_s *vseq;\n")
	assert.Contains(t, out, "extern char *vseq_out(vseq s, int digits);\n")
	assert.Contains(t, out, "extern void vseq_free(void *ptr);\n")

	// prototypes come last, sorted
	bounds := strings.Index(out, "extern pair vseq_bounds")
	free := strings.Index(out, "extern void vseq_free")
	mk := strings.Index(out, "extern vseq vseq_make")
	require.True(t, bounds >= 0 && free >= 0 && mk >= 0)
	assert.Less(t, bounds, free)
	assert.Less(t, free, mk)
}
