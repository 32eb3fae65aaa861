package native

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Handle is an opaque pointer owned by the loaded library. Go code never
// dereferences one; it only passes it back across the boundary.
type Handle uintptr

// IsNil reports the library's null pointer.
func (h Handle) IsNil() bool { return h == 0 }

// CString returns a NUL-terminated byte pointer for s, backed by Go memory.
// The pointer is only valid while the caller keeps it reachable, which holds
// for the duration of a synchronous call.
func CString(s string) *byte {
	p, err := unix.BytePtrFromString(s)
	if err != nil {
		// s contained a NUL; truncate rather than fail, C would anyway
		p, _ = unix.BytePtrFromString(s[:clen(s)])
	}
	return p
}

func clen(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return i
		}
	}
	return len(s)
}

// GoString copies a NUL-terminated C string into a Go string. Nil yields "".
func GoString(p *byte) string {
	if p == nil {
		return ""
	}
	return unix.BytePtrToString(p)
}

// SlicePtr exposes a Go slice as a base pointer and 32-bit count, the shape C
// array parameters take. Empty slices pass a nil base.
func SlicePtr[T any](s []T) (*T, int32) {
	if len(s) == 0 {
		return nil, 0
	}
	return &s[0], int32(len(s))
}

// GoSlice copies n elements from C memory into a fresh Go slice, so the
// caller may free the C buffer immediately after.
func GoSlice[T any](p *T, n int32) []T {
	if p == nil || n <= 0 {
		return nil
	}
	out := make([]T, n)
	copy(out, unsafe.Slice(p, n))
	return out
}
