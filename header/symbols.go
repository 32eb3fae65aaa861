package header

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Exported lists the global text symbols of a compiled shared library using
// nm. Prototypes whose symbol is missing from the binary are dropped during
// normalization so the generated wrappers never reference functions that
// cannot be resolved at load time.
func Exported(libPath string) (map[string]bool, error) {
	out, err := exec.Command("nm", "-g", "--defined-only", libPath).Output()
	if err != nil {
		// --defined-only is GNU; BSD nm wants -U or nothing
		out, err = exec.Command("nm", "-g", libPath).Output()
		if err != nil {
			return nil, fmt.Errorf("running nm: %w", err)
		}
	}
	symbols := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kind := fields[len(fields)-2]
		if kind != "T" && kind != "t" {
			continue
		}
		name := fields[len(fields)-1]
		// Mach-O prefixes every C symbol with an underscore
		if runtime.GOOS == "darwin" {
			name = strings.TrimPrefix(name, "_")
		}
		symbols[name] = true
	}
	return symbols, nil
}
