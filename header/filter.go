package header

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// Filter is the curated include/exclude list controlling which prototypes are
// exposed. It is configuration, not logic: one identifier or glob pattern per
// line, "#" comments allowed. Bare lines exclude ("do not expose"); lines
// prefixed with "+" form an allowlist, and when any allowlist entry is
// present only matching names are kept (exclusions still apply).
type Filter struct {
	include []string
	exclude []string
}

// LoadFilter reads a filter list from disk.
func LoadFilter(p string) (*Filter, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading filter list: %w", err)
	}
	return ParseFilter(string(data))
}

// ParseFilter parses filter list text.
func ParseFilter(text string) (*Filter, error) {
	f := &Filter{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pattern := line
		include := false
		if strings.HasPrefix(line, "+") {
			include = true
			pattern = strings.TrimSpace(line[1:])
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("filter line %d: bad pattern %q", i+1, pattern)
		}
		if include {
			f.include = append(f.include, pattern)
		} else {
			f.exclude = append(f.exclude, pattern)
		}
	}
	return f, nil
}

// Keep reports whether the named function survives the filter.
func (f *Filter) Keep(name string) bool {
	for _, pattern := range f.exclude {
		if ok, _ := path.Match(pattern, name); ok {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, pattern := range f.include {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
