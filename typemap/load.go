package typemap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileMapping struct {
	Library     Library                   `yaml:"library"`
	Conversions map[string]fileConversion `yaml:"conversions"`
	Functions   map[string]FuncRules      `yaml:"functions"`
}

type fileConversion struct {
	Go   string `yaml:"go"`
	FFI  string `yaml:"ffi"`
	Kind Kind   `yaml:"kind"`
}

// LoadFile reads a YAML mapping file and overlays it on the builtin table.
// File conversions win over builtin ones with the same C type key.
func LoadFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping: %w", err)
	}
	return Parse(data)
}

// Parse overlays YAML mapping text on the builtin table.
func Parse(data []byte) (*Mapping, error) {
	var file fileMapping
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing mapping: %w", err)
	}

	m := Builtin()
	m.Library = file.Library
	for key, fc := range file.Conversions {
		conv, err := fc.conversion()
		if err != nil {
			return nil, fmt.Errorf("conversion %q: %w", key, err)
		}
		m.Conversions[key] = conv
	}
	for name, rules := range file.Functions {
		for param, role := range rules.Params {
			switch role {
			case RoleResult, RoleOut, RoleCountOut, RoleNullable:
			default:
				return nil, fmt.Errorf("function %q: parameter %q has unknown role %q", name, param, role)
			}
		}
		for arr, count := range rules.Arrays {
			if count == "" {
				return nil, fmt.Errorf("function %q: array parameter %q names no count parameter", name, arr)
			}
		}
		m.Functions[name] = rules
	}
	return m, nil
}

func (fc fileConversion) conversion() (Conversion, error) {
	kind := fc.Kind
	if kind == "" {
		kind = KindScalar
	}
	switch kind {
	case KindScalar, KindString, KindHandle, KindVoid:
	default:
		return Conversion{}, fmt.Errorf("unknown kind %q", fc.Kind)
	}
	conv := Conversion{Go: fc.Go, FFI: fc.FFI, Kind: kind}
	if conv.FFI == "" {
		switch kind {
		case KindString, KindHandle:
			conv.FFI = "&ffi.TypePointer"
		default:
			return Conversion{}, fmt.Errorf("scalar conversion needs an ffi type")
		}
	}
	if conv.Go == "" && kind != KindVoid {
		switch kind {
		case KindString:
			conv.Go = "string"
		case KindHandle:
			conv.Go = "native.Handle"
		default:
			return Conversion{}, fmt.Errorf("conversion needs a go type")
		}
	}
	return conv, nil
}
