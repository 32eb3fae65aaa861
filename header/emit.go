package header

import (
	"fmt"
	"io"
	"strings"
)

// WriteNormalized renders the set as a flat, self-contained header:
// constants first, type declarations in first-seen order, then prototypes in
// name order. The output is deterministic for identical input and parses
// back into an equivalent Set, which is how the extract and generate stages
// hand off.
func WriteNormalized(w io.Writer, set *Set) error {
	for _, d := range set.Decls {
		if d.Kind != ConstDecl {
			continue
		}
		if _, err := fmt.Fprintf(w, "#define %s %s\n", d.Name, d.Value); err != nil {
			return err
		}
	}
	for _, d := range set.Decls {
		if d.Kind == ConstDecl {
			continue
		}
		if _, err := io.WriteString(w, renderDecl(d)); err != nil {
			return err
		}
	}
	for i := range set.Prototypes {
		if _, err := io.WriteString(w, renderPrototype(&set.Prototypes[i])); err != nil {
			return err
		}
	}
	return nil
}

func renderDecl(d TypeDecl) string {
	switch d.Kind {
	case StructDecl:
		if d.Opaque || len(d.Fields) == 0 {
			return fmt.Sprintf("struct %s;\n", d.Name)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "typedef struct %s {\n", d.Name)
		for _, f := range d.Fields {
			fmt.Fprintf(&sb, "\t%s;\n", renderTyped(f.Type, f.Name))
		}
		fmt.Fprintf(&sb, "} %s;\n", d.Name)
		return sb.String()
	case EnumDecl:
		var sb strings.Builder
		fmt.Fprintf(&sb, "typedef enum %s {\n", d.Name)
		for i, v := range d.Values {
			sep := ","
			if i == len(d.Values)-1 {
				sep = ""
			}
			if v.Value != "" {
				fmt.Fprintf(&sb, "\t%s = %s%s\n", v.Name, v.Value, sep)
			} else {
				fmt.Fprintf(&sb, "\t%s%s\n", v.Name, sep)
			}
		}
		fmt.Fprintf(&sb, "} %s;\n", d.Name)
		return sb.String()
	case TypedefDecl:
		if d.Handle {
			return fmt.Sprintf("typedef struct %s *%s;\n", d.Source.Base, d.Name)
		}
		if d.Source.FuncPtr {
			return fmt.Sprintf("typedef void (*%s)(void);\n", d.Name)
		}
		return fmt.Sprintf("typedef %s;\n", renderTyped(d.Source, d.Name))
	}
	return ""
}

func renderPrototype(p *Prototype) string {
	params := make([]string, 0, len(p.Params))
	for _, prm := range p.Params {
		params = append(params, renderTyped(prm.Type, prm.Name))
	}
	if p.Variadic {
		params = append(params, "...")
	}
	if len(params) == 0 {
		params = append(params, "void")
	}
	return fmt.Sprintf("extern %s(%s);\n", renderTyped(p.Return, p.Name), strings.Join(params, ", "))
}

// renderTyped prints "type name" with C pointer attachment, e.g.
// "const double *values" or "int count".
func renderTyped(t TypeExpr, name string) string {
	if t.FuncPtr {
		return fmt.Sprintf("void (*%s)(void)", name)
	}
	s := t.CKey()
	if name != "" {
		if t.Pointers > 0 {
			s += name // CKey already ends with the stars
		} else {
			s += " " + name
		}
	}
	if t.ArrayLen > 0 {
		s += fmt.Sprintf("[%d]", t.ArrayLen)
	}
	return s
}
