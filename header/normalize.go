package header

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ffibuild/ffiwrap/scanner"
)

// Options controls one normalization run.
type Options struct {
	// Filter drops prototypes before they reach the synthesizer. Nil keeps
	// everything.
	Filter *Filter
	// Library optionally names a compiled shared library. When set, declared
	// functions whose symbol is missing from the binary are dropped (logged),
	// matching what the header promises against what the build delivered.
	Library string
	Logger  zerolog.Logger
}

type statement struct {
	text string
	span Span
}

var (
	identRe         = regexp.MustCompile(`^[A-Za-z_]\w*$`)
	arraySuffixRe   = regexp.MustCompile(`^(\w+)\[(\d*)\]$`)
	numericDefineRe = regexp.MustCompile(`^#\s*define\s+(\w+)\s+(\d+)\s*$`)
	opaquePtrRe     = regexp.MustCompile(`^typedef (?:struct|union) (\w+) \* (\w+)$`)
	structBodyRe    = regexp.MustCompile(`^typedef (?:struct|union)(?: (\w+))? \{ ?(.*?) ?\} (\w+)$`)
	enumBodyRe      = regexp.MustCompile(`^typedef enum(?: (\w+))? \{ ?(.*?) ?\} (\w+)$`)
	tagStructRe     = regexp.MustCompile(`^(struct|union|enum) (\w+) \{ ?(.*?) ?\}$`)
	fwdStructRe     = regexp.MustCompile(`^(?:struct|union|enum) (\w+)$`)
	aliasStructRe   = regexp.MustCompile(`^typedef (?:struct|union|enum) (\w+) (\w+)$`)
	plainTypedefRe  = regexp.MustCompile(`^typedef (.+?) (\w+)$`)
	funcPtrRe       = regexp.MustCompile(`^(.+?)\( \* (\w+) \) \( ?(.*?) ?\)$`)
)

// Normalize reads and parses the given headers, producing a conflict-free,
// de-duplicated prototype set. Type declarations from every header are
// collected before any prototype is resolved, so cross-header references work
// regardless of argument order. The first malformed declaration aborts the
// run with a *ParseError; a name redeclared with a different signature aborts
// with a *ConflictError.
func Normalize(paths []string, opts Options) (*Set, error) {
	var stmts []statement
	set := &Set{declsByName: make(map[string]*TypeDecl)}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		stripped, err := scanner.StripComments(string(data))
		if err != nil {
			return nil, &ParseError{Span: Span{File: path}, Msg: err.Error()}
		}
		clean := stripPreprocessor(stripped, path, set)
		ss, err := splitStatements(clean, path)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, ss...)
	}

	// Pass one: collect every type declaration.
	for _, st := range stmts {
		if err := collectTypeDecl(st, set); err != nil {
			return nil, err
		}
	}

	// Pass two: parse prototypes and resolve them against the declarations.
	byName := make(map[string]*Prototype)
	for _, st := range stmts {
		proto, ok, err := parsePrototype(st)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		resolveTypes(proto, set)
		if prev, seen := byName[proto.Name]; seen {
			if prev.Signature() != proto.Signature() {
				return nil, &ConflictError{Name: proto.Name, First: prev.Span, Second: proto.Span}
			}
			continue // identical re-declaration
		}
		byName[proto.Name] = proto
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var exported map[string]bool
	if opts.Library != "" {
		var err error
		exported, err = Exported(opts.Library)
		if err != nil {
			return nil, fmt.Errorf("checking symbols in %s: %w", opts.Library, err)
		}
	}

	for _, name := range names {
		p := byName[name]
		if exported != nil && !exported[name] {
			opts.Logger.Warn().Str("function", name).Msg("declared but not exported by the library, dropping")
			continue
		}
		if opts.Filter != nil && !opts.Filter.Keep(name) {
			opts.Logger.Debug().Str("function", name).Msg("excluded by filter")
			continue
		}
		set.Prototypes = append(set.Prototypes, *p)
	}
	return set, nil
}

// stripPreprocessor blanks preprocessor directives while keeping line
// structure intact. Regions guarded by "#if 0" are dropped up to their
// matching "#else" or "#endif"; the "#else" branch is the active one in a
// pre-resolved configuration, so its contents are kept. Other conditionals
// keep their contents. Numeric object-like defines are retained as
// constants.
func stripPreprocessor(src, path string, set *Set) string {
	lines := strings.Split(src, "\n")
	out := make([]string, len(lines))
	skipDepth := 0
	continued := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if continued {
			out[i] = ""
			continued = strings.HasSuffix(trimmed, "\\")
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			if skipDepth > 0 {
				out[i] = ""
			} else {
				out[i] = line
			}
			continue
		}

		out[i] = ""
		continued = strings.HasSuffix(trimmed, "\\")
		directive := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		switch {
		case skipDepth > 0:
			if strings.HasPrefix(directive, "if") {
				skipDepth++
			} else if strings.HasPrefix(directive, "endif") {
				skipDepth--
			} else if strings.HasPrefix(directive, "else") && skipDepth == 1 {
				skipDepth = 0
			}
		case strings.HasPrefix(directive, "if 0"):
			skipDepth = 1
		default:
			if m := numericDefineRe.FindStringSubmatch(trimmed); m != nil {
				addDecl(set, TypeDecl{
					Kind:  ConstDecl,
					Name:  m[1],
					Value: m[2],
					Span:  Span{File: path, Line: i + 1},
				})
			}
		}
	}
	return strings.Join(out, "\n")
}

// splitStatements cuts the comment- and directive-free source into top-level
// statements at semicolons outside braces. Trailing non-blank text with no
// terminating semicolon is a parse error.
func splitStatements(src, path string) ([]statement, error) {
	var stmts []statement
	depth := 0
	start := 0
	startLine := 1
	started := false
	sc := scanner.New(src)
	for ch, ok := sc.Next(); ok; ch, ok = sc.Next() {
		if !sc.InCode() {
			continue
		}
		if !started && !isSpace(ch) {
			started = true
			start = sc.Pos()
			startLine = sc.Line()
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
		case ';':
			if depth == 0 {
				text := strings.TrimSpace(src[start:sc.Pos()])
				if text != "" {
					stmts = append(stmts, statement{text: text, span: Span{File: path, Line: startLine}})
				}
				started = false
			}
		}
	}
	if started {
		rest := strings.TrimSpace(src[start:])
		if rest != "" {
			return nil, &ParseError{
				Span: Span{File: path, Line: startLine},
				Decl: rest,
				Msg:  "declaration not terminated",
			}
		}
	}
	return stmts, nil
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// normalizeDecl collapses whitespace to single spaces and detaches pointer
// stars, parens, braces, and commas so token handling never sees "int*x" or
// "(*cb)(int,int)" glued together.
func normalizeDecl(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) * 2)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '*', '(', ')', '{', '}', ',':
			sb.WriteByte(' ')
			sb.WriteByte(text[i])
			sb.WriteByte(' ')
		default:
			sb.WriteByte(text[i])
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// collectTypeDecl handles pass one for a single statement. Statements that
// are not type declarations are left for pass two.
func collectTypeDecl(st statement, set *Set) error {
	text := normalizeDecl(st.text)
	switch {
	case strings.HasPrefix(text, "typedef"):
		return parseTypedef(text, st, set)
	case tagStructRe.MatchString(text):
		m := tagStructRe.FindStringSubmatch(text)
		if m[1] == "enum" {
			addDecl(set, TypeDecl{Kind: EnumDecl, Name: m[2], Values: parseEnumBody(m[3]), Span: st.span})
		} else {
			addDecl(set, TypeDecl{Kind: StructDecl, Name: m[2], Fields: parseStructBody(m[3]), Span: st.span})
		}
		return nil
	case fwdStructRe.MatchString(text):
		m := fwdStructRe.FindStringSubmatch(text)
		addDecl(set, TypeDecl{Kind: StructDecl, Name: m[1], Opaque: true, Span: st.span})
		return nil
	}
	return nil
}

func parseTypedef(text string, st statement, set *Set) error {
	if m := opaquePtrRe.FindStringSubmatch(text); m != nil {
		addDecl(set, TypeDecl{
			Kind:   TypedefDecl,
			Name:   m[2],
			Source: TypeExpr{Base: m[1], Opaque: true},
			Opaque: true,
			Handle: true,
			Span:   st.span,
		})
		return nil
	}
	if m := structBodyRe.FindStringSubmatch(text); m != nil {
		decl := TypeDecl{Kind: StructDecl, Name: m[3], Fields: parseStructBody(m[2]), Span: st.span}
		addDecl(set, decl)
		if m[1] != "" && m[1] != m[3] {
			alias := decl
			alias.Name = m[1]
			set.declsByName[alias.Name] = &alias
		}
		return nil
	}
	if m := enumBodyRe.FindStringSubmatch(text); m != nil {
		decl := TypeDecl{Kind: EnumDecl, Name: m[3], Values: parseEnumBody(m[2]), Span: st.span}
		addDecl(set, decl)
		if m[1] != "" && m[1] != m[3] {
			alias := decl
			alias.Name = m[1]
			set.declsByName[alias.Name] = &alias
		}
		return nil
	}
	if m := aliasStructRe.FindStringSubmatch(text); m != nil {
		addDecl(set, TypeDecl{
			Kind:   TypedefDecl,
			Name:   m[2],
			Source: TypeExpr{Base: m[1]},
			Opaque: true,
			Span:   st.span,
		})
		return nil
	}
	if m := funcPtrRe.FindStringSubmatch(text); m != nil {
		addDecl(set, TypeDecl{
			Kind:   TypedefDecl,
			Name:   m[2],
			Source: TypeExpr{Base: "void", FuncPtr: true},
			Span:   st.span,
		})
		return nil
	}
	if m := plainTypedefRe.FindStringSubmatch(text); m != nil {
		src, err := parseTypeTokens(strings.Fields(m[1]), st.span)
		if err != nil {
			return err
		}
		addDecl(set, TypeDecl{Kind: TypedefDecl, Name: m[2], Source: src, Span: st.span})
		return nil
	}
	return &ParseError{Span: st.span, Decl: st.text, Msg: "cannot parse typedef"}
}

func addDecl(set *Set, d TypeDecl) {
	if _, exists := set.declsByName[d.Name]; exists {
		return // first declaration wins; headers repeat forward declarations
	}
	set.Decls = append(set.Decls, d)
	set.declsByName[d.Name] = &set.Decls[len(set.Decls)-1]
}

func parseStructBody(body string) []Field {
	var fields []Field
	for _, raw := range strings.Split(body, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if idx := strings.IndexByte(raw, ':'); idx >= 0 {
			raw = strings.TrimSpace(raw[:idx]) // bitfield width is irrelevant here
		}
		tokens := strings.Fields(raw)
		if len(tokens) < 2 {
			continue
		}
		name := tokens[len(tokens)-1]
		arrayLen := 0
		if m := arraySuffixRe.FindStringSubmatch(name); m != nil {
			name = m[1]
			if m[2] != "" {
				arrayLen, _ = strconv.Atoi(m[2])
			}
		}
		typ, err := parseTypeTokens(tokens[:len(tokens)-1], Span{})
		if err != nil {
			continue // tolerate exotic members; the struct stays usable by value or not at all
		}
		typ.ArrayLen = arrayLen
		fields = append(fields, Field{Name: name, Type: typ})
	}
	return fields
}

func parseEnumBody(body string) []EnumValue {
	var values []EnumValue
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.IndexByte(part, '='); idx >= 0 {
			values = append(values, EnumValue{
				Name:  strings.TrimSpace(part[:idx]),
				Value: strings.TrimSpace(part[idx+1:]),
			})
		} else {
			values = append(values, EnumValue{Name: part})
		}
	}
	return values
}

// parsePrototype handles pass two for a single statement. The bool result is
// false for statements that are legitimately not prototypes (type
// declarations from pass one, extern variables).
func parsePrototype(st statement) (*Prototype, bool, error) {
	text := normalizeDecl(st.text)
	if strings.HasPrefix(text, "typedef") || tagStructRe.MatchString(text) || fwdStructRe.MatchString(text) {
		return nil, false, nil
	}
	open := strings.IndexByte(text, '(')
	if open < 0 {
		// extern variable or constant declaration; data symbols are not wrapped
		head := strings.Fields(text)
		if len(head) >= 2 {
			return nil, false, nil
		}
		return nil, false, &ParseError{Span: st.span, Decl: st.text, Msg: "cannot parse declaration"}
	}
	closeIdx := strings.LastIndexByte(text, ')')
	if closeIdx < open || strings.TrimSpace(text[closeIdx+1:]) != "" {
		return nil, false, &ParseError{Span: st.span, Decl: st.text, Msg: "malformed parameter list"}
	}

	head := strings.Fields(strings.TrimSpace(text[:open]))
	for len(head) > 0 && (head[0] == "extern" || head[0] == "static" || head[0] == "inline") {
		head = head[1:]
	}
	if len(head) < 2 {
		return nil, false, &ParseError{Span: st.span, Decl: st.text, Msg: "missing return type"}
	}
	name := head[len(head)-1]
	if !identRe.MatchString(name) {
		return nil, false, &ParseError{Span: st.span, Decl: st.text, Msg: "function name is not an identifier"}
	}
	ret, err := parseTypeTokens(head[:len(head)-1], st.span)
	if err != nil {
		return nil, false, err
	}

	proto := &Prototype{Name: name, Return: ret, Span: st.span}
	inner := strings.TrimSpace(text[open+1 : closeIdx])
	if inner != "" && inner != "void" {
		parts := scanner.SplitTopLevel(inner, ',')
		for i, part := range parts {
			part = strings.TrimSpace(part)
			if part == "..." {
				if i != len(parts)-1 {
					return nil, false, &ParseError{Span: st.span, Decl: st.text, Msg: "ellipsis before last parameter"}
				}
				proto.Variadic = true
				continue
			}
			prm, err := parseParam(part, st)
			if err != nil {
				return nil, false, err
			}
			proto.Params = append(proto.Params, prm)
		}
	}
	return proto, true, nil
}

func parseParam(part string, st statement) (Param, error) {
	if m := funcPtrRe.FindStringSubmatch(part); m != nil {
		return Param{Name: m[2], Type: TypeExpr{Base: "void", FuncPtr: true}}, nil
	}
	tokens := strings.Fields(part)
	if len(tokens) == 0 {
		return Param{}, &ParseError{Span: st.span, Decl: st.text, Msg: "empty parameter"}
	}
	name := ""
	typeTokens := tokens
	last := tokens[len(tokens)-1]
	arrayLen := 0
	if m := arraySuffixRe.FindStringSubmatch(last); m != nil {
		name = m[1]
		if m[2] != "" {
			arrayLen, _ = strconv.Atoi(m[2])
		}
		typeTokens = tokens[:len(tokens)-1]
	} else if len(tokens) > 1 && identRe.MatchString(last) && !isTypeWord(last) {
		name = last
		typeTokens = tokens[:len(tokens)-1]
	}
	typ, err := parseTypeTokens(typeTokens, st.span)
	if err != nil {
		return Param{}, err
	}
	typ.ArrayLen = arrayLen
	return Param{Name: name, Type: typ}, nil
}

// isTypeWord reports tokens that can terminate a multiword builtin type, so
// an unnamed "unsigned int" parameter is not read as one named "int".
func isTypeWord(tok string) bool {
	switch tok {
	case "int", "char", "short", "long", "float", "double", "void", "bool":
		return true
	}
	return false
}

func parseTypeTokens(tokens []string, span Span) (TypeExpr, error) {
	var t TypeExpr
	var words []string
	for _, tok := range tokens {
		switch tok {
		case "const":
			t.Const = true
		case "unsigned":
			t.Unsigned = true
		case "signed":
			t.Signed = true
		case "*":
			t.Pointers++
		case "struct", "union", "enum", "volatile", "restrict":
			// tag keywords and qualifiers carry no mapping information
		default:
			words = append(words, tok)
		}
	}
	if len(words) == 0 {
		if t.Unsigned || t.Signed {
			words = []string{"int"}
		} else {
			return TypeExpr{}, &ParseError{Span: span, Msg: "missing type name"}
		}
	}
	t.Base = strings.Join(words, " ")
	if !identRe.MatchString(words[len(words)-1]) {
		return TypeExpr{}, &ParseError{Span: span, Decl: t.Base, Msg: "cannot parse type"}
	}
	return t, nil
}

func resolveTypes(p *Prototype, set *Set) {
	resolve := func(t *TypeExpr) {
		if t.FuncPtr || isBuiltinBase(t.Base) {
			return
		}
		if _, ok := set.declsByName[t.Base]; !ok {
			t.Opaque = true
		}
	}
	resolve(&p.Return)
	for i := range p.Params {
		resolve(&p.Params[i].Type)
	}
}
