package codegen

import (
	"fmt"
	"regexp"
	"strings"
)

// Param is one function parameter.
type Param struct {
	Type string
	Name string
}

// Prototype is a function declaration found in a header.
type Prototype struct {
	ReturnType string
	Name       string
	Params     []Param
}

// Void reports whether the function returns nothing.
func (p Prototype) Void() bool {
	return p.ReturnType == "void"
}

// Signature renders the parameter list for a definition.
func (p Prototype) Signature() string {
	if len(p.Params) == 0 {
		return "void"
	}
	parts := make([]string, len(p.Params))
	for i, param := range p.Params {
		parts[i] = strings.TrimSpace(param.Type + " " + param.Name)
	}
	return strings.Join(parts, ", ")
}

var (
	protoRe     = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_\s\*]*?)\b([A-Za-z_][A-Za-z0-9_]*)\s*\(([^;{}()]*)\)\s*;`)
	identRe     = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*$`)
	skipPrefix  = []string{"typedef", "static", "extern \"C\"", "return", "else", "if", "while", "for", "switch"}
	storageRe   = regexp.MustCompile(`\b(extern|inline|__inline)\b`)
	typeKeyword = map[string]bool{
		"int": true, "char": true, "short": true, "long": true, "float": true, "double": true,
		"signed": true, "unsigned": true, "void": true, "const": true, "volatile": true, "struct": true,
		"enum": true, "union": true, "bool": true, "_Bool": true,
	}
)

// ParsePrototypes finds the function declarations of a header. Preprocessor
// lines, comments and function bodies are ignored.
func ParsePrototypes(src string) ([]Prototype, error) {
	var lines []string
	for _, line := range strings.Split(StripComments(src), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
	}
	text := stripBodies(strings.Join(lines, " "))

	var protos []Prototype
	seen := make(map[string]bool)
	for _, m := range protoRe.FindAllStringSubmatch(text, -1) {
		ret := normalizeSpace(storageRe.ReplaceAllString(m[1], ""))
		name := m[2]
		if ret == "" || skipped(ret) || seen[name] {
			continue
		}
		params, err := parseParams(m[3])
		if err != nil {
			return nil, fmt.Errorf("function '%s': %w", name, err)
		}
		seen[name] = true
		protos = append(protos, Prototype{ReturnType: ret, Name: name, Params: params})
	}
	return protos, nil
}

func parseParams(raw string) ([]Param, error) {
	raw = normalizeSpace(raw)
	if raw == "" || raw == "void" {
		return nil, nil
	}
	var params []Param
	for i, part := range strings.Split(raw, ",") {
		part = normalizeSpace(part)
		if part == "..." {
			return nil, fmt.Errorf("variadic functions cannot be mocked")
		}
		name := identRe.FindString(part)
		typ := strings.TrimSpace(strings.TrimSuffix(part, name))
		if name == "" || typ == "" || typeKeyword[name] {
			typ, name = part, fmt.Sprintf("arg%d", i+1)
		}
		params = append(params, Param{Type: typ, Name: name})
	}
	return params, nil
}

// stripBodies removes brace-delimited blocks so inline definitions and
// struct bodies are not mistaken for declarations.
func stripBodies(s string) string {
	var sb strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '{':
			depth++
		case r == '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 {
				sb.WriteRune(';')
			}
		case depth == 0:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func skipped(ret string) bool {
	for _, p := range skipPrefix {
		if strings.HasPrefix(ret, p) {
			return true
		}
	}
	return false
}

func normalizeSpace(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, " *", "*")
}
