package dom

import (
	"strings"

	"github.com/aymerick/douceur/parser"
)

// StyleDecl is one inline style declaration.
type StyleDecl struct {
	Property  string
	Value     string
	Important bool
}

// ParseStyle parses an inline style attribute. Property names are
// lower-cased; declarations without a value are dropped.
func ParseStyle(raw string) []StyleDecl {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []StyleDecl
	// the parser only closes a declaration on ';' or '}'
	if !strings.HasSuffix(raw, ";") {
		raw += ";"
	}
	if decls, err := parser.ParseDeclarations(raw); err == nil {
		for _, d := range decls {
			if d == nil {
				continue
			}
			prop := strings.ToLower(strings.TrimSpace(d.Property))
			val := strings.TrimSpace(d.Value)
			if prop == "" || val == "" {
				continue
			}
			out = append(out, StyleDecl{Property: prop, Value: val, Important: d.Important})
		}
		return out
	}
	for _, part := range strings.Split(raw, ";") {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		important := false
		if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
			important = true
			val = strings.TrimSpace(val[:len(val)-len("!important")])
		}
		if prop == "" || val == "" {
			continue
		}
		out = append(out, StyleDecl{Property: prop, Value: val, Important: important})
	}
	return out
}

// FormatStyle renders declarations back into attribute form.
func FormatStyle(decls []StyleDecl) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		s := d.Property + ": " + d.Value
		if d.Important {
			s += " !important"
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}

// StyleValue returns the inline value of prop on the element's style
// attribute.
func StyleValue(raw, prop string) (string, bool) {
	prop = strings.ToLower(prop)
	for _, d := range ParseStyle(raw) {
		if d.Property == prop {
			return d.Value, true
		}
	}
	return "", false
}
