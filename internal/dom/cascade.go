package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

type propState struct {
	val       string
	spec      cascadia.Specificity
	order     int
	important bool
}

type cssRule struct {
	selector     cascadia.Sel
	specificity  cascadia.Specificity
	declarations []StyleDecl
	order        int
}

// Cascade evaluates author stylesheets against a parsed tree. It resolves
// specificity, !important and source order, plus inline style attributes. It
// ignores inheritance except for display:none, which Hidden propagates.
type Cascade struct {
	rules []cssRule
	order int
}

// NewCascade parses each stylesheet in order.
func NewCascade(sheets ...string) (*Cascade, error) {
	c := &Cascade{}
	for _, s := range sheets {
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends a stylesheet; its rules win ties against earlier ones.
func (c *Cascade) Add(css string) error {
	trimmed := strings.TrimSpace(css)
	if trimmed == "" {
		return nil
	}
	sheet, err := parser.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("parse css: %w", err)
	}
	c.walk(sheet.Rules)
	return nil
}

// AddDocumentStyles adds every inline <style> element found under root.
func (c *Cascade) AddDocumentStyles(root *html.Node) {
	for _, n := range QueryAll(root, "style") {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			_ = c.Add(n.FirstChild.Data)
		}
	}
}

func (c *Cascade) walk(list []*cssast.Rule) {
	for _, rule := range list {
		if rule == nil {
			continue
		}
		switch rule.Kind {
		case cssast.AtRule:
			// media queries are treated as matching; the page is always
			// rendered on a desktop-sized viewport
			switch strings.ToLower(strings.TrimSpace(rule.Name)) {
			case "@media", "@supports", "@layer":
				c.walk(rule.Rules)
			}
		case cssast.QualifiedRule:
			decls := convertDeclarations(rule.Declarations)
			if len(decls) == 0 || len(rule.Selectors) == 0 {
				continue
			}
			group, err := cascadia.ParseGroup(strings.Join(rule.Selectors, ","))
			if err != nil {
				continue
			}
			for _, sel := range group {
				if sel == nil || sel.PseudoElement() != "" {
					continue
				}
				c.rules = append(c.rules, cssRule{selector: sel, specificity: sel.Specificity(), declarations: decls, order: c.order})
				c.order++
			}
		}
	}
}

func convertDeclarations(list []*cssast.Declaration) []StyleDecl {
	out := make([]StyleDecl, 0, len(list))
	for _, decl := range list {
		if decl == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl.Property))
		val := strings.TrimSpace(decl.Value)
		if prop == "" || val == "" {
			continue
		}
		out = append(out, StyleDecl{Property: prop, Value: val, Important: decl.Important})
	}
	return out
}

// Computed returns the cascaded (not inherited) declarations for n.
func (c *Cascade) Computed(n *html.Node) map[string]string {
	if c == nil || n == nil || n.Type != html.ElementNode {
		return nil
	}
	props := map[string]propState{}
	for _, rule := range c.rules {
		if !rule.selector.Match(n) {
			continue
		}
		for _, decl := range rule.declarations {
			applyDeclaration(props, decl, rule.specificity, rule.order)
		}
	}
	for i, decl := range ParseStyle(GetAttr(n, "style")) {
		applyDeclaration(props, decl, cascadia.Specificity{1 << 12, 0, 0}, (1<<30)+i)
	}
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, st := range props {
		out[k] = st.val
	}
	return out
}

func applyDeclaration(store map[string]propState, decl StyleDecl, spec cascadia.Specificity, order int) {
	entry := propState{val: decl.Value, spec: spec, order: order, important: decl.Important}
	prev, ok := store[decl.Property]
	if !ok {
		store[decl.Property] = entry
		return
	}
	if prev.important && !decl.Important {
		return
	}
	if decl.Important && !prev.important {
		store[decl.Property] = entry
		return
	}
	if prev.spec.Less(spec) {
		store[decl.Property] = entry
		return
	}
	if spec.Less(prev.spec) {
		return
	}
	if order >= prev.order {
		store[decl.Property] = entry
	}
}

// SelfHidden reports whether n itself computes to display:none.
func (c *Cascade) SelfHidden(n *html.Node) bool {
	if HasAttr(n, "hidden") {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(c.Computed(n)["display"]), "none")
}

// Hidden reports whether n or any ancestor computes to display:none.
func (c *Cascade) Hidden(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && c.SelfHidden(cur) {
			return true
		}
	}
	return false
}

// HiddenRoots returns the outermost hidden elements under root, in document
// order.
func (c *Cascade) HiddenRoots(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && c.SelfHidden(n) {
			out = append(out, n)
			return
		}
		for k := n.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}
