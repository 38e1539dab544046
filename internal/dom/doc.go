package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Op names a replayable edit.
type Op string

const (
	OpSetAttr     Op = "set-attr"
	OpRemoveAttr  Op = "remove-attr"
	OpSetStyle    Op = "set-style"
	OpRemoveStyle Op = "remove-style"
	OpRemove      Op = "remove"
)

// Mutation is one effective edit, addressed by the element's RefAttr.
type Mutation struct {
	Ref       string `json:"ref"`
	Op        Op     `json:"op"`
	Name      string `json:"name,omitempty"`
	Value     string `json:"value,omitempty"`
	Important bool   `json:"important,omitempty"`
}

// Doc is a parsed tree plus the journal of edits made through it. Edits that
// would not change the tree are not journaled, so a sweep that has already
// converged produces an empty journal.
type Doc struct {
	Root    *html.Node
	journal []Mutation
	seq     int
}

func NewDoc(root *html.Node) *Doc {
	return &Doc{Root: root}
}

// Parse reads an HTML document or fragment.
func Parse(r io.Reader) (*Doc, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return NewDoc(root), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Doc, error) {
	return Parse(strings.NewReader(s))
}

// Journal returns the edits recorded so far.
func (d *Doc) Journal() []Mutation {
	return append([]Mutation(nil), d.journal...)
}

// TakeJournal returns the recorded edits and clears the journal.
func (d *Doc) TakeJournal() []Mutation {
	out := d.journal
	d.journal = nil
	return out
}

// Ref returns n's RefAttr, assigning a local one when the snapshot did not
// carry it. Local refs never reach a live page.
func (d *Doc) Ref(n *html.Node) string {
	if v, ok := Attr(n, RefAttr); ok {
		return v
	}
	d.seq++
	v := "local-" + strconv.Itoa(d.seq)
	n.Attr = append(n.Attr, html.Attribute{Key: RefAttr, Val: v})
	return v
}

func (d *Doc) record(n *html.Node, m Mutation) {
	m.Ref = d.Ref(n)
	d.journal = append(d.journal, m)
}

// SetAttr sets key=val on n. It reports whether the tree changed.
func (d *Doc) SetAttr(n *html.Node, key, val string) bool {
	if !IsElement(n) {
		return false
	}
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			if a.Val == val {
				return false
			}
			n.Attr[i].Val = val
			d.record(n, Mutation{Op: OpSetAttr, Name: key, Value: val})
			return true
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.record(n, Mutation{Op: OpSetAttr, Name: key, Value: val})
	return true
}

// RemoveAttr deletes key from n.
func (d *Doc) RemoveAttr(n *html.Node, key string) bool {
	if !IsElement(n) {
		return false
	}
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.record(n, Mutation{Op: OpRemoveAttr, Name: key})
			return true
		}
	}
	return false
}

// SetStyle sets one inline style property.
func (d *Doc) SetStyle(n *html.Node, prop, val string, important bool) bool {
	if !IsElement(n) {
		return false
	}
	decls := ParseStyle(GetAttr(n, "style"))
	prop = strings.ToLower(strings.TrimSpace(prop))
	found := false
	for i := range decls {
		if decls[i].Property != prop {
			continue
		}
		if decls[i].Value == val && decls[i].Important == important {
			return false
		}
		decls[i].Value = val
		decls[i].Important = important
		found = true
	}
	if !found {
		decls = append(decls, StyleDecl{Property: prop, Value: val, Important: important})
	}
	setRawAttr(n, "style", FormatStyle(decls))
	d.record(n, Mutation{Op: OpSetStyle, Name: prop, Value: val, Important: important})
	return true
}

// RemoveStyle strips the listed inline style properties. One mutation is
// journaled per property actually present.
func (d *Doc) RemoveStyle(n *html.Node, props ...string) int {
	if !IsElement(n) {
		return 0
	}
	raw, ok := Attr(n, "style")
	if !ok || strings.TrimSpace(raw) == "" {
		return 0
	}
	decls := ParseStyle(raw)
	removed := 0
	for _, p := range props {
		p = strings.ToLower(p)
		kept := decls[:0]
		hit := false
		for _, decl := range decls {
			if decl.Property == p {
				hit = true
				continue
			}
			kept = append(kept, decl)
		}
		decls = kept
		if hit {
			removed++
			d.record(n, Mutation{Op: OpRemoveStyle, Name: p})
		}
	}
	if removed > 0 {
		setRawAttr(n, "style", FormatStyle(decls))
	}
	return removed
}

// Remove detaches n from the tree.
func (d *Doc) Remove(n *html.Node) bool {
	if n == nil || n.Parent == nil {
		return false
	}
	d.record(n, Mutation{Op: OpRemove})
	n.Parent.RemoveChild(n)
	return true
}

func setRawAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Render serializes the tree, mostly for debugging and tests.
func (d *Doc) Render() string {
	var b strings.Builder
	if d.Root != nil {
		_ = html.Render(&b, d.Root)
	}
	return b.String()
}
