// Package dom wraps golang.org/x/net/html trees with the small set of
// queries and edits the sweeps need, plus a mutation journal that lets a live
// page replay edits made on a parsed snapshot.
package dom

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// GetAttr is Attr without the presence flag.
func GetAttr(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Tag returns the lower-case tag name, or "" for non-elements.
func Tag(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// PrevElement returns the closest preceding element sibling.
func PrevElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// NextElement returns the closest following element sibling.
func NextElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return b.String()
}

// HasElementChildren reports whether n contains any element node.
func HasElementChildren(n *html.Node) bool {
	if n == nil {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// QueryAll returns every descendant of root matching sel. A nil root or an
// invalid selector yields nothing.
func QueryAll(root *html.Node, sel string) []*html.Node {
	if root == nil {
		return nil
	}
	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		return nil
	}
	return cascadia.QueryAll(root, group)
}

// Query returns the first descendant of root matching sel.
func Query(root *html.Node, sel string) *html.Node {
	if root == nil {
		return nil
	}
	group, err := cascadia.ParseGroup(sel)
	if err != nil {
		return nil
	}
	return cascadia.Query(root, group)
}

// Contains reports whether n is root or one of its descendants.
func Contains(root, n *html.Node) bool {
	for c := n; c != nil; c = c.Parent {
		if c == root {
			return true
		}
	}
	return false
}
