package reconcile

import "strings"

// Mutation record types, as reported by the page's MutationObserver.
const (
	ChildList  = "childList"
	Attributes = "attributes"
)

// Node summarizes an added element.
type Node struct {
	Tag   string `json:"tag"`
	Class string `json:"class,omitempty"`
}

// Record is a pre-summarized mutation record. The page side reports only
// element tags, classes and the changed attribute name; the Go side never
// needs the nodes themselves to decide relevance.
type Record struct {
	Type      string `json:"type"`
	Target    string `json:"target"`
	Added     []Node `json:"added,omitempty"`
	Attribute string `json:"attribute,omitempty"`
}

// Batch is one MutationObserver callback's worth of records.
type Batch []Record

// componentPrefixes identify the site's content components.
var componentPrefixes = []string{"ytd-", "yt-", "ytm-", "ytp-"}

// overlayClasses are added nodes that matter even without a component tag.
var overlayClasses = []string{"ytp-ce-element"}

// IsComponentTag reports whether tag belongs to a tracked content component.
func IsComponentTag(tag string) bool {
	tag = strings.ToLower(tag)
	for _, p := range componentPrefixes {
		if strings.HasPrefix(tag, p) {
			return true
		}
	}
	return false
}

func hasClass(list, class string) bool {
	for _, c := range strings.Fields(list) {
		if c == class {
			return true
		}
	}
	return false
}

func relevantNode(n Node) bool {
	if IsComponentTag(n.Tag) {
		return true
	}
	for _, c := range overlayClasses {
		if hasClass(n.Class, c) {
			return true
		}
	}
	return false
}

// Relevant reports whether one record could have undone suppression.
func Relevant(r Record) bool {
	switch r.Type {
	case ChildList:
		for _, n := range r.Added {
			if relevantNode(n) {
				return true
			}
		}
	case Attributes:
		if r.Attribute == "style" || r.Attribute == "class" {
			return IsComponentTag(r.Target)
		}
	}
	return false
}

// Classify reports whether any record in the batch is relevant.
func Classify(b Batch) bool {
	for _, r := range b {
		if Relevant(r) {
			return true
		}
	}
	return false
}
