package sweep

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
)

// metricScopes are the header and metadata containers that carry counts.
// Text elsewhere, such as titles or comment bodies, is never inspected.
var metricScopes = []string{
	"#metadata-line",
	"ytd-video-meta-block",
	"ytd-watch-metadata",
	"#info-container",
	"ytd-video-owner-renderer",
	"yt-content-metadata-view-model",
	"#page-header",
	"#channel-header",
}

// metricCandidates are the leaf text carriers inside metricScopes.
var metricCandidates = func() string {
	sels := make([]string, 0, 2*len(metricScopes))
	for _, scope := range metricScopes {
		sels = append(sels, scope+" span", scope+" yt-formatted-string")
	}
	return strings.Join(sels, ", ")
}()

const maxMetricRunes = 40

// A count followed by a known metric noun: "1.2K views", "3 watching",
// "No views", "1,024 subscribers".
var metricPattern = regexp.MustCompile(`^(?:no|[0-9][0-9.,\s]*\s?[kmb]?)\s*(?:views?|watching|waiting|subscribers?|likes?|comments?|replies)$`)

var delimiterTexts = map[string]bool{
	"•": true,
	"·": true,
	"|": true,
}

// IsMetricText reports whether text looks like a count with a metric noun.
// Text is NFKC-normalized first so non-breaking and thin spaces match.
func IsMetricText(text string) bool {
	t := strings.ToLower(strings.TrimSpace(norm.NFKC.String(text)))
	if t == "" || utf8.RuneCountInString(t) > maxMetricRunes {
		return false
	}
	t = strings.Join(strings.Fields(t), " ")
	return metricPattern.MatchString(t)
}

func isDelimiter(n *html.Node) bool {
	if !dom.IsElement(n) || dom.HasElementChildren(n) {
		return false
	}
	t := strings.TrimSpace(norm.NFKC.String(dom.Text(n)))
	if delimiterTexts[t] {
		return true
	}
	return t == "" && strings.Contains(dom.GetAttr(n, "class"), "delimiter")
}

// MetricText tags short count phrases with dom.MetricAttr, and at most one
// adjacent delimiter with dom.DelimiterAttr. The previous sibling is checked
// first; the next one only when the previous is not a delimiter. Both tag
// sets are rebuilt every pass, so recycled nodes and the delimiters beside
// them lose stale tags. This is a heuristic over third-party markup and may
// miss or over-tag on unusual layouts.
func MetricText(d *dom.Doc, s settings.Settings) int {
	if !s.HideMetrics {
		return 0
	}
	var metrics, delims []*html.Node
	isMetric := map[*html.Node]bool{}
	isDelim := map[*html.Node]bool{}
	for _, n := range dom.QueryAll(d.Root, metricCandidates) {
		if dom.HasElementChildren(n) || !IsMetricText(dom.Text(n)) {
			continue
		}
		metrics = append(metrics, n)
		isMetric[n] = true
		delim := dom.PrevElement(n)
		if !isDelimiter(delim) {
			delim = dom.NextElement(n)
		}
		if isDelimiter(delim) && !isDelim[delim] {
			delims = append(delims, delim)
			isDelim[delim] = true
		}
	}

	edits := 0
	for _, n := range dom.QueryAll(d.Root, "["+dom.MetricAttr+"]") {
		if !isMetric[n] && d.RemoveAttr(n, dom.MetricAttr) {
			edits++
		}
	}
	for _, n := range dom.QueryAll(d.Root, "["+dom.DelimiterAttr+"]") {
		if !isDelim[n] && d.RemoveAttr(n, dom.DelimiterAttr) {
			edits++
		}
	}
	for _, n := range metrics {
		if d.SetAttr(n, dom.MetricAttr, "1") {
			edits++
		}
	}
	for _, n := range delims {
		if d.SetAttr(n, dom.DelimiterAttr, "1") {
			edits++
		}
	}
	return edits
}
