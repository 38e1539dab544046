package dom

// Attributes written onto page elements. The compiled stylesheet selects on
// the marker attributes; RefAttr identifies elements across a snapshot and
// the live page.
const (
	RefAttr       = "data-tubeguard-ref"
	MetricAttr    = "data-tubeguard-metric"
	ShortsAttr    = "data-tubeguard-shorts"
	DelimiterAttr = "data-tubeguard-delim"
)
