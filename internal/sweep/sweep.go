// Package sweep holds the DOM edits that CSS selectors cannot express. Every
// sweep is idempotent, gated on its setting, confined to a narrow set of
// tags, and a no-op when its container is missing.
package sweep

import (
	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
)

// Func is one sweep. It returns the number of effective edits.
type Func func(d *dom.Doc, s settings.Settings) int

// Sweep names a Func for logging.
type Sweep struct {
	Name string
	Run  Func
}

// Reconcile is the full page pass, run after the stylesheet is assigned.
// Grid repair follows card filtering so it sees the final set of hidden
// items.
var Reconcile = []Sweep{
	{"shorts-cards", ShortsCards},
	{"grid-repair", GridRepair},
	{"metric-text", MetricText},
}

// Backstop re-runs the sweeps a missed mutation batch could have undone.
var Backstop = []Sweep{
	{"metric-text", MetricText},
	{"shorts-cards", ShortsCards},
	{"grid-repair", GridRepair},
}

// Overlay works on the player container only.
var Overlay = []Sweep{
	{"endscreen-inline", EndscreenInline},
	{"endscreen-remove", EndscreenRemove},
}

// Result counts edits per sweep.
type Result struct {
	Counts map[string]int
	Total  int
}

// Run applies list in order to d.
func Run(d *dom.Doc, s settings.Settings, list []Sweep) Result {
	res := Result{Counts: make(map[string]int, len(list))}
	if d == nil || d.Root == nil {
		return res
	}
	for _, sw := range list {
		n := sw.Run(d, s)
		res.Counts[sw.Name] += n
		res.Total += n
	}
	return res
}
