package browser

import (
	"encoding/json"
	"fmt"

	"tubeguard/internal/reconcile"
)

// Page event kinds sent through the binding.
const (
	KindLoad            = "load"
	KindNavigateStart   = "navigate-start"
	KindNavigateFinish  = "navigate-finish"
	KindPageData        = "page-data-updated"
	KindReadyState      = "ready-state"
	KindMutations       = "mutations"
	KindPlayerMutations = "player-mutations"
	KindPlaying         = "playing"
	KindGesture         = "gesture"
	KindEndscreen       = "endscreen"
)

// Event is one page-side signal.
type Event struct {
	Kind       string          `json:"kind"`
	URL        string          `json:"url,omitempty"`
	ReadyState string          `json:"readyState,omitempty"`
	Batch      reconcile.Batch `json:"batch,omitempty"`
	// Trusted is the DOM isTrusted flag of a gesture.
	Trusted        bool `json:"trusted,omitempty"`
	BlockEndscreen bool `json:"blockEndscreen,omitempty"`
}

// DecodeEvent parses a binding payload.
func DecodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode page event: %w", err)
	}
	if ev.Kind == "" {
		return Event{}, fmt.Errorf("decode page event: missing kind")
	}
	return ev, nil
}
