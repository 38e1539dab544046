package engine

import (
	"fmt"

	"tubeguard/internal/reconcile"
)

// Kind identifies an Event.
type Kind int

const (
	// HardLoad is a new document in the tab.
	HardLoad Kind = iota
	NavigateStart
	NavigateFinish
	PageDataUpdated
	ReadyState
	Mutations
	PlayerMutations
	Playing
	Gesture
	SettingsUpdated
	EndscreenToggled
)

var kindNames = [...]string{
	HardLoad:         "hard-load",
	NavigateStart:    "navigate-start",
	NavigateFinish:   "navigate-finish",
	PageDataUpdated:  "page-data-updated",
	ReadyState:       "ready-state",
	Mutations:        "mutations",
	PlayerMutations:  "player-mutations",
	Playing:          "playing",
	Gesture:          "gesture",
	SettingsUpdated:  "settings-updated",
	EndscreenToggled: "endscreen-toggled",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is everything the loop reacts to. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind       Kind
	URL        string
	ReadyState string
	Batch      reconcile.Batch
	Trusted    bool
	// On is the endscreen flag for EndscreenToggled.
	On bool
}
