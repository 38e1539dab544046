package enforce

// PauseGate decides whether the first "playing" transition of a freshly
// loaded watch view is autoplay that should be paused. An in-session
// navigation or a trusted gesture on the player disables it for the rest of
// the view; it fires at most once per hard load.
type PauseGate struct {
	fresh      bool
	navigated  bool
	userIntent bool
	paused     bool
}

// HardLoad marks a genuine document load.
func (g *PauseGate) HardLoad() {
	*g = PauseGate{fresh: true}
}

// Navigated records an SPA navigation.
func (g *PauseGate) Navigated() { g.navigated = true }

// Gesture records a click or key press on the player area. Synthetic events
// do not count.
func (g *PauseGate) Gesture(trusted bool) {
	if trusted {
		g.userIntent = true
	}
}

// Playing reports whether this playing event should be paused.
func (g *PauseGate) Playing(enabled, watchView bool) bool {
	if !enabled || !watchView || !g.fresh || g.navigated || g.userIntent || g.paused {
		return false
	}
	g.paused = true
	return true
}
