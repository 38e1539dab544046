package enforce

import (
	"context"
	"log"
	"time"

	"tubeguard/internal/settings"
	"tubeguard/internal/stylesheet"
	"tubeguard/internal/sweep"
)

// PlayerContainer scopes overlay sweeps and the player mutation trigger.
const PlayerContainer = "#movie_player"

// Overlay suppresses end-of-video overlays with three strategies: stripping
// the player's inline visibility overrides, deleting overlay elements, and
// keeping a dedicated stylesheet installed. Sweeps run when the player
// container mutates and, as a backstop, on a fixed interval.
type Overlay struct {
	fallback time.Duration
	logger   *log.Logger

	enabled   bool
	installed bool
	triggered bool
	next      time.Time
}

func NewOverlay(fallback time.Duration, logger *log.Logger) *Overlay {
	if fallback <= 0 {
		fallback = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Overlay{fallback: fallback, logger: logger}
}

func (o *Overlay) Enabled() bool { return o.enabled }

// Installed reports whether the dedicated stylesheet is believed present.
func (o *Overlay) Installed() bool { return o.installed }

// Toggle turns suppression on or off mid-session. Turning it on re-injects
// the dedicated stylesheet and schedules an immediate sweep.
func (o *Overlay) Toggle(ctx context.Context, now time.Time, surf Surface, on bool) {
	if on == o.enabled && (!on || o.installed) {
		return
	}
	o.enabled = on
	if !on {
		o.triggered = false
		o.next = time.Time{}
		if o.installed && surf != nil {
			if err := surf.RemoveStyle(ctx, stylesheet.EndscreenElementID); err != nil {
				o.logger.Printf("OVERLAY remove stylesheet: %v", err)
			}
		}
		o.installed = false
		return
	}
	o.install(ctx, surf)
	o.triggered = true
	o.next = now
}

// Sync applies the endscreen flag from a settings snapshot.
func (o *Overlay) Sync(ctx context.Context, now time.Time, surf Surface, s settings.Settings) {
	o.Toggle(ctx, now, surf, s.BlockEndscreen)
}

// Reset forgets the stylesheet after the document was replaced.
func (o *Overlay) Reset() {
	o.installed = false
}

// Trigger records a structural change inside the player container.
func (o *Overlay) Trigger() {
	if o.enabled {
		o.triggered = true
	}
}

// NextDeadline returns when Tick should next run.
func (o *Overlay) NextDeadline() (time.Time, bool) {
	if !o.enabled {
		return time.Time{}, false
	}
	return o.next, true
}

func (o *Overlay) Due(now time.Time) bool {
	return o.enabled && (o.triggered || !now.Before(o.next))
}

// Tick runs one suppression pass if due. It returns the number of edits.
func (o *Overlay) Tick(ctx context.Context, now time.Time, surf Surface, s settings.Settings) int {
	if !o.Due(now) || surf == nil {
		return 0
	}
	o.triggered = false
	o.next = now.Add(o.fallback)
	if !o.installed {
		o.install(ctx, surf)
	}
	doc, err := surf.Snapshot(ctx, PlayerContainer)
	if err != nil {
		o.logger.Printf("OVERLAY snapshot: %v", err)
		return 0
	}
	if doc == nil {
		return 0
	}
	res := sweep.Run(doc, s, sweep.Overlay)
	if muts := doc.TakeJournal(); len(muts) > 0 {
		if err := surf.Apply(ctx, muts); err != nil {
			o.logger.Printf("OVERLAY apply: %v", err)
		}
	}
	return res.Total
}

func (o *Overlay) install(ctx context.Context, surf Surface) {
	if surf == nil {
		return
	}
	if err := surf.SetStyle(ctx, stylesheet.EndscreenElementID, stylesheet.Endscreen()); err != nil {
		o.logger.Printf("OVERLAY install stylesheet: %v", err)
		return
	}
	o.installed = true
}
