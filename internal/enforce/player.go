package enforce

import (
	"context"
	"errors"

	"tubeguard/internal/dom"
)

// ErrNoPlayer is returned by a Player whose page has no player object, or
// whose player lacks the method being called.
var ErrNoPlayer = errors.New("player api unavailable")

// Player is the external, stateful video player. It offers no readiness or
// change notifications, so every call may fail and every answer may be stale
// by the next tick.
type Player interface {
	AvailableQualityLevels(ctx context.Context) ([]string, error)
	Quality(ctx context.Context) (string, error)
	SetQuality(ctx context.Context, level string) error
	PlaybackRate(ctx context.Context) (float64, error)
	// SetPlaybackRate sets both the media element and the player API.
	SetPlaybackRate(ctx context.Context, rate float64) error
	Pause(ctx context.Context) error
	SetAutoplay(ctx context.Context, on bool) error
}

// Surface is the part of the page the overlay logic edits.
type Surface interface {
	SetStyle(ctx context.Context, id, css string) error
	RemoveStyle(ctx context.Context, id string) error
	// Snapshot returns the subtree under selector, or nil when absent.
	Snapshot(ctx context.Context, selector string) (*dom.Doc, error)
	Apply(ctx context.Context, muts []dom.Mutation) error
}
