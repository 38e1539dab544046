// Package enforce drives the video player toward the preferred quality and
// speed, suppresses end-of-video overlays, and pauses autoplay on hard loads.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/gobwas/glob"

	"tubeguard/internal/settings"
)

// Phase of the enforcement loop.
type Phase int

const (
	Idle Phase = iota
	Bursting
	Persisting
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Bursting:
		return "bursting"
	case Persisting:
		return "persisting"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// DefaultPlaybackPaths match views that host a playing video.
var DefaultPlaybackPaths = []string{"/watch", "/watch/*", "/live/*", "/shorts/*", "/embed/*"}

// Config tunes the polling schedule.
type Config struct {
	BurstInterval   time.Duration
	BurstAttempts   int
	PersistInterval time.Duration
	PlaybackPaths   []string
	Logger          *log.Logger
}

func DefaultConfig() Config {
	return Config{
		BurstInterval:   500 * time.Millisecond,
		BurstAttempts:   40,
		PersistInterval: 3 * time.Second,
		PlaybackPaths:   DefaultPlaybackPaths,
		Logger:          log.Default(),
	}
}

// PathMatcher matches URL paths against glob patterns.
type PathMatcher struct {
	globs []glob.Glob
}

func NewPathMatcher(patterns []string) (*PathMatcher, error) {
	m := &PathMatcher{}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("playback pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

func (m *PathMatcher) Match(path string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Enforcer is the burst/persist poller. It is driven synchronously: the
// caller reports page loads and navigations with Start and calls Tick when
// NextDeadline passes.
type Enforcer struct {
	cfg      Config
	logger   *log.Logger
	playback *PathMatcher

	phase    Phase
	attempts int
	next     time.Time
	path     string

	autoplayDone bool
}

func New(cfg Config) (*Enforcer, error) {
	def := DefaultConfig()
	if cfg.BurstInterval <= 0 {
		cfg.BurstInterval = def.BurstInterval
	}
	if cfg.BurstAttempts <= 0 {
		cfg.BurstAttempts = def.BurstAttempts
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = def.PersistInterval
	}
	if len(cfg.PlaybackPaths) == 0 {
		cfg.PlaybackPaths = def.PlaybackPaths
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	m, err := NewPathMatcher(cfg.PlaybackPaths)
	if err != nil {
		return nil, err
	}
	return &Enforcer{cfg: cfg, logger: cfg.Logger, playback: m}, nil
}

func (e *Enforcer) Phase() Phase { return e.phase }

func (e *Enforcer) Attempts() int { return e.attempts }

// IsPlayback reports whether path is a playback view.
func (e *Enforcer) IsPlayback(path string) bool { return e.playback.Match(path) }

// Start enters Bursting for a page load or a finished navigation.
func (e *Enforcer) Start(now time.Time, path string) {
	e.phase = Bursting
	e.attempts = 0
	e.next = now
	e.path = path
	e.autoplayDone = false
}

// SetPath updates the current view without restarting the burst.
func (e *Enforcer) SetPath(path string) { e.path = path }

// Stop returns to Idle and cancels any pending attempt.
func (e *Enforcer) Stop() {
	e.phase = Idle
	e.next = time.Time{}
}

// NextDeadline is the time of the next attempt, if any.
func (e *Enforcer) NextDeadline() (time.Time, bool) {
	if e.phase == Idle {
		return time.Time{}, false
	}
	return e.next, true
}

func (e *Enforcer) Due(now time.Time) bool {
	return e.phase != Idle && !now.Before(e.next)
}

// Tick performs one attempt if due and schedules the next.
func (e *Enforcer) Tick(ctx context.Context, now time.Time, p Player, s settings.Settings) {
	if !e.Due(now) {
		return
	}
	switch e.phase {
	case Bursting:
		e.apply(ctx, p, s)
		e.attempts++
		if e.attempts >= e.cfg.BurstAttempts {
			if e.playback.Match(e.path) {
				e.phase = Persisting
				e.next = now.Add(e.cfg.PersistInterval)
				e.logger.Printf("ENFORCE burst done after %d attempts, persisting on %s", e.attempts, e.path)
			} else {
				e.Stop()
			}
			return
		}
		e.next = now.Add(e.cfg.BurstInterval)
	case Persisting:
		if !e.playback.Match(e.path) {
			e.Stop()
			return
		}
		e.apply(ctx, p, s)
		e.next = now.Add(e.cfg.PersistInterval)
	}
}

// apply pushes quality and speed. Player failures degrade to "leave it".
func (e *Enforcer) apply(ctx context.Context, p Player, s settings.Settings) {
	if p == nil {
		return
	}
	e.applyQuality(ctx, p, s.Quality)
	e.applySpeed(ctx, p, s.Speed)
	if s.DisableAutoplay && !e.autoplayDone {
		if err := p.SetAutoplay(ctx, false); err == nil {
			e.autoplayDone = true
		}
	}
}

func (e *Enforcer) applyQuality(ctx context.Context, p Player, q settings.Quality) {
	desired, ok := TierFor(q)
	if !ok {
		return
	}
	avail, err := p.AvailableQualityLevels(ctx)
	if err != nil {
		e.logPlayerErr("quality levels", err)
		return
	}
	level, ok := ResolveQuality(desired, avail)
	if !ok {
		return
	}
	if cur, err := p.Quality(ctx); err == nil && cur == level {
		return
	}
	if err := p.SetQuality(ctx, level); err != nil {
		e.logPlayerErr("set quality", err)
		return
	}
	e.logger.Printf("ENFORCE quality %s (wanted %s, offered %v)", level, desired, avail)
}

func (e *Enforcer) applySpeed(ctx context.Context, p Player, sp settings.Speed) {
	rate, ok := ResolveSpeed(sp)
	if !ok {
		return
	}
	if cur, err := p.PlaybackRate(ctx); err == nil && math.Abs(cur-rate) < 1e-9 {
		return
	}
	if err := p.SetPlaybackRate(ctx, rate); err != nil {
		e.logPlayerErr("set rate", err)
		return
	}
	e.logger.Printf("ENFORCE speed %.2fx", rate)
}

func (e *Enforcer) logPlayerErr(op string, err error) {
	if errors.Is(err, ErrNoPlayer) {
		return
	}
	e.logger.Printf("ENFORCE %s: %v", op, err)
}
