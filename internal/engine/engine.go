// Package engine owns every per-tab state machine and runs them on a single
// goroutine. Page signals and settings changes arrive as Events; timers are
// collapsed into one, armed to the earliest deadline any machine reports.
package engine

import (
	"context"
	"log"
	"net/url"
	"time"

	"tubeguard/internal/dom"
	"tubeguard/internal/enforce"
	"tubeguard/internal/navguard"
	"tubeguard/internal/reconcile"
	"tubeguard/internal/settings"
	"tubeguard/internal/stylesheet"
)

// Page is the live tab.
type Page interface {
	SetStyle(ctx context.Context, id, css string) error
	RemoveStyle(ctx context.Context, id string) error
	Snapshot(ctx context.Context, selector string) (*dom.Doc, error)
	Apply(ctx context.Context, muts []dom.Mutation) error
	Replace(target string) error
	// RootID reports whether selector matches and a stable identity for the
	// matched element.
	RootID(ctx context.Context, selector string) (string, bool, error)
	ObserveRoot(ctx context.Context, selector string) (bool, error)
	ObservePlayer(ctx context.Context, selector string) (bool, error)
	// PauseTrailer stops a channel page's featured video and reports
	// whether one was playing.
	PauseTrailer(ctx context.Context) (bool, error)
	Player() enforce.Player
}

// Engine serialises page events, settings changes and timer work.
type Engine struct {
	page   Page
	snap   *settings.Snapshot
	logger *log.Logger
	clock  func() time.Time

	events chan Event

	observer *reconcile.Observer
	runner   *reconcile.Runner
	guard    *navguard.Guard
	enforcer *enforce.Enforcer
	overlay  *enforce.Overlay
	pause    enforce.PauseGate

	url            string
	path           string
	playerObserved bool
}

// New wires the state machines around page. The snapshot is read at the
// start of every step and never written here.
func New(page Page, snap *settings.Snapshot, cfg Config) (*Engine, error) {
	def := DefaultConfig()
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Reconcile.Logger == nil {
		cfg.Reconcile.Logger = cfg.Logger
	}
	if cfg.Enforce.Logger == nil {
		cfg.Enforce.Logger = cfg.Logger
	}
	if snap == nil {
		snap = settings.NewSnapshot(settings.Defaults())
	}
	enf, err := enforce.New(cfg.Enforce)
	if err != nil {
		return nil, err
	}
	obs := reconcile.NewObserver(cfg.Reconcile)
	return &Engine{
		page:     page,
		snap:     snap,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		events:   make(chan Event, cfg.QueueSize),
		observer: obs,
		runner:   reconcile.NewRunner(obs.Root(), cfg.Logger),
		guard:    navguard.New(page, cfg.Logger),
		enforcer: enf,
		overlay:  enforce.NewOverlay(cfg.OverlayFallback, cfg.Logger),
	}, nil
}

// Post queues ev without blocking. It reports false when the queue is full
// and the event was dropped.
func (e *Engine) Post(ev Event) bool {
	select {
	case e.events <- ev:
		return true
	default:
		e.logger.Printf("ENGINE queue full, dropped %s", ev.Kind)
		return false
	}
}

// Run processes events and deadlines until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		if next, ok := e.NextDeadline(); ok {
			timer.Reset(max(next.Sub(e.clock()), 0))
		} else {
			timer.Stop()
		}
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.handle(ctx, ev, e.clock())
			e.tick(ctx, e.clock())
		case <-timer.C:
			e.tick(ctx, e.clock())
		}
	}
}

// NextDeadline is the earliest time any machine has work. Reconciliation is
// suspended while a redirect is in flight.
func (e *Engine) NextDeadline() (time.Time, bool) {
	var (
		next time.Time
		ok   bool
	)
	consider := func(t time.Time, has bool) {
		if has && (!ok || t.Before(next)) {
			next, ok = t, true
		}
	}
	if !e.guard.Pending() {
		consider(e.observer.NextDeadline())
	}
	consider(e.enforcer.NextDeadline())
	consider(e.overlay.NextDeadline())
	return next, ok
}

func (e *Engine) setURL(raw string) {
	if raw == "" {
		return
	}
	e.url = raw
	e.path = pathOf(raw)
	e.enforcer.SetPath(e.path)
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

func (e *Engine) handle(ctx context.Context, ev Event, now time.Time) {
	s := e.snap.Load()
	switch ev.Kind {
	case HardLoad:
		e.setURL(ev.URL)
		e.logger.Printf("ENGINE hard load %s", e.url)
		e.pause.HardLoad()
		e.guard.Reset()
		e.overlay.Reset()
		e.playerObserved = false
		e.observer.Start(now)
		e.enforcer.Start(now, e.path)
		e.overlay.Sync(ctx, now, e.page, s)
	case ReadyState:
		e.setURL(ev.URL)
		if e.guard.CheckInitial(ev.ReadyState, e.url, s) {
			e.logger.Printf("ENGINE redirecting deep link %s", e.url)
		}
	case NavigateStart:
		e.pause.Navigated()
		e.guard.NavigateStart(ev.URL, s)
	case NavigateFinish:
		e.guard.NavigateFinish()
		e.setURL(ev.URL)
		e.enforcer.Start(now, e.path)
		e.observer.Request(now)
		e.playerObserved = false
		e.overlay.Sync(ctx, now, e.page, s)
		e.overlay.Trigger()
	case PageDataUpdated:
		e.setURL(ev.URL)
		e.observer.Request(now)
		e.enforcer.Start(now, e.path)
	case Mutations:
		e.observer.Mutations(now, ev.Batch)
	case PlayerMutations:
		e.overlay.Trigger()
	case Playing:
		if s.BlockChannelAutoplay && isChannelHome(e.path) {
			e.pauseTrailer(ctx)
		}
		if e.pause.Playing(s.PauseOnLoad, e.enforcer.IsPlayback(e.path)) {
			if err := e.page.Player().Pause(ctx); err != nil {
				e.logger.Printf("ENGINE pause on load: %v", err)
			} else {
				e.logger.Printf("ENGINE paused autoplay on %s", e.path)
			}
		}
	case Gesture:
		e.pause.Gesture(ev.Trusted)
	case SettingsUpdated:
		e.settingsUpdated(ctx, now, s)
	case EndscreenToggled:
		// The snapshot is authoritative; the page signal only prompts a sync.
		if ev.On != s.BlockEndscreen {
			e.logger.Printf("ENGINE endscreen signal %t is stale, settings say %t", ev.On, s.BlockEndscreen)
		}
		e.overlay.Sync(ctx, now, e.page, s)
		e.overlay.Trigger()
	default:
		e.logger.Printf("ENGINE unhandled event %s", ev.Kind)
	}
}

// settingsUpdated applies a new snapshot everywhere it matters: the
// stylesheet first so hidden regions disappear without waiting for a pass,
// then a full reconcile, the redirect check for the current view, and a
// fresh enforcement burst on playback views.
func (e *Engine) settingsUpdated(ctx context.Context, now time.Time, s settings.Settings) {
	if err := e.page.SetStyle(ctx, stylesheet.ElementID, stylesheet.Compile(s)); err != nil {
		e.logger.Printf("ENGINE assign stylesheet: %v", err)
	}
	e.observer.Request(now)
	if e.url != "" {
		e.guard.NavigateStart(e.url, s)
	}
	e.overlay.Sync(ctx, now, e.page, s)
	if e.enforcer.IsPlayback(e.path) {
		e.enforcer.Start(now, e.path)
	}
}

func (e *Engine) tick(ctx context.Context, now time.Time) {
	s := e.snap.Load()
	if !e.guard.Pending() {
		e.reconcile(ctx, now, s)
	}
	if e.enforcer.Due(now) {
		e.enforcer.Tick(ctx, now, e.page.Player(), s)
	}
	if e.overlay.Due(now) {
		if !e.playerObserved {
			ok, err := e.page.ObservePlayer(ctx, enforce.PlayerContainer)
			if err != nil {
				e.logger.Printf("ENGINE observe player: %v", err)
			}
			e.playerObserved = ok
		}
		e.overlay.Tick(ctx, now, e.page, s)
	}
}

func (e *Engine) reconcile(ctx context.Context, now time.Time, s settings.Settings) {
	if e.observer.PollDue(now) {
		e.poll(ctx, now)
	}
	if !e.observer.Due(now) {
		return
	}
	pass := e.observer.Take(now)
	if pass == reconcile.PassNone {
		return
	}
	// The root may have been recreated since it was found.
	e.poll(ctx, now)
	if _, err := e.runner.Run(ctx, e.page, pass, s); err != nil {
		e.logger.Printf("ENGINE %s pass: %v", pass, err)
	}
}

func (e *Engine) pauseTrailer(ctx context.Context) {
	paused, err := e.page.PauseTrailer(ctx)
	if err != nil {
		e.logger.Printf("ENGINE pause channel trailer: %v", err)
		return
	}
	if paused {
		e.logger.Printf("ENGINE paused channel trailer on %s", e.path)
	}
}

// isChannelHome reports whether path is a channel landing page, the only
// view with a featured trailer.
func isChannelHome(path string) bool {
	_, ok := navguard.ChannelHome(path)
	return ok
}

func (e *Engine) poll(ctx context.Context, now time.Time) {
	root := e.observer.Root()
	id, present, err := e.page.RootID(ctx, root)
	if err != nil {
		e.logger.Printf("ENGINE find %s: %v", root, err)
		present = false
	}
	if !e.observer.Poll(now, present, id) {
		return
	}
	if _, err := e.page.ObserveRoot(ctx, root); err != nil {
		e.logger.Printf("ENGINE observe %s: %v", root, err)
	}
}
