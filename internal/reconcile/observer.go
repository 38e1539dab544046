// Package reconcile keeps the suppression stylesheet and DOM sweeps applied
// while the page rewrites itself. Observer decides when a pass is due;
// Runner executes one.
package reconcile

import (
	"fmt"
	"log"
	"time"
)

// State of the observer subscription.
type State int

const (
	Unattached State = iota
	Discovering
	Attached
	GaveUp
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Discovering:
		return "discovering"
	case Attached:
		return "attached"
	case GaveUp:
		return "gave-up"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pass is the kind of reconciliation work that is due.
type Pass int

const (
	PassNone Pass = iota
	// PassFull assigns the stylesheet and runs every gated sweep.
	PassFull
	// PassBackstop re-runs only the sweeps CSS cannot express.
	PassBackstop
)

func (p Pass) String() string {
	switch p {
	case PassNone:
		return "none"
	case PassFull:
		return "full"
	case PassBackstop:
		return "backstop"
	default:
		return fmt.Sprintf("Pass(%d)", int(p))
	}
}

// DefaultRoot is the container the observer attaches to.
const DefaultRoot = "ytd-app"

type Config struct {
	Root              string
	DiscoveryInterval time.Duration
	DiscoveryTimeout  time.Duration
	// Debounce is the quiet period after the last relevant batch.
	Debounce time.Duration
	// MaxWait bounds how long a steady stream of batches can defer a pass.
	MaxWait  time.Duration
	Backstop time.Duration
	Logger   *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Root:              DefaultRoot,
		DiscoveryInterval: 500 * time.Millisecond,
		DiscoveryTimeout:  15 * time.Second,
		Debounce:          300 * time.Millisecond,
		MaxWait:           2 * time.Second,
		Backstop:          1500 * time.Millisecond,
		Logger:            log.Default(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Root == "" {
		c.Root = def.Root
	}
	if c.DiscoveryInterval <= 0 {
		c.DiscoveryInterval = def.DiscoveryInterval
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = def.DiscoveryTimeout
	}
	if c.Debounce <= 0 {
		c.Debounce = def.Debounce
	}
	if c.MaxWait < c.Debounce {
		c.MaxWait = c.Debounce
	}
	if c.Backstop <= 0 {
		c.Backstop = def.Backstop
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Observer is the subscription state machine. It owns no timers: the caller
// reports poll results and mutation batches with the current time and asks
// NextDeadline when to come back.
type Observer struct {
	cfg    Config
	logger *log.Logger

	state State
	root  string // identity of the attached root element

	giveUpAt time.Time
	nextPoll time.Time

	pending      bool
	urgent       bool // immediate pass, not subject to debounce
	pendingSince time.Time
	fireAt       time.Time

	backstopOn   bool
	nextBackstop time.Time

	attaches int
}

func NewObserver(cfg Config) *Observer {
	cfg = cfg.withDefaults()
	return &Observer{cfg: cfg, logger: cfg.Logger}
}

// Root returns the selector of the observed container.
func (o *Observer) Root() string { return o.cfg.Root }

func (o *Observer) State() State { return o.state }

// RootID returns the identity of the attached root, or "".
func (o *Observer) RootID() string { return o.root }

// Attaches counts subscriptions made since construction.
func (o *Observer) Attaches() int { return o.attaches }

// Pending reports whether a debounced pass is scheduled.
func (o *Observer) Pending() bool { return o.pending }

// Start begins root discovery for a fresh document. Any previous
// subscription is torn down first.
func (o *Observer) Start(now time.Time) {
	o.Reset()
	o.state = Discovering
	o.giveUpAt = now.Add(o.cfg.DiscoveryTimeout)
	o.nextPoll = now
	o.backstopOn = true
	o.nextBackstop = now.Add(o.cfg.Backstop)
}

// Reset tears down the subscription and every schedule.
func (o *Observer) Reset() {
	o.state = Unattached
	o.root = ""
	o.pending = false
	o.urgent = false
	o.fireAt = time.Time{}
	o.nextPoll = time.Time{}
	o.backstopOn = false
	o.nextBackstop = time.Time{}
}

// PollDue reports whether the discovery poll should look for the root.
func (o *Observer) PollDue(now time.Time) bool {
	return o.state == Discovering && !now.Before(o.nextPoll)
}

// Poll reports what a root lookup found. It returns true when a new
// subscription was made, which always schedules an immediate pass. A
// different rootID while attached means the root was recreated; the old
// subscription is dropped in favour of the new one.
func (o *Observer) Poll(now time.Time, present bool, rootID string) bool {
	switch o.state {
	case Discovering:
		if present {
			o.attach(now, rootID)
			return true
		}
		if !now.Before(o.giveUpAt) {
			o.state = GaveUp
			o.logger.Printf("RECONCILE %s not found after %s, giving up", o.cfg.Root, o.cfg.DiscoveryTimeout)
			return false
		}
		o.nextPoll = now.Add(o.cfg.DiscoveryInterval)
	case Attached:
		if !present {
			o.logger.Printf("RECONCILE %s detached, rediscovering", o.cfg.Root)
			o.root = ""
			o.pending = false
			o.urgent = false
			o.state = Discovering
			o.giveUpAt = now.Add(o.cfg.DiscoveryTimeout)
			o.nextPoll = now
			return false
		}
		if rootID != o.root {
			o.logger.Printf("RECONCILE %s replaced (%s -> %s)", o.cfg.Root, o.root, rootID)
			o.attach(now, rootID)
			return true
		}
	}
	return false
}

func (o *Observer) attach(now time.Time, rootID string) {
	o.state = Attached
	o.root = rootID
	o.attaches++
	o.pending = true
	o.urgent = true
	o.pendingSince = now
	o.fireAt = now
}

// Mutations feeds one batch. Relevant batches arm or extend the debounce,
// never past MaxWait after the first one. It reports whether the batch was
// relevant.
func (o *Observer) Mutations(now time.Time, b Batch) bool {
	if o.state != Attached || !Classify(b) {
		return false
	}
	if o.urgent {
		return true
	}
	if !o.pending {
		o.pending = true
		o.pendingSince = now
	}
	at := now.Add(o.cfg.Debounce)
	if limit := o.pendingSince.Add(o.cfg.MaxWait); at.After(limit) {
		at = limit
	}
	o.fireAt = at
	return true
}

// Request schedules an immediate full pass, for example after a settings
// change or a finished navigation. It is ignored while unattached.
func (o *Observer) Request(now time.Time) {
	if o.state != Attached {
		return
	}
	o.pending = true
	o.urgent = true
	o.pendingSince = now
	o.fireAt = now
}

// NextDeadline returns the earliest time Take or Poll has work.
func (o *Observer) NextDeadline() (time.Time, bool) {
	var (
		next time.Time
		ok   bool
	)
	consider := func(t time.Time) {
		if !ok || t.Before(next) {
			next, ok = t, true
		}
	}
	if o.state == Discovering {
		consider(o.nextPoll)
	}
	if o.state == Attached && o.pending {
		consider(o.fireAt)
	}
	if o.backstopOn {
		consider(o.nextBackstop)
	}
	return next, ok
}

// Due reports whether Take would return work or a poll is due.
func (o *Observer) Due(now time.Time) bool {
	if o.PollDue(now) {
		return true
	}
	if o.state == Attached && o.pending && !now.Before(o.fireAt) {
		return true
	}
	return o.backstopOn && !now.Before(o.nextBackstop)
}

// Take returns the pass due at now and advances the schedule. A full pass
// also covers the backstop sweeps, so it pushes the backstop out.
func (o *Observer) Take(now time.Time) Pass {
	if o.state == Attached && o.pending && !now.Before(o.fireAt) {
		o.pending = false
		o.urgent = false
		o.nextBackstop = now.Add(o.cfg.Backstop)
		return PassFull
	}
	if o.backstopOn && !now.Before(o.nextBackstop) {
		o.nextBackstop = now.Add(o.cfg.Backstop)
		return PassBackstop
	}
	return PassNone
}
