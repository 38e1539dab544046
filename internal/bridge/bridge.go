// Package bridge relays settings between the preferences side (HTTP clients,
// the CLI) and the live page session. It is the only writer of the settings
// snapshot.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tubeguard/internal/settings"
)

// Message types.
const (
	TypeSettingsUpdated = "SETTINGS_UPDATED"
	TypeGetSettings     = "GET_SETTINGS"
)

var (
	// ErrStorage wraps every settings store failure.
	ErrStorage = errors.New("settings storage failed")
	// ErrUnknownType is returned for messages the bridge does not speak.
	ErrUnknownType = errors.New("unknown message type")
)

// Message is one request on the bridge.
type Message struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Settings map[string]any `json:"settings,omitempty"`
}

// NewMessage builds a message with a fresh correlation id.
func NewMessage(typ string, s map[string]any) Message {
	return Message{ID: uuid.New().String(), Type: typ, Settings: s}
}

// Response answers a Message with the same ID.
type Response struct {
	ID       string         `json:"id"`
	Success  bool           `json:"success"`
	Settings map[string]any `json:"settings,omitempty"`
	// Problems lists keys dropped or reset during normalization.
	Problems []string `json:"problems,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// EndscreenEvent is the cross-context signal for a mid-session toggle of
// overlay suppression.
type EndscreenEvent struct {
	BlockEndscreen bool `json:"blockEndscreen"`
}

// FlagWriter persists the synchronous local flag mirror.
type FlagWriter interface {
	WriteLocalFlags(ctx context.Context, flags map[string]string) error
}

// Status is the transient result of the last storage call.
type Status struct {
	OK      bool      `json:"ok"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type Config struct {
	Store    settings.Store
	Snapshot *settings.Snapshot
	Logger   *log.Logger
	Clock    func() time.Time
	// StatusTTL is how long a failure stays visible.
	StatusTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		Logger:    log.Default(),
		Clock:     time.Now,
		StatusTTL: 3 * time.Second,
	}
}

type hub[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (h *hub[T]) add(fn func(T)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = make(map[int]func(T))
	}
	id := h.next
	h.next++
	h.fns[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.fns, id)
		h.mu.Unlock()
	}
}

func (h *hub[T]) emit(v T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.fns))
	for _, fn := range h.fns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// Bridge applies settings updates in a fixed order: normalize, swap the
// snapshot, write local flags, broadcast, and signal overlay toggles.
type Bridge struct {
	store    settings.Store
	snapshot *settings.Snapshot
	logger   *log.Logger
	clock    func() time.Time
	ttl      time.Duration

	mu     sync.Mutex // serializes apply
	flags  []FlagWriter
	status Status

	subs      hub[settings.Settings]
	endscreen hub[EndscreenEvent]
	unwatch   func()
}

func New(cfg Config) *Bridge {
	def := DefaultConfig()
	if cfg.Store == nil {
		cfg.Store = settings.NewMemoryStore(settings.Defaults())
	}
	if cfg.Snapshot == nil {
		cfg.Snapshot = settings.NewSnapshot(settings.Defaults())
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = def.StatusTTL
	}
	return &Bridge{
		store:    cfg.Store,
		snapshot: cfg.Snapshot,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		ttl:      cfg.StatusTTL,
		status:   Status{OK: true},
	}
}

// Snapshot returns the live settings holder.
func (b *Bridge) Snapshot() *settings.Snapshot { return b.snapshot }

// Current returns the live settings.
func (b *Bridge) Current() settings.Settings { return b.snapshot.Load() }

// AddFlagWriter registers a local flag mirror, typically a page.
func (b *Bridge) AddFlagWriter(w FlagWriter) {
	b.mu.Lock()
	b.flags = append(b.flags, w)
	b.mu.Unlock()
}

// Subscribe registers fn for every applied update.
func (b *Bridge) Subscribe(fn func(settings.Settings)) func() { return b.subs.add(fn) }

// OnEndscreen registers fn for overlay suppression toggles.
func (b *Bridge) OnEndscreen(fn func(EndscreenEvent)) func() { return b.endscreen.add(fn) }

// Start loads the stored settings into the snapshot and follows later
// writes to the store.
func (b *Bridge) Start(ctx context.Context) error {
	s, err := b.store.Get(ctx)
	if err != nil {
		b.fail(err)
		return fmt.Errorf("%w: load: %v", ErrStorage, err)
	}
	b.apply(ctx, s, true)
	b.unwatch = b.store.OnChanged(func(s settings.Settings) {
		b.apply(context.Background(), s, false)
	})
	return nil
}

// Close stops following the store.
func (b *Bridge) Close() {
	if b.unwatch != nil {
		b.unwatch()
		b.unwatch = nil
	}
}

// Handle processes msg asynchronously and calls reply exactly once when
// the store has answered. It returns an error only for messages it cannot
// route, in which case reply is never called.
func (b *Bridge) Handle(ctx context.Context, msg Message, reply func(Response)) error {
	if reply == nil {
		reply = func(Response) {}
	}
	switch msg.Type {
	case TypeGetSettings:
		go func() {
			s, err := b.store.Get(ctx)
			if err != nil {
				b.fail(err)
				reply(Response{ID: msg.ID, Error: fmt.Sprintf("%v: %v", ErrStorage, err)})
				return
			}
			b.ok()
			reply(Response{ID: msg.ID, Success: true, Settings: settings.ToMap(s)})
		}()
	case TypeSettingsUpdated:
		go func() {
			s, problems, err := b.Update(ctx, msg.Settings)
			resp := Response{ID: msg.ID, Problems: problemStrings(problems)}
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Success = true
				resp.Settings = settings.ToMap(s)
			}
			reply(resp)
		}()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return nil
}

// Update normalizes raw, persists it and applies it to the live session.
// A storage failure leaves the live session untouched and is not retried.
func (b *Bridge) Update(ctx context.Context, raw map[string]any) (settings.Settings, []error, error) {
	s, problems := settings.FromMap(raw)
	for _, p := range problems {
		b.logger.Printf("BRIDGE normalize: %v", p)
	}
	if err := b.store.Set(ctx, s); err != nil {
		b.fail(err)
		return s, problems, fmt.Errorf("%w: save: %v", ErrStorage, err)
	}
	b.ok()
	b.apply(ctx, s, false)
	return s, problems, nil
}

// apply installs s unless it is already live. Store change notifications
// and direct updates both land here, so duplicates are expected.
func (b *Bridge) apply(ctx context.Context, s settings.Settings, force bool) {
	s = settings.Normalize(s)
	b.mu.Lock()
	prev := b.snapshot.Load()
	if !force && prev == s {
		b.mu.Unlock()
		return
	}
	b.snapshot.Swap(s)
	flags := settings.LocalFlags(s)
	writers := append([]FlagWriter(nil), b.flags...)
	b.mu.Unlock()

	for _, w := range writers {
		if err := w.WriteLocalFlags(ctx, flags); err != nil {
			b.logger.Printf("BRIDGE local flags: %v", err)
		}
	}
	b.subs.emit(s)
	if prev.BlockEndscreen != s.BlockEndscreen {
		b.endscreen.emit(EndscreenEvent{BlockEndscreen: s.BlockEndscreen})
	}
}

func (b *Bridge) fail(err error) {
	b.logger.Printf("BRIDGE storage: %v", err)
	b.mu.Lock()
	b.status = Status{OK: false, Message: err.Error(), At: b.clock()}
	b.mu.Unlock()
}

func (b *Bridge) ok() {
	b.mu.Lock()
	b.status = Status{OK: true, At: b.clock()}
	b.mu.Unlock()
}

// Status returns the last storage outcome. Failures expire after the
// configured TTL.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.status
	if !st.OK && b.clock().Sub(st.At) > b.ttl {
		return Status{OK: true, At: st.At}
	}
	return st
}

func problemStrings(errs []error) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
