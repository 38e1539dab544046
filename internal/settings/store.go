package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

// Store is the persisted settings service.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Set(ctx context.Context, s Settings) error
	// OnChanged registers fn for every successful Set. The returned func
	// removes the registration. A FileStore under Watch also reports writes
	// made by other processes.
	OnChanged(fn func(Settings)) func()
}

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Settings)
}

func (l *listeners) add(fn func(Settings)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Settings))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) notify(s Settings) {
	l.mu.Lock()
	fns := make([]func(Settings), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// FileStore keeps settings in a TOML file. Writers across processes are
// serialized with a lock file next to it.
type FileStore struct {
	path string
	lock *flock.Flock
	subs listeners
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s := Defaults()
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", f.path, err)
	}
	return Normalize(s), nil
}

func (f *FileStore) Set(ctx context.Context, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s = Normalize(s)
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("settings dir: %w", err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock settings: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	f.subs.notify(s)
	return nil
}

func (f *FileStore) OnChanged(fn func(Settings)) func() { return f.subs.add(fn) }

// WatchInterval is how often Watch polls, from TUBEGUARD_SETTINGS_POLL when
// set.
func WatchInterval() time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(os.Getenv("TUBEGUARD_SETTINGS_POLL"))); err == nil && d > 0 {
		return d
	}
	return time.Second
}

// Watch takes the file's current contents as a baseline, then polls in the
// background until ctx is done. Whenever the contents change, including
// writes by another process, OnChanged listeners get the parsed value. A
// file that does not parse is skipped until the next change.
func (f *FileStore) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = WatchInterval()
	}
	last := f.contents()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			cur := f.contents()
			if bytes.Equal(cur, last) {
				continue
			}
			last = cur
			s, err := f.Get(ctx)
			if err != nil {
				continue
			}
			f.subs.notify(s)
		}
	}()
}

// contents is nil for a missing or unreadable file.
func (f *FileStore) contents() []byte {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil
	}
	return data
}

// MemoryStore is an in-process Store. Fail, when set, is returned by every
// call instead of touching the value.
type MemoryStore struct {
	mu   sync.Mutex
	v    Settings
	Fail error
	subs listeners
}

func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{v: initial}
}

func (m *MemoryStore) Get(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return Settings{}, m.Fail
	}
	return m.v, nil
}

func (m *MemoryStore) Set(ctx context.Context, s Settings) error {
	m.mu.Lock()
	if m.Fail != nil {
		err := m.Fail
		m.mu.Unlock()
		return err
	}
	m.v = Normalize(s)
	v := m.v
	m.mu.Unlock()
	m.subs.notify(v)
	return nil
}

func (m *MemoryStore) OnChanged(fn func(Settings)) func() { return m.subs.add(fn) }
