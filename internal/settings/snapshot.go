package settings

import "sync/atomic"

// Snapshot holds the current Settings. There is one writer (the message
// bridge); readers always observe a complete value.
type Snapshot struct {
	v   atomic.Pointer[Settings]
	gen atomic.Uint64
}

func NewSnapshot(initial Settings) *Snapshot {
	s := &Snapshot{}
	s.Swap(initial)
	return s
}

func (s *Snapshot) Load() Settings {
	if p := s.v.Load(); p != nil {
		return *p
	}
	return Defaults()
}

// Swap replaces the value wholesale and returns the previous one.
func (s *Snapshot) Swap(next Settings) Settings {
	n := next
	prev := s.v.Swap(&n)
	s.gen.Add(1)
	if prev == nil {
		return Defaults()
	}
	return *prev
}

// Generation increments on every Swap.
func (s *Snapshot) Generation() uint64 { return s.gen.Load() }
