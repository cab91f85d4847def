// Package settings holds the current capture ParameterSet and tells
// listeners when it changes.
package settings

import (
	"sync"

	"github.com/cjeanneret/CamGo/internal/camerr"
	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// Reporter receives rejected writes so the UI can react to them.
type Reporter interface {
	ReportError(err error)
}

// Store owns the current ParameterSet. Many goroutines may read it; writes
// go through Set, ApplyPreset and Reset only.
//
// Notifications carry no payload: a listener re-reads Current() when woken.
type Store struct {
	mu       sync.RWMutex
	current  params.ParameterSet
	version  uint64
	reporter Reporter

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// NewStore creates a store holding initial. r may be nil.
func NewStore(initial params.ParameterSet, r Reporter) *Store {
	return &Store{
		current:  initial.Clone(),
		reporter: r,
		subs:     make(map[chan struct{}]struct{}),
	}
}

// Current returns a copy of the current parameters.
func (s *Store) Current() params.ParameterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Snapshot returns a copy of the current parameters together with the
// number of committed mutations so far.
func (s *Store) Snapshot() (params.ParameterSet, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone(), s.version
}

// Version returns the number of committed mutations.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set writes one field. An invalid value is rejected with a VALIDATION
// error, reported once, and the store is left unchanged. A valid write
// notifies listeners exactly once.
func (s *Store) Set(f params.Field, v any) error {
	s.mu.Lock()
	next, err := s.current.With(f, v)
	if err != nil {
		s.mu.Unlock()
		verr := &camerr.Error{Kind: camerr.KindValidation, Op: "set", Axis: f.String(), Err: err}
		debug.Live("Settings: rejected %s=%v: %v", f, v, err)
		if s.reporter != nil {
			s.reporter.ReportError(verr)
		}
		return verr
	}
	s.current = next
	s.version++
	s.mu.Unlock()

	debug.Verbose("Settings: %s = %v", f, v)
	s.notify()
	return nil
}

// ApplyPreset applies the named scene atomically and notifies once. An
// unknown name restores the full defaults and returns false.
func (s *Store) ApplyPreset(name string) bool {
	s.mu.Lock()
	next, ok := params.Apply(name, s.current)
	s.current = next
	s.version++
	s.mu.Unlock()

	if ok {
		debug.Live("Settings: scene %q applied", name)
	} else {
		debug.Live("Settings: unknown scene %q, restored defaults", name)
	}
	s.notify()
	return ok
}

// Reset restores the defaults and notifies once.
func (s *Store) Reset() {
	s.mu.Lock()
	s.current = params.Default()
	s.version++
	s.mu.Unlock()

	debug.Live("Settings: reset to defaults")
	s.notify()
}

// Validate reports whether the current parameters satisfy every bound.
func (s *Store) Validate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Valid()
}

// Subscribe returns a change channel and a cancel function that closes it.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
			// full: a pending notification already tells the listener to re-read
		}
	}
}
