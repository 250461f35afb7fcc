package tasky

import (
	"sync"
	"sync/atomic"
)

// State is the surface-independent record of one task. It outlives every
// surface bound to it and never references one.
type State[T any] struct {
	label string

	mu        sync.Mutex
	phase     atomic.Int32
	discarded bool
	outcome   slot[Outcome[T]]
}

func NewState[T any](label string) *State[T] {
	return &State[T]{label: label}
}

func (s *State[T]) Label() string { return s.label }

func (s *State[T]) Phase() Phase { return Phase(s.phase.Load()) }

func (s *State[T]) Report() string { return s.Phase().String() }

// Outcome returns the terminal value once the task finished.
func (s *State[T]) Outcome() (Outcome[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome.value, s.outcome.set
}

// Consumed reports whether a surface took the terminal value.
func (s *State[T]) Consumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome.consumed
}

func (s *State[T]) Discarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// Discard is called when the logical screen closes for good. Work still in
// flight finishes, but nothing is delivered anymore.
func (s *State[T]) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
	s.outcome.reset()
}

func (s *State[T]) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase.CompareAndSwap(int32(NotStarted), int32(Running))
}

// finish moves Running to Finished and notifies subscribers outside the lock.
func (s *State[T]) finish(outcome Outcome[T]) bool {
	s.mu.Lock()
	if !s.phase.CompareAndSwap(int32(Running), int32(Finished)) {
		s.mu.Unlock()
		return false
	}
	listeners, _ := s.outcome.publish(outcome)
	if s.discarded {
		listeners = nil
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(outcome)
	}
	return true
}

func (s *State[T]) subscribe(fn func(Outcome[T])) (unsubscribe func()) {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return func() {}
	}
	id, replay := s.outcome.subscribe(fn)
	value := s.outcome.value
	s.mu.Unlock()

	if replay {
		fn(value)
	}
	return func() {
		s.mu.Lock()
		s.outcome.unsubscribe(id)
		s.mu.Unlock()
	}
}

func (s *State[T]) consume() (Outcome[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || !s.outcome.consume() {
		var zero Outcome[T]
		return zero, false
	}
	return s.outcome.value, true
}
