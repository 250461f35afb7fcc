package tasky

// slot is a single-slot replay broadcast: it holds at most one value, hands
// it to every listener that subscribes while the value is unconsumed, and
// lets exactly one of them consume it. The owner serialises access.
type slot[V any] struct {
	value     V
	set       bool
	consumed  bool
	listeners map[uint64]func(V)
	nextID    uint64
}

// publish stores v and returns the listeners to notify. It reports false
// when a value was already published.
func (s *slot[V]) publish(v V) ([]func(V), bool) {
	if s.set {
		return nil, false
	}
	s.value = v
	s.set = true
	return s.snapshot(), true
}

// subscribe registers fn. replay is true when fn should be called right
// away with the retained value.
func (s *slot[V]) subscribe(fn func(V)) (id uint64, replay bool) {
	if s.listeners == nil {
		s.listeners = make(map[uint64]func(V))
	}
	s.nextID++
	id = s.nextID
	s.listeners[id] = fn
	return id, s.set && !s.consumed
}

func (s *slot[V]) unsubscribe(id uint64) {
	delete(s.listeners, id)
}

// consume marks the value as taken. Only the first call succeeds.
func (s *slot[V]) consume() bool {
	if !s.set || s.consumed {
		return false
	}
	s.consumed = true
	return true
}

func (s *slot[V]) reset() {
	s.listeners = nil
}

func (s *slot[V]) snapshot() []func(V) {
	if s.consumed || len(s.listeners) == 0 {
		return nil
	}
	fns := make([]func(V), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}
