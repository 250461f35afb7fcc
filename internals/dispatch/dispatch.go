// Package dispatch provides the single UI dispatch context. Every surface
// interaction runs on it; background work hands results back with Post.
package dispatch

import (
	"context"
	"sync"
)

type Dispatcher interface {
	// Post schedules fn on the dispatch context. It never blocks on fn.
	Post(fn func())
}

// Func adapts a function to Dispatcher.
type Func func(fn func())

func (f Func) Post(fn func()) { f(fn) }

// Loop is a FIFO dispatch context driven by whichever goroutine calls Run.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
}

func NewLoop() *Loop {
	return &Loop{signal: make(chan struct{}, 1)}
}

func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signalLocked()
}

// Run executes posted functions in order until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		}
	}
}

// Sync posts fn and waits until it ran. Everything posted before fn has
// run by the time Sync returns. Must not be called from the loop itself.
func (l *Loop) Sync(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain runs queued functions on the calling goroutine until the queue is
// empty and returns how many ran. It lets a host with its own event loop
// act as the dispatch context instead of calling Run.
func (l *Loop) Drain() int {
	ran := 0
	for {
		fn, ok := l.next()
		if !ok {
			return ran
		}
		fn()
		ran++
	}
}

// Ready receives a value after Post. Wakeups coalesce.
func (l *Loop) Ready() <-chan struct{} { return l.signal }

// Pending reports how many functions are waiting to run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) signalLocked() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}
