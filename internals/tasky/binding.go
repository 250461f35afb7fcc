package tasky

import (
	"sync/atomic"
	"weak"

	"github.com/Oudwins/walletgate/internals/dispatch"
	"github.com/Oudwins/walletgate/internals/failure"
)

// Surface is what the core needs from a UI surface. It is only ever called
// on the UI dispatch context.
type Surface interface {
	// Notify presents a user-facing failure, transient or modal per its hint.
	Notify(err *failure.UserError)
	// Dismiss closes the surface.
	Dismiss()
}

// Binding ties one surface instance to a task state. A new binding is made
// every time the surface is created or recreated; the state is shared.
// Callers keep the binding for as long as the surface is alive.
type Binding[T any] struct {
	state      *State[T]
	surface    Surface
	task       Task[T]
	dispatcher dispatch.Dispatcher

	first       bool
	delivered   bool
	detached    atomic.Bool
	unsubscribe func()
}

// Attach binds surface to state. The first attachment to a NotStarted
// state starts the task; every attachment subscribes to the terminal value.
// Must be called on the UI dispatch context.
func Attach[T any](r *Runner, d dispatch.Dispatcher, state *State[T], surface Surface, task Task[T]) *Binding[T] {
	b := &Binding[T]{
		state:      state,
		surface:    surface,
		task:       task,
		dispatcher: d,
	}
	if state.Phase() == NotStarted {
		b.first = Start(r, state, task)
	}
	// The state only keeps a weak pointer; the binding lives as long as
	// whoever owns the surface keeps it.
	ref := weak.Make(b)
	b.unsubscribe = state.subscribe(func(Outcome[T]) {
		if bound := ref.Value(); bound != nil {
			d.Post(bound.deliver)
		}
	})
	if b.detached.Load() {
		b.unsubscribe()
	}
	return b
}

// First reports whether this attachment started the task.
func (b *Binding[T]) First() bool { return b.first }

// Delivered reports whether this surface instance consumed the terminal value.
func (b *Binding[T]) Delivered() bool { return b.delivered }

func (b *Binding[T]) Phase() Phase { return b.state.Phase() }

// Detach stops delivery to this surface instance. An undelivered terminal
// value stays available for the next attachment.
func (b *Binding[T]) Detach() {
	if b.detached.Swap(true) || b.unsubscribe == nil {
		return
	}
	b.unsubscribe()
}

func (b *Binding[T]) deliver() {
	if b.detached.Load() || b.delivered {
		return
	}
	outcome, ok := b.state.consume()
	if !ok {
		return
	}
	b.delivered = true
	b.Detach()

	if outcome.Succeeded() {
		if b.task.PostExecute != nil {
			b.task.PostExecute(outcome.Result)
		}
	} else {
		b.surface.Notify(outcome.Failure)
	}
	b.surface.Dismiss()
}
