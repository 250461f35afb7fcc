// Package passgate wraps a password-consuming operation so that a wrong
// password leaves the prompt open for another attempt. Each attempt runs as
// its own tasky task.
package passgate

import (
	"context"
	"fmt"
	"sync"

	"github.com/Oudwins/walletgate/internals/assert"
	"github.com/Oudwins/walletgate/internals/dispatch"
	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/tasky"
)

type Status int32

const (
	Idle Status = iota
	Verifying
	Succeeded
	FailedRetryable
	FailedFatal
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Verifying:
		return "verifying"
	case Succeeded:
		return "succeeded"
	case FailedRetryable:
		return "failed_retryable"
	case FailedFatal:
		return "failed_fatal"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Accepting reports whether a new password may be submitted.
func (s Status) Accepting() bool {
	return s == Idle || s == FailedRetryable
}

// Surface is a password prompt.
type Surface interface {
	tasky.Surface
	SetInputEnabled(enabled bool)
}

type VerifyFunc[T any] func(ctx context.Context, password string) (T, error)

type Config[T any] struct {
	Label  string
	Verify VerifyFunc[T]
	// Validate runs on the UI dispatch context before any work is
	// scheduled. Defaults to rejecting an empty password.
	Validate func(password string) error
	// Rules that make a verification failure retryable. Defaults to the
	// library's invalid password signature.
	Rules []failure.Rule
	// Inline runs Verify on the calling goroutine.
	Inline bool
}

func RequirePassword(password string) error {
	if password == "" {
		return failure.NewTransient(messages.EnterPassword)
	}
	return nil
}

// Gate is the state of one password prompt. It lives in the arena next to
// the logical screen and outlives the surfaces bound to it.
type Gate[T any] struct {
	cfg Config[T]

	mu        sync.Mutex
	status    Status
	attempts  int
	current   *tasky.State[T]
	discarded bool
}

func New[T any](cfg Config[T]) *Gate[T] {
	assert.Assert(cfg.Verify != nil, "passgate: Verify is required", cfg.Label)
	if cfg.Validate == nil {
		cfg.Validate = RequirePassword
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = []failure.Rule{failure.InvalidPassword}
	}
	if cfg.Label == "" {
		cfg.Label = "password"
	}
	return &Gate[T]{cfg: cfg}
}

func (g *Gate[T]) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Attempts counts submissions that got past validation.
func (g *Gate[T]) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}

func (g *Gate[T]) Report() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("%s attempts=%d", g.status, g.attempts)
}

// Discard drops the in-flight attempt's result. Implements tasky.Discarder.
func (g *Gate[T]) Discard() {
	g.mu.Lock()
	g.discarded = true
	current := g.current
	g.mu.Unlock()
	if current != nil {
		current.Discard()
	}
}

func (g *Gate[T]) setStatus(status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

// pending reports whether the current attempt has not reached a prompt yet.
// Its status is already published but its notice is still queued.
func (g *Gate[T]) pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingLocked()
}

func (g *Gate[T]) pendingLocked() bool {
	return g.current != nil && !g.current.Consumed()
}

// begin reserves a new attempt. It fails while another attempt is in flight
// or undelivered, and once the gate reached a terminal status.
func (g *Gate[T]) begin() (*tasky.State[T], bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.discarded || !g.status.Accepting() || g.pendingLocked() {
		return nil, false
	}
	g.attempts++
	g.status = Verifying
	g.current = tasky.NewState[T](fmt.Sprintf("%s#%d", g.cfg.Label, g.attempts))
	return g.current, true
}

func (g *Gate[T]) work(password string) tasky.WorkFunc[T] {
	return func(ctx context.Context) (result T, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				g.setStatus(FailedFatal)
				panic(recovered)
			}
		}()
		result, err = g.cfg.Verify(ctx, password)
		switch {
		case err == nil:
			g.setStatus(Succeeded)
		case isClassified(err, g.cfg.Rules):
			g.setStatus(FailedRetryable)
		default:
			g.setStatus(FailedFatal)
		}
		return result, err
	}
}

func isClassified(err error, rules []failure.Rule) bool {
	_, ok := failure.Classify(err, rules...)
	return ok
}

// Bind attaches surface to the gate. An attempt that is still running, or
// finished while no surface was attached, is delivered to this surface.
// Must be called on the UI dispatch context.
func (g *Gate[T]) Bind(r *tasky.Runner, d dispatch.Dispatcher, surface Surface, onSuccess func(T)) *Binding[T] {
	b := &Binding[T]{
		gate:       g,
		runner:     r,
		dispatcher: d,
		surface:    surface,
		onSuccess:  onSuccess,
	}

	g.mu.Lock()
	status, current := g.status, g.current
	g.mu.Unlock()

	surface.SetInputEnabled(status.Accepting())
	if current != nil && current.Phase() != tasky.NotStarted && !current.Consumed() {
		b.follow(current)
	}
	return b
}

// Binding is one surface instance of a password prompt.
type Binding[T any] struct {
	gate       *Gate[T]
	runner     *tasky.Runner
	dispatcher dispatch.Dispatcher
	surface    Surface
	onSuccess  func(T)

	attempt *tasky.Binding[T]
}

// Submit checks password and, when it passes validation, starts a
// verification attempt. It returns the gate status after the call; a
// rejected password yields FailedRetryable without scheduling any work.
// While the previous attempt is still on its way to the prompt the
// password is ignored and Submit reports Verifying.
// Must be called on the UI dispatch context.
func (b *Binding[T]) Submit(password string) Status {
	g := b.gate
	if status := g.Status(); !status.Accepting() {
		return status
	}
	if g.pending() {
		return Verifying
	}

	if err := g.cfg.Validate(password); err != nil {
		userErr, ok := failure.Classify(err, g.cfg.Rules...)
		if !ok {
			g.setStatus(FailedFatal)
			b.runner.Abort(g.cfg.Label, err)
			return FailedFatal
		}
		g.setStatus(FailedRetryable)
		b.surface.Notify(userErr)
		b.surface.SetInputEnabled(true)
		return FailedRetryable
	}

	state, ok := g.begin()
	if !ok {
		if g.pending() {
			return Verifying
		}
		return g.Status()
	}
	b.surface.SetInputEnabled(false)
	tasky.Start(b.runner, state, b.task(password))
	b.follow(state)
	return g.Status()
}

func (b *Binding[T]) task(password string) tasky.Task[T] {
	return tasky.Task[T]{
		Work:   b.gate.work(password),
		Rules:  b.gate.cfg.Rules,
		Inline: b.gate.cfg.Inline,
	}
}

// follow subscribes this surface to state without starting it.
func (b *Binding[T]) follow(state *tasky.State[T]) {
	if b.attempt != nil {
		b.attempt.Detach()
	}
	adapter := &attemptSurface[T]{binding: b}
	b.attempt = tasky.Attach(b.runner, b.dispatcher, state, adapter, tasky.Task[T]{
		PostExecute: adapter.succeeded,
	})
}

// Detach stops delivery to this surface instance. A running attempt keeps
// going and is delivered to the next bound surface.
func (b *Binding[T]) Detach() {
	if b.attempt != nil {
		b.attempt.Detach()
	}
}

// attemptSurface sits between one attempt and the prompt: a retryable
// failure re-enables input instead of closing the prompt.
type attemptSurface[T any] struct {
	binding *Binding[T]
	failed  bool
}

func (a *attemptSurface[T]) succeeded(result T) {
	if a.binding.onSuccess != nil {
		a.binding.onSuccess(result)
	}
}

func (a *attemptSurface[T]) Notify(err *failure.UserError) {
	a.failed = true
	a.binding.surface.Notify(err)
	a.binding.surface.SetInputEnabled(true)
}

func (a *attemptSurface[T]) Dismiss() {
	if a.failed {
		return
	}
	a.binding.surface.Dismiss()
}
