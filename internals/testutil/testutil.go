package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Oudwins/walletgate/internals/dispatch"
	"github.com/Oudwins/walletgate/internals/failure"
)

const WaitTimeout = 2 * time.Second

func TempDBPath(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	return filepath.Join(root, "wallets.db")
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// StartLoop runs a dispatch loop for the duration of the test.
func StartLoop(t *testing.T) *dispatch.Loop {
	t.Helper()
	loop := dispatch.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

// OnLoop runs fn on the loop and waits for it.
func OnLoop(t *testing.T, loop *dispatch.Loop, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), WaitTimeout)
	defer cancel()
	if err := loop.Sync(ctx, fn); err != nil {
		t.Fatalf("dispatch loop: %v", err)
	}
}

func Wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(WaitTimeout):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(WaitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// Surface records what the core asked a surface to do.
type Surface struct {
	mu           sync.Mutex
	notices      []*failure.UserError
	dismissed    int
	inputEnabled bool
	inputChanges []bool
	closed       chan struct{}
	noticed      chan struct{}
}

func NewSurface() *Surface {
	return &Surface{
		inputEnabled: true,
		closed:       make(chan struct{}),
		noticed:      make(chan struct{}, 16),
	}
}

func (s *Surface) Notify(err *failure.UserError) {
	s.mu.Lock()
	s.notices = append(s.notices, err)
	s.mu.Unlock()
	select {
	case s.noticed <- struct{}{}:
	default:
	}
}

func (s *Surface) Dismiss() {
	s.mu.Lock()
	s.dismissed++
	first := s.dismissed == 1
	s.mu.Unlock()
	if first {
		close(s.closed)
	}
}

func (s *Surface) SetInputEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputEnabled = enabled
	s.inputChanges = append(s.inputChanges, enabled)
}

// Closed is closed on the first Dismiss.
func (s *Surface) Closed() <-chan struct{} { return s.closed }

// Noticed receives a value for every Notify.
func (s *Surface) Noticed() <-chan struct{} { return s.noticed }

func (s *Surface) Notices() []*failure.UserError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*failure.UserError(nil), s.notices...)
}

func (s *Surface) Dismissed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissed
}

func (s *Surface) InputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputEnabled
}

func (s *Surface) InputChanges() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.inputChanges...)
}

// Fatals collects errors handed to a runner's fatal handler.
type Fatals struct {
	mu   sync.Mutex
	errs []error
	hit  chan struct{}
}

func NewFatals() *Fatals {
	return &Fatals{hit: make(chan struct{}, 16)}
}

func (f *Fatals) Handle(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
	select {
	case f.hit <- struct{}{}:
	default:
	}
}

func (f *Fatals) Hit() <-chan struct{} { return f.hit }

func (f *Fatals) Errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}
