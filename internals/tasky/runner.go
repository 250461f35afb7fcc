package tasky

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/logbuf"
)

// ExitCodeFatal is the status the default fatal handler exits with.
const ExitCodeFatal = 70

type WorkFunc[T any] func(ctx context.Context) (T, error)

// Task describes one run-once operation. Work runs on a background
// goroutine and must not touch any surface; PreExecute and PostExecute run
// on the UI dispatch context.
type Task[T any] struct {
	// PreExecute runs before Work is scheduled. A user-facing error becomes
	// the terminal value and Work never runs.
	PreExecute func() error
	Work       WorkFunc[T]
	// PostExecute runs once, on success, on whichever surface is attached
	// when the result is delivered.
	PostExecute func(result T)
	// Rules classify library errors returned by Work or PreExecute.
	Rules []failure.Rule
	// Inline runs Work on the calling goroutine.
	Inline bool
}

type FatalHandler func(err error)

type RunnerConfig struct {
	Logger *slog.Logger
	// Fatal receives unclassified failures after they are logged. Defaults
	// to exiting the process.
	Fatal FatalHandler
}

type Runner struct {
	logger *slog.Logger
	fatal  FatalHandler
}

func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fatal := cfg.Fatal
	if fatal == nil {
		fatal = ExitOnFatal
	}
	return &Runner{logger: logger, fatal: fatal}
}

func ExitOnFatal(err error) {
	os.Exit(ExitCodeFatal)
}

// Start moves state from NotStarted to Running and schedules task.Work. It
// returns false, doing nothing, when the state already left NotStarted.
func Start[T any](r *Runner, state *State[T], task Task[T]) bool {
	if !state.begin() {
		return false
	}

	crumbs := logbuf.New(slog.String("screen", state.Label()))
	crumbs.Debug("task started")

	if task.PreExecute != nil {
		if err := task.PreExecute(); err != nil {
			if userErr, ok := failure.Classify(err, task.Rules...); ok {
				crumbs.Info("pre-execute rejected", slog.String("key", string(userErr.Key)))
				settle(r, state, Outcome[T]{Failure: userErr}, crumbs)
				return true
			}
			r.abort(err, crumbs)
			return true
		}
	}

	if task.Work == nil {
		r.abort(fmt.Errorf("task %q has no work", state.Label()), crumbs)
		return true
	}

	ctx := logbuf.WithContext(context.Background(), crumbs)
	if task.Inline {
		execute(ctx, r, state, task, crumbs)
	} else {
		go execute(ctx, r, state, task, crumbs)
	}
	return true
}

func execute[T any](ctx context.Context, r *Runner, state *State[T], task Task[T], crumbs *logbuf.Logger) {
	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			crumbs.Error("panic", slog.String("stack", string(debug.Stack())))
			r.abort(fmt.Errorf("panic: %v", recovered), crumbs)
		}
	}()

	result, err := task.Work(ctx)
	crumbs.Add(slog.Duration("duration", time.Since(started)))
	if err != nil {
		userErr, ok := failure.Classify(err, task.Rules...)
		if !ok {
			r.abort(err, crumbs)
			return
		}
		crumbs.Info("work failed", slog.String("key", string(userErr.Key)), slog.String("hint", userErr.Hint.String()))
		settle(r, state, Outcome[T]{Failure: userErr}, crumbs)
		return
	}
	settle(r, state, Outcome[T]{Result: result}, crumbs)
}

func settle[T any](r *Runner, state *State[T], outcome Outcome[T], crumbs *logbuf.Logger) {
	if !state.finish(outcome) {
		r.logger.Warn("task finished twice", slog.String("screen", state.Label()))
		return
	}
	result := "success"
	if !outcome.Succeeded() {
		result = "failure"
	}
	crumbs.Add(slog.String("outcome", result))
	r.logger.Debug("task finished", crumbs.Flush())
}

// Abort sends err down the fatal path for work that ran outside Start.
func (r *Runner) Abort(label string, err error) {
	r.abort(err, logbuf.New(slog.String("screen", label)))
}

// abort routes an unclassified failure to the fatal handler. The state
// stays Running: the operation never produces a terminal value.
func (r *Runner) abort(err error, crumbs *logbuf.Logger) {
	r.logger.Error("task failed with an unclassified error",
		slog.String("error", err.Error()),
		crumbs.Flush(),
	)
	r.fatal(&failure.Unclassified{Err: err})
}
