package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Oudwins/walletgate/internals/conf"
	"github.com/Oudwins/walletgate/internals/dispatch"
	"github.com/Oudwins/walletgate/internals/env"
	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/logger"
	"github.com/Oudwins/walletgate/internals/server"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/timeouts"
	"github.com/Oudwins/walletgate/internals/walletlib/daemon"
	"github.com/Oudwins/walletgate/internals/wallets"
	"github.com/Oudwins/walletgate/tui"
	"github.com/spf13/cobra"
)

// session holds what one command invocation needs. Non-interactive
// commands run their tasks through the same runner and dispatch loop the
// screens use; the command goroutine drives the loop one round at a time.
type session struct {
	cfg    *conf.Config
	logger *slog.Logger
	lib    *daemon.Daemon
	svc    *wallets.Service
	runner *tasky.Runner
	loop   *dispatch.Loop
	out    io.Writer
	errOut io.Writer

	closers []func() error

	// Only touched on the loop.
	stop  context.CancelFunc
	fatal error
}

func openSession(cmd *cobra.Command, flags *rootFlags) (*session, error) {
	ctx := cmd.Context()
	e, err := env.Parse()
	if err != nil {
		return nil, err
	}
	if flags.dataDir != "" {
		e.DATA_DIR = flags.dataDir
	}
	cfg, err := conf.Load(e)
	if err != nil {
		return nil, err
	}

	log, logFile, err := logger.Init(logger.Options{
		Path:    cfg.LogPath(),
		Level:   cfg.Log.Level,
		Verbose: flags.verbose,
	})
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:     cfg,
		logger:  log,
		loop:    dispatch.NewLoop(),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		closers: []func() error{logFile.Close},
	}

	openCtx, cancel := context.WithTimeout(ctx, timeouts.OpenLibrary)
	defer cancel()
	lib, err := daemon.Open(openCtx, daemon.Config{
		Path:    cfg.DBPath(),
		ScryptN: cfg.Wallets.ScryptN,
		Logger:  log,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open wallet library: %w", err)
	}
	s.lib = lib
	s.closers = append([]func() error{lib.Close}, s.closers...)

	s.svc = wallets.NewService(wallets.Config{Library: lib, Logger: log})
	s.runner = tasky.NewRunner(tasky.RunnerConfig{
		Logger: log,
		Fatal: func(err error) {
			s.loop.Post(func() {
				s.fatal = err
				s.stopRound()
			})
		},
	})

	if cfg.Debug.Addr != "" {
		if _, err := server.New(s.svc.Arena(), log).Start(ctx, cfg.Debug.Addr); err != nil {
			log.Warn("Inspector not started", slog.String("addr", cfg.Debug.Addr), slog.String("error", err.Error()))
		}
	}

	log.Debug("Session opened", slog.String("command", cmd.CommandPath()), slog.String("data_dir", cfg.DataDir))
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// round posts start to the loop and runs the loop until a surface stops it,
// the runner reports a fatal failure or ctx is done.
func (s *session) round(ctx context.Context, start func()) error {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.loop.Post(func() {
		s.stop = cancel
		start()
	})
	_ = s.loop.Run(roundCtx)
	s.stop = nil
	if s.fatal != nil {
		return &FatalError{Err: s.fatal}
	}
	return ctx.Err()
}

// console is the surface of a non-interactive command.
type console struct {
	session   *session
	failure   *failure.UserError
	dismissed bool
}

func (s *session) console() *console {
	return &console{session: s}
}

func (c *console) Notify(err *failure.UserError) {
	c.failure = err
	c.session.logger.Debug("Notice", slog.String("key", string(err.Key)), slog.String("hint", err.Hint.String()))
}

func (c *console) Dismiss() {
	c.dismissed = true
	c.session.stopRound()
}

// SetInputEnabled after a failure means the prompt wants another password.
func (c *console) SetInputEnabled(enabled bool) {
	if enabled && c.failure != nil {
		c.session.stopRound()
	}
}

func (c *console) reset() {
	c.failure = nil
	c.dismissed = false
}

func (s *session) stopRound() {
	if s.stop != nil {
		s.stop()
	}
}

func runTUI(cmd *cobra.Command, flags *rootFlags) error {
	s, err := openSession(cmd, flags)
	if err != nil {
		return err
	}
	defer s.Close()
	return tui.Run(cmd.Context(), tui.Config{
		Service:       s.svc,
		Logger:        s.logger,
		ProgressDelay: s.cfg.ProgressDelay(),
	})
}
