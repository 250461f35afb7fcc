// Package tui hosts the wallet screens in a bubbletea program. A terminal
// resize recreates the active screen, which re-binds to the state the arena
// keeps for it.
package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Oudwins/walletgate/internals/dispatch"
	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/timeouts"
	"github.com/Oudwins/walletgate/internals/wallets"
)

type Config struct {
	Service       *wallets.Service
	Logger        *slog.Logger
	ProgressDelay time.Duration
	// Fatal runs after the terminal has been restored. Defaults to exiting.
	Fatal tasky.FatalHandler
}

// screen is one logical screen as currently shown.
type screen interface {
	// id is the arena key of the screen's state, empty when it has none.
	id() tasky.ScreenID
	update(a *App, msg tea.KeyMsg) tea.Cmd
	view(a *App) string
	busy() bool
	// recreate returns a new instance of the same logical screen. The
	// receiver is detached first.
	recreate(a *App) screen
	detach()
}

type notice struct {
	text  string
	modal bool
}

type noticeExpiredMsg struct{ seq int }

type App struct {
	cfg    Config
	svc    *wallets.Service
	runner *tasky.Runner
	loop   *dispatch.Loop
	logger *slog.Logger

	screen    screen
	notice    *notice
	noticeSeq int
	spinner   spinner.Model
	spinning  bool
	opened    string
	width     int
	height    int
	quitting  bool
	pending   []tea.Cmd
}

func New(cfg Config, runner *tasky.Runner) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &App{
		cfg:     cfg,
		svc:     cfg.Service,
		runner:  runner,
		loop:    dispatch.NewLoop(),
		logger:  logger.With(slog.String("component", "tui")),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	a.screen = newListScreen(a)
	return a
}

// Run shows the wallet list until the user quits.
func Run(ctx context.Context, cfg Config) error {
	return run(ctx, cfg, tea.WithAltScreen(), tea.WithContext(ctx))
}

func run(ctx context.Context, cfg Config, opts ...tea.ProgramOption) error {
	fatal := cfg.Fatal
	if fatal == nil {
		fatal = tasky.ExitOnFatal
	}

	var (
		mu      sync.Mutex
		program *tea.Program
		failed  error
	)
	// The first unclassified failure stops the program; cfg.Fatal only sees
	// it once the program has shut down and restored the terminal.
	runner := tasky.NewRunner(tasky.RunnerConfig{
		Logger: cfg.Logger,
		Fatal: func(err error) {
			mu.Lock()
			if failed == nil {
				failed = err
			}
			running := program
			mu.Unlock()
			if running != nil {
				running.Kill()
			}
		},
	})
	recorded := func() error {
		mu.Lock()
		defer mu.Unlock()
		return failed
	}

	app := New(cfg, runner)
	mu.Lock()
	if failed == nil {
		program = tea.NewProgram(app, opts...)
	}
	mu.Unlock()
	if program == nil {
		err := recorded()
		fatal(err)
		return err
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go app.pump(pumpCtx, program.Send)

	_, err := program.Run()
	app.screen.detach()
	if stored := recorded(); stored != nil {
		fatal(stored)
		return stored
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) Init() tea.Cmd {
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case drainMsg:
		a.loop.Drain()
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.recreate()
	case noticeExpiredMsg:
		if a.notice != nil && !a.notice.modal && msg.seq == a.noticeSeq {
			a.notice = nil
		}
	case spinner.TickMsg:
		if !a.screen.busy() {
			a.spinning = false
			break
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.later(cmd)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, a.quit()
		}
		if a.notice != nil && a.notice.modal {
			switch msg.String() {
			case "enter", "esc":
				a.notice = nil
			}
			break
		}
		a.later(a.screen.update(a, msg))
	}

	if a.screen.busy() && !a.spinning {
		a.spinning = true
		a.later(a.spinner.Tick)
	}
	return a, a.flush()
}

func (a *App) View() string {
	if a.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("walletgate"))
	if a.opened != "" {
		b.WriteString("  " + openStyle.Render("open: "+a.opened))
	}
	b.WriteString("\n\n")
	b.WriteString(a.screen.view(a))
	if a.screen.busy() {
		b.WriteString("\n\n" + a.progress())
	}
	if a.notice != nil {
		b.WriteString("\n\n")
		if a.notice.modal {
			b.WriteString(modalStyle.Render(a.notice.text + "\n\n" + helpStyle.Render("Enter: OK")))
		} else {
			b.WriteString(transientStyle.Render(a.notice.text))
		}
	}
	return b.String()
}

func (a *App) progress() string {
	if since, ok := a.screen.(interface{ busySince() time.Time }); ok {
		if time.Since(since.busySince()) < a.cfg.ProgressDelay {
			return ""
		}
	}
	return a.spinner.View() + " " + messages.Text(messages.PleaseWait)
}

func (a *App) later(cmd tea.Cmd) {
	if cmd != nil {
		a.pending = append(a.pending, cmd)
	}
}

func (a *App) flush() tea.Cmd {
	cmds := a.pending
	a.pending = nil
	switch len(cmds) {
	case 0:
		return nil
	case 1:
		return cmds[0]
	default:
		return tea.Batch(cmds...)
	}
}

func (a *App) quit() tea.Cmd {
	a.quitting = true
	a.screen.detach()
	return tea.Quit
}

// show replaces the current surface without touching arena state.
func (a *App) show(next screen) {
	if a.screen != nil && a.screen != next {
		a.screen.detach()
	}
	a.screen = next
}

// close ends the logical screen: its state is dropped from the arena and
// work still running for it is never delivered.
func (a *App) close(id tasky.ScreenID) {
	if id != "" {
		a.svc.Close(id)
	}
}

// leave closes the current logical screen and goes back to the list.
func (a *App) leave() {
	a.close(a.screen.id())
	a.show(newListScreen(a))
}

func (a *App) recreate() {
	old := a.screen
	old.detach()
	a.screen = old.recreate(a)
	a.logger.Debug("Screen recreated", slog.String("screen", string(a.screen.id())))
}

func (a *App) notify(err *failure.UserError) {
	a.noticeSeq++
	a.notice = &notice{text: err.Text(), modal: err.Hint == failure.Modal}
	if !a.notice.modal {
		seq := a.noticeSeq
		a.later(tea.Tick(timeouts.Notice, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} }))
	}
}

// fail handles an error from a synchronous call made on the UI context:
// user-facing failures become notices, anything else is fatal.
func (a *App) fail(label string, err error) {
	if userErr, ok := failure.Classify(err); ok {
		a.notify(userErr)
		return
	}
	a.runner.Abort(label, err)
}

func (a *App) commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeouts.Command)
}
