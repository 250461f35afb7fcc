package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/walletlib"
	"github.com/Oudwins/walletgate/internals/wallets"
)

// createScreen shows or asks for the seed, then runs the create task.
type createScreen struct {
	sid     tasky.ScreenID
	state   *tasky.State[walletlib.Wallet]
	draft   wallets.Draft
	seed    textinput.Model
	surface *surface
	binding *tasky.Binding[walletlib.Wallet]
	since   time.Time
}

func newCreateScreen(a *App, sid tasky.ScreenID, draft wallets.Draft, seed string) *createScreen {
	state, err := a.svc.CreateState(sid)
	if err != nil {
		a.runner.Abort(string(sid), err)
		state = tasky.NewState[walletlib.Wallet](string(sid))
	}

	input := textinput.New()
	input.Prompt = "Seed: "
	input.CharLimit = 0
	input.SetValue(seed)
	input.Focus()

	c := &createScreen{sid: sid, state: state, draft: draft, seed: input}
	c.surface = newSurface(a, a.leave)
	if state.Phase() != tasky.NotStarted {
		c.bind(a)
	}
	return c
}

func (c *createScreen) generated() bool { return c.draft.Seed != "" }

// bind attaches this instance. The first attachment starts the task.
func (c *createScreen) bind(a *App) {
	task := a.svc.CreateTask(c.draft, func() string { return c.seed.Value() }, func(w walletlib.Wallet) {
		a.opened = w.Name
		a.logger.Info("Wallet created", slog.String("wallet", w.Name))
	})
	c.since = time.Now()
	c.binding = tasky.Attach(a.runner, a.loop, c.state, c.surface, task)
}

func (c *createScreen) id() tasky.ScreenID { return c.sid }

func (c *createScreen) busy() bool { return c.state.Phase() == tasky.Running }

func (c *createScreen) busySince() time.Time { return c.since }

func (c *createScreen) detach() {
	if c.binding != nil {
		c.binding.Detach()
	}
}

func (c *createScreen) recreate(a *App) screen {
	next := newCreateScreen(a, c.sid, c.draft, c.seed.Value())
	next.since = c.since
	return next
}

func (c *createScreen) update(a *App, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.leave()
		return nil
	case "enter":
		if c.state.Phase() == tasky.NotStarted {
			c.bind(a)
		}
		return nil
	}
	if c.generated() || c.busy() {
		return nil
	}
	var cmd tea.Cmd
	c.seed, cmd = c.seed.Update(msg)
	return cmd
}

func (c *createScreen) view(a *App) string {
	var lines []string
	if c.generated() {
		lines = append(lines,
			fmt.Sprintf("Seed for %q. Write it down and keep it somewhere safe:", c.draft.Name),
			"",
			seedStyle.Render(wrapWords(c.seed.Value(), 6)),
		)
	} else {
		lines = append(lines,
			fmt.Sprintf("Please enter the seed phrase of %q:", c.draft.Name),
			"",
			c.seed.View(),
		)
	}
	lines = append(lines, "", helpStyle.Render("Enter: create  Esc: cancel"))
	return strings.Join(lines, "\n")
}

func wrapWords(s string, perLine int) string {
	words := strings.Fields(s)
	var lines []string
	for len(words) > perLine {
		lines = append(lines, strings.Join(words[:perLine], " "))
		words = words[perLine:]
	}
	lines = append(lines, strings.Join(words, " "))
	return strings.Join(lines, "\n")
}
