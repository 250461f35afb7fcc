package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Oudwins/walletgate/internals/passgate"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/walletlib"
)

// promptScreen is a password prompt over a gate kept in the arena.
type promptScreen[T any] struct {
	sid     tasky.ScreenID
	title   string
	gate    *passgate.Gate[T]
	binding *passgate.Binding[T]
	input   textinput.Model
	surface *surface
	since   time.Time
	// next is set on success and shown once the prompt is dismissed.
	next    screen
	rebuild func(a *App, typed string) screen
}

func newPrompt[T any](a *App, sid tasky.ScreenID, title string, gate *passgate.Gate[T], typed string, onSuccess func(a *App, result T) screen) *promptScreen[T] {
	input := textinput.New()
	input.Prompt = "Password: "
	input.EchoMode = textinput.EchoPassword
	input.SetValue(typed)
	input.Focus()

	p := &promptScreen[T]{sid: sid, title: title, gate: gate, input: input}
	p.surface = newSurface(a, func() {
		a.close(p.sid)
		if p.next != nil {
			a.show(p.next)
			return
		}
		a.show(newListScreen(a))
	})
	p.binding = gate.Bind(a.runner, a.loop, p.surface, func(result T) {
		p.next = onSuccess(a, result)
	})
	return p
}

func newOpenPrompt(a *App, sid tasky.ScreenID, wallet, typed string) screen {
	gate, err := a.svc.OpenGate(sid, wallet)
	if err != nil {
		a.runner.Abort(string(sid), err)
		return newListScreen(a)
	}
	p := newPrompt(a, sid, fmt.Sprintf("Open wallet %q", wallet), gate, typed, func(a *App, w walletlib.Wallet) screen {
		a.opened = w.Name
		a.logger.Info("Wallet opened", slog.String("wallet", w.Name))
		return nil
	})
	p.rebuild = func(a *App, typed string) screen { return newOpenPrompt(a, sid, wallet, typed) }
	return p
}

func newSeedPrompt(a *App, sid tasky.ScreenID, wallet, typed string) screen {
	gate, err := a.svc.SeedGate(sid, wallet)
	if err != nil {
		a.runner.Abort(string(sid), err)
		return newListScreen(a)
	}
	p := newPrompt(a, sid, fmt.Sprintf("Show seed of %q", wallet), gate, typed, func(a *App, seed string) screen {
		return &seedScreen{wallet: wallet, seed: seed}
	})
	p.rebuild = func(a *App, typed string) screen { return newSeedPrompt(a, sid, wallet, typed) }
	return p
}

func (p *promptScreen[T]) id() tasky.ScreenID { return p.sid }

func (p *promptScreen[T]) busy() bool { return p.gate.Status() == passgate.Verifying }

func (p *promptScreen[T]) busySince() time.Time { return p.since }

func (p *promptScreen[T]) detach() { p.binding.Detach() }

func (p *promptScreen[T]) recreate(a *App) screen {
	next := p.rebuild(a, p.input.Value())
	if prompt, ok := next.(*promptScreen[T]); ok {
		prompt.since = p.since
	}
	return next
}

func (p *promptScreen[T]) update(a *App, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.leave()
		return nil
	case "enter":
		if !p.surface.inputEnabled {
			return nil
		}
		password := p.input.Value()
		p.input.SetValue("")
		p.since = time.Now()
		p.binding.Submit(password)
		return nil
	}
	if !p.surface.inputEnabled {
		return nil
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

func (p *promptScreen[T]) view(a *App) string {
	lines := []string{p.title, "", p.input.View()}
	if p.gate.Attempts() > 0 && p.gate.Status() == passgate.FailedRetryable {
		lines = append(lines, "", fmt.Sprintf("Attempts: %d", p.gate.Attempts()))
	}
	lines = append(lines, "", helpStyle.Render("Enter: OK  Esc: cancel"))
	return strings.Join(lines, "\n")
}

type seedScreen struct {
	wallet string
	seed   string
}

func (s *seedScreen) id() tasky.ScreenID { return "" }

func (s *seedScreen) busy() bool { return false }

func (s *seedScreen) detach() {}

func (s *seedScreen) recreate(a *App) screen {
	copied := *s
	return &copied
}

func (s *seedScreen) update(a *App, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc":
		a.show(newListScreen(a))
	}
	return nil
}

func (s *seedScreen) view(a *App) string {
	return strings.Join([]string{
		fmt.Sprintf("Seed of %q", s.wallet),
		"",
		seedStyle.Render(wrapWords(s.seed, 6)),
		"",
		helpStyle.Render("Enter: done"),
	}, "\n")
}
