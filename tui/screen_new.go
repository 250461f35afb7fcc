package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/wallets"
)

// newWalletValues is what survives a recreation of the form. suggested is
// used when the name is left empty.
type newWalletValues struct {
	name, password, confirm string
	suggested               string
	kind                    wallets.SeedKind
	focus                   int
}

type newWalletScreen struct {
	inputs    []textinput.Model
	focus     int
	kind      wallets.SeedKind
	suggested string
}

func newNewWalletScreen(a *App, values newWalletValues) *newWalletScreen {
	name := textinput.New()
	name.Prompt = "Name: "
	name.Placeholder = values.suggested
	name.SetValue(values.name)

	password := textinput.New()
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.SetValue(values.password)

	confirm := textinput.New()
	confirm.Prompt = "Confirm password: "
	confirm.EchoMode = textinput.EchoPassword
	confirm.SetValue(values.confirm)

	s := &newWalletScreen{
		inputs: []textinput.Model{name, password, confirm},
		focus:     values.focus,
		kind:      values.kind,
		suggested: values.suggested,
	}
	s.inputs[s.focus].Focus()
	return s
}

func (s *newWalletScreen) values() newWalletValues {
	return newWalletValues{
		name:      s.inputs[0].Value(),
		password:  s.inputs[1].Value(),
		confirm:   s.inputs[2].Value(),
		suggested: s.suggested,
		kind:      s.kind,
		focus:     s.focus,
	}
}

func (s *newWalletScreen) id() tasky.ScreenID { return "" }

func (s *newWalletScreen) busy() bool { return false }

func (s *newWalletScreen) detach() {}

func (s *newWalletScreen) recreate(a *App) screen {
	return newNewWalletScreen(a, s.values())
}

func (s *newWalletScreen) update(a *App, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.leave()
		return nil
	case "ctrl+r":
		if s.kind == wallets.CreateSeed {
			s.kind = wallets.RestoreSeed
		} else {
			s.kind = wallets.CreateSeed
		}
		return nil
	case "tab", "down":
		return s.moveFocus(1)
	case "shift+tab", "up":
		return s.moveFocus(-1)
	case "enter":
		if s.focus < len(s.inputs)-1 {
			return s.moveFocus(1)
		}
		s.submit(a)
		return nil
	}

	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return cmd
}

// submit validates synchronously; nothing runs in the background until the
// seed screen is confirmed.
func (s *newWalletScreen) submit(a *App) {
	values := s.values()
	if values.name == "" {
		values.name = values.suggested
	}
	ctx, cancel := a.commandContext()
	defer cancel()
	draft, err := a.svc.ValidateNewWallet(ctx, wallets.NewWalletForm{
		Name:     values.name,
		Password: values.password,
		Confirm:  values.confirm,
		Kind:     values.kind,
	})
	if err != nil {
		a.fail("new-wallet", err)
		return
	}
	a.show(newCreateScreen(a, tasky.NewScreenID(wallets.KindCreateWallet), draft, draft.Seed))
}

func (s *newWalletScreen) moveFocus(delta int) tea.Cmd {
	s.inputs[s.focus].Blur()
	count := len(s.inputs)
	s.focus = (s.focus + delta + count) % count
	return s.inputs[s.focus].Focus()
}

func (s *newWalletScreen) view(a *App) string {
	lines := []string{"New wallet", ""}
	for i, input := range s.inputs {
		marker := " "
		if i == s.focus {
			marker = ">"
		}
		lines = append(lines, fmt.Sprintf("%s %s", marker, input.View()))
	}
	lines = append(lines,
		fmt.Sprintf("  Seed: %s", s.kind),
		"",
		helpStyle.Render("Tab: next field  Ctrl+R: create/restore  Enter: next  Esc: cancel"),
	)
	return strings.Join(lines, "\n")
}
