package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Oudwins/walletgate/internals/naming"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/wallets"
)

type listScreen struct {
	names         []string
	cursor        int
	confirmDelete bool
}

func newListScreen(a *App) *listScreen {
	l := &listScreen{}
	l.reload(a)
	return l
}

func (l *listScreen) reload(a *App) {
	ctx, cancel := a.commandContext()
	defer cancel()
	names, err := a.svc.List(ctx)
	if err != nil {
		a.fail("wallet-list", err)
		return
	}
	l.names = names
	if l.cursor >= len(l.names) {
		l.cursor = max(len(l.names)-1, 0)
	}
}

func (l *listScreen) selected() (string, bool) {
	if len(l.names) == 0 {
		return "", false
	}
	return l.names[l.cursor], true
}

func (l *listScreen) id() tasky.ScreenID { return "" }

func (l *listScreen) busy() bool { return false }

func (l *listScreen) detach() {}

func (l *listScreen) recreate(a *App) screen {
	copied := *l
	copied.names = append([]string(nil), l.names...)
	return &copied
}

func (l *listScreen) update(a *App, msg tea.KeyMsg) tea.Cmd {
	if l.confirmDelete {
		l.confirmDelete = false
		if msg.String() == "y" {
			l.delete(a)
		}
		return nil
	}

	switch msg.String() {
	case "up", "k":
		if l.cursor > 0 {
			l.cursor--
		}
	case "down", "j":
		if l.cursor < len(l.names)-1 {
			l.cursor++
		}
	case "r":
		l.reload(a)
	case "n":
		a.show(newNewWalletScreen(a, newWalletValues{suggested: naming.NewWalletName(l.names)}))
	case "enter", "o":
		if name, ok := l.selected(); ok {
			a.show(newOpenPrompt(a, tasky.NewScreenID(wallets.KindOpenWallet), name, ""))
		}
	case "s":
		if name, ok := l.selected(); ok {
			a.show(newSeedPrompt(a, tasky.NewScreenID(wallets.KindShowSeed), name, ""))
		}
	case "d":
		if _, ok := l.selected(); ok {
			l.confirmDelete = true
		}
	case "q":
		return a.quit()
	}
	return nil
}

func (l *listScreen) delete(a *App) {
	name, ok := l.selected()
	if !ok {
		return
	}
	ctx, cancel := a.commandContext()
	defer cancel()
	if err := a.svc.Delete(ctx, name); err != nil {
		a.fail("delete-wallet", err)
	}
	if a.opened == name {
		a.opened = ""
	}
	l.reload(a)
}

func (l *listScreen) view(a *App) string {
	var b strings.Builder
	if len(l.names) == 0 {
		b.WriteString("No wallets yet.\n")
	}
	for i, name := range l.names {
		if i == l.cursor {
			b.WriteString(selectedStyle.Render("> "+name) + "\n")
			continue
		}
		b.WriteString("  " + name + "\n")
	}
	b.WriteString("\n")
	if name, ok := l.selected(); ok && l.confirmDelete {
		b.WriteString(fmt.Sprintf("Delete wallet %q? If your wallet has funds, make sure you have its seed. (y/n)", name))
		return b.String()
	}
	b.WriteString(helpStyle.Render("Enter: open  n: new  s: show seed  d: delete  r: reload  q: quit"))
	return b.String()
}
