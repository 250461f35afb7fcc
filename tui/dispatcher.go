package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// drainMsg makes Update run whatever was posted to the dispatch loop. The
// bubbletea event loop is the UI dispatch context.
type drainMsg struct{}

// pump turns loop wakeups into drain messages. Send must not be called from
// Update, so this runs on its own goroutine.
func (a *App) pump(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.loop.Ready():
			send(drainMsg{})
		}
	}
}
