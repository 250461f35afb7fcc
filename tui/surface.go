package tui

import (
	"github.com/Oudwins/walletgate/internals/failure"
)

// surface is one instance of a screen as the task machinery sees it.
// Recreating a screen makes a new surface; the old one is never called
// again once its binding is detached.
type surface struct {
	app          *App
	inputEnabled bool
	dismiss      func()
}

func newSurface(a *App, dismiss func()) *surface {
	return &surface{app: a, inputEnabled: true, dismiss: dismiss}
}

func (s *surface) Notify(err *failure.UserError) {
	s.app.notify(err)
}

func (s *surface) Dismiss() {
	if s.dismiss != nil {
		s.dismiss()
	}
}

func (s *surface) SetInputEnabled(enabled bool) {
	s.inputEnabled = enabled
}
