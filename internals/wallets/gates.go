package wallets

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/passgate"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/walletlib"
)

// A wallet deleted while its prompt was open is a notice, not a crash.
var gateRules = []failure.Rule{failure.InvalidPassword, walletNotFound}

// OpenGate returns the password gate of an open-wallet screen.
func (s *Service) OpenGate(id tasky.ScreenID, name string) (*passgate.Gate[walletlib.Wallet], error) {
	gate, isNew, err := tasky.Obtain(s.arena, id, func() *passgate.Gate[walletlib.Wallet] {
		return passgate.New(passgate.Config[walletlib.Wallet]{
			Label: string(id),
			Verify: func(ctx context.Context, password string) (walletlib.Wallet, error) {
				return walletlib.Call[walletlib.Wallet](ctx, s.lib, walletlib.OpLoadWallet, name, password)
			},
			Rules:  gateRules,
			Inline: s.inlineOpen,
		})
	})
	if isNew {
		s.logger.Debug("Open gate created", slog.String("screen", string(id)), slog.String("wallet", name))
	}
	return gate, err
}

// SeedGate returns the password gate of a show-seed screen. It verifies on
// the UI dispatch context: the check is local and fast.
func (s *Service) SeedGate(id tasky.ScreenID, name string) (*passgate.Gate[string], error) {
	gate, _, err := tasky.Obtain(s.arena, id, func() *passgate.Gate[string] {
		return passgate.New(passgate.Config[string]{
			Label:  string(id),
			Verify: s.revealSeed(name),
			Rules:  gateRules,
			Inline: true,
		})
	})
	return gate, err
}

// revealSeed treats a seed without spaces as a wrong password: given no
// password the library hands back the sealed seed instead of failing.
func (s *Service) revealSeed(name string) passgate.VerifyFunc[string] {
	return func(ctx context.Context, password string) (string, error) {
		seed, err := walletlib.Call[string](ctx, s.lib, walletlib.OpGetSeed, name, password)
		if err != nil {
			return "", err
		}
		if !strings.Contains(seed, " ") {
			return "", walletlib.Raise(walletlib.SigInvalidPassword, "wallet %q", name)
		}
		return seed, nil
	}
}
