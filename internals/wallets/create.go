package wallets

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/logbuf"
	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/walletlib"
)

var createRules = []failure.Rule{
	failure.InvalidSeed,
	{Signature: walletlib.SigWalletExists, Key: messages.WalletExists, Hint: failure.Modal},
}

// CreateState returns the run-once state of a create-wallet screen.
func (s *Service) CreateState(id tasky.ScreenID) (*tasky.State[walletlib.Wallet], error) {
	return tasky.ObtainState[walletlib.Wallet](s.arena, id)
}

// CreateTask creates the drafted wallet from seed and loads it. A seed the
// library rejects, or a name taken since the draft was validated, is shown
// as a modal notice.
func (s *Service) CreateTask(draft Draft, seed func() string, onCreated func(walletlib.Wallet)) tasky.Task[walletlib.Wallet] {
	var entered string
	return tasky.Task[walletlib.Wallet]{
		PreExecute: func() error {
			entered = strings.TrimSpace(seed())
			if entered == "" {
				return failure.NewTransient(messages.SeedRequired)
			}
			return nil
		},
		Work: func(ctx context.Context) (walletlib.Wallet, error) {
			crumbs := logbuf.FromContext(ctx)
			crumbs.Info("creating wallet", slog.String("wallet", draft.Name))
			if _, err := s.lib.Invoke(ctx, walletlib.OpCreate, draft.Name, draft.Password, entered); err != nil {
				return walletlib.Wallet{}, err
			}
			crumbs.Info("loading wallet")
			return walletlib.Call[walletlib.Wallet](ctx, s.lib, walletlib.OpLoadWallet, draft.Name, draft.Password)
		},
		PostExecute: onCreated,
		Rules:       createRules,
	}
}
