// Package wallets holds the wallet flows the UI drives: new-wallet
// validation, the create task, the open and show-seed password gates and
// deletion.
package wallets

import (
	"context"
	"io"
	"log/slog"

	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/walletlib"
)

// Screen kinds, used as ScreenID prefixes.
const (
	KindCreateWallet = "create-wallet"
	KindOpenWallet   = "open-wallet"
	KindShowSeed     = "show-seed"
)

var walletNotFound = failure.Rule{Signature: walletlib.SigWalletNotFound, Key: messages.WalletNotFound, Hint: failure.Transient}

type Config struct {
	Library walletlib.Library
	Arena   *tasky.Arena
	Logger  *slog.Logger
	// InlineOpen verifies open-wallet passwords on the UI dispatch context.
	InlineOpen bool
}

type Service struct {
	lib        walletlib.Library
	arena      *tasky.Arena
	logger     *slog.Logger
	inlineOpen bool
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	arena := cfg.Arena
	if arena == nil {
		arena = tasky.NewArena(logger)
	}
	return &Service{
		lib:        cfg.Library,
		arena:      arena,
		logger:     logger,
		inlineOpen: cfg.InlineOpen,
	}
}

func (s *Service) Arena() *tasky.Arena { return s.arena }

func (s *Service) List(ctx context.Context) ([]string, error) {
	return walletlib.Call[[]string](ctx, s.lib, walletlib.OpListWallets)
}

// Delete removes name. It runs synchronously; a missing wallet is a
// user-facing failure.
func (s *Service) Delete(ctx context.Context, name string) error {
	if _, err := s.lib.Invoke(ctx, walletlib.OpDeleteWallet, name); err != nil {
		if userErr, ok := failure.Classify(err, walletNotFound); ok {
			return userErr
		}
		return err
	}
	s.logger.Info("Wallet deleted", slog.String("wallet", name))
	return nil
}

func (s *Service) CloseWallet(ctx context.Context, name string) error {
	_, err := s.lib.Invoke(ctx, walletlib.OpCloseWallet, name)
	return err
}

// Close forgets the state of a logical screen. Work still running for it
// completes without delivering.
func (s *Service) Close(id tasky.ScreenID) bool {
	return s.arena.Discard(id)
}
