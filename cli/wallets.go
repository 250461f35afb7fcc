package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Oudwins/walletgate/internals/passgate"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/timeouts"
	"github.com/Oudwins/walletgate/internals/walletlib"
	"github.com/Oudwins/walletgate/internals/wallets"
	"github.com/spf13/cobra"
)

type passwordFlags struct {
	password string
	stdin    bool
}

func (p *passwordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.password, "password", "p", "", "wallet password")
	cmd.Flags().BoolVar(&p.stdin, "password-stdin", false, "read passwords from stdin, one per line")
}

// source returns the passwords to try in order. A single --password is
// tried once; stdin yields one password per line until it is exhausted.
func (p *passwordFlags) source(cmd *cobra.Command) (func() (string, bool), error) {
	given := cmd.Flags().Changed("password")
	switch {
	case p.stdin && given:
		return nil, fmt.Errorf("%w\n\n--password and --password-stdin are exclusive", ErrUsage)
	case p.stdin:
		scanner := bufio.NewScanner(cmd.InOrStdin())
		return func() (string, bool) {
			if !scanner.Scan() {
				return "", false
			}
			return strings.TrimRight(scanner.Text(), "\r"), true
		}, nil
	case given:
		used := false
		return func() (string, bool) {
			if used {
				return "", false
			}
			used = true
			return p.password, true
		}, nil
	default:
		return nil, fmt.Errorf("%w\n\n%s needs --password or --password-stdin", ErrUsage, cmd.Name())
	}
}

func newWalletsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallets",
		Short: "Manage wallets without the interactive screens",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ErrUsage
		},
	}
	cmd.AddCommand(
		newListCmd(flags),
		newNewCmd(flags),
		newOpenCmd(flags),
		newSeedCmd(flags),
		newDeleteCmd(flags),
	)
	return cmd
}

// withSession opens a session for the duration of fn.
func withSession(flags *rootFlags, fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, flags)
		if err != nil {
			return err
		}
		defer s.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Command)
		defer cancel()
		return fn(ctx, s, args)
	}
}

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List wallet names",
		Args:  noArgs,
		RunE: withSession(flags, func(ctx context.Context, s *session, args []string) error {
			names, err := s.svc.List(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(s.out, name)
			}
			return nil
		}),
	}
}

func newNewCmd(flags *rootFlags) *cobra.Command {
	var (
		passwords passwordFlags
		restore   bool
		seed      string
	)
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a wallet from a new or restored seed",
		Args:  exactlyOneName,
	}
	passwords.register(cmd)
	cmd.Flags().BoolVar(&restore, "restore", false, "restore from --seed instead of generating a seed")
	cmd.Flags().StringVar(&seed, "seed", "", "seed phrase to restore")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if seed != "" && !restore {
			return fmt.Errorf("%w\n\n--seed needs --restore", ErrUsage)
		}
		next, err := passwords.source(cmd)
		if err != nil {
			return err
		}
		return withSession(flags, func(ctx context.Context, s *session, args []string) error {
			form := wallets.NewWalletForm{Name: args[0], Kind: wallets.CreateSeed}
			if restore {
				form.Kind = wallets.RestoreSeed
			}
			form.Password, _ = next()
			form.Confirm = form.Password
			if passwords.stdin {
				form.Confirm, _ = next()
			}

			draft, err := s.svc.ValidateNewWallet(ctx, form)
			if err != nil {
				return err
			}
			if form.Kind == wallets.CreateSeed {
				seed = draft.Seed
			}
			wallet, err := createWallet(ctx, s, draft, seed)
			if err != nil {
				return err
			}
			printWallet(s.out, wallet)
			if form.Kind == wallets.CreateSeed {
				fmt.Fprintf(s.out, "seed: %s\n", draft.Seed)
			}
			return nil
		})(cmd, args)
	}
	return cmd
}

// createWallet runs the create task of a fresh create-wallet screen to its
// terminal value.
func createWallet(ctx context.Context, s *session, draft wallets.Draft, seed string) (walletlib.Wallet, error) {
	id := tasky.NewScreenID(wallets.KindCreateWallet)
	state, err := s.svc.CreateState(id)
	if err != nil {
		return walletlib.Wallet{}, err
	}
	defer s.svc.Close(id)

	surface := s.console()
	var (
		created walletlib.Wallet
		binding *tasky.Binding[walletlib.Wallet]
	)
	task := s.svc.CreateTask(draft, func() string { return seed }, func(wallet walletlib.Wallet) {
		created = wallet
	})
	err = s.round(ctx, func() {
		binding = tasky.Attach(s.runner, s.loop, state, surface, task)
	})
	if err != nil {
		return walletlib.Wallet{}, err
	}
	if surface.failure != nil {
		return walletlib.Wallet{}, surface.failure
	}
	if binding == nil || !binding.Delivered() {
		return walletlib.Wallet{}, fmt.Errorf("create %s: no result", draft.Name)
	}
	return created, nil
}

func newOpenCmd(flags *rootFlags) *cobra.Command {
	var passwords passwordFlags
	cmd := &cobra.Command{
		Use:   "open <name>",
		Short: "Check a wallet password and load the wallet",
		Args:  exactlyOneName,
	}
	passwords.register(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		next, err := passwords.source(cmd)
		if err != nil {
			return err
		}
		return withSession(flags, func(ctx context.Context, s *session, args []string) error {
			id := tasky.NewScreenID(wallets.KindOpenWallet)
			gate, err := s.svc.OpenGate(id, args[0])
			if err != nil {
				return err
			}
			defer s.svc.Close(id)
			wallet, err := unlock(ctx, s, gate, next)
			if err != nil {
				return err
			}
			printWallet(s.out, wallet)
			return s.svc.CloseWallet(ctx, wallet.Name)
		})(cmd, args)
	}
	return cmd
}

func newSeedCmd(flags *rootFlags) *cobra.Command {
	var passwords passwordFlags
	cmd := &cobra.Command{
		Use:   "seed <name>",
		Short: "Show the seed phrase of a wallet",
		Args:  exactlyOneName,
	}
	passwords.register(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		next, err := passwords.source(cmd)
		if err != nil {
			return err
		}
		return withSession(flags, func(ctx context.Context, s *session, args []string) error {
			id := tasky.NewScreenID(wallets.KindShowSeed)
			gate, err := s.svc.SeedGate(id, args[0])
			if err != nil {
				return err
			}
			defer s.svc.Close(id)
			seed, err := unlock(ctx, s, gate, next)
			if err != nil {
				return err
			}
			fmt.Fprintln(s.out, seed)
			return nil
		})(cmd, args)
	}
	return cmd
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a wallet",
		Args:  exactlyOneName,
		RunE: withSession(flags, func(ctx context.Context, s *session, args []string) error {
			if err := s.svc.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "deleted: %s\n", args[0])
			return nil
		}),
	}
}

// unlock submits passwords to gate until one is accepted or the source runs
// out. A rejected password is reported before the next one is tried.
func unlock[T any](ctx context.Context, s *session, gate *passgate.Gate[T], next func() (string, bool)) (T, error) {
	var (
		result  T
		zero    T
		binding *passgate.Binding[T]
	)
	surface := s.console()
	defer func() {
		if binding != nil {
			binding.Detach()
		}
	}()

	for {
		password, ok := next()
		if !ok {
			if surface.failure != nil {
				return zero, surface.failure
			}
			return zero, fmt.Errorf("%w\n\nno password given", ErrUsage)
		}
		if surface.failure != nil {
			fmt.Fprintln(s.errOut, surface.failure.Text())
		}
		surface.reset()

		err := s.round(ctx, func() {
			if binding == nil {
				binding = gate.Bind(s.runner, s.loop, surface, func(value T) { result = value })
			}
			binding.Submit(password)
		})
		if err != nil {
			return zero, err
		}

		switch status := gate.Status(); status {
		case passgate.Succeeded:
			return result, nil
		case passgate.FailedRetryable:
			s.logger.Debug("Password rejected", slog.Int("attempts", gate.Attempts()))
		default:
			return zero, fmt.Errorf("unlock ended in status %s", status)
		}
	}
}

func printWallet(w io.Writer, wallet walletlib.Wallet) {
	fmt.Fprintf(w, "wallet: %s\nid: %s\ncreated: %s\n", wallet.Name, wallet.ID, wallet.CreatedAt.Format(time.RFC3339))
}
