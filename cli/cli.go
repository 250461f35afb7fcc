package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/logger"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/version"
	"github.com/spf13/cobra"
)

var ErrUsage = errors.New("usage:\n  walletgate [tui]\n  walletgate wallets list\n  walletgate wallets new <name> [--restore --seed <seed>] (--password <password> | --password-stdin)\n  walletgate wallets open <name> (--password <password> | --password-stdin)\n  walletgate wallets seed <name> (--password <password> | --password-stdin)\n  walletgate wallets delete <name>\n  walletgate version")

// FatalError is an unclassified failure reported by the task runner.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

type rootFlags struct {
	dataDir string
	verbose bool
}

// Execute runs the command line and returns the process exit status.
func Execute(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), Describe(err))
	}
	return ExitCode(err)
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	var fatal *FatalError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	case errors.As(err, &fatal):
		return tasky.ExitCodeFatal
	default:
		return 1
	}
}

// Describe renders err for the terminal. User-facing failures show their
// message text only.
func Describe(err error) string {
	var userErr *failure.UserError
	if errors.As(err, &userErr) {
		return userErr.Text()
	}
	return err.Error()
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "walletgate",
		Short:         "Create, open and inspect password protected wallets",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !logger.IsInteractive() {
				return ErrUsage
			}
			return runTUI(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "directory holding the wallet database, config and log")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "also write logs to stdout")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", ErrUsage, err)
	})

	root.AddCommand(
		newTUICmd(flags),
		newWalletsCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newTUICmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive wallet screens",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return nil
		},
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w\n\nunexpected argument %q", ErrUsage, args[0])
	}
	return nil
}

func exactlyOneName(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w\n\n%s expects a wallet name", ErrUsage, cmd.Name())
	}
	return nil
}
