// Package walletlib is the boundary to the embedded wallet library. The
// library is an opaque synchronous call interface; the only structure the
// rest of the program relies on is the error signature: a conventional
// message prefix naming the failure class.
package walletlib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Signatures raised by the library.
const (
	SigInvalidPassword = "InvalidPassword"
	SigInvalidSeed     = "InvalidSeed"
	SigWalletExists    = "WalletExists"
	SigWalletNotFound  = "WalletNotFound"
	SigInvalidArgument = "InvalidArgument"
)

// Operation names understood by the library.
const (
	OpListWallets  = "list_wallets"
	OpMakeSeed     = "make_seed"
	OpCreate       = "create"
	OpLoadWallet   = "load_wallet"
	OpCloseWallet  = "close_wallet"
	OpGetSeed      = "get_seed"
	OpDeleteWallet = "delete_wallet"
)

var ErrUnknownOperation = errors.New("unknown operation")

// Wallet is what load_wallet returns.
type Wallet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Library interface {
	Invoke(ctx context.Context, op string, args ...any) (any, error)
}

// Error is a failure raised inside the library. Its message always starts
// with Type, which is what classification matches on.
type Error struct {
	Type    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return e.Type + ": " + e.Message
}

func Raise(typ string, format string, args ...any) *Error {
	return &Error{Type: typ, Message: fmt.Sprintf(format, args...)}
}

// HasSignature reports whether err carries a library error whose message
// begins with sig.
func HasSignature(err error, sig string) bool {
	var libErr *Error
	if !errors.As(err, &libErr) {
		return false
	}
	return strings.HasPrefix(libErr.Error(), sig)
}

// Call invokes op and asserts the returned value's type.
func Call[T any](ctx context.Context, lib Library, op string, args ...any) (T, error) {
	var zero T
	value, err := lib.Invoke(ctx, op, args...)
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T, want %T", op, value, zero)
	}
	return typed, nil
}
