// Package failure holds the two kinds of task failure: user-facing failures,
// which travel as data to the surface that presents them, and unclassified
// failures, which go to the process-level fatal handler.
package failure

import (
	"errors"
	"fmt"

	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/walletlib"
)

type Hint int

const (
	// Transient notices dismiss themselves.
	Transient Hint = iota
	// Modal notices need acknowledgement.
	Modal
)

func (h Hint) String() string {
	switch h {
	case Transient:
		return "transient"
	case Modal:
		return "modal"
	default:
		return fmt.Sprintf("hint(%d)", int(h))
	}
}

type UserError struct {
	Key  messages.Key
	Hint Hint
	// Cause is the library error this failure was classified from, if any.
	Cause error
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return string(e.Key) + ": " + e.Cause.Error()
	}
	return string(e.Key)
}

func (e *UserError) Unwrap() error { return e.Cause }

// Text is the rendered message for the failure.
func (e *UserError) Text() string { return messages.Text(e.Key) }

func NewTransient(key messages.Key) *UserError {
	return &UserError{Key: key, Hint: Transient}
}

func NewModal(key messages.Key) *UserError {
	return &UserError{Key: key, Hint: Modal}
}

// Rule maps a library error signature to a user-facing failure.
type Rule struct {
	Signature string
	Key       messages.Key
	Hint      Hint
}

var InvalidPassword = Rule{Signature: walletlib.SigInvalidPassword, Key: messages.IncorrectPassword, Hint: Transient}

var InvalidSeed = Rule{Signature: walletlib.SigInvalidSeed, Key: messages.InvalidSeed, Hint: Modal}

// Unclassified marks an error that already went down the fatal path.
// Classify never turns it back into a user-facing failure.
type Unclassified struct {
	Err error
}

func (u *Unclassified) Error() string { return "unclassified: " + u.Err.Error() }

func (u *Unclassified) Unwrap() error { return u.Err }

// Classify returns the user-facing failure for err. A *UserError anywhere
// in the chain wins; otherwise the first rule whose signature matches is
// applied. ok is false for unclassified errors.
func Classify(err error, rules ...Rule) (userErr *UserError, ok bool) {
	if err == nil {
		return nil, false
	}
	var unclassified *Unclassified
	if errors.As(err, &unclassified) {
		return nil, false
	}
	if errors.As(err, &userErr) {
		return userErr, true
	}
	for _, rule := range rules {
		if walletlib.HasSignature(err, rule.Signature) {
			return &UserError{Key: rule.Key, Hint: rule.Hint, Cause: err}, true
		}
	}
	return nil, false
}
