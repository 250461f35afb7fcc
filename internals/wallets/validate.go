package wallets

import (
	"context"
	"fmt"
	"slices"

	z "github.com/Oudwins/zog"

	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/walletlib"
)

type SeedKind int

const (
	// CreateSeed generates a fresh seed.
	CreateSeed SeedKind = iota
	// RestoreSeed asks the user for an existing seed.
	RestoreSeed
)

func (k SeedKind) String() string {
	if k == RestoreSeed {
		return "restore"
	}
	return "create"
}

type NewWalletForm struct {
	Name     string
	Password string
	Confirm  string
	Kind     SeedKind
}

// Draft is a validated new wallet. Seed is empty when the user still has to
// enter one.
type Draft struct {
	Name     string
	Password string
	Seed     string
}

const (
	ctxExisting = "existing"
	ctxPassword = "password"
)

// Issue messages carry message keys so the first issue maps straight to a
// user-facing failure.
var nameSchema = z.String().
	Required(z.Message(string(messages.NameRequired))).
	Not().Contains("/", z.Message(string(messages.InvalidName))).
	TestFunc(isUnusedName, z.Message(string(messages.WalletExists)))

var passwordSchema = z.String().
	Required(z.Message(string(messages.EnterPassword)))

// An empty confirmation never matches the already required password.
var confirmSchema = z.String().
	Required(z.Message(string(messages.PasswordsMismatch))).
	TestFunc(matchesPassword, z.Message(string(messages.PasswordsMismatch)))

func isUnusedName(name *string, ctx z.Ctx) bool {
	existing, _ := ctx.Get(ctxExisting).([]string)
	return !slices.Contains(existing, *name)
}

func matchesPassword(confirm *string, ctx z.Ctx) bool {
	password, _ := ctx.Get(ctxPassword).(string)
	return *confirm == password
}

// firstIssue validates the fields in order and returns the first failure.
func firstIssue(existing []string, form *NewWalletForm) *failure.UserError {
	opts := []z.ExecOption{
		z.WithCtxValue(ctxExisting, existing),
		z.WithCtxValue(ctxPassword, form.Password),
	}
	checks := []struct {
		schema *z.StringSchema[string]
		value  *string
	}{
		{nameSchema, &form.Name},
		{passwordSchema, &form.Password},
		{confirmSchema, &form.Confirm},
	}
	for _, check := range checks {
		if issues := check.schema.Validate(check.value, opts...); len(issues) > 0 {
			return failure.NewTransient(messages.Key(issues[0].Message))
		}
	}
	return nil
}

// ValidateNewWallet checks form on the UI dispatch context before anything
// is scheduled. For CreateSeed the draft carries a freshly generated seed.
// Failures the user can fix are *failure.UserError; any other error is
// unclassified.
func (s *Service) ValidateNewWallet(ctx context.Context, form NewWalletForm) (Draft, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return Draft{}, fmt.Errorf("list wallets: %w", err)
	}
	if userErr := firstIssue(existing, &form); userErr != nil {
		return Draft{}, userErr
	}

	draft := Draft{Name: form.Name, Password: form.Password}
	switch form.Kind {
	case CreateSeed:
		seed, err := walletlib.Call[string](ctx, s.lib, walletlib.OpMakeSeed)
		if err != nil {
			return Draft{}, fmt.Errorf("make seed: %w", err)
		}
		draft.Seed = seed
	case RestoreSeed:
	default:
		return Draft{}, fmt.Errorf("unknown seed kind %d", form.Kind)
	}
	return draft, nil
}
