package wallets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Oudwins/walletgate/internals/dispatch"
	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/passgate"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/testutil"
	"github.com/Oudwins/walletgate/internals/walletlib"
	"github.com/Oudwins/walletgate/internals/walletlib/daemon"
)

type env struct {
	svc    *Service
	lib    *daemon.Daemon
	loop   *dispatch.Loop
	runner *tasky.Runner
	fatals *testutil.Fatals
}

func newEnv(t *testing.T) *env {
	t.Helper()
	lib, err := daemon.Open(context.Background(), daemon.Config{
		Path:    testutil.TempDBPath(t),
		ScryptN: 1 << 4,
		Logger:  testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("open daemon: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	fatals := testutil.NewFatals()
	return &env{
		svc:    NewService(Config{Library: lib, Logger: testutil.DiscardLogger()}),
		lib:    lib,
		loop:   testutil.StartLoop(t),
		runner: tasky.NewRunner(tasky.RunnerConfig{Logger: testutil.DiscardLogger(), Fatal: fatals.Handle}),
		fatals: fatals,
	}
}

func (e *env) createWallet(t *testing.T, name, password string) {
	t.Helper()
	ctx := context.Background()
	seed, err := walletlib.Call[string](ctx, e.lib, walletlib.OpMakeSeed)
	if err != nil {
		t.Fatalf("make seed: %v", err)
	}
	if _, err := e.lib.Invoke(ctx, walletlib.OpCreate, name, password, seed); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func userKey(t *testing.T, err error) messages.Key {
	t.Helper()
	var userErr *failure.UserError
	if !errors.As(err, &userErr) {
		t.Fatalf("expected a user-facing failure, got %v", err)
	}
	return userErr.Key
}

func TestValidateNewWalletIssues(t *testing.T) {
	e := newEnv(t)
	e.createWallet(t, "taken", "pw")
	ctx := context.Background()

	cases := []struct {
		name string
		form NewWalletForm
		want messages.Key
	}{
		{"missing name", NewWalletForm{Password: "pw", Confirm: "pw"}, messages.NameRequired},
		{"slash", NewWalletForm{Name: "a/b", Password: "pw", Confirm: "pw"}, messages.InvalidName},
		{"existing", NewWalletForm{Name: "taken", Password: "pw", Confirm: "pw"}, messages.WalletExists},
		{"missing password", NewWalletForm{Name: "new"}, messages.EnterPassword},
		{"mismatch", NewWalletForm{Name: "new", Password: "pw", Confirm: "wp"}, messages.PasswordsMismatch},
		{"empty confirm", NewWalletForm{Name: "new", Password: "pw"}, messages.PasswordsMismatch},
		{"name before password", NewWalletForm{Name: "a/b"}, messages.InvalidName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.svc.ValidateNewWallet(ctx, tc.form)
			if got := userKey(t, err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestValidateNewWalletSeedKinds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.svc.ValidateNewWallet(ctx, NewWalletForm{Name: "n", Password: "pw", Confirm: "pw", Kind: CreateSeed})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(strings.Fields(created.Seed)) != 12 {
		t.Fatalf("expected a generated seed, got %q", created.Seed)
	}

	restored, err := e.svc.ValidateNewWallet(ctx, NewWalletForm{Name: "n", Password: "pw", Confirm: "pw", Kind: RestoreSeed})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if restored.Seed != "" || restored.Name != "n" || restored.Password != "pw" {
		t.Fatalf("unexpected draft %+v", restored)
	}
}

func (e *env) runCreate(t *testing.T, draft Draft, seed string) (*testutil.Surface, *tasky.Binding[walletlib.Wallet], chan walletlib.Wallet) {
	t.Helper()
	id := tasky.NewScreenID(KindCreateWallet)
	state, err := e.svc.CreateState(id)
	if err != nil {
		t.Fatalf("create state: %v", err)
	}
	created := make(chan walletlib.Wallet, 1)
	task := e.svc.CreateTask(draft, func() string { return seed }, func(w walletlib.Wallet) { created <- w })
	surface := testutil.NewSurface()
	var b *tasky.Binding[walletlib.Wallet]
	testutil.OnLoop(t, e.loop, func() { b = tasky.Attach(e.runner, e.loop, state, surface, task) })
	return surface, b, created
}

func TestCreateTaskCreatesAndLoads(t *testing.T) {
	e := newEnv(t)
	draft, err := e.svc.ValidateNewWallet(context.Background(), NewWalletForm{Name: "main", Password: "pw", Confirm: "pw"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	surface, b, created := e.runCreate(t, draft, draft.Seed)
	testutil.Wait(t, surface.Closed(), "create surface dismissed")

	select {
	case w := <-created:
		if w.Name != "main" {
			t.Fatalf("unexpected wallet %+v", w)
		}
	default:
		t.Fatalf("expected the created callback")
	}
	if !b.Delivered() {
		t.Fatalf("expected delivery")
	}
	if loaded := e.lib.Loaded(); len(loaded) != 1 || loaded[0] != "main" {
		t.Fatalf("expected the wallet to be loaded, got %v", loaded)
	}
}

func TestCreateTaskInvalidSeedIsModal(t *testing.T) {
	e := newEnv(t)
	draft := Draft{Name: "main", Password: "pw"}
	surface, b, created := e.runCreate(t, draft, "twelve words that are certainly not a valid seed phrase at all")
	testutil.Wait(t, surface.Closed(), "create surface dismissed")

	notices := surface.Notices()
	if len(notices) != 1 || notices[0].Key != messages.InvalidSeed || notices[0].Hint != failure.Modal {
		t.Fatalf("unexpected notices %v", notices)
	}
	if len(created) != 0 || !b.Delivered() {
		t.Fatalf("expected a failure delivery only")
	}
	if len(e.fatals.Errors()) != 0 {
		t.Fatalf("an invalid seed is not fatal")
	}
}

func TestCreateTaskNameTakenAfterValidationIsModal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	draft, err := e.svc.ValidateNewWallet(ctx, NewWalletForm{Name: "main", Password: "pw", Confirm: "pw"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	e.createWallet(t, "main", "other")

	surface, b, created := e.runCreate(t, draft, draft.Seed)
	testutil.Wait(t, surface.Closed(), "create surface dismissed")

	notices := surface.Notices()
	if len(notices) != 1 || notices[0].Key != messages.WalletExists || notices[0].Hint != failure.Modal {
		t.Fatalf("unexpected notices %v", notices)
	}
	if len(created) != 0 || !b.Delivered() {
		t.Fatalf("expected a failure delivery only")
	}
	if len(e.fatals.Errors()) != 0 {
		t.Fatalf("a taken name is not fatal, got %v", e.fatals.Errors())
	}
	if loaded := e.lib.Loaded(); len(loaded) != 0 {
		t.Fatalf("nothing must be loaded, got %v", loaded)
	}
}

func TestCreateTaskRequiresSeed(t *testing.T) {
	e := newEnv(t)
	surface, b, _ := e.runCreate(t, Draft{Name: "main", Password: "pw"}, "   ")
	testutil.Wait(t, surface.Closed(), "create surface dismissed")

	notices := surface.Notices()
	if len(notices) != 1 || notices[0].Key != messages.SeedRequired {
		t.Fatalf("unexpected notices %v", notices)
	}
	names, err := e.svc.List(context.Background())
	if err != nil || len(names) != 0 || !b.Delivered() {
		t.Fatalf("expected no wallet to be created, got %v %v", names, err)
	}
}

func TestOpenGateWrongThenRight(t *testing.T) {
	e := newEnv(t)
	e.createWallet(t, "main", "right")
	id := tasky.NewScreenID(KindOpenWallet)
	gate, err := e.svc.OpenGate(id, "main")
	if err != nil {
		t.Fatalf("open gate: %v", err)
	}
	again, err := e.svc.OpenGate(id, "main")
	if err != nil || again != gate {
		t.Fatalf("expected the same gate for the same screen")
	}

	surface := testutil.NewSurface()
	opened := make(chan walletlib.Wallet, 1)
	var b *passgate.Binding[walletlib.Wallet]
	testutil.OnLoop(t, e.loop, func() {
		b = gate.Bind(e.runner, e.loop, surface, func(w walletlib.Wallet) { opened <- w })
		b.Submit("wrong")
	})
	testutil.Wait(t, surface.Noticed(), "incorrect password notice")
	if surface.Notices()[0].Key != messages.IncorrectPassword || surface.Dismissed() != 0 {
		t.Fatalf("expected an incorrect password notice with the prompt open")
	}

	testutil.OnLoop(t, e.loop, func() { b.Submit("right") })
	testutil.Wait(t, surface.Closed(), "prompt dismissed")
	if w := <-opened; w.Name != "main" {
		t.Fatalf("unexpected wallet %+v", w)
	}
	if gate.Status() != passgate.Succeeded {
		t.Fatalf("expected succeeded, got %s", gate.Status())
	}
}

func TestSeedGate(t *testing.T) {
	e := newEnv(t)
	e.createWallet(t, "main", "pw")
	gate, err := e.svc.SeedGate(tasky.NewScreenID(KindShowSeed), "main")
	if err != nil {
		t.Fatalf("seed gate: %v", err)
	}

	surface := testutil.NewSurface()
	var seed string
	var b *passgate.Binding[string]
	var first passgate.Status
	testutil.OnLoop(t, e.loop, func() {
		b = gate.Bind(e.runner, e.loop, surface, func(s string) { seed = s })
		first = b.Submit("nope")
	})
	if first != passgate.FailedRetryable {
		t.Fatalf("inline verification settles within Submit, got %s", first)
	}
	testutil.Wait(t, surface.Noticed(), "incorrect password notice")

	testutil.OnLoop(t, e.loop, func() { b.Submit("pw") })
	testutil.Wait(t, surface.Closed(), "seed prompt dismissed")
	testutil.OnLoop(t, e.loop, func() {
		if len(strings.Fields(seed)) != 12 {
			t.Errorf("expected the seed, got %q", seed)
		}
	})
}

func TestRevealSeedTreatsSealedSeedAsWrongPassword(t *testing.T) {
	e := newEnv(t)
	e.createWallet(t, "main", "pw")
	_, err := e.svc.revealSeed("main")(context.Background(), "")
	if !walletlib.HasSignature(err, walletlib.SigInvalidPassword) {
		t.Fatalf("expected InvalidPassword, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	e.createWallet(t, "main", "pw")
	ctx := context.Background()

	if err := e.svc.Delete(ctx, "main"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if key := userKey(t, e.svc.Delete(ctx, "main")); key != messages.WalletNotFound {
		t.Fatalf("expected wallet not found, got %s", key)
	}
}

func TestCloseDiscardsScreen(t *testing.T) {
	e := newEnv(t)
	id := tasky.NewScreenID(KindCreateWallet)
	state, err := e.svc.CreateState(id)
	if err != nil {
		t.Fatalf("create state: %v", err)
	}
	if !e.svc.Close(id) || !state.Discarded() {
		t.Fatalf("expected the screen to be discarded")
	}
	if e.svc.Arena().Len() != 0 {
		t.Fatalf("expected an empty arena")
	}
}

func TestOpenGateMissingWalletIsRetryable(t *testing.T) {
	e := newEnv(t)
	gate, err := e.svc.OpenGate(tasky.NewScreenID(KindOpenWallet), "ghost")
	if err != nil {
		t.Fatalf("open gate: %v", err)
	}
	surface := testutil.NewSurface()
	var b *passgate.Binding[walletlib.Wallet]
	testutil.OnLoop(t, e.loop, func() {
		b = gate.Bind(e.runner, e.loop, surface, nil)
		b.Submit("pw")
	})
	testutil.Wait(t, surface.Noticed(), "wallet not found notice")
	if surface.Notices()[0].Key != messages.WalletNotFound {
		t.Fatalf("expected a wallet not found notice, got %s", surface.Notices()[0].Key)
	}
	if gate.Status() != passgate.FailedRetryable || len(e.fatals.Errors()) != 0 {
		t.Fatalf("a missing wallet is not fatal, status %s", gate.Status())
	}
	testutil.OnLoop(t, e.loop, b.Detach)
}
