package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Oudwins/walletgate/internals/failure"
	"github.com/Oudwins/walletgate/internals/messages"
	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/testutil"
	"github.com/Oudwins/walletgate/internals/walletlib"
	"github.com/Oudwins/walletgate/internals/walletlib/daemon"
	"github.com/Oudwins/walletgate/internals/wallets"
)

// gatedLibrary holds create calls until release is closed.
type gatedLibrary struct {
	walletlib.Library
	release chan struct{}
	creates atomic.Int32
}

func (g *gatedLibrary) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	if op == walletlib.OpCreate {
		g.creates.Add(1)
		<-g.release
	}
	return g.Library.Invoke(ctx, op, args...)
}

type harness struct {
	app    *App
	lib    *gatedLibrary
	fatals *testutil.Fatals
}

// newHarness optionally seeds one wallet given as name, password.
func newHarness(t *testing.T, wallet ...string) *harness {
	t.Helper()
	d, err := daemon.Open(context.Background(), daemon.Config{Path: testutil.TempDBPath(t), ScryptN: 1 << 4})
	if err != nil {
		t.Fatalf("open daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if len(wallet) == 2 {
		seed, err := walletlib.Call[string](context.Background(), d, walletlib.OpMakeSeed)
		if err != nil {
			t.Fatalf("make seed: %v", err)
		}
		if _, err := d.Invoke(context.Background(), walletlib.OpCreate, wallet[0], wallet[1], seed); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	lib := &gatedLibrary{Library: d, release: make(chan struct{})}
	fatals := testutil.NewFatals()
	runner := tasky.NewRunner(tasky.RunnerConfig{Logger: testutil.DiscardLogger(), Fatal: fatals.Handle})
	svc := wallets.NewService(wallets.Config{Library: lib, Logger: testutil.DiscardLogger()})
	return &harness{
		app:    New(Config{Service: svc, Logger: testutil.DiscardLogger()}, runner),
		lib:    lib,
		fatals: fatals,
	}
}

func (h *harness) key(s string) {
	var msg tea.KeyMsg
	switch s {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+r":
		msg = tea.KeyMsg{Type: tea.KeyCtrlR}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	h.app.Update(msg)
}

// typeText sends s one rune at a time, the way a terminal delivers typing.
func (h *harness) typeText(s string) {
	for _, r := range s {
		h.app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// drain waits for posted deliveries and runs them the way the program
// would on a drain message.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	testutil.Eventually(t, "posted delivery", func() bool { return h.app.loop.Pending() > 0 })
	h.app.Update(drainMsg{})
}

func (h *harness) resize() {
	h.app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
}

func TestOpenWalletWrongThenRight(t *testing.T) {
	h := newHarness(t, "main", "right")
	if !strings.Contains(h.app.View(), "main") {
		t.Fatalf("expected the wallet in the list:\n%s", h.app.View())
	}

	h.key("enter")
	if _, ok := h.app.screen.(*promptScreen[walletlib.Wallet]); !ok {
		t.Fatalf("expected the open prompt, got %T", h.app.screen)
	}
	h.typeText("wrong")
	h.key("enter")
	h.drain(t)

	if h.app.notice == nil || h.app.notice.text != messages.Text(messages.IncorrectPassword) || h.app.notice.modal {
		t.Fatalf("expected a transient incorrect password notice, got %+v", h.app.notice)
	}
	if _, ok := h.app.screen.(*promptScreen[walletlib.Wallet]); !ok {
		t.Fatalf("a wrong password keeps the prompt open, got %T", h.app.screen)
	}

	h.typeText("right")
	h.key("enter")
	h.drain(t)
	if _, ok := h.app.screen.(*listScreen); !ok {
		t.Fatalf("expected the list after opening, got %T", h.app.screen)
	}
	if h.app.opened != "main" || !strings.Contains(h.app.View(), "open: main") {
		t.Fatalf("expected main to be open, got %q", h.app.opened)
	}
	if h.app.svc.Arena().Len() != 0 {
		t.Fatalf("a finished prompt leaves nothing in the arena")
	}
}

func TestResizeDuringCreateRunsOnce(t *testing.T) {
	h := newHarness(t)
	h.key("n")
	h.typeText("main")
	h.key("tab")
	h.typeText("pw")
	h.key("tab")
	h.typeText("pw")
	h.key("enter")

	create, ok := h.app.screen.(*createScreen)
	if !ok {
		t.Fatalf("expected the seed screen, got %T (notice %+v)", h.app.screen, h.app.notice)
	}
	if len(strings.Fields(create.seed.Value())) != 12 {
		t.Fatalf("expected a generated seed, got %q", create.seed.Value())
	}

	h.key("enter")
	testutil.Eventually(t, "create call", func() bool { return h.lib.creates.Load() == 1 })
	if !h.app.screen.busy() {
		t.Fatalf("expected the create screen to be busy")
	}

	h.resize()
	h.resize()
	if h.app.screen == screen(create) {
		t.Fatalf("expected a new surface instance after resize")
	}
	h.key("enter")

	close(h.lib.release)
	h.drain(t)

	if h.lib.creates.Load() != 1 {
		t.Fatalf("expected one create call, got %d", h.lib.creates.Load())
	}
	if _, ok := h.app.screen.(*listScreen); !ok {
		t.Fatalf("expected the list after creating, got %T", h.app.screen)
	}
	if h.app.opened != "main" {
		t.Fatalf("expected the new wallet to be open, got %q", h.app.opened)
	}
	if len(h.fatals.Errors()) != 0 {
		t.Fatalf("unexpected fatal errors %v", h.fatals.Errors())
	}
}

func TestRestoreWithBadSeedShowsModal(t *testing.T) {
	h := newHarness(t)
	close(h.lib.release)
	h.key("n")
	h.key("ctrl+r")
	h.typeText("main")
	h.key("tab")
	h.typeText("pw")
	h.key("tab")
	h.typeText("pw")
	h.key("enter")
	if _, ok := h.app.screen.(*createScreen); !ok {
		t.Fatalf("expected the seed screen, got %T", h.app.screen)
	}
	h.typeText("not a real seed")
	h.key("enter")
	h.drain(t)

	if h.app.notice == nil || !h.app.notice.modal || h.app.notice.text != messages.Text(messages.InvalidSeed) {
		t.Fatalf("expected a modal invalid seed notice, got %+v", h.app.notice)
	}
	list, ok := h.app.screen.(*listScreen)
	if !ok {
		t.Fatalf("expected the list behind the modal, got %T", h.app.screen)
	}
	h.key("n")
	if h.app.screen != screen(list) {
		t.Fatalf("a modal notice swallows keys")
	}
	h.key("enter")
	if h.app.notice != nil {
		t.Fatalf("expected enter to acknowledge the modal")
	}
}

func TestNewWalletValidationNotice(t *testing.T) {
	h := newHarness(t)
	h.key("n")
	h.typeText("a/b")
	h.key("enter")
	h.key("enter")
	h.key("enter")
	if h.app.notice == nil || h.app.notice.text != messages.Text(messages.InvalidName) {
		t.Fatalf("expected an invalid name notice, got %+v", h.app.notice)
	}
	if _, ok := h.app.screen.(*newWalletScreen); !ok {
		t.Fatalf("validation keeps the form open, got %T", h.app.screen)
	}
	h.resize()
	form := h.app.screen.(*newWalletScreen)
	if form.values().name != "a/b" {
		t.Fatalf("recreation keeps typed values, got %+v", form.values())
	}
}

func TestShowSeedAndCancel(t *testing.T) {
	h := newHarness(t, "main", "pw")
	h.key("s")
	h.typeText("pw")
	h.key("enter")
	h.drain(t)
	seed, ok := h.app.screen.(*seedScreen)
	if !ok {
		t.Fatalf("expected the seed screen, got %T", h.app.screen)
	}
	if len(strings.Fields(seed.seed)) != 12 {
		t.Fatalf("unexpected seed %q", seed.seed)
	}
	h.key("enter")

	h.key("enter")
	if h.app.svc.Arena().Len() != 1 {
		t.Fatalf("expected the open prompt in the arena")
	}
	h.key("esc")
	if h.app.svc.Arena().Len() != 0 {
		t.Fatalf("leaving a prompt discards its state")
	}
}

func TestDeleteWallet(t *testing.T) {
	h := newHarness(t, "main", "pw")
	h.key("d")
	if !strings.Contains(h.app.View(), "Delete wallet") {
		t.Fatalf("expected a delete confirmation:\n%s", h.app.View())
	}
	h.key("y")
	list := h.app.screen.(*listScreen)
	if len(list.names) != 0 {
		t.Fatalf("expected no wallets, got %v", list.names)
	}
}

func TestTransientNoticeExpires(t *testing.T) {
	h := newHarness(t, "main", "pw")
	h.key("enter")
	h.key("enter")
	if h.app.notice == nil {
		t.Fatalf("expected an enter password notice")
	}
	h.app.Update(noticeExpiredMsg{seq: h.app.noticeSeq - 1})
	if h.app.notice == nil {
		t.Fatalf("a stale expiry must not clear a newer notice")
	}
	h.app.Update(noticeExpiredMsg{seq: h.app.noticeSeq})
	if h.app.notice != nil {
		t.Fatalf("expected the notice to expire")
	}
}

func TestPumpSendsDrainMessages(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan tea.Msg, 1)
	go h.app.pump(ctx, func(msg tea.Msg) {
		select {
		case got <- msg:
		default:
		}
	})
	h.app.loop.Post(func() {})
	select {
	case msg := <-got:
		if _, ok := msg.(drainMsg); !ok {
			t.Fatalf("unexpected message %T", msg)
		}
	case <-ctx.Done():
	}
}

func TestNewWalletUsesSuggestedName(t *testing.T) {
	h := newHarness(t, "wallet_1", "pw")
	h.key("n")
	h.key("tab")
	h.typeText("pw")
	h.key("tab")
	h.typeText("pw")
	h.key("enter")

	create, ok := h.app.screen.(*createScreen)
	if !ok {
		t.Fatalf("expected the seed screen, got %T (notice %+v)", h.app.screen, h.app.notice)
	}
	if create.draft.Name != "wallet_2" {
		t.Fatalf("expected the suggested name, got %q", create.draft.Name)
	}
}

// flakyList fails every list_wallets call after the first.
type flakyList struct {
	walletlib.Library
	lists atomic.Int32
}

func (f *flakyList) Invoke(ctx context.Context, op string, args ...any) (any, error) {
	if op == walletlib.OpListWallets && f.lists.Add(1) > 1 {
		return nil, errors.New("database is locked")
	}
	return f.Library.Invoke(ctx, op, args...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const exitAltScreen = "\x1b[?1049l"

func TestFatalRunsAfterTerminalRestored(t *testing.T) {
	d, err := daemon.Open(context.Background(), daemon.Config{Path: testutil.TempDBPath(t), ScryptN: 1 << 4})
	if err != nil {
		t.Fatalf("open daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	out := &syncBuffer{}
	restored := make(chan bool, 2)
	cfg := Config{
		Service: wallets.NewService(wallets.Config{Library: &flakyList{Library: d}, Logger: testutil.DiscardLogger()}),
		Logger:  testutil.DiscardLogger(),
		Fatal: func(err error) {
			restored <- strings.Contains(out.String(), exitAltScreen)
		},
	}

	done := make(chan error, 1)
	go func() {
		// "r" reloads the list, which now fails on the Update goroutine.
		done <- run(context.Background(), cfg,
			tea.WithInput(strings.NewReader("r")),
			tea.WithOutput(out),
			tea.WithAltScreen(),
			tea.WithoutSignalHandler(),
		)
	}()

	select {
	case err := <-done:
		var unclassified *failure.Unclassified
		if !errors.As(err, &unclassified) {
			t.Fatalf("expected the unclassified failure from run, got %v", err)
		}
	case <-time.After(testutil.WaitTimeout):
		t.Fatalf("timeout waiting for the program to stop")
	}

	select {
	case ok := <-restored:
		if !ok {
			t.Fatalf("fatal handler ran before the terminal was restored")
		}
	default:
		t.Fatalf("expected the fatal handler to run")
	}
	select {
	case <-restored:
		t.Fatalf("fatal handler ran twice")
	default:
	}
}
