package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Oudwins/walletgate/internals/tasky"
	"github.com/Oudwins/walletgate/internals/testutil"
	"github.com/Oudwins/walletgate/internals/version"
)

func newTestServer(t *testing.T) (*Server, *tasky.Arena) {
	t.Helper()
	arena := tasky.NewArena(testutil.DiscardLogger())
	return New(arena, testutil.DiscardLogger()), arena
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestScreensListsArena(t *testing.T) {
	s, arena := newTestServer(t)
	id := tasky.NewScreenID("open-wallet")
	if _, err := tasky.ObtainState[string](arena, id); err != nil {
		t.Fatalf("obtain: %v", err)
	}

	rec := get(t, s, "/screens")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
	var resp ScreensResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Screens) != 1 || resp.Screens[0].ID != id || resp.Screens[0].Status != "not_started" {
		t.Fatalf("unexpected screens %+v", resp.Screens)
	}
}

func TestScreenByID(t *testing.T) {
	s, arena := newTestServer(t)
	id := tasky.NewScreenID("show-seed")
	if _, err := tasky.ObtainState[string](arena, id); err != nil {
		t.Fatalf("obtain: %v", err)
	}

	rec := get(t, s, "/screens/"+string(id))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ScreenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Screen.Kind != "show-seed" {
		t.Fatalf("unexpected screen %+v", resp.Screen)
	}

	arena.Discard(id)
	if rec := get(t, s, "/screens/"+string(id)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after discard, got %d", rec.Code)
	}
}

func TestVersion(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/version")
	var info version.Info
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.SemVer == "" {
		t.Fatalf("expected a version")
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/wallets")
	if rec.Code != http.StatusNotFound || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestStartServesAndStops(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := s.Start(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + addr + "/version")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
