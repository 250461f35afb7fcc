package tasky

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScreenID names a logical screen: it stays the same while the surfaces
// showing it come and go.
type ScreenID string

func NewScreenID(kind string) ScreenID {
	return ScreenID(kind + "/" + uuid.NewString())
}

// Kind is the part of the id before the first slash.
func (id ScreenID) Kind() string {
	kind, _, _ := strings.Cut(string(id), "/")
	return kind
}

var ErrTypeMismatch = errors.New("arena entry has a different type")

// Reporter is implemented by entries that can describe their progress.
type Reporter interface {
	Report() string
}

// Discarder is implemented by entries that need to know when their logical
// screen closed for good.
type Discarder interface {
	Discard()
}

type ScreenInfo struct {
	ID        ScreenID  `json:"id"`
	Kind      string    `json:"kind"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type arenaEntry struct {
	value     any
	createdAt time.Time
}

// Arena owns per-screen state for longer than any surface lives.
type Arena struct {
	mu      sync.Mutex
	logger  *slog.Logger
	entries map[ScreenID]arenaEntry
}

func NewArena(logger *slog.Logger) *Arena {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Arena{
		logger:  logger,
		entries: make(map[ScreenID]arenaEntry),
	}
}

// Obtain returns the entry for id, creating it with create on first use.
func Obtain[V any](a *Arena, id ScreenID, create func() V) (V, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry, ok := a.entries[id]; ok {
		value, ok := entry.value.(V)
		if !ok {
			var zero V
			return zero, false, fmt.Errorf("%w: screen %s holds %T", ErrTypeMismatch, id, entry.value)
		}
		return value, false, nil
	}

	value := create()
	a.entries[id] = arenaEntry{value: value, createdAt: time.Now().UTC()}
	a.logger.Debug("Screen state created", slog.String("screen", string(id)), slog.String("type", fmt.Sprintf("%T", value)))
	return value, true, nil
}

// ObtainState returns the task state for id, creating it on first use.
func ObtainState[T any](a *Arena, id ScreenID) (*State[T], error) {
	state, _, err := Obtain(a, id, func() *State[T] { return NewState[T](string(id)) })
	return state, err
}

func (a *Arena) Lookup(id ScreenID) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.entries[id]
	return entry.value, ok
}

// Discard forgets id. In-flight work keeps running; its result is dropped.
func (a *Arena) Discard(id ScreenID) bool {
	a.mu.Lock()
	entry, ok := a.entries[id]
	delete(a.entries, id)
	a.mu.Unlock()

	if !ok {
		return false
	}
	if discarder, ok := entry.value.(Discarder); ok {
		discarder.Discard()
	}
	a.logger.Debug("Screen state discarded", slog.String("screen", string(id)))
	return true
}

func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Snapshot lists the screens ordered by creation time.
func (a *Arena) Snapshot() []ScreenInfo {
	a.mu.Lock()
	infos := make([]ScreenInfo, 0, len(a.entries))
	for id, entry := range a.entries {
		info := ScreenInfo{
			ID:        id,
			Kind:      id.Kind(),
			Type:      fmt.Sprintf("%T", entry.value),
			CreatedAt: entry.createdAt,
		}
		if reporter, ok := entry.value.(Reporter); ok {
			info.Status = reporter.Report()
		}
		infos = append(infos, info)
	}
	a.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}
