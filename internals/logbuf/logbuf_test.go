package logbuf

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func flushedAttrs(t *testing.T, logger *Logger) map[string]any {
	t.Helper()
	payload := logger.Flush()
	if payload.Value.Kind() != slog.KindGroup {
		t.Fatalf("expected group, got %v", payload.Value.Kind())
	}
	return attrsToMap(payload.Value.Group())
}

func TestWithSharesBufferAndKeepsAttrs(t *testing.T) {
	logger := New(slog.String("screen", "open-wallet"))
	child := logger.With(slog.String("attempt", "1"))
	child.Info("verifying")
	logger.Info("parent entry")

	attrs := flushedAttrs(t, child)
	if attrs["screen"] != "open-wallet" || attrs["attempt"] != "1" {
		t.Fatalf("expected parent and child attrs, got %v", attrs)
	}
	entries, ok := attrs["entries"].([]map[string]any)
	if !ok || len(entries) != 2 {
		t.Fatalf("expected two entries, got %v", attrs["entries"])
	}
	if entries[0]["message"] != "verifying" || entries[1]["seq"] != uint64(2) {
		t.Fatalf("unexpected entries %v", entries)
	}
}

func TestAddAppendsAttrs(t *testing.T) {
	logger := New()
	logger.Add(slog.String("phase", "finished"))
	attrs := flushedAttrs(t, logger)
	if attrs["phase"] != "finished" {
		t.Fatalf("expected phase attr, got %v", attrs)
	}
}

func TestFlushResetsBuffer(t *testing.T) {
	logger := New()
	logger.Warn("first")
	if logger.Len() != 1 {
		t.Fatalf("expected one entry, got %d", logger.Len())
	}
	_ = logger.Flush()
	if logger.Len() != 0 {
		t.Fatalf("expected empty buffer after flush")
	}
	logger.Error("second")
	if logger.buffer.seq != 1 {
		t.Fatalf("expected seq to restart at 1, got %d", logger.buffer.seq)
	}
}

func TestEntriesToPayloadKeepsReservedKeys(t *testing.T) {
	entries := []Entry{{
		Level:   slog.LevelInfo,
		Message: "hello",
		At:      time.Now().UTC(),
		Seq:     1,
		Attrs:   []slog.Attr{slog.String("message", "override"), slog.String("extra", "ok")},
	}}

	payload := entriesToPayload(entries)
	if payload[0]["message"] != "hello" {
		t.Fatalf("expected reserved message to stay, got %v", payload[0]["message"])
	}
	if payload[0]["extra"] != "ok" || payload[0]["level"] != "INFO" {
		t.Fatalf("unexpected payload %v", payload[0])
	}
}

func TestConcurrentLogging(t *testing.T) {
	logger := New()
	const count = 50
	var wg sync.WaitGroup
	wg.Add(count)
	for i := 0; i < count; i++ {
		go func(i int) {
			defer wg.Done()
			logger.Debug("msg", slog.Int("i", i))
		}(i)
	}
	wg.Wait()

	entries, ok := flushedAttrs(t, logger)["entries"].([]map[string]any)
	if !ok || len(entries) != count {
		t.Fatalf("expected %d entries, got %v", count, len(entries))
	}
}

func TestFromContext(t *testing.T) {
	logger := New()
	ctx := WithContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected stored logger")
	}

	detached := FromContext(context.Background())
	detached.Info("dropped")
	if detached.Len() != 0 {
		t.Fatalf("detached logger must not buffer")
	}
}
