// Package logbuf collects breadcrumbs for a single task. Nothing is written
// while the task runs; the runner flushes the buffer as one slog group when
// the task ends, so a fatal report carries the steps that led to it.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

type Entry struct {
	Level   slog.Level
	Message string
	At      time.Time
	Seq     uint64
	Attrs   []slog.Attr
}

type Logger struct {
	mu     sync.Mutex
	attrs  []slog.Attr
	buffer *buffer
}

type buffer struct {
	mu      sync.Mutex
	entries []Entry
	seq     uint64
}

func New(attrs ...slog.Attr) *Logger {
	return &Logger{
		attrs:  append([]slog.Attr(nil), attrs...),
		buffer: &buffer{},
	}
}

// With returns a logger writing to the same buffer with extra attrs.
func (l *Logger) With(attrs ...slog.Attr) *Logger {
	if len(attrs) == 0 {
		return l
	}
	l.mu.Lock()
	merged := make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	merged = append(merged, l.attrs...)
	l.mu.Unlock()
	merged = append(merged, attrs...)
	return &Logger{attrs: merged, buffer: l.buffer}
}

// Add appends attrs to this logger; they show up on the flushed group.
func (l *Logger) Add(attrs ...slog.Attr) {
	if len(attrs) == 0 {
		return
	}
	l.mu.Lock()
	l.attrs = append(l.attrs, attrs...)
	l.mu.Unlock()
}

func (l *Logger) Debug(message string, attrs ...slog.Attr) {
	l.append(slog.LevelDebug, message, attrs)
}

func (l *Logger) Info(message string, attrs ...slog.Attr) {
	l.append(slog.LevelInfo, message, attrs)
}

func (l *Logger) Warn(message string, attrs ...slog.Attr) {
	l.append(slog.LevelWarn, message, attrs)
}

func (l *Logger) Error(message string, attrs ...slog.Attr) {
	l.append(slog.LevelError, message, attrs)
}

// Len is the number of buffered entries.
func (l *Logger) Len() int {
	if l == nil || l.buffer == nil {
		return 0
	}
	l.buffer.mu.Lock()
	defer l.buffer.mu.Unlock()
	return len(l.buffer.entries)
}

// Flush empties the buffer and returns the logger attrs plus an "entries"
// attr as an inline group, ready to pass to slog.Logger.Log.
func (l *Logger) Flush() slog.Attr {
	var entries []Entry
	if l.buffer != nil {
		l.buffer.mu.Lock()
		entries = l.buffer.entries
		l.buffer.entries = nil
		l.buffer.seq = 0
		l.buffer.mu.Unlock()
	}

	l.mu.Lock()
	args := make([]any, 0, len(l.attrs)+1)
	for _, attr := range l.attrs {
		args = append(args, attr)
	}
	l.mu.Unlock()
	args = append(args, slog.Any("entries", entriesToPayload(entries)))
	return slog.Group("", args...)
}

func (l *Logger) append(level slog.Level, message string, attrs []slog.Attr) {
	if l == nil || l.buffer == nil {
		return
	}
	l.buffer.mu.Lock()
	defer l.buffer.mu.Unlock()
	l.buffer.seq++
	entry := Entry{
		Level:   level,
		Message: message,
		At:      time.Now(),
		Seq:     l.buffer.seq,
	}
	if len(attrs) > 0 {
		entry.Attrs = append(entry.Attrs, attrs...)
	}
	l.buffer.entries = append(l.buffer.entries, entry)
}

func entriesToPayload(entries []Entry) []map[string]any {
	payload := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"message": entry.Message,
			"level":   entry.Level.String(),
			"at":      entry.At,
			"seq":     entry.Seq,
		}
		for key, value := range attrsToMap(entry.Attrs) {
			if _, exists := item[key]; !exists {
				item[key] = value
			}
		}
		payload = append(payload, item)
	}
	return payload
}

func attrsToMap(attrs []slog.Attr) map[string]any {
	result := map[string]any{}
	for _, attr := range attrs {
		if attr.Key == "" {
			if attr.Value.Kind() == slog.KindGroup {
				for key, value := range attrsToMap(attr.Value.Group()) {
					result[key] = value
				}
			}
			continue
		}
		if attr.Value.Kind() == slog.KindGroup {
			result[attr.Key] = attrsToMap(attr.Value.Group())
			continue
		}
		result[attr.Key] = attr.Value.Resolve().Any()
	}
	return result
}
