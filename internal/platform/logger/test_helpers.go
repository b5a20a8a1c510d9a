package logger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogBuffer collects JSON log lines written by a logger under test. It is
// safe for concurrent use, so workers may log into it.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything written so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Reset discards the collected output.
func (b *LogBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// Entries decodes one JSON object per line and fails t on malformed output.
func (b *LogBuffer) Entries(t testing.TB) []map[string]any {
	t.Helper()

	var entries []map[string]any
	sc := bufio.NewScanner(strings.NewReader(b.String()))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("malformed log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

// HasField reports whether some entry has field set to want.
func (b *LogBuffer) HasField(t testing.TB, field string, want any) bool {
	t.Helper()
	for _, entry := range b.Entries(t) {
		if v, ok := entry[field]; ok && v == want {
			return true
		}
	}
	return false
}

// CaptureLogger returns a debug level JSON logger writing into a fresh
// LogBuffer.
func CaptureLogger(t testing.TB) (*slog.Logger, *LogBuffer) {
	t.Helper()

	buf := &LogBuffer{}
	l := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l, buf
}
