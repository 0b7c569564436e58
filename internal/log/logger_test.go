package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponentDoesNotDuplicate(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf, Component: ComponentApp})
	l.WithComponent(ComponentAccessor).Info("hello")

	line := strings.TrimSpace(buf.String())
	if strings.Count(line, `"component"`) != 1 {
		t.Fatalf("component repeated: %s", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["component"] != ComponentAccessor {
		t.Fatalf("component = %v", rec["component"])
	}
}

func TestLogMutationLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))

	sl.LogMutation(context.Background(), OpCreate, "transaction", "t1", nil)
	sl.LogMutation(context.Background(), OpDelete, "category", "c1", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"INFO"`) || !strings.Contains(lines[0], `"entity_id":"t1"`) {
		t.Fatalf("unexpected first record: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"ERROR"`) || !strings.Contains(lines[1], `"error":"boom"`) {
		t.Fatalf("unexpected second record: %s", lines[1])
	}
}
