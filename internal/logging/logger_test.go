package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New().SetOutput(&buf)

	logger.Info("sync finished", map[string]interface{}{"friends": 2, "error": errors.New("boom")})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["level"] != "INFO" || e["message"] != "sync finished" {
		t.Fatalf("unexpected entry: %v", e)
	}
	if e["friends"] != float64(2) {
		t.Fatalf("expected friends field, got %v", e["friends"])
	}
	if e["error"] != "boom" {
		t.Fatalf("expected error string, got %v", e["error"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Fatal("expected timestamp")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New().SetOutput(&buf).SetLevel(LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "WARN" || entries[1]["level"] != "ERROR" {
		t.Fatalf("unexpected levels: %v", entries)
	}
}

func TestLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New().SetOutput(&buf)
	child := parent.WithField("session", 7)

	child.Info("child")
	parent.Info("parent")

	entries := decodeLines(t, &buf)
	if entries[0]["session"] != float64(7) {
		t.Fatalf("expected child field, got %v", entries[0])
	}
	if _, ok := entries[1]["session"]; ok {
		t.Fatalf("parent should not carry child fields: %v", entries[1])
	}
}

func TestLogger_SharedLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := New().SetOutput(&buf)
	child := parent.WithField("k", "v")
	parent.SetLevel(LevelError)

	child.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected child to follow parent level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "warning": LevelWarn, "error": LevelError, "": LevelInfo, "loud": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevel_String(t *testing.T) {
	if LevelWarn.String() != "WARN" || Level(42).String() != "UNKNOWN" {
		t.Fatal("unexpected level strings")
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger := NewWithFile(FileConfig{Path: path, MaxSizeMB: 1})
	logger.Info("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"to file"`) {
		t.Fatalf("unexpected file contents %q", data)
	}
}
