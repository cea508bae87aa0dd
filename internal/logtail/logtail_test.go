package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "explorer.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

func TestRead(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf(`{"level":"info","ts":"2026-01-02T15:04:05.000Z","msg":"line %d"}`, i))
	}
	path := writeLog(t, lines...)

	tests := []struct {
		name     string
		maxLines int
		first    string
		count    int
	}{
		{name: "zero", maxLines: 0, count: 0},
		{name: "negative", maxLines: -1, count: 0},
		{name: "partial", maxLines: 5, first: "line 6", count: 5},
		{name: "exact", maxLines: 10, first: "line 1", count: 10},
		{name: "more than exists", maxLines: 20, first: "line 1", count: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(path, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if len(got) != tt.count {
				t.Fatalf("Read() returned %d entries, want %d", len(got), tt.count)
			}
			if tt.count > 0 && got[0].Message != tt.first {
				t.Fatalf("first message = %q, want %q", got[0].Message, tt.first)
			}
			if tt.count > 0 && got[len(got)-1].Message != "line 10" {
				t.Fatalf("last message = %q, want line 10", got[len(got)-1].Message)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Read() = %v, want nil", got)
	}
}

func TestRead_SkipsBlankLines(t *testing.T) {
	path := writeLog(t, "first", "", "   ", "second")
	got, err := Read(path, 2)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(got) != 2 || got[0].Message != "first" || got[1].Message != "second" {
		t.Fatalf("Read() = %+v", got)
	}
}

func TestParse(t *testing.T) {
	e := Parse(`{"level":"warn","ts":"2026-01-02T15:04:05.123Z","caller":"kvstore/store.go:120","msg":"persist failed","key":"explorer:favorites","attempt":2}`)
	if e.Level != zapcore.WarnLevel {
		t.Fatalf("level = %v, want warn", e.Level)
	}
	if e.Message != "persist failed" {
		t.Fatalf("message = %q", e.Message)
	}
	if e.Caller != "kvstore/store.go:120" {
		t.Fatalf("caller = %q", e.Caller)
	}
	if e.Time.Year() != 2026 || e.Time.Nanosecond() != 123000000 {
		t.Fatalf("time = %v", e.Time)
	}
	if got := e.FieldString(); got != "attempt=2 key=explorer:favorites" {
		t.Fatalf("FieldString() = %q", got)
	}

	plain := Parse("not json at all")
	if plain.Level != zapcore.InfoLevel || plain.Message != "not json at all" || plain.Fields != nil {
		t.Fatalf("Parse(plain) = %+v", plain)
	}
}

func TestAtLeast(t *testing.T) {
	entries := []Entry{
		{Level: zapcore.DebugLevel, Message: "d"},
		{Level: zapcore.InfoLevel, Message: "i"},
		{Level: zapcore.ErrorLevel, Message: "e"},
	}
	got := AtLeast(entries, zapcore.InfoLevel)
	if len(got) != 2 || got[0].Message != "i" || got[1].Message != "e" {
		t.Fatalf("AtLeast() = %+v", got)
	}
}
