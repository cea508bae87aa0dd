package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one decoded log line.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Message string
	Caller  string
	Fields  map[string]any
	Raw     string
}

// Read returns at most maxLines entries from the end of the file at path. A
// missing file yields no entries.
func Read(path string, maxLines int) ([]Entry, error) {
	if maxLines <= 0 || strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	ring := make([]string, maxLines)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	idx := 0
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	entries := make([]Entry, count)
	start := 0
	if count == maxLines {
		start = idx
	}
	for i := 0; i < count; i++ {
		entries[i] = Parse(ring[(start+i)%maxLines])
	}
	return entries, nil
}

// Parse decodes a JSON line written by the logger. Lines that are not JSON
// come back as info entries carrying the raw text.
func Parse(line string) Entry {
	entry := Entry{Level: zapcore.InfoLevel, Message: line, Raw: line}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}
	if raw, ok := fields["level"].(string); ok {
		var lvl zapcore.Level
		if lvl.UnmarshalText([]byte(raw)) == nil {
			entry.Level = lvl
		}
	}
	if raw, ok := fields["ts"].(string); ok {
		if ts, err := time.Parse("2006-01-02T15:04:05.000Z0700", raw); err == nil {
			entry.Time = ts
		}
	}
	if msg, ok := fields["msg"].(string); ok {
		entry.Message = msg
	}
	if caller, ok := fields["caller"].(string); ok {
		entry.Caller = caller
	}
	for _, k := range []string{"level", "ts", "msg", "caller", "stacktrace"} {
		delete(fields, k)
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	return entry
}

// AtLeast keeps entries at or above min.
func AtLeast(entries []Entry, min zapcore.Level) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Level >= min {
			out = append(out, e)
		}
	}
	return out
}

// FieldString renders the extra fields as sorted key=value pairs.
func (e Entry) FieldString() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return strings.Join(parts, " ")
}
