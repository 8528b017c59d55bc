package testutil

import (
	"sync"

	"github.com/domgolonka/ai-investment-agent-sub001/logging"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// RecordingLogger captures log calls for assertions. Safe for concurrent use.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ logging.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

// Debug records a debug entry.
func (l *RecordingLogger) Debug(msg string, args ...any) { l.add("DEBUG", msg, args) }

// Info records an info entry.
func (l *RecordingLogger) Info(msg string, args ...any) { l.add("INFO", msg, args) }

// Warn records a warn entry.
func (l *RecordingLogger) Warn(msg string, args ...any) { l.add("WARN", msg, args) }

// Error records an error entry.
func (l *RecordingLogger) Error(msg string, args ...any) { l.add("ERROR", msg, args) }

// Entries returns a copy of the captured entries.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Count returns how many entries have the given level and message.
func (l *RecordingLogger) Count(level, msg string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level && e.Msg == msg {
			n++
		}
	}
	return n
}
