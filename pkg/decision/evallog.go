package decision

import (
	"sync"
	"time"
)

// EvalLogEntry captures one evaluation for auditability.
type EvalLogEntry struct {
	TableID      string           `json:"table_id"`
	TableVersion int              `json:"table_version"`
	Inputs       map[string]any   `json:"inputs"`
	Outputs      map[string]any   `json:"outputs,omitempty"`
	OutputList   []map[string]any `json:"output_list,omitempty"`
	MatchedRules []string         `json:"matched_rules,omitempty"`
	Success      bool             `json:"success"`
	DurationMs   int64            `json:"duration_ms"`
	Source       string           `json:"source,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// EvalLog is an append-only bounded ring of evaluation entries. Once the cap
// is reached the oldest entries are dropped.
type EvalLog struct {
	mu      sync.Mutex
	cap     int
	entries []EvalLogEntry
}

const defaultEvalLogCap = 1000

// NewEvalLog creates a log bounded to capacity entries. Non-positive
// capacities fall back to the default.
func NewEvalLog(capacity int) *EvalLog {
	if capacity <= 0 {
		capacity = defaultEvalLogCap
	}

	return &EvalLog{cap: capacity}
}

// Append records an entry, evicting the oldest when full.
func (l *EvalLog) Append(entry EvalLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)

	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Entries returns a snapshot of the log, oldest first.
func (l *EvalLog) Entries() []EvalLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]EvalLogEntry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Len returns the number of retained entries.
func (l *EvalLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
