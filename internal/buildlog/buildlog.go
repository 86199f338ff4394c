// Package buildlog is the append-only, typed event log of a build run.
package buildlog

import (
	"sync"
	"time"

	"agentcluster/internal/logging"
)

// EntryType classifies a log entry.
type EntryType string

const (
	TypeInfo     EntryType = "info"
	TypeSuccess  EntryType = "success"
	TypeWarning  EntryType = "warning"
	TypeError    EntryType = "error"
	TypeTool     EntryType = "tool"
	TypeFragment EntryType = "fragment"
	TypeSystem   EntryType = "system"
)

// AllTypes lists every EntryType.
var AllTypes = []EntryType{TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeTool, TypeFragment, TypeSystem}

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeTool, TypeFragment, TypeSystem:
		return true
	}
	return false
}

// Entry is one log line.
type Entry struct {
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      EntryType `json:"type"`
	AgentID   string    `json:"agent_id,omitempty"`
}

// Log is an append-only entry sequence. Ids keep increasing across Clear.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  uint64
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append adds an entry and returns it. Unknown types are recorded as info.
func (l *Log) Append(message string, typ EntryType, agentID string) Entry {
	if !typ.Valid() {
		logging.Get(logging.CategoryBuildLog).Warn("Unknown entry type %q, recording as info", typ)
		typ = TypeInfo
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	e := Entry{
		ID:        l.nextID,
		Timestamp: l.now(),
		Message:   message,
		Type:      typ,
		AgentID:   agentID,
	}
	l.entries = append(l.entries, e)
	return e
}

// Clear drops all entries. Only called when a new run starts.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	logging.Get(logging.CategoryBuildLog).Debug("Clearing %d entries", len(l.entries))
	l.entries = nil
}

// Entries returns a copy of all entries in insertion order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns entries with an id greater than afterID.
func (l *Log) Since(afterID uint64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, e := range l.entries {
		if e.ID > afterID {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Count returns how many entries have the given type.
func (l *Log) Count(typ EntryType) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, e := range l.entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}
