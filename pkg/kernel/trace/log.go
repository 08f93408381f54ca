package trace

import "time"

// Entry is one line of the execution log.
type Entry struct {
	Text    string    `json:"text"`
	BlockID string    `json:"block_id,omitempty"`
	At      time.Time `json:"at"`
}

// Log is the append-only execution log. Entries are never changed or
// removed once appended. A Log is not safe for concurrent use; its owner
// serializes access.
type Log struct {
	entries []Entry
}

// Append adds an entry at the end of the log.
func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

// Len returns the number of entries.
func (l *Log) Len() int { return len(l.entries) }

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a copy of all entries in insertion order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Texts returns the entry texts in insertion order.
func (l *Log) Texts() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Text
	}
	return out
}
