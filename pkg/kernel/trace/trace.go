// Package trace holds the execution log of a cursor and the append-only
// JSONL lifecycle trace written by the runtime.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// genesis is the prev_hash of the first event in a stream.
var genesis = strings.Repeat("0", 64)

// Event is a single trace record written to the JSONL stream. Every record
// carries the SHA-256 of the previous line, so edits break the chain.
type Event struct {
	Seq       int            `json:"seq"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	PrevHash  string         `json:"prev_hash"`
}

// Writer writes trace events to an append-only JSONL stream.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	seq      int
	prevHash string
	now      func() time.Time
}

// NewWriter creates a trace writer that writes to the given io.Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, prevHash: genesis, now: time.Now}
}

// NewFileWriter creates a trace writer that appends to a JSONL file. An
// existing file is scanned so the chain continues where it left off.
func NewFileWriter(path string) (*Writer, error) {
	prev, seq := genesis, 0
	if f, err := os.Open(path); err == nil {
		res, verr := Verify(f)
		f.Close()
		if verr != nil {
			return nil, verr
		}
		if !res.Valid {
			return nil, fmt.Errorf("trace %s is broken at event %d: %s", path, res.BrokenAt, res.Error)
		}
		if res.EventCount > 0 {
			prev, seq = res.ChainHash, res.EventCount
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f)
	tw.closer = f
	tw.prevHash, tw.seq = prev, seq
	return tw, nil
}

// WithClock replaces the timestamp source. Used by tests and by hosts
// running on a fake clock.
func (tw *Writer) WithClock(now func() time.Time) *Writer {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.now = now
	return tw
}

// Emit writes a single trace event stamped with the writer's clock.
func (tw *Writer) Emit(eventType, sessionID string, data map[string]any) error {
	return tw.EmitAt(time.Time{}, eventType, sessionID, data)
}

// EmitAt writes a single trace event stamped with at. A zero at means now.
func (tw *Writer) EmitAt(at time.Time, eventType, sessionID string, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if at.IsZero() {
		at = tw.now()
	}
	evt := Event{
		Seq:       tw.seq + 1,
		Type:      eventType,
		Timestamp: at.UTC(),
		SessionID: sessionID,
		Data:      data,
		PrevHash:  tw.prevHash,
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write trace event: %w", err)
	}
	h := sha256.Sum256(line)
	tw.prevHash = hex.EncodeToString(h[:])
	tw.seq = evt.Seq
	return nil
}

// Head returns the hash of the last written event.
func (tw *Writer) Head() string {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.prevHash
}

// Close closes the underlying file when the writer owns one.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}
