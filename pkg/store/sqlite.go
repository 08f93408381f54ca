package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ormasoftchile/goalrun/pkg/runtime"
)

// SQLiteEventStore stores lifecycle events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

var _ EventStore = (*SQLiteEventStore)(nil)

// OpenSQLite opens (or creates) the database at path and prepares the
// schema. Use ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLiteEventStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers from concurrent timer callbacks.
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteEventStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history %s: %w", path, err)
	}
	return s, nil
}

// NewSQLiteEventStore initializes the schema in db. The caller keeps
// ownership of db.
func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS lifecycle_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			schedule_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			workflow TEXT NOT NULL DEFAULT '',
			block_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			entry TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_lifecycle_events_session ON lifecycle_events(session_id, id);
		CREATE INDEX IF NOT EXISTS idx_lifecycle_events_schedule ON lifecycle_events(schedule_id, id);
	`)
	return err
}

// Close closes the underlying database.
func (s *SQLiteEventStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev runtime.Event) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events (at, type, schedule_id, session_id, workflow, block_id, kind, text, image, entry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		at.UnixNano(),
		string(ev.Type),
		ev.ScheduleID,
		ev.SessionID,
		ev.Workflow,
		ev.BlockID,
		ev.Kind,
		ev.Text,
		ev.Image,
		ev.Entry,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, id string) ([]runtime.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT at, type, schedule_id, session_id, workflow, block_id, kind, text, image, entry
		FROM lifecycle_events
		WHERE session_id = ? OR (session_id = '' AND schedule_id = ?)
		ORDER BY id ASC`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []runtime.Event
	for rows.Next() {
		var (
			ev  runtime.Event
			atN int64
			typ string
		)
		if err := rows.Scan(&atN, &typ, &ev.ScheduleID, &ev.SessionID, &ev.Workflow,
			&ev.BlockID, &ev.Kind, &ev.Text, &ev.Image, &ev.Entry); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, atN).UTC()
		ev.Type = runtime.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteEventStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id,
			MAX(schedule_id),
			MAX(workflow),
			MIN(at),
			MAX(at),
			COUNT(*),
			SUM(CASE WHEN type = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN type = ? THEN 1 ELSE 0 END)
		FROM lifecycle_events
		WHERE session_id != ''
		GROUP BY session_id
		ORDER BY MIN(at) ASC, MIN(id) ASC`,
		string(runtime.EventWorkflowFinished),
		string(runtime.EventWorkflowAborted),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum               SessionSummary
			first, last       int64
			finished, aborted int
		)
		if err := rows.Scan(&sum.SessionID, &sum.ScheduleID, &sum.Workflow,
			&first, &last, &sum.Events, &finished, &aborted); err != nil {
			return nil, err
		}
		sum.StartedAt = time.Unix(0, first).UTC()
		sum.LastAt = time.Unix(0, last).UTC()
		switch {
		case finished > 0:
			sum.Status = StatusFinished
		case aborted > 0:
			sum.Status = StatusAborted
		default:
			sum.Status = StatusRunning
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
