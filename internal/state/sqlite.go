package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// TimelineMirror persists timeline records to sqlite for post-game
// review. It is write-behind relative to the in-memory store: appends are
// best-effort and a mirror failure never fails the operation that
// produced the record.
type TimelineMirror struct {
	db *sql.DB
}

// OpenTimelineMirror opens (or creates) the sqlite database at path and
// applies the schema.
func OpenTimelineMirror(path string) (*TimelineMirror, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open timeline db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS timeline (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind       TEXT NOT NULL,
			summary    TEXT NOT NULL,
			payload    TEXT,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_timeline_session ON timeline(session_id, id);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate timeline db: %w", err)
	}
	return &TimelineMirror{db: db}, nil
}

// Append writes one record.
func (m *TimelineMirror) Append(ctx context.Context, sessionID string, rec TimelineRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO timeline (id, session_id, kind, summary, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, sessionID, rec.Kind, rec.Summary, string(payload), rec.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"))
	if err != nil {
		return fmt.Errorf("insert timeline record: %w", err)
	}
	return nil
}

// Records returns all mirrored records for a session in id (ULID) order.
func (m *TimelineMirror) Records(ctx context.Context, sessionID string) ([]TimelineRecord, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, kind, summary, payload, created_at FROM timeline WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var out []TimelineRecord
	for rows.Next() {
		var rec TimelineRecord
		var payload, createdAt string
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Summary, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan timeline record: %w", err)
		}
		rec.SessionID = sessionID
		if payload != "" && payload != "null" {
			if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload for %s: %w", rec.ID, err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (m *TimelineMirror) Close() error {
	return m.db.Close()
}
