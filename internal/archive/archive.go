// Package archive indexes capture sessions and persisted calibration
// records in a local SQLite database. The pipeline and sink keep their
// hot paths free of database work; the archive is written to from
// lifecycle transitions and the sink worker only.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smazurov/depthnode/internal/calib"
	"github.com/smazurov/depthnode/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	selection       TEXT NOT NULL,
	started_at      TEXT NOT NULL,
	stopped_at      TEXT,
	ticks           INTEGER NOT NULL DEFAULT 0,
	bundles         INTEGER NOT NULL DEFAULT 0,
	samples_dropped INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS calibrations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id       TEXT NOT NULL,
	timestamp_ms     REAL NOT NULL,
	description      TEXT NOT NULL,
	distortion_file  TEXT,
	distortion_bytes INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_calibrations_session
	ON calibrations(session_id);
`

// Session is one indexed capture session.
type Session struct {
	ID             string  `json:"id" doc:"Session identifier"`
	Selection      string  `json:"selection" doc:"Source selection the session ran with"`
	StartedAt      string  `json:"started_at" doc:"Start time, RFC 3339"`
	StoppedAt      *string `json:"stopped_at,omitempty" doc:"Stop time, RFC 3339; absent while running"`
	Ticks          uint64  `json:"ticks" doc:"Synchronization ticks formed"`
	Bundles        uint64  `json:"bundles" doc:"Bundles dispatched"`
	SamplesDropped uint64  `json:"samples_dropped" doc:"Samples dropped across sources"`
}

// Calibration is one indexed calibration record.
type Calibration struct {
	ID              int64   `json:"id" doc:"Row identifier"`
	SessionID       string  `json:"session_id" doc:"Session the record belongs to"`
	TimestampMillis float64 `json:"timestamp_ms" doc:"Presentation time of the depth sample"`
	Description     string  `json:"description" doc:"Human-readable calibration summary"`
	DistortionFile  string  `json:"distortion_file,omitempty" doc:"Distortion table file, when present"`
	DistortionBytes int     `json:"distortion_bytes" doc:"Size of the distortion table"`
}

// DB is the archive handle. It satisfies the pipeline's session
// recorder and the sink's calibration recorder.
type DB struct {
	db  *sql.DB
	log *slog.Logger

	mu      sync.Mutex
	current string
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	// modernc.org/sqlite serializes access itself, but a single
	// connection keeps transactions from contending on the file lock.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying archive schema: %w", err)
	}
	return &DB{
		db:  db,
		log: logging.GetLogger("archive"),
	}, nil
}

// Close closes the underlying database.
func (a *DB) Close() error {
	return a.db.Close()
}

// SessionStarted indexes a new session and marks it current, so
// calibration records land under it.
func (a *DB) SessionStarted(id, selection string, at time.Time) error {
	a.mu.Lock()
	a.current = id
	a.mu.Unlock()

	_, err := a.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, selection, started_at) VALUES (?, ?, ?)`,
		id, selection, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("indexing session start: %w", err)
	}
	a.log.Debug("session indexed", "session_id", id, "selection", selection)
	return nil
}

// SessionStopped finalizes a session's row with its counters.
func (a *DB) SessionStopped(id string, ticks, bundles, dropped uint64, at time.Time) error {
	a.mu.Lock()
	if a.current == id {
		a.current = ""
	}
	a.mu.Unlock()

	_, err := a.db.Exec(
		`UPDATE sessions SET stopped_at = ?, ticks = ?, bundles = ?, samples_dropped = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), ticks, bundles, dropped, id,
	)
	if err != nil {
		return fmt.Errorf("indexing session stop: %w", err)
	}
	return nil
}

// RecordCalibration indexes a persisted calibration record under the
// current session. Called from the sink worker after the artifacts
// reached disk.
func (a *DB) RecordCalibration(rec *calib.Record, distortionFile string) error {
	a.mu.Lock()
	session := a.current
	a.mu.Unlock()

	_, err := a.db.Exec(
		`INSERT INTO calibrations (session_id, timestamp_ms, description, distortion_file, distortion_bytes)
		 VALUES (?, ?, ?, ?, ?)`,
		session, rec.TimestampMillis, rec.Description(), distortionFile, len(rec.DistortionTable),
	)
	if err != nil {
		return fmt.Errorf("indexing calibration record: %w", err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (a *DB) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, selection, started_at, stopped_at, ticks, bundles, samples_dropped
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var stopped sql.NullString
		if err := rows.Scan(&s.ID, &s.Selection, &s.StartedAt, &stopped,
			&s.Ticks, &s.Bundles, &s.SamplesDropped); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if stopped.Valid {
			s.StoppedAt = &stopped.String
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Calibrations returns the most recently indexed calibration records,
// newest first.
func (a *DB) Calibrations(ctx context.Context, limit int) ([]Calibration, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, session_id, timestamp_ms, description, distortion_file, distortion_bytes
		 FROM calibrations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying calibrations: %w", err)
	}
	defer rows.Close()

	var out []Calibration
	for rows.Next() {
		var c Calibration
		var file sql.NullString
		if err := rows.Scan(&c.ID, &c.SessionID, &c.TimestampMillis,
			&c.Description, &file, &c.DistortionBytes); err != nil {
			return nil, fmt.Errorf("scanning calibration row: %w", err)
		}
		c.DistortionFile = file.String
		out = append(out, c)
	}
	return out, rows.Err()
}
