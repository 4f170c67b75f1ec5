// Package catalog keeps a SQLite record of every recording session and the
// outcome of each of its cameras.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"kepler-recorder-go/internal/models"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Catalog wraps the SQLite connection.
type Catalog struct {
	conn *sql.DB
}

// New opens (creating if needed) the catalog database at path.
func New(path string) (*Catalog, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	c := &Catalog{conn: conn}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		output_dir TEXT NOT NULL,
		mode TEXT NOT NULL,
		target_duration_ms INTEGER NOT NULL,
		target_fps REAL NOT NULL,
		cameras TEXT NOT NULL DEFAULT '[]',
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS camera_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		camera TEXT NOT NULL,
		state TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		frame_count INTEGER NOT NULL DEFAULT 0,
		decode_errors INTEGER NOT NULL DEFAULT 0,
		discarded INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		average_fps REAL NOT NULL DEFAULT 0,
		writer_fps REAL NOT NULL DEFAULT 0,
		reconciled INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME,
		finished_at DATETIME,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_session_id ON camera_outcomes(session_id);
	`

	_, err := c.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// SaveSession inserts or replaces a session together with its outcomes.
func (c *Catalog) SaveSession(ctx context.Context, s *models.RecordingSession) error {
	cameras, err := json.Marshal(s.Cameras)
	if err != nil {
		return fmt.Errorf("encode cameras: %w", err)
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, output_dir, mode, target_duration_ms, target_fps, cameras, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output_dir = excluded.output_dir,
			cameras = excluded.cameras,
			finished_at = excluded.finished_at,
			error = excluded.error`,
		s.ID, s.OutputDir, s.Mode.String(), s.TargetDuration.Milliseconds(), s.TargetFPS,
		string(cameras), s.StartedAt.UTC(), nullTime(s.FinishedAt), s.Error)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM camera_outcomes WHERE session_id = ?`, s.ID); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}

	for _, o := range s.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO camera_outcomes (session_id, camera, state, output_path, frame_count, decode_errors,
				discarded, elapsed_ms, average_fps, writer_fps, reconciled, error, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, o.Camera, o.State.String(), o.OutputPath, o.FrameCount, o.DecodeErrors, o.Discarded,
			o.Elapsed.Milliseconds(), o.AverageFPS, o.WriterFPS, o.Reconciled, o.Error,
			nullTime(o.StartedAt), nullTime(o.FinishedAt))
		if err != nil {
			return fmt.Errorf("save outcome %s: %w", o.Camera, err)
		}
	}

	return tx.Commit()
}

// ListSessions returns the newest sessions first, without their outcomes.
func (c *Catalog) ListSessions(ctx context.Context, limit int) ([]models.RecordingSession, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.conn.QueryContext(ctx, `
		SELECT id, output_dir, mode, target_duration_ms, target_fps, cameras, started_at, finished_at, error
		FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.RecordingSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// GetSession returns one session with its camera outcomes.
func (c *Catalog) GetSession(ctx context.Context, id string) (*models.RecordingSession, error) {
	row := c.conn.QueryRowContext(ctx, `
		SELECT id, output_dir, mode, target_duration_ms, target_fps, cameras, started_at, finished_at, error
		FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx, `
		SELECT camera, state, output_path, frame_count, decode_errors, discarded, elapsed_ms, average_fps,
			writer_fps, reconciled, error, started_at, finished_at
		FROM camera_outcomes WHERE session_id = ? ORDER BY camera`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o         models.CameraOutcome
			state     string
			elapsedMS int64
			started   sql.NullTime
			finished  sql.NullTime
		)
		if err := rows.Scan(&o.Camera, &state, &o.OutputPath, &o.FrameCount, &o.DecodeErrors, &o.Discarded, &elapsedMS,
			&o.AverageFPS, &o.WriterFPS, &o.Reconciled, &o.Error, &started, &finished); err != nil {
			return nil, err
		}
		o.State = models.CameraState(state)
		o.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		o.StartedAt = started.Time
		o.FinishedAt = finished.Time
		s.Outcomes = append(s.Outcomes, o)
	}
	return s, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.RecordingSession, error) {
	var (
		s          models.RecordingSession
		mode       string
		durationMS int64
		cameras    string
		finished   sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.OutputDir, &mode, &durationMS, &s.TargetFPS, &cameras,
		&s.StartedAt, &finished, &s.Error); err != nil {
		return nil, err
	}

	s.Mode = models.CaptureMode(mode)
	s.TargetDuration = time.Duration(durationMS) * time.Millisecond
	s.FinishedAt = finished.Time
	if err := json.Unmarshal([]byte(cameras), &s.Cameras); err != nil {
		return nil, fmt.Errorf("decode cameras of %s: %w", s.ID, err)
	}
	return &s, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
