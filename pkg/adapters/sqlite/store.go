// Package sqlite persists projects and the event history in a single SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/aoide/internal/logging"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store implements ports.ProjectStore and ports.EventSink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ ports.ProjectStore = (*Store)(nil)
	_ ports.EventSink    = (*Store)(nil)
)

// Open creates or opens the database at path and applies the schema.
// It is safe to call repeatedly on the same file.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Save upserts the project.
func (s *Store) Save(ctx context.Context, p *domain.Project) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO projects (id, name, process, module, readiness, source, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    process = excluded.process,
    module = excluded.module,
    readiness = excluded.readiness,
    source = excluded.source,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at`,
		p.ID, p.Name, string(p.Process), p.Module, string(p.Readiness), p.Source,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

// Load reads a project.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	var (
		p                  domain.Project
		process, readiness string
		created, updated   string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, process, module, readiness, source, created_at, updated_at
FROM projects WHERE id = ?`, projectID).
		Scan(&p.ID, &p.Name, &process, &p.Module, &readiness, &p.Source, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}

	p.Process = domain.ProcessRef(process)
	p.Readiness = domain.Readiness(readiness)
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a project.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}
	return nil
}

// List returns project IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Record appends an event to the history. Failures are logged, not returned.
func (s *Store) Record(ctx context.Context, ev domain.LogEvent) {
	var payload string
	if ev.Payload != nil {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			data, _ = json.Marshal(fmt.Sprint(ev.Payload))
		}
		payload = string(data)
	}
	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
INSERT INTO events (id, ts, kind, label, process, payload, duration_ns)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, formatTime(ev.Timestamp), string(ev.Kind), ev.Label, string(ev.Process), payload, int64(ev.Duration),
	)
	if err != nil {
		s.logger.Warn("failed to persist event", "label", ev.Label, "err", err)
	}
}

// Events returns up to limit recorded events, oldest first. An empty process
// matches every event.
func (s *Store) Events(ctx context.Context, process domain.ProcessRef, limit int) ([]domain.LogEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts, kind, label, process, payload, duration_ns FROM (
    SELECT * FROM events WHERE ? = '' OR process = ? ORDER BY seq DESC LIMIT ?
) ORDER BY seq ASC`, string(process), string(process), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.LogEvent
	for rows.Next() {
		var (
			ev                   domain.LogEvent
			ts, kind, proc, body string
			dur                  int64
		)
		if err := rows.Scan(&ev.ID, &ts, &kind, &ev.Label, &proc, &body, &dur); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		ev.Kind = domain.EventKind(kind)
		ev.Process = domain.ProcessRef(proc)
		ev.Duration = time.Duration(dur)
		if body != "" {
			var payload any
			if err := json.Unmarshal([]byte(body), &payload); err == nil {
				ev.Payload = payload
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
