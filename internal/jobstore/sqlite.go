package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/jobs"
)

// SQLiteStore is an append-only log of job events.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the event database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryJobStore, "could not open job store").Fatal().
			WithContext("path", dbPath).Build()
	}
	// A second pooled connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryJobStore, "could not open job store").Fatal().
			WithContext("path", dbPath).Build()
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_events_job_id ON job_events(job_id);
	CREATE INDEX IF NOT EXISTS idx_job_events_timestamp ON job_events(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append writes ev to the log.
func (s *SQLiteStore) Append(ctx context.Context, ev jobs.Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapError(err, errors.CategoryJobStore, "failed to append job event").
			WithContext("job_id", ev.JobID).Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO job_events (job_id, event_type, timestamp, payload) VALUES (?, ?, ?, ?)",
		ev.JobID, string(ev.Type), ev.Time.UnixNano(), payload,
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryJobStore, "failed to append job event").Retryable().
			WithContext("job_id", ev.JobID).Build()
	}
	return nil
}

// ByJob returns one job's events in append order.
func (s *SQLiteStore) ByJob(ctx context.Context, jobID string) ([]jobs.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM job_events WHERE job_id = ? ORDER BY id", jobID)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryJobStore, "failed to query job events").Build()
	}
	defer rows.Close()
	return scanEvents(rows)
}

// All returns every stored event in append order.
func (s *SQLiteStore) All(ctx context.Context) ([]jobs.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM job_events ORDER BY id")
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryJobStore, "failed to query job events").Build()
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Prune deletes events older than cutoff and reports how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM job_events WHERE timestamp < ?", cutoff.UnixNano())
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryJobStore, "failed to prune job events").Build()
	}
	return res.RowsAffected()
}

func scanEvents(rows *sql.Rows) ([]jobs.Event, error) {
	var events []jobs.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.WrapError(err, errors.CategoryJobStore, "failed to query job events").Build()
		}
		var ev jobs.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, errors.WrapError(err, errors.CategoryJobStore, "failed to query job events").
				WithContext("reason", "corrupt payload").Build()
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryJobStore, "failed to query job events").Build()
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
