package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pixelreco/internal/pixel"
	"github.com/banshee-data/pixelreco/internal/timeutil"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one pass of the producer over an input source.
type Run struct {
	RunID        string
	CreatedAt    time.Time
	SourcePath   string
	ClusterMode  string
	DigiProducer string
	ConfigJSON   []byte
	Status       string
	ErrorMessage string

	Events       int
	DetUnits     int
	Clusters     int
	FailedEvents int
	NotReady     int

	CompletedAt  time.Time
	ProcessingMs int64
}

// RunStats are the counters written when a run finishes.
type RunStats struct {
	Events       int
	DetUnits     int
	Clusters     int
	FailedEvents int
	NotReady     int
	ProcessingMs int64
}

// RunStore reads and writes pixel_runs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a run store.
func NewRunStore(db *DB) *RunStore { return &RunStore{db: db} }

// InsertRun stores a new run.
func (s *RunStore) InsertRun(ctx context.Context, r *Run) error {
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO pixel_runs (
				run_id, created_at, source_path, cluster_mode, digi_producer,
				config_json, status
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.CreatedAt.UnixNano(), r.SourcePath, r.ClusterMode, r.DigiProducer,
			string(r.ConfigJSON), r.Status,
		)
		return err
	})
}

// CompleteRun marks a run completed and records its statistics.
func (s *RunStore) CompleteRun(ctx context.Context, runID string, stats RunStats, at time.Time) error {
	return s.finish(ctx, runID, RunStatusCompleted, "", stats, at)
}

// FailRun marks a run failed.
func (s *RunStore) FailRun(ctx context.Context, runID, errMsg string, stats RunStats, at time.Time) error {
	return s.finish(ctx, runID, RunStatusFailed, errMsg, stats, at)
}

func (s *RunStore) finish(ctx context.Context, runID, status, errMsg string, stats RunStats, at time.Time) error {
	var res sql.Result
	err := retryOnBusy(func() error {
		var err error
		res, err = s.db.ExecContext(ctx, `
			UPDATE pixel_runs SET
				status = ?, error_message = ?, events = ?, det_units = ?, clusters = ?,
				failed_events = ?, not_ready = ?, completed_at = ?, processing_ms = ?
			WHERE run_id = ?`,
			status, errMsg, stats.Events, stats.DetUnits, stats.Clusters,
			stats.FailedEvents, stats.NotReady, at.UnixNano(), stats.ProcessingMs,
			runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `run_id, created_at, source_path, cluster_mode, digi_producer, config_json,
	status, error_message, events, det_units, clusters, failed_events, not_ready,
	completed_at, processing_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                        Run
		createdAt                int64
		sourcePath, digiProducer sql.NullString
		configJSON, errMsg       sql.NullString
		completedAt, procMs      sql.NullInt64
	)
	if err := row.Scan(&r.RunID, &createdAt, &sourcePath, &r.ClusterMode, &digiProducer, &configJSON,
		&r.Status, &errMsg, &r.Events, &r.DetUnits, &r.Clusters, &r.FailedEvents, &r.NotReady,
		&completedAt, &procMs); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdAt)
	r.SourcePath = sourcePath.String
	r.DigiProducer = digiProducer.String
	if configJSON.Valid {
		r.ConfigJSON = []byte(configJSON.String)
	}
	r.ErrorMessage = errMsg.String
	if completedAt.Valid {
		r.CompletedAt = time.Unix(0, completedAt.Int64)
	}
	r.ProcessingMs = procMs.Int64
	return &r, nil
}

// GetRun loads a run by id.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pixel_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM pixel_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunParams describe a run at start.
type RunParams struct {
	SourcePath   string
	ClusterMode  string
	DigiProducer string
	ConfigJSON   []byte
}

// RunManager tracks the lifecycle of the current run and accumulates its
// counters. It is safe for concurrent use.
type RunManager struct {
	mu        sync.Mutex
	store     *RunStore
	clock     timeutil.Clock
	current   *Run
	startTime time.Time
	stats     RunStats
}

// NewRunManager creates a run manager. A nil clock uses the wall clock.
func NewRunManager(db *DB, clock timeutil.Clock) *RunManager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunManager{store: NewRunStore(db), clock: clock}
}

// Store returns the underlying run store.
func (m *RunManager) Store() *RunStore { return m.store }

// StartRun begins a new run and returns its id. Any run still open is
// replaced without being finished.
func (m *RunManager) StartRun(ctx context.Context, p RunParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	run := &Run{
		RunID:        uuid.New().String(),
		CreatedAt:    now,
		SourcePath:   p.SourcePath,
		ClusterMode:  p.ClusterMode,
		DigiProducer: p.DigiProducer,
		ConfigJSON:   p.ConfigJSON,
		Status:       RunStatusRunning,
	}
	if err := m.store.InsertRun(ctx, run); err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}

	m.current = run
	m.startTime = now
	m.stats = RunStats{}
	pixel.Diagf("run %s started for %s (mode %s)", run.RunID, p.SourcePath, p.ClusterMode)
	return run.RunID, nil
}

// RunID returns the id of the open run, or "" when none is open.
func (m *RunManager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.RunID
}

// RecordEvent adds one successfully processed event.
func (m *RunManager) RecordEvent(detUnits, clusters int, notReady bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Events++
	m.stats.DetUnits += detUnits
	m.stats.Clusters += clusters
	if notReady {
		m.stats.NotReady++
	}
}

// RecordFailedEvent counts an event dropped after a fatal error.
func (m *RunManager) RecordFailedEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.FailedEvents++
}

// Stats returns the counters of the open run.
func (m *RunManager) Stats() RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// CompleteRun finalises the open run. It is a no-op when no run is open.
func (m *RunManager) CompleteRun(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}

	now := m.clock.Now()
	m.stats.ProcessingMs = now.Sub(m.startTime).Milliseconds()
	if err := m.store.CompleteRun(ctx, m.current.RunID, m.stats, now); err != nil {
		return err
	}
	pixel.Diagf("run %s completed: %d events, %d clusters in %d detector units",
		m.current.RunID, m.stats.Events, m.stats.Clusters, m.stats.DetUnits)
	m.current = nil
	return nil
}

// FailRun marks the open run failed. It is a no-op when no run is open.
func (m *RunManager) FailRun(ctx context.Context, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}

	now := m.clock.Now()
	m.stats.ProcessingMs = now.Sub(m.startTime).Milliseconds()
	if err := m.store.FailRun(ctx, m.current.RunID, errMsg, m.stats, now); err != nil {
		return err
	}
	pixel.Opsf("run %s failed: %s", m.current.RunID, errMsg)
	m.current = nil
	return nil
}

// IsRunActive reports whether a run is open.
func (m *RunManager) IsRunActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}
