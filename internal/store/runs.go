package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one invocation of the scraper over a batch of permits.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Requested  int        `json:"requested"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Status     string     `json:"status"`
}

// StartRun records the start of a run over requested permits.
func (s *Store) StartRun(ctx context.Context, requested int) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Requested: requested,
		Status:    RunRunning,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_runs (id, started_at, requested, status) VALUES ($1, $2, $3, $4)`,
		run.ID, run.StartedAt.Format(timeLayout), run.Requested, run.Status)
	if err != nil {
		return nil, fmt.Errorf("starting run: %w", err)
	}
	return run, nil
}

// FinishRun records the outcome of run. A run with no successes while
// permits were requested is marked failed.
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = RunCompleted
	if run.Requested > 0 && run.Succeeded == 0 {
		run.Status = RunFailed
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scrape_runs SET finished_at = $1, succeeded = $2, failed = $3, status = $4 WHERE id = $5`,
		now.Format(timeLayout), run.Succeeded, run.Failed, run.Status, run.ID)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, requested, succeeded, failed, status FROM scrape_runs WHERE id = $1`, id).
		Scan(&run.ID, &started, &finished, &run.Requested, &run.Succeeded, &run.Failed, &run.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("parsing run start: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parsing run finish: %w", err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}
