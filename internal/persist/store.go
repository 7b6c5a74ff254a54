// Package persist provides the SQLite-backed Setup Progress Store: the
// durable per-user record of wizard progress and the committed workspace
// configuration.
package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"stocksetup/internal/setup"
	"stocksetup/pkg/contracts/domain"
)

// Store persists SetupProgress and Configuration records keyed by user.
// Same-user writes are serialized by the store mutex, which gives the
// read-after-write consistency the state machine relies on.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens (or creates) the SQLite database at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS setup_progress (
			user_id          TEXT PRIMARY KEY,
			current_step     INTEGER NOT NULL,
			completed_steps  TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS configurations (
			user_id         TEXT PRIMARY KEY,
			analyses_db_id  TEXT NOT NULL,
			history_db_id   TEXT NOT NULL,
			page_id         TEXT NOT NULL,
			committed_at    TEXT NOT NULL
		);
	`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProgress returns the user's progress, creating the default record
// (step 1, nothing completed) on first query.
func (s *Store) GetProgress(ctx context.Context, userID string) (domain.SetupProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateProgress(ctx, userID)
}

func (s *Store) getOrCreateProgress(ctx context.Context, userID string) (domain.SetupProgress, error) {
	progress, err := s.readProgress(ctx, userID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.SetupProgress{}, fmt.Errorf("failed to read progress: %w", err)
	}

	progress = domain.SetupProgress{
		UserID:         userID,
		CurrentStep:    domain.StepAuthorize,
		CompletedSteps: []int{},
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.writeProgress(ctx, progress); err != nil {
		return domain.SetupProgress{}, err
	}
	return progress, nil
}

func (s *Store) readProgress(ctx context.Context, userID string) (domain.SetupProgress, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_step, completed_steps, updated_at
		FROM setup_progress WHERE user_id = ?
	`, userID)

	var p domain.SetupProgress
	var step int
	var completed, updatedAt string
	if err := row.Scan(&p.UserID, &step, &completed, &updatedAt); err != nil {
		return domain.SetupProgress{}, err
	}

	p.CurrentStep = domain.Step(step)
	if err := json.Unmarshal([]byte(completed), &p.CompletedSteps); err != nil {
		return domain.SetupProgress{}, fmt.Errorf("corrupt completed_steps for %s: %w", userID, err)
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p, nil
}

func (s *Store) writeProgress(ctx context.Context, p domain.SetupProgress) error {
	completed, err := json.Marshal(p.CompletedSteps)
	if err != nil {
		return fmt.Errorf("failed to encode completed steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO setup_progress (user_id, current_step, completed_steps, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_step = excluded.current_step,
			completed_steps = excluded.completed_steps,
			updated_at = excluded.updated_at
	`, p.UserID, int(p.CurrentStep), string(completed), p.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	return nil
}

// Advance moves the user to the requested step and marks every prerequisite
// whose completion criteria are now satisfied. Calling Advance twice with
// the same step yields the same record. A step outside [1,6], or one whose
// prerequisites are not yet satisfied, fails with ErrInvalidTransition and
// leaves the record unchanged; steps are never silently clamped.
//
// Steps 2 and 3 are user-driven: requesting them marks everything below as
// complete (the request itself is evidence the lower steps happened). Steps
// 4 through 6 complete only through the confirmation cascade, so they are
// gated on a committed Configuration.
func (s *Store) Advance(ctx context.Context, userID string, step domain.Step) (domain.SetupProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !step.Valid() {
		return domain.SetupProgress{}, fmt.Errorf("step %d out of range: %w", step, setup.ErrInvalidTransition)
	}

	progress, err := s.getOrCreateProgress(ctx, userID)
	if err != nil {
		return domain.SetupProgress{}, err
	}

	// Idempotent re-entry (page reload, retried request).
	if step <= progress.CurrentStep {
		return progress, nil
	}

	if step >= domain.StepFirstAnalysis {
		cfg, err := s.readConfiguration(ctx, userID)
		if err != nil {
			return domain.SetupProgress{}, err
		}
		if cfg == nil {
			return domain.SetupProgress{}, fmt.Errorf(
				"step %d requires a committed configuration (current step %d): %w",
				step, progress.CurrentStep, setup.ErrInvalidTransition)
		}
	}

	completedThrough := int(step) - 1
	if step == domain.StepComplete {
		// The terminal step's completion criterion is the committed
		// configuration checked above, so reaching it completes it.
		completedThrough = int(step)
	}

	progress.CurrentStep = step
	progress.CompletedSteps = mergeCompleted(progress.CompletedSteps, completedThrough)
	progress.UpdatedAt = time.Now().UTC()

	if err := s.writeProgress(ctx, progress); err != nil {
		return domain.SetupProgress{}, err
	}
	return progress, nil
}

// mergeCompleted returns the union of existing and 1..upTo, sorted.
// Membership is monotonic: nothing is ever removed.
func mergeCompleted(existing []int, upTo int) []int {
	seen := make(map[int]bool, len(existing)+upTo)
	for _, n := range existing {
		seen[n] = true
	}
	for n := 1; n <= upTo; n++ {
		seen[n] = true
	}
	merged := make([]int, 0, len(seen))
	for n := range seen {
		merged = append(merged, n)
	}
	sort.Ints(merged)
	return merged
}

// GetConfiguration returns the committed configuration, or nil if the user
// has not completed setup.
func (s *Store) GetConfiguration(ctx context.Context, userID string) (*domain.Configuration, error) {
	return s.readConfiguration(ctx, userID)
}

func (s *Store) readConfiguration(ctx context.Context, userID string) (*domain.Configuration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT analyses_db_id, history_db_id, page_id, committed_at
		FROM configurations WHERE user_id = ?
	`, userID)

	var cfg domain.Configuration
	var committedAt string
	err := row.Scan(&cfg.AnalysesDBID, &cfg.HistoryDBID, &cfg.PageID, &committedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, committedAt); err == nil {
		cfg.CommittedAt = t
	}
	return &cfg, nil
}

// Commit atomically overwrites the user's configuration. All three
// identifiers are written in a single statement inside a transaction, so a
// concurrent read sees either the old mapping or the new one, never a mix.
func (s *Store) Commit(ctx context.Context, userID string, cfg domain.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO configurations (user_id, analyses_db_id, history_db_id, page_id, committed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			analyses_db_id = excluded.analyses_db_id,
			history_db_id = excluded.history_db_id,
			page_id = excluded.page_id,
			committed_at = excluded.committed_at
	`, userID, cfg.AnalysesDBID, cfg.HistoryDBID, cfg.PageID, cfg.CommittedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to commit configuration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit configuration: %w", err)
	}
	return nil
}
