// Package history stores training runs and their per-epoch results in SQLite.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/MeKo-Tech/langdetect/internal/training"
)

// Store persists training history.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// Open opens (and creates if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writes
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure history database: %w", err)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	languages TEXT NOT NULL,
	config_json TEXT,
	training_examples INTEGER NOT NULL,
	validation_examples INTEGER NOT NULL,
	model_path TEXT,
	best_accuracy REAL,
	best_epoch INTEGER
);

CREATE TABLE IF NOT EXISTS epochs (
	run_id TEXT NOT NULL,
	epoch INTEGER NOT NULL,
	examples INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	relevant_tokens INTEGER NOT NULL,
	ignored_tokens INTEGER NOT NULL,
	updates INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL,
	accuracy REAL,
	validation_ms INTEGER,
	checkpoint INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY(run_id, epoch),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// RunInfo describes a training run when it starts.
type RunInfo struct {
	Languages          []string
	Config             any // serialized as JSON
	TrainingExamples   int
	ValidationExamples int
	ModelPath          string
}

// Run is a training run being recorded. It implements training.Recorder.
type Run struct {
	ID    string
	store *Store
}

var _ training.Recorder = (*Run)(nil)

// StartRun registers a new run and returns its recorder.
func (s *Store) StartRun(ctx context.Context, info RunInfo) (*Run, error) {
	var cfg []byte
	if info.Config != nil {
		var err error
		if cfg, err = json.Marshal(info.Config); err != nil {
			return nil, fmt.Errorf("failed to encode run configuration: %w", err)
		}
	}

	s.mu.Lock()
	now := s.now().UTC()
	id := ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
	s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, started_at, languages, config_json, training_examples, validation_examples, model_path)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, now.Format(time.RFC3339Nano), strings.Join(info.Languages, ","), string(cfg),
		info.TrainingExamples, info.ValidationExamples, info.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return &Run{ID: id, store: s}, nil
}

// RecordEpoch stores the result of one epoch.
func (r *Run) RecordEpoch(ctx context.Context, e training.EpochResult) error {
	var accuracy, validationMS any
	checkpoint := 0
	if e.CheckpointSaved {
		checkpoint = 1
	}
	if e.Validated {
		accuracy = e.Accuracy
		validationMS = e.ValidationElapsed.Milliseconds()
	}
	_, err := r.store.db.ExecContext(ctx, `
INSERT INTO epochs (run_id, epoch, examples, skipped, relevant_tokens, ignored_tokens, updates,
	elapsed_ms, accuracy, validation_ms, checkpoint)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, e.Epoch, e.Examples, e.Skipped, e.RelevantTokens, e.IgnoredTokens, e.Updates,
		e.Elapsed.Milliseconds(), accuracy, validationMS, checkpoint)
	if err != nil {
		return fmt.Errorf("failed to insert epoch %d: %w", e.Epoch, err)
	}
	return nil
}

// Finish stores the outcome of the run.
func (r *Run) Finish(ctx context.Context, result training.Result) error {
	var best, bestEpoch any
	if result.BestEpoch > 0 {
		best, bestEpoch = result.BestAccuracy, result.BestEpoch
	}
	_, err := r.store.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, best_accuracy = ?, best_epoch = ? WHERE id = ?`,
		r.store.now().UTC().Format(time.RFC3339Nano), best, bestEpoch, r.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", r.ID, err)
	}
	return nil
}

// RunSummary is a stored run.
type RunSummary struct {
	ID                 string
	StartedAt          time.Time
	FinishedAt         *time.Time
	Languages          []string
	Config             json.RawMessage
	TrainingExamples   int
	ValidationExamples int
	ModelPath          string
	BestAccuracy       *float64
	BestEpoch          *int
	Epochs             int
}

// Runs lists the most recent runs first; limit <= 0 lists all of them.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
SELECT r.id, r.started_at, r.finished_at, r.languages, COALESCE(r.config_json, ''),
	r.training_examples, r.validation_examples, COALESCE(r.model_path, ''),
	r.best_accuracy, r.best_epoch, (SELECT COUNT(*) FROM epochs e WHERE e.run_id = r.id)
FROM runs r
ORDER BY r.id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var (
			rs        RunSummary
			started   string
			finished  sql.NullString
			languages string
			cfg       string
			best      sql.NullFloat64
			bestEpoch sql.NullInt64
		)
		if err := rows.Scan(&rs.ID, &started, &finished, &languages, &cfg,
			&rs.TrainingExamples, &rs.ValidationExamples, &rs.ModelPath,
			&best, &bestEpoch, &rs.Epochs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if rs.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: bad start time: %w", rs.ID, err)
		}
		if finished.Valid {
			ts, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: bad finish time: %w", rs.ID, err)
			}
			rs.FinishedAt = &ts
		}
		if languages != "" {
			rs.Languages = strings.Split(languages, ",")
		}
		if cfg != "" {
			rs.Config = json.RawMessage(cfg)
		}
		if best.Valid {
			rs.BestAccuracy = &best.Float64
		}
		if bestEpoch.Valid {
			e := int(bestEpoch.Int64)
			rs.BestEpoch = &e
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// EpochRecord is a stored epoch result.
type EpochRecord struct {
	Epoch          int
	Examples       int
	Skipped        int
	RelevantTokens int
	IgnoredTokens  int
	Updates        int
	Elapsed        time.Duration
	Accuracy       *float64
	Validation     time.Duration
	Checkpoint     bool
}

// Epochs returns the epochs of run id in order.
func (s *Store) Epochs(ctx context.Context, id string) ([]EpochRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT epoch, examples, skipped, relevant_tokens, ignored_tokens, updates, elapsed_ms,
	accuracy, COALESCE(validation_ms, 0), checkpoint
FROM epochs WHERE run_id = ? ORDER BY epoch`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list epochs of run %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var out []EpochRecord
	for rows.Next() {
		var (
			er           EpochRecord
			elapsedMS    int64
			validationMS int64
			accuracy     sql.NullFloat64
		)
		if err := rows.Scan(&er.Epoch, &er.Examples, &er.Skipped, &er.RelevantTokens, &er.IgnoredTokens,
			&er.Updates, &elapsedMS, &accuracy, &validationMS, &er.Checkpoint); err != nil {
			return nil, fmt.Errorf("failed to scan epoch: %w", err)
		}
		er.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		er.Validation = time.Duration(validationMS) * time.Millisecond
		if accuracy.Valid {
			er.Accuracy = &accuracy.Float64
		}
		out = append(out, er)
	}
	return out, rows.Err()
}
