package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"alphareel/internal/encoding"
	"alphareel/internal/logging"
)

// Job is one row of the ledger.
type Job struct {
	ID          string
	Tier        string
	Codec       string
	Quality     string
	FrameRate   int
	Frames      int
	InputBytes  int64
	OutputBytes int64
	Outcome     string
	Error       string
	OutputPath  string
	StartedAt   time.Time
	Duration    time.Duration
}

// Succeeded reports whether the job produced an artifact.
func (j Job) Succeeded() bool {
	return j.Outcome == encoding.OutcomeSuccess
}

// FromReport converts an encoding job report into a ledger row.
func FromReport(report encoding.JobReport) Job {
	return Job{
		ID:          report.ID,
		Tier:        report.Tier,
		Codec:       report.Codec,
		Quality:     report.Quality,
		FrameRate:   report.FrameRate,
		Frames:      report.Frames,
		InputBytes:  report.InputBytes,
		OutputBytes: report.OutputBytes,
		Outcome:     report.Outcome,
		Error:       report.Error,
		StartedAt:   report.StartedAt,
		Duration:    report.Duration,
	}
}

// Store manages the job ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("history database path required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Insert records job. A job with an existing ID is replaced.
func (s *Store) Insert(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (
            id, tier, codec, quality, frame_rate, frames, input_bytes, output_bytes,
            outcome, error_message, output_path, started_at, duration_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Tier,
		job.Codec,
		job.Quality,
		job.FrameRate,
		job.Frames,
		job.InputBytes,
		job.OutputBytes,
		job.Outcome,
		nullableString(job.Error),
		nullableString(job.OutputPath),
		job.StartedAt.UTC().Format(time.RFC3339Nano),
		job.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// SetOutputPath records where the artifact of job id was written.
func (s *Store) SetOutputPath(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE jobs SET output_path = ? WHERE id = ?", nullableString(path), id)
	if err != nil {
		return fmt.Errorf("update output path: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

const selectColumns = `id, tier, codec, quality, frame_rate, frames, input_bytes, output_bytes,
    outcome, error_message, output_path, started_at, duration_ms`

// Get returns the job with id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Recent returns up to limit jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM jobs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Summary counts jobs per outcome.
func (s *Store) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(1) FROM jobs GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("summarize jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}

// Prune deletes jobs that started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE started_at < ?", cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var (
		job        Job
		errMessage sql.NullString
		outputPath sql.NullString
		startedAt  string
		durationMS int64
	)
	if err := row.Scan(
		&job.ID,
		&job.Tier,
		&job.Codec,
		&job.Quality,
		&job.FrameRate,
		&job.Frames,
		&job.InputBytes,
		&job.OutputBytes,
		&job.Outcome,
		&errMessage,
		&outputPath,
		&startedAt,
		&durationMS,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Error = errMessage.String
	job.OutputPath = outputPath.String
	if parsed, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		job.StartedAt = parsed
	}
	job.Duration = time.Duration(durationMS) * time.Millisecond
	return &job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

// Recorder adapts the store to encoding.Recorder. Write failures are logged
// and never fail the job.
func (s *Store) Recorder(logger *slog.Logger) encoding.Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &recorder{store: s, logger: logging.NewComponentLogger(logger, "history")}
}

type recorder struct {
	store  *Store
	logger *slog.Logger
}

func (r *recorder) RecordJob(ctx context.Context, report encoding.JobReport) {
	if err := r.store.Insert(ctx, FromReport(report)); err != nil {
		logging.WarnWithContext(r.logger, "job history write failed", "history_write_failed",
			logging.String("job_id", report.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.history_db permissions"),
			logging.String(logging.FieldImpact, "job missing from alphareel history"),
		)
	}
}
