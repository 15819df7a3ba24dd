package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shelfpair/internal/config"
	"shelfpair/internal/insight"
)

// Store manages job persistence backed by SQLite. A file lock on the data
// directory keeps concurrent processes from opening the same store for
// writing.
type Store struct {
	db       *sql.DB
	path     string
	lock     *flock.Flock
	lockPath string
}

const jobColumns = `id, owner, state, total_images, processed_count, images_json,
	insights_json, result_json, error_message, access_credential,
	created_at, updated_at, expires_at`

// Open initializes or connects to the job database, acquires the store
// lock, and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "shelfpair.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another shelfpair process holds the store lock")
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock, lockPath: lockPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			owner TEXT,
			state TEXT NOT NULL,
			total_images INTEGER NOT NULL DEFAULT 0,
			processed_count INTEGER NOT NULL DEFAULT 0,
			images_json TEXT,
			insights_json TEXT,
			result_json TEXT,
			error_message TEXT,
			access_credential TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			expires_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chunk_locks (
			job_id TEXT NOT NULL,
			chunk_start INTEGER NOT NULL,
			expires_at TEXT NOT NULL,
			PRIMARY KEY (job_id, chunk_start)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// Close closes the database connection and releases the store lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var dbErr error
	if s.db != nil {
		dbErr = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && dbErr == nil {
			dbErr = err
		}
	}
	return dbErr
}

// Create inserts a new pending job for the given image identifiers.
// Duplicate identifiers collapse to one entry, first occurrence wins, so
// total_images always equals the number of unique keys progress is tracked
// against.
func (s *Store) Create(ctx context.Context, owner string, images []string, credential string, ttl time.Duration) (*Job, error) {
	if len(images) == 0 {
		return nil, errors.New("job requires at least one image")
	}

	seen := make(map[string]struct{}, len(images))
	unique := make([]string, 0, len(images))
	for _, img := range images {
		if _, ok := seen[img]; ok {
			continue
		}
		seen[img] = struct{}{}
		unique = append(unique, img)
	}
	images = unique

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}

	id := uuid.NewString()
	var expires any
	if ttl > 0 {
		expires = now.Add(ttl).Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, owner, state, total_images, processed_count, images_json,
			access_credential, created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(owner),
		StatePending,
		len(images),
		0,
		string(imagesJSON),
		nullableString(credential),
		timestamp,
		timestamp,
		expires,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a job by identifier. Expired jobs are treated as missing.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if !job.State.Valid() {
		return fmt.Errorf("invalid job state %q", job.State)
	}

	imagesJSON, err := json.Marshal(job.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	insightsJSON, err := json.Marshal(job.Insights)
	if err != nil {
		return fmt.Errorf("marshal insights: %w", err)
	}

	job.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE jobs
		 SET owner = ?, state = ?, total_images = ?, processed_count = ?,
		     images_json = ?, insights_json = ?, result_json = ?,
		     error_message = ?, access_credential = ?, updated_at = ?, expires_at = ?
		 WHERE id = ?`,
		nullableString(job.Owner),
		job.State,
		job.TotalImages,
		job.ProcessedCount,
		string(imagesJSON),
		string(insightsJSON),
		nullableString(job.ResultJSON),
		nullableString(job.ErrorMessage),
		nullableString(job.AccessCredential),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.ExpiresAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns all unexpired jobs ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var jobList []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		if job.Expired(now) {
			continue
		}
		jobList = append(jobList, job)
	}
	return jobList, rows.Err()
}

// AcquireChunkLock atomically claims the chunk starting at the given offset.
// It returns false when another invocation already holds an unexpired lock.
func (s *Store) AcquireChunkLock(ctx context.Context, jobID string, chunkStart int, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	// Sweep expired locks first so a crashed claimant does not block the
	// chunk forever.
	if _, err := s.db.ExecContext(
		ctx,
		`DELETE FROM chunk_locks WHERE job_id = ? AND chunk_start = ? AND expires_at < ?`,
		jobID, chunkStart, now.Format(time.RFC3339Nano),
	); err != nil {
		return false, fmt.Errorf("sweep chunk lock: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO chunk_locks (job_id, chunk_start, expires_at) VALUES (?, ?, ?)`,
		jobID, chunkStart, now.Add(ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("acquire chunk lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseChunkLock removes a chunk lock. Lock expiry is the backstop when
// release is skipped by a crash.
func (s *Store) ReleaseChunkLock(ctx context.Context, jobID string, chunkStart int) error {
	if _, err := s.db.ExecContext(
		ctx,
		`DELETE FROM chunk_locks WHERE job_id = ? AND chunk_start = ?`,
		jobID, chunkStart,
	); err != nil {
		return fmt.Errorf("release chunk lock: %w", err)
	}
	return nil
}

// PurgeExpired removes jobs past their retention window and stale chunk
// locks. It returns the number of jobs removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunk_locks WHERE expires_at < ?`, now); err != nil {
		return 0, fmt.Errorf("purge chunk locks: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		owner        sql.NullString
		stateStr     string
		totalImages  int
		processed    int
		imagesJSON   sql.NullString
		insightsJSON sql.NullString
		resultJSON   sql.NullString
		errorMessage sql.NullString
		credential   sql.NullString
		createdAt    string
		updatedAt    string
		expiresAt    sql.NullString
	)

	if err := scanner.Scan(
		&id, &owner, &stateStr, &totalImages, &processed, &imagesJSON,
		&insightsJSON, &resultJSON, &errorMessage, &credential,
		&createdAt, &updatedAt, &expiresAt,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		Owner:            owner.String,
		State:            State(stateStr),
		TotalImages:      totalImages,
		ProcessedCount:   processed,
		ResultJSON:       resultJSON.String,
		ErrorMessage:     errorMessage.String,
		AccessCredential: credential.String,
	}
	if !job.State.Valid() {
		return nil, fmt.Errorf("unknown job state %q", stateStr)
	}

	if imagesJSON.Valid && imagesJSON.String != "" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &job.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}
	if insightsJSON.Valid && insightsJSON.String != "" {
		var insights []insight.ImageInsight
		if err := json.Unmarshal([]byte(insightsJSON.String), &insights); err != nil {
			return nil, fmt.Errorf("unmarshal insights: %w", err)
		}
		job.Insights = insights
	}

	var err error
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if expiresAt.Valid && expiresAt.String != "" {
		if job.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt.String); err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
