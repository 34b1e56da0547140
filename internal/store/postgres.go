package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voxelmed/voxelmed/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Patients ---

func (s *PostgresStore) CreatePatient(ctx context.Context, patient *models.Patient) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO patients (id, name, sex, birth_date, height_cm, weight_kg, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		patient.ID, patient.Name, patient.Sex, patient.BirthDate,
		patient.HeightCM, patient.WeightKG, patient.CreatedAt, patient.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	var p models.Patient
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, sex, birth_date, height_cm, weight_kg, created_at, updated_at
		 FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Sex, &p.BirthDate, &p.HeightCM, &p.WeightKG, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &p, nil
}

// --- Records ---

func (s *PostgresStore) CreateRecord(ctx context.Context, record *models.Record, images []models.RecordImage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create record: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO records (id, patient_id, taken_at, image_prefix, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.PatientID, record.TakenAt, record.ImagePrefix, record.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create record: %w", err)
	}

	for _, img := range images {
		_, err = tx.Exec(ctx,
			`INSERT INTO record_images (id, record_id, uri, position) VALUES ($1, $2, $3, $4)`,
			img.ID, img.RecordID, img.URI, img.Position)
		if err != nil {
			return fmt.Errorf("create record image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	var r models.Record
	err := s.pool.QueryRow(ctx,
		`SELECT id, patient_id, taken_at, image_prefix, created_at FROM records WHERE id = $1`, id,
	).Scan(&r.ID, &r.PatientID, &r.TakenAt, &r.ImagePrefix, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) CountRecordImages(ctx context.Context, recordID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM record_images WHERE record_id = $1`, recordID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count record images: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) InsertDisplayViews(ctx context.Context, views []models.DisplayView) error {
	if len(views) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert display views: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, v := range views {
		_, err = tx.Exec(ctx,
			`INSERT INTO display_views (id, record_id, uri, position, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			v.ID, v.RecordID, v.URI, v.Position, v.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert display view: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert display views: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDisplayViews(ctx context.Context, recordID uuid.UUID) ([]models.DisplayView, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, uri, position, created_at
		 FROM display_views WHERE record_id = $1 ORDER BY position`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list display views: %w", err)
	}
	defer rows.Close()

	var views []models.DisplayView
	for rows.Next() {
		var v models.DisplayView
		if err := rows.Scan(&v.ID, &v.RecordID, &v.URI, &v.Position, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan display view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// --- Jobs ---

const jobColumns = `id, record_id, model, status, risk, phenotype, phenotype_image_url,
	treatment_description, treatment_image_url, prescription, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.RecordID, &j.Model, &j.Status, &j.Risk, &j.Phenotype,
		&j.PhenotypeImageURL, &j.TreatmentDescription, &j.TreatmentImageURL,
		&j.Prescription, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

func (s *PostgresStore) GetJobByRecord(ctx context.Context, recordID uuid.UUID) (*models.Job, error) {
	return scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE record_id = $1`, recordID))
}

func (s *PostgresStore) GetOutputFileByJob(ctx context.Context, jobID uuid.UUID) (*models.OutputFile, error) {
	var f models.OutputFile
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_id, name, media_type, size_bytes, path, created_at
		 FROM output_files WHERE job_id = $1`, jobID,
	).Scan(&f.ID, &f.JobID, &f.Name, &f.MediaType, &f.SizeBytes, &f.Path, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get output file: %w", err)
	}
	return &f, nil
}

// ReplaceJob deletes any existing job for the record (and its output-file
// row) and inserts the new one, all in a single transaction. The UNIQUE
// constraint on jobs.record_id backstops concurrent creates: the loser of
// the race gets ErrDuplicateKey instead of a second live row.
func (s *PostgresStore) ReplaceJob(ctx context.Context, job *models.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace job: %w", err)
	}
	defer tx.Rollback(ctx)

	var oldID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM jobs WHERE record_id = $1 FOR UPDATE`, job.RecordID).Scan(&oldID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lock prior job: %w", err)
	}
	if err == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM output_files WHERE job_id = $1`, oldID); err != nil {
			return fmt.Errorf("delete prior output file: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, oldID); err != nil {
			return fmt.Errorf("delete prior job: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, record_id, model, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.RecordID, job.Model, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace job: %w", err)
	}
	return nil
}

// CompleteJob writes every result field, flips the status to completed, and
// inserts the output-file row in one transaction. The row is re-read under
// lock first: if it is gone or no longer infering, the write is abandoned
// with ErrJobSuperseded and nothing is touched.
func (s *PostgresStore) CompleteJob(ctx context.Context, jobID uuid.UUID, results JobResults, file *models.OutputFile) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete job: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrJobSuperseded
	}
	if err != nil {
		return fmt.Errorf("lock job: %w", err)
	}
	if status != models.JobStatusInfering {
		return ErrJobSuperseded
	}

	_, err = tx.Exec(ctx,
		`UPDATE jobs SET status = $2, risk = $3, phenotype = $4, phenotype_image_url = $5,
		   treatment_description = $6, treatment_image_url = $7, prescription = $8, updated_at = $9
		 WHERE id = $1`,
		jobID, models.JobStatusCompleted, results.Risk, results.Phenotype,
		results.PhenotypeImageURL, results.TreatmentDescription,
		results.TreatmentImageURL, results.Prescription, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job results: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO output_files (id, job_id, name, media_type, size_bytes, path, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		file.ID, file.JobID, file.Name, file.MediaType, file.SizeBytes, file.Path, file.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert output file: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit complete job: %w", err)
	}
	return nil
}

// MarkJobFailed patches only the status column, and only while the job is
// still infering. A stale background task whose job has been replaced or
// already finished gets ErrJobSuperseded and must treat it as a no-op.
func (s *PostgresStore) MarkJobFailed(ctx context.Context, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		jobID, models.JobStatusFailed, time.Now().UTC(), models.JobStatusInfering)
	if err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobSuperseded
	}
	return nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
