package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/voxelmed/voxelmed/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrJobSuperseded is returned when a terminal write targets a job row that
// has been removed or already left the infering state — typically a stale
// background task racing a replace. Callers treat it as a no-op signal.
var ErrJobSuperseded = errors.New("job missing or no longer infering")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreatePatient(ctx context.Context, patient *models.Patient) error
	GetPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error)

	CreateRecord(ctx context.Context, record *models.Record, images []models.RecordImage) error
	GetRecord(ctx context.Context, id uuid.UUID) (*models.Record, error)
	CountRecordImages(ctx context.Context, recordID uuid.UUID) (int, error)
	InsertDisplayViews(ctx context.Context, views []models.DisplayView) error
	ListDisplayViews(ctx context.Context, recordID uuid.UUID) ([]models.DisplayView, error)

	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetJobByRecord(ctx context.Context, recordID uuid.UUID) (*models.Job, error)
	GetOutputFileByJob(ctx context.Context, jobID uuid.UUID) (*models.OutputFile, error)
	ReplaceJob(ctx context.Context, job *models.Job) error
	CompleteJob(ctx context.Context, jobID uuid.UUID, results JobResults, file *models.OutputFile) error
	MarkJobFailed(ctx context.Context, jobID uuid.UUID) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// JobResults carries the converted result fields written when a job
// completes. All of them are persisted in one transaction together with the
// status flip and the output-file row; a completed job can never be
// partially populated.
type JobResults struct {
	Risk                 string
	Phenotype            string
	PhenotypeImageURL    string
	TreatmentDescription string
	TreatmentImageURL    string
	Prescription         string
}
