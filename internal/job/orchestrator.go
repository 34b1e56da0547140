// Package job contains the inference job orchestrator: creation with the
// single-live-job replace protocol, the detached inference run, and the
// all-or-nothing result conversion.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/voxelmed/voxelmed/internal/blob"
	"github.com/voxelmed/voxelmed/internal/cache"
	"github.com/voxelmed/voxelmed/internal/inference"
	"github.com/voxelmed/voxelmed/internal/store"
	"github.com/voxelmed/voxelmed/pkg/models"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrNoInputImages    = errors.New("record has no input images")
	ErrJobConflict      = errors.New("concurrent job creation for record")
	ErrIncompleteResult = errors.New("analysis result missing required fields")
)

// ErrJobSuperseded re-exports the store sentinel so callers above the
// orchestrator do not import the store package for it.
var ErrJobSuperseded = store.ErrJobSuperseded

// statusCacheTTL covers a handful of poll intervals. The job row stays the
// point of truth: terminal transitions delete the cached entry, and the short
// TTL bounds how long a failed delete can keep answering infering.
const (
	statusCacheTTL   = 30 * time.Second
	artifactType     = "application/octet-stream"
	artifactBasename = "volume.vol"
)

// ArtifactPath derives the deterministic blob path for a job's output
// artifact from the record and job ids.
func ArtifactPath(recordID, jobID uuid.UUID) string {
	return fmt.Sprintf("results/%s/%s/%s", recordID, jobID, artifactBasename)
}

// Orchestrator coordinates job rows, the inference service, and the blob
// store. The job row is the single point of truth for status; every mutation
// goes through a store transaction, never an in-memory lock.
type Orchestrator struct {
	store     store.Store
	inference inference.Client
	blob      blob.Store
	cache     cache.Cache
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(st store.Store, client inference.Client, bl blob.Store, ca cache.Cache) *Orchestrator {
	return &Orchestrator{store: st, inference: client, blob: bl, cache: ca}
}

// Create validates the record, replaces any prior job for it, and dispatches
// inference in a background goroutine. It returns the new job immediately and
// never waits on the external service.
//
// Replacing the prior job first best-effort-deletes its blob artifact, so the
// old result is gone before the new job becomes visible as infering.
func (o *Orchestrator) Create(ctx context.Context, recordID uuid.UUID, model string) (*models.Job, error) {
	record, err := o.store.GetRecord(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving record: %w", err)
	}

	imageCount, err := o.store.CountRecordImages(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("counting record images: %w", err)
	}
	if imageCount == 0 {
		return nil, ErrNoInputImages
	}

	if err := o.deletePriorArtifact(ctx, recordID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		RecordID:  recordID,
		Model:     model,
		Status:    models.JobStatusInfering,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := o.store.ReplaceJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrJobConflict
		}
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = o.cache.SetJobStatus(ctx, recordID, models.JobStatusInfering, statusCacheTTL)

	go o.runInference(job, record)

	return job, nil
}

// deletePriorArtifact removes the blob of the record's existing job, if any.
// Blob deletion is a network call and best-effort: failure is logged, never
// fatal, and an orphaned object is cleaned up out-of-band.
func (o *Orchestrator) deletePriorArtifact(ctx context.Context, recordID uuid.UUID) error {
	prior, err := o.store.GetJobByRecord(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up prior job: %w", err)
	}

	file, err := o.store.GetOutputFileByJob(ctx, prior.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up prior output file: %w", err)
	}

	if err := o.blob.Delete(ctx, file.Path); err != nil {
		slog.Warn("prior artifact blob delete failed",
			"record_id", recordID, "job_id", prior.ID, "path", file.Path, "error", err)
	}
	return nil
}

// runInference performs the detached inference run. It recovers from panics
// and converts every failure into the job's failed state; nothing here ever
// propagates back to the creating request.
func (o *Orchestrator) runInference(job *models.Job, record *models.Record) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in runInference", "error", r, "job_id", job.ID, "record_id", record.ID)
			o.markFailed(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	patient, err := o.store.GetPatient(ctx, record.PatientID)
	if err != nil {
		o.markFailed(ctx, job, fmt.Errorf("resolving patient: %w", err))
		return
	}

	// Features are derived at call time, never stored redundantly.
	result, err := o.inference.Analyze(ctx, inference.AnalyzeRequest{
		RecordID: record.ID,
		Model:    job.Model,
		Features: inference.Features{
			Age: patient.AgeAt(time.Now().UTC()),
			Sex: patient.Sex,
			BMI: patient.BMI(),
		},
		ImagePrefix: record.ImagePrefix,
	})
	if err != nil {
		o.markFailed(ctx, job, err)
		return
	}

	if err := o.ConvertAndComplete(ctx, job.ID, result); err != nil {
		o.markFailed(ctx, job, err)
	}
}

// ConvertAndComplete turns the raw analysis payload into durable state:
// decode the prescription, reconstruct the binary artifact, commit every
// result field plus the output-file row in one transaction, then upload the
// artifact. Any failure before the commit leaves the job untouched for the
// caller to mark failed; ErrJobSuperseded means the job was replaced while
// inference ran and the result must be discarded.
//
// The blob upload deliberately happens after the commit. An upload failure
// leaves a completed job with a missing artifact, which is logged and
// reconciled out-of-band rather than resolved with two-phase commit.
func (o *Orchestrator) ConvertAndComplete(ctx context.Context, jobID uuid.UUID, analysis *inference.AnalysisResult) error {
	// A completed job must carry the full result set; a callback with blank
	// fields is rejected before any row is touched.
	if analysis == nil || analysis.Risk == "" || analysis.Phenotype == "" || analysis.Prescription == "" {
		return ErrIncompleteResult
	}

	job, err := o.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrJobSuperseded
	}
	if err != nil {
		return fmt.Errorf("resolving job: %w", err)
	}

	prescription, err := inference.DecodePrescription(analysis.Prescription)
	if err != nil {
		return fmt.Errorf("decoding prescription: %w", err)
	}

	artifact, err := o.inference.ReconstructBinary(ctx, analysis)
	if err != nil {
		return fmt.Errorf("reconstructing binary: %w", err)
	}

	path := ArtifactPath(job.RecordID, jobID)
	file := &models.OutputFile{
		ID:        uuid.New(),
		JobID:     jobID,
		Name:      artifactBasename,
		MediaType: artifactType,
		SizeBytes: int64(len(artifact)),
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}

	err = o.store.CompleteJob(ctx, jobID, store.JobResults{
		Risk:                 analysis.Risk,
		Phenotype:            analysis.Phenotype,
		PhenotypeImageURL:    analysis.PhenotypeImageURL,
		TreatmentDescription: analysis.TreatmentDescription,
		TreatmentImageURL:    analysis.TreatmentImageURL,
		Prescription:         prescription,
	}, file)
	if err != nil {
		return err
	}

	_ = o.cache.DeleteJobStatus(ctx, job.RecordID)

	if err := o.blob.Put(ctx, path, artifact, artifactType); err != nil {
		slog.Error("artifact upload failed after completion commit",
			"job_id", jobID, "record_id", job.RecordID, "path", path, "error", err)
	}

	return nil
}

// markFailed patches only the status column. If the job was superseded while
// inference ran, the update is a no-op by design.
func (o *Orchestrator) markFailed(ctx context.Context, job *models.Job, cause error) {
	err := o.store.MarkJobFailed(ctx, job.ID)
	if errors.Is(err, store.ErrJobSuperseded) {
		slog.Info("stale inference result discarded",
			"job_id", job.ID, "record_id", job.RecordID)
		return
	}
	if err != nil {
		slog.Error("marking job failed", "job_id", job.ID, "error", err)
		return
	}

	_ = o.cache.DeleteJobStatus(ctx, job.RecordID)

	slog.Error("inference job failed",
		"job_id", job.ID, "record_id", job.RecordID, "model", job.Model, "error", cause)
}
