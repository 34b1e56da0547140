package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/voxelmed/voxelmed/internal/store"
	"github.com/voxelmed/voxelmed/pkg/models"
)

// StatusIdle is reported when a record has no job yet. It is not a job row
// state; it only exists on the polling contract.
const StatusIdle = "idle"

// Status is the polled view of a record's job. Job is nil while idle, and
// FileURL is set only for a completed job whose artifact URL could be
// resolved.
type Status struct {
	Status  string
	Job     *models.Job
	FileURL string
}

// Status returns the current job status for a record. While the job is
// infering the Redis fast path answers without touching the database, which
// is where nearly all polling traffic lands. The short-lived cache entry is
// refreshed on each database read of a live job, so a run lasting minutes
// keeps its polls off the row without ever trusting a stale entry for long.
func (o *Orchestrator) Status(ctx context.Context, recordID uuid.UUID) (*Status, error) {
	if cached, ok, err := o.cache.GetJobStatus(ctx, recordID); err == nil && ok &&
		cached == models.JobStatusInfering {
		return &Status{Status: models.JobStatusInfering}, nil
	}

	j, err := o.store.GetJobByRecord(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return &Status{Status: StatusIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up job: %w", err)
	}

	if j.Status == models.JobStatusInfering {
		_ = o.cache.SetJobStatus(ctx, recordID, models.JobStatusInfering, statusCacheTTL)
	}

	st := &Status{Status: j.Status, Job: j}

	if j.Status == models.JobStatusCompleted {
		file, err := o.store.GetOutputFileByJob(ctx, j.ID)
		if err == nil {
			url, err := o.blob.URL(ctx, file.Path)
			if err != nil {
				slog.Warn("resolving artifact URL", "job_id", j.ID, "path", file.Path, "error", err)
			} else {
				st.FileURL = url
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("looking up output file: %w", err)
		}
	}

	return st, nil
}
