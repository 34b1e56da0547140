package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxelmed/voxelmed/internal/api/response"
	"github.com/voxelmed/voxelmed/internal/job"
	"github.com/voxelmed/voxelmed/pkg/models"
)

// JobService defines the orchestrator operations the job handlers depend on.
type JobService interface {
	Create(ctx context.Context, recordID uuid.UUID, model string) (*models.Job, error)
	Status(ctx context.Context, recordID uuid.UUID) (*job.Status, error)
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// Creation replaces any previous job for the record and returns 202: the
// inference run happens in the background and the client polls for it.
func NewCreateJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RecordID string `json:"record_id"`
			Model    string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.RecordID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "record_id is required", nil)
			return
		}
		recordID, err := uuid.Parse(req.RecordID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "record_id must be a valid UUID", nil)
			return
		}
		if req.Model == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "model is required", nil)
			return
		}

		j, err := svc.Create(r.Context(), recordID, req.Model)
		if err != nil {
			switch {
			case errors.Is(err, job.ErrRecordNotFound):
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Record not found", nil)
			case errors.Is(err, job.ErrNoInputImages):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Record has no input images", nil)
			case errors.Is(err, job.ErrJobConflict):
				response.Error(w, http.StatusConflict, "JOB_CONFLICT",
					"A job for this record is being created concurrently", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, map[string]string{
			"job_id": j.ID.String(),
			"status": j.Status,
		})
	}
}

// jobStatusResponse is the polled status payload. Result fields are omitted
// unless the job completed; file_url additionally requires a resolvable
// artifact URL.
type jobStatusResponse struct {
	Status               string     `json:"status"`
	JobID                *uuid.UUID `json:"job_id,omitempty"`
	Model                string     `json:"model,omitempty"`
	Risk                 *string    `json:"risk,omitempty"`
	Phenotype            *string    `json:"phenotype,omitempty"`
	PhenotypeImageURL    *string    `json:"phenotype_image_url,omitempty"`
	TreatmentDescription *string    `json:"treatment_description,omitempty"`
	TreatmentImageURL    *string    `json:"treatment_image_url,omitempty"`
	Prescription         *string    `json:"prescription,omitempty"`
	FileURL              string     `json:"file_url,omitempty"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// NewJobStatusHandler returns an http.HandlerFunc for
// GET /api/v1/records/{recordID}/job.
func NewJobStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "recordID must be a valid UUID", nil)
			return
		}

		st, err := svc.Status(r.Context(), recordID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		resp := jobStatusResponse{Status: st.Status}
		if st.Job != nil {
			resp.JobID = &st.Job.ID
			resp.Model = st.Job.Model
			resp.UpdatedAt = &st.Job.UpdatedAt
			if st.Job.Status == models.JobStatusCompleted {
				resp.Risk = st.Job.Risk
				resp.Phenotype = st.Job.Phenotype
				resp.PhenotypeImageURL = st.Job.PhenotypeImageURL
				resp.TreatmentDescription = st.Job.TreatmentDescription
				resp.TreatmentImageURL = st.Job.TreatmentImageURL
				resp.Prescription = st.Job.Prescription
				resp.FileURL = st.FileURL
			}
		}

		response.JSON(w, resp)
	}
}
