package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxelmed/voxelmed/internal/api/response"
	"github.com/voxelmed/voxelmed/internal/inference"
	"github.com/voxelmed/voxelmed/internal/job"
)

// Completer defines the conversion operation the completion handler
// depends on.
type Completer interface {
	ConvertAndComplete(ctx context.Context, jobID uuid.UUID, analysis *inference.AnalysisResult) error
}

// NewCompleteJobHandler returns an http.HandlerFunc for
// PUT /api/v1/jobs/{jobID}/complete. This is the trusted callback the
// inference service posts finished results to; the route is guarded by the
// "inference" scope. The body's job_id must match the URL, and a result for
// a job that has since been replaced is rejected with 409.
func NewCompleteJobHandler(svc Completer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		var req struct {
			JobID  string                   `json:"job_id"`
			Result inference.AnalysisResult `json:"result"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.JobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id is required", nil)
			return
		}
		bodyID, err := uuid.Parse(req.JobID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id must be a valid UUID", nil)
			return
		}
		if bodyID != jobID {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id does not match URL", nil)
			return
		}

		if err := svc.ConvertAndComplete(r.Context(), jobID, &req.Result); err != nil {
			switch {
			case errors.Is(err, job.ErrIncompleteResult):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"result is missing required fields", nil)
			case errors.Is(err, job.ErrJobSuperseded):
				response.Error(w, http.StatusConflict, "JOB_SUPERSEDED",
					"Job was replaced; result discarded", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}

		response.NoContent(w)
	}
}
