// Package handler contains the HTTP handlers. Each handler depends on a
// small consumer-side interface so tests can swap in hand-rolled fakes.
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
	"github.com/voxelmed/voxelmed/internal/record"
	"github.com/voxelmed/voxelmed/pkg/models"
)

// RecordService defines the record operations the handlers depend on.
type RecordService interface {
	Create(ctx context.Context, params record.CreateParams) (*models.Record, record.Outcome, error)
	Views(ctx context.Context, recordID uuid.UUID) ([]models.DisplayView, error)
}

// NewCreateRecordHandler returns an http.HandlerFunc for POST /api/v1/records.
func NewCreateRecordHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PatientID   string   `json:"patient_id"`
			TakenAt     string   `json:"taken_at"`
			ImageURIs   []string `json:"image_uris"`
			ImagePrefix string   `json:"image_prefix"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.PatientID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "patient_id is required", nil)
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "patient_id must be a valid UUID", nil)
			return
		}

		if req.TakenAt == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "taken_at is required", nil)
			return
		}
		takenAt, err := time.Parse(time.RFC3339, req.TakenAt)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "taken_at must be a valid RFC3339 timestamp", nil)
			return
		}

		if len(req.ImageURIs) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "image_uris must not be empty", nil)
			return
		}

		rec, outcome, err := svc.Create(r.Context(), record.CreateParams{
			PatientID:   patientID,
			TakenAt:     takenAt,
			ImageURIs:   req.ImageURIs,
			ImagePrefix: req.ImagePrefix,
		})
		if err != nil {
			switch {
			case errors.Is(err, record.ErrPatientNotFound):
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Patient not found", nil)
			case errors.Is(err, record.ErrNoImages):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "image_uris must not be empty", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
			return
		}

		response.Created(w, createRecordResponse{
			Record:  rec,
			Outcome: string(outcome),
		})
	}
}

type createRecordResponse struct {
	Record  *models.Record `json:"record"`
	Outcome string         `json:"outcome"`
}

// NewListViewsHandler returns an http.HandlerFunc for
// GET /api/v1/records/{recordID}/views.
func NewListViewsHandler(svc RecordService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recordID, err := uuid.Parse(chi.URLParam(r, "recordID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "recordID must be a valid UUID", nil)
			return
		}

		views, err := svc.Views(r.Context(), recordID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		if views == nil {
			views = []models.DisplayView{}
		}

		response.JSON(w, views)
	}
}
