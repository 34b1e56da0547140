package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/voxelmed/voxelmed/internal/api/response"
	"github.com/voxelmed/voxelmed/pkg/models"
)

// PatientStore defines the patient operations the handlers depend on.
type PatientStore interface {
	CreatePatient(ctx context.Context, patient *models.Patient) error
}

// NewCreatePatientHandler returns an http.HandlerFunc for POST /api/v1/patients.
func NewCreatePatientHandler(st PatientStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name      string  `json:"name"`
			Sex       string  `json:"sex"`
			BirthDate string  `json:"birth_date"`
			HeightCM  float64 `json:"height_cm"`
			WeightKG  float64 `json:"weight_kg"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if req.BirthDate == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "birth_date is required", nil)
			return
		}
		birthDate, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "birth_date must be a YYYY-MM-DD date", nil)
			return
		}

		now := time.Now().UTC()
		patient := &models.Patient{
			ID:        uuid.New(),
			Name:      req.Name,
			Sex:       req.Sex,
			BirthDate: birthDate,
			HeightCM:  req.HeightCM,
			WeightKG:  req.WeightKG,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := st.CreatePatient(r.Context(), patient); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.Created(w, patient)
	}
}
