// Package record handles scan record intake and the best-effort display-view
// sub-pipeline that runs once at creation.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/voxelmed/voxelmed/internal/inference"
	"github.com/voxelmed/voxelmed/internal/store"
	"github.com/voxelmed/voxelmed/pkg/models"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrNoImages        = errors.New("record requires at least one image")
)

// Outcome distinguishes a full creation from one where the display-view
// sub-pipeline did not produce views. Both are successes; consumers without
// views fall back to rendering the raw input images.
type Outcome string

const (
	OutcomeCreated             Outcome = "created"
	OutcomeCreatedWithoutViews Outcome = "created_without_views"
)

// CreateParams are the inputs for record creation. The image URIs reference
// originals already persisted by the upload collaborator; ImagePrefix is the
// blob URI prefix they share (derived from the record id when empty).
type CreateParams struct {
	PatientID   uuid.UUID
	TakenAt     time.Time
	ImageURIs   []string
	ImagePrefix string
}

// Service creates records and runs the display-view sub-pipeline.
type Service struct {
	store     store.Store
	inference inference.Client
}

// NewService creates a new record Service.
func NewService(st store.Store, client inference.Client) *Service {
	return &Service{store: st, inference: client}
}

// Create persists the record and its image references, then asks the
// inference service for precomputed display views. The view call is
// best-effort: its failure is logged and reported only through the outcome
// code, never as an error, and it is not retried.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Record, Outcome, error) {
	if _, err := s.store.GetPatient(ctx, params.PatientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrPatientNotFound
		}
		return nil, "", fmt.Errorf("resolving patient: %w", err)
	}
	if len(params.ImageURIs) == 0 {
		return nil, "", ErrNoImages
	}

	rec := &models.Record{
		ID:          uuid.New(),
		PatientID:   params.PatientID,
		TakenAt:     params.TakenAt,
		ImagePrefix: params.ImagePrefix,
		CreatedAt:   time.Now().UTC(),
	}
	if rec.ImagePrefix == "" {
		rec.ImagePrefix = fmt.Sprintf("records/%s/", rec.ID)
	}

	images := make([]models.RecordImage, 0, len(params.ImageURIs))
	for i, uri := range params.ImageURIs {
		images = append(images, models.RecordImage{
			ID:       uuid.New(),
			RecordID: rec.ID,
			URI:      uri,
			Position: i,
		})
	}

	if err := s.store.CreateRecord(ctx, rec, images); err != nil {
		return nil, "", fmt.Errorf("creating record: %w", err)
	}

	return rec, s.precomputeViews(ctx, rec), nil
}

// precomputeViews runs the display-view sub-pipeline and reports the outcome.
// Every failure path is swallowed here by design.
func (s *Service) precomputeViews(ctx context.Context, rec *models.Record) Outcome {
	uris, err := s.inference.DisplayViews(ctx, rec.ID, rec.ImagePrefix)
	if err != nil {
		slog.Warn("display view precompute failed",
			"record_id", rec.ID, "error", err)
		return OutcomeCreatedWithoutViews
	}
	if len(uris) == 0 {
		return OutcomeCreatedWithoutViews
	}

	views := make([]models.DisplayView, 0, len(uris))
	now := time.Now().UTC()
	for i, uri := range uris {
		views = append(views, models.DisplayView{
			ID:        uuid.New(),
			RecordID:  rec.ID,
			URI:       uri,
			Position:  i,
			CreatedAt: now,
		})
	}

	if err := s.store.InsertDisplayViews(ctx, views); err != nil {
		slog.Warn("display view insert failed", "record_id", rec.ID, "error", err)
		return OutcomeCreatedWithoutViews
	}
	return OutcomeCreated
}

// Views lists the precomputed display views for a record.
func (s *Service) Views(ctx context.Context, recordID uuid.UUID) ([]models.DisplayView, error) {
	return s.store.ListDisplayViews(ctx, recordID)
}
