package models

import (
	"time"

	"github.com/google/uuid"
)

// Record groups the input scan images taken for a patient on one date.
// A record owns at most one live job at a time; that invariant is enforced
// by the orchestrator's replace-on-create protocol, not declared here.
type Record struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	PatientID   uuid.UUID `db:"patient_id"   json:"patient_id"`
	TakenAt     time.Time `db:"taken_at"     json:"taken_at"`
	ImagePrefix string    `db:"image_prefix" json:"image_prefix"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// RecordImage references one input image already persisted by the upload
// collaborator. Only the URI metadata lives here; the bytes do not.
type RecordImage struct {
	ID       uuid.UUID `db:"id"        json:"id"`
	RecordID uuid.UUID `db:"record_id" json:"record_id"`
	URI      string    `db:"uri"       json:"uri"`
	Position int       `db:"position"  json:"position"`
}

// DisplayView is a precomputed 2D view of the record's volume, produced by
// the best-effort sub-pipeline at record creation. Zero rows means consumers
// fall back to rendering the raw input images.
type DisplayView struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	RecordID  uuid.UUID `db:"record_id"  json:"record_id"`
	URI       string    `db:"uri"        json:"uri"`
	Position  int       `db:"position"   json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
