package models

import (
	"time"

	"github.com/google/uuid"
)

// Job status values. "infering" is the spelling used by the upstream
// inference service's contract and is preserved on the wire.
const (
	JobStatusInfering  = "infering"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job tracks one inference attempt over a record. The API returns the job id
// on POST /api/v1/jobs; the client polls the record's job status until it is
// completed or failed. At most one job row exists per record; creating a new
// job replaces the previous one.
//
// Result fields are NULL while the job is infering or failed and are written
// together in a single transaction when it completes.
type Job struct {
	ID                   uuid.UUID `db:"id"                    json:"id"`
	RecordID             uuid.UUID `db:"record_id"             json:"record_id"`
	Model                string    `db:"model"                 json:"model"`
	Status               string    `db:"status"                json:"status"`
	Risk                 *string   `db:"risk"                  json:"risk,omitempty"`
	Phenotype            *string   `db:"phenotype"             json:"phenotype,omitempty"`
	PhenotypeImageURL    *string   `db:"phenotype_image_url"   json:"phenotype_image_url,omitempty"`
	TreatmentDescription *string   `db:"treatment_description" json:"treatment_description,omitempty"`
	TreatmentImageURL    *string   `db:"treatment_image_url"   json:"treatment_image_url,omitempty"`
	Prescription         *string   `db:"prescription"          json:"prescription,omitempty"`
	CreatedAt            time.Time `db:"created_at"            json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"            json:"updated_at"`
}

// Terminal reports whether the job has reached a state it cannot leave.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
