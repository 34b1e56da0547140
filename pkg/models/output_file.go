package models

import (
	"time"

	"github.com/google/uuid"
)

// OutputFile is the metadata for the single durable artifact produced by a
// completed job: the reconstructed binary volume stored in the blob store.
// It is deleted (rows and blob) whenever its job is replaced.
type OutputFile struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	JobID     uuid.UUID `db:"job_id"     json:"job_id"`
	Name      string    `db:"name"       json:"name"`
	MediaType string    `db:"media_type" json:"media_type"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	Path      string    `db:"path"       json:"path"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
