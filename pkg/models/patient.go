// Package models contains shared data models used across the VoxelMed codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the owner of scan records. Age and BMI are derived on demand
// from the stored vitals, never persisted redundantly.
type Patient struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	Sex       string    `db:"sex"        json:"sex"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	HeightCM  float64   `db:"height_cm"  json:"height_cm"`
	WeightKG  float64   `db:"weight_kg"  json:"weight_kg"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AgeAt returns the patient's age in whole years at the given instant.
func (p *Patient) AgeAt(at time.Time) int {
	years := at.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// BMI returns the body mass index, or 0 when height is unknown.
func (p *Patient) BMI() float64 {
	if p.HeightCM <= 0 {
		return 0
	}
	m := p.HeightCM / 100
	return p.WeightKG / (m * m)
}
