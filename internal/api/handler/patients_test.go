package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/voxelmed/voxelmed/pkg/models"
)

type mockPatientStore struct {
	fn func(ctx context.Context, patient *models.Patient) error
}

func (m *mockPatientStore) CreatePatient(ctx context.Context, patient *models.Patient) error {
	return m.fn(ctx, patient)
}

func TestCreatePatient_Success(t *testing.T) {
	var created *models.Patient
	st := &mockPatientStore{fn: func(_ context.Context, p *models.Patient) error {
		created = p
		return nil
	}}
	h := NewCreatePatientHandler(st)

	rec := postJSON(t, h, "/api/v1/patients", map[string]any{
		"name":       "A. Lindgren",
		"sex":        "female",
		"birth_date": "2024-06-15",
		"height_cm":  48.0,
		"weight_kg":  4.2,
	})

	data := parseData(t, rec, http.StatusCreated)
	if created == nil {
		t.Fatal("patient was not stored")
	}
	if created.Name != "A. Lindgren" {
		t.Errorf("name: got %q", created.Name)
	}
	if data["sex"] != "female" {
		t.Errorf("sex: got %v", data["sex"])
	}
}

func TestCreatePatient_MissingBirthDate(t *testing.T) {
	h := NewCreatePatientHandler(&mockPatientStore{})

	rec := postJSON(t, h, "/api/v1/patients", map[string]any{
		"name": "A. Lindgren",
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestCreatePatient_InvalidBirthDate(t *testing.T) {
	h := NewCreatePatientHandler(&mockPatientStore{})

	rec := postJSON(t, h, "/api/v1/patients", map[string]any{
		"name":       "A. Lindgren",
		"birth_date": "15/06/2024",
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestCreatePatient_StoreError(t *testing.T) {
	st := &mockPatientStore{fn: func(_ context.Context, _ *models.Patient) error {
		return context.DeadlineExceeded
	}}
	h := NewCreatePatientHandler(st)

	rec := postJSON(t, h, "/api/v1/patients", map[string]any{
		"name":       "A. Lindgren",
		"birth_date": "2024-06-15",
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusInternalServerError || errCode != "INTERNAL_ERROR" {
		t.Fatalf("got %d %s", code, errCode)
	}
}
