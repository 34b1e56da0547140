package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxelmed/voxelmed/internal/job"
	"github.com/voxelmed/voxelmed/pkg/models"
)

// --- mock JobService ---

type mockJobService struct {
	createFn func(ctx context.Context, recordID uuid.UUID, model string) (*models.Job, error)
	statusFn func(ctx context.Context, recordID uuid.UUID) (*job.Status, error)
}

func (m *mockJobService) Create(ctx context.Context, recordID uuid.UUID, model string) (*models.Job, error) {
	return m.createFn(ctx, recordID, model)
}

func (m *mockJobService) Status(ctx context.Context, recordID uuid.UUID) (*job.Status, error) {
	return m.statusFn(ctx, recordID)
}

// --- helpers ---

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func parseData(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) map[string]any {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("expected %d, got %d: %s", wantCode, rec.Code, rec.Body.String())
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, env.Error.Code
}

// --- create job ---

func TestCreateJob_Success(t *testing.T) {
	recordID := uuid.New()
	jobID := uuid.New()
	svc := &mockJobService{createFn: func(_ context.Context, gotRecord uuid.UUID, model string) (*models.Job, error) {
		if gotRecord != recordID {
			t.Errorf("record id: got %s, want %s", gotRecord, recordID)
		}
		if model != "cranio-v2" {
			t.Errorf("model: got %q, want cranio-v2", model)
		}
		return &models.Job{ID: jobID, RecordID: gotRecord, Model: model, Status: models.JobStatusInfering}, nil
	}}
	h := NewCreateJobHandler(svc)

	rec := postJSON(t, h, "/api/v1/jobs", map[string]string{
		"record_id": recordID.String(),
		"model":     "cranio-v2",
	})

	data := parseData(t, rec, http.StatusAccepted)
	if data["job_id"] != jobID.String() {
		t.Errorf("job_id: got %v, want %s", data["job_id"], jobID)
	}
	if data["status"] != models.JobStatusInfering {
		t.Errorf("status: got %v, want infering", data["status"])
	}
}

func TestCreateJob_MissingModel(t *testing.T) {
	h := NewCreateJobHandler(&mockJobService{})

	rec := postJSON(t, h, "/api/v1/jobs", map[string]string{
		"record_id": uuid.NewString(),
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestCreateJob_InvalidRecordID(t *testing.T) {
	h := NewCreateJobHandler(&mockJobService{})

	rec := postJSON(t, h, "/api/v1/jobs", map[string]string{
		"record_id": "not-a-uuid",
		"model":     "cranio-v2",
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestCreateJob_RecordNotFound(t *testing.T) {
	svc := &mockJobService{createFn: func(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
		return nil, job.ErrRecordNotFound
	}}
	h := NewCreateJobHandler(svc)

	rec := postJSON(t, h, "/api/v1/jobs", map[string]string{
		"record_id": uuid.NewString(),
		"model":     "cranio-v2",
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusNotFound || errCode != "RESOURCE_NOT_FOUND" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestCreateJob_NoInputImages(t *testing.T) {
	svc := &mockJobService{createFn: func(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
		return nil, job.ErrNoInputImages
	}}
	h := NewCreateJobHandler(svc)

	rec := postJSON(t, h, "/api/v1/jobs", map[string]string{
		"record_id": uuid.NewString(),
		"model":     "cranio-v2",
	})

	code, _ := parseErr(t, rec)
	if code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", code)
	}
}

func TestCreateJob_Conflict(t *testing.T) {
	svc := &mockJobService{createFn: func(_ context.Context, _ uuid.UUID, _ string) (*models.Job, error) {
		return nil, job.ErrJobConflict
	}}
	h := NewCreateJobHandler(svc)

	rec := postJSON(t, h, "/api/v1/jobs", map[string]string{
		"record_id": uuid.NewString(),
		"model":     "cranio-v2",
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusConflict || errCode != "JOB_CONFLICT" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

// --- job status ---

func statusRouter(svc JobService) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/records/{recordID}/job", NewJobStatusHandler(svc))
	return r
}

func getStatus(t *testing.T, h http.Handler, recordID string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/records/"+recordID+"/job", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestJobStatus_Idle(t *testing.T) {
	svc := &mockJobService{statusFn: func(_ context.Context, _ uuid.UUID) (*job.Status, error) {
		return &job.Status{Status: job.StatusIdle}, nil
	}}

	rec := getStatus(t, statusRouter(svc), uuid.NewString())

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != "idle" {
		t.Errorf("status: got %v, want idle", data["status"])
	}
	if _, ok := data["risk"]; ok {
		t.Error("idle status must not carry result fields")
	}
}

func TestJobStatus_Infering_NoResultFields(t *testing.T) {
	jobID := uuid.New()
	svc := &mockJobService{statusFn: func(_ context.Context, recordID uuid.UUID) (*job.Status, error) {
		return &job.Status{
			Status: models.JobStatusInfering,
			Job: &models.Job{
				ID:       jobID,
				RecordID: recordID,
				Model:    "cranio-v2",
				Status:   models.JobStatusInfering,
			},
		}, nil
	}}

	rec := getStatus(t, statusRouter(svc), uuid.NewString())

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusInfering {
		t.Errorf("status: got %v", data["status"])
	}
	if data["job_id"] != jobID.String() {
		t.Errorf("job_id: got %v", data["job_id"])
	}
	for _, field := range []string{"risk", "phenotype", "prescription", "file_url"} {
		if _, ok := data[field]; ok {
			t.Errorf("infering status must not carry %s", field)
		}
	}
}

func TestJobStatus_Completed_AllFields(t *testing.T) {
	risk := "moderate"
	phenotype := "type-iii"
	prescription := "helmet therapy, 12 weeks"
	updated := time.Now().UTC()
	svc := &mockJobService{statusFn: func(_ context.Context, recordID uuid.UUID) (*job.Status, error) {
		return &job.Status{
			Status: models.JobStatusCompleted,
			Job: &models.Job{
				ID:           uuid.New(),
				RecordID:     recordID,
				Model:        "cranio-v2",
				Status:       models.JobStatusCompleted,
				Risk:         &risk,
				Phenotype:    &phenotype,
				Prescription: &prescription,
				UpdatedAt:    updated,
			},
			FileURL: "https://blob.example.com/results/volume.vol",
		}, nil
	}}

	rec := getStatus(t, statusRouter(svc), uuid.NewString())

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusCompleted {
		t.Errorf("status: got %v", data["status"])
	}
	if data["risk"] != risk {
		t.Errorf("risk: got %v", data["risk"])
	}
	if data["prescription"] != prescription {
		t.Errorf("prescription: got %v", data["prescription"])
	}
	if data["file_url"] != "https://blob.example.com/results/volume.vol" {
		t.Errorf("file_url: got %v", data["file_url"])
	}
}

func TestJobStatus_InvalidRecordID(t *testing.T) {
	rec := getStatus(t, statusRouter(&mockJobService{}), "not-a-uuid")

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
}
