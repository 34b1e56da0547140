package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voxelmed/voxelmed/internal/inference"
	"github.com/voxelmed/voxelmed/internal/job"
)

type mockCompleter struct {
	fn func(ctx context.Context, jobID uuid.UUID, analysis *inference.AnalysisResult) error
}

func (m *mockCompleter) ConvertAndComplete(ctx context.Context, jobID uuid.UUID, analysis *inference.AnalysisResult) error {
	return m.fn(ctx, jobID, analysis)
}

func completeRouter(svc Completer) http.Handler {
	r := chi.NewRouter()
	r.Put("/api/v1/jobs/{jobID}/complete", NewCompleteJobHandler(svc))
	return r
}

func putComplete(t *testing.T, h http.Handler, jobID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPut, "/api/v1/jobs/"+jobID+"/complete", bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestComplete_Success(t *testing.T) {
	jobID := uuid.New()
	var gotID uuid.UUID
	var gotRisk string
	svc := &mockCompleter{fn: func(_ context.Context, id uuid.UUID, analysis *inference.AnalysisResult) error {
		gotID = id
		gotRisk = analysis.Risk
		return nil
	}}

	rec := putComplete(t, completeRouter(svc), jobID.String(), map[string]any{
		"job_id": jobID.String(),
		"result": map[string]string{
			"risk":      "low",
			"phenotype": "type-i",
		},
	})

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != jobID {
		t.Errorf("job id: got %s, want %s", gotID, jobID)
	}
	if gotRisk != "low" {
		t.Errorf("risk: got %q, want low", gotRisk)
	}
}

func TestComplete_IDMismatch(t *testing.T) {
	called := false
	svc := &mockCompleter{fn: func(_ context.Context, _ uuid.UUID, _ *inference.AnalysisResult) error {
		called = true
		return nil
	}}

	rec := putComplete(t, completeRouter(svc), uuid.NewString(), map[string]any{
		"job_id": uuid.NewString(),
		"result": map[string]string{"risk": "low"},
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
	if called {
		t.Error("mismatched body must never reach the orchestrator")
	}
}

func TestComplete_Superseded(t *testing.T) {
	jobID := uuid.New()
	svc := &mockCompleter{fn: func(_ context.Context, _ uuid.UUID, _ *inference.AnalysisResult) error {
		return job.ErrJobSuperseded
	}}

	rec := putComplete(t, completeRouter(svc), jobID.String(), map[string]any{
		"job_id": jobID.String(),
		"result": map[string]string{"risk": "low"},
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusConflict || errCode != "JOB_SUPERSEDED" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestComplete_IncompleteResult(t *testing.T) {
	jobID := uuid.New()
	svc := &mockCompleter{fn: func(_ context.Context, _ uuid.UUID, _ *inference.AnalysisResult) error {
		return job.ErrIncompleteResult
	}}

	rec := putComplete(t, completeRouter(svc), jobID.String(), map[string]any{
		"job_id": jobID.String(),
		"result": map[string]string{"risk": ""},
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestComplete_ConversionError(t *testing.T) {
	jobID := uuid.New()
	svc := &mockCompleter{fn: func(_ context.Context, _ uuid.UUID, _ *inference.AnalysisResult) error {
		return errors.New("decoding prescription: bad payload")
	}}

	rec := putComplete(t, completeRouter(svc), jobID.String(), map[string]any{
		"job_id": jobID.String(),
		"result": map[string]string{"risk": "low"},
	})

	code, errCode := parseErr(t, rec)
	if code != http.StatusInternalServerError || errCode != "INTERNAL_ERROR" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestComplete_InvalidJobID(t *testing.T) {
	rec := putComplete(t, completeRouter(&mockCompleter{}), "not-a-uuid", nil)

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Fatalf("got %d %s", code, errCode)
	}
}
