package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func TestHealth_AllUp(t *testing.T) {
	h := NewHealthHandler(&mockPinger{}, &mockPinger{})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != "ok" {
		t.Errorf("status: got %v", data["status"])
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(&mockPinger{err: errors.New("conn refused")}, &mockPinger{})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	code, errCode := parseErr(t, rec)
	if code != http.StatusServiceUnavailable || errCode != "SERVICE_UNAVAILABLE" {
		t.Fatalf("got %d %s", code, errCode)
	}
}

func TestHealth_CacheDown(t *testing.T) {
	h := NewHealthHandler(&mockPinger{}, &mockPinger{err: errors.New("redis down")})

	r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d", rec.Code)
	}
}
