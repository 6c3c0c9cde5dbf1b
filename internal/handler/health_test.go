package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   healthResponse
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok"},
		},
		{
			name:       "all healthy",
			checks:     map[string]HealthCheck{"database": ok, "cache": ok},
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok", Checks: map[string]string{"database": "ok", "cache": "ok"}},
		},
		{
			name:       "database down",
			checks:     map[string]HealthCheck{"database": down, "cache": ok},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthResponse{Status: "degraded", Checks: map[string]string{"database": "unavailable", "cache": "ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			NewHealthHandler(tt.checks, discardLogger()).RegisterRoutes(mux)

			rec := doJSON(t, mux, http.MethodGet, "/health", "")
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, decodeBody[healthResponse](t, rec))
		})
	}
}
