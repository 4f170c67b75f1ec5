package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kepler-recorder-go/internal/config"
	"kepler-recorder-go/internal/models"
	"kepler-recorder-go/internal/services/recorder"
)

type idleRecorder struct{}

func (idleRecorder) Start(context.Context, recorder.Options) (*models.RecordingSession, error) {
	return &models.RecordingSession{ID: "x"}, nil
}
func (idleRecorder) Stop() bool                     { return false }
func (idleRecorder) Status() models.RecordingStatus { return models.RecordingStatus{} }
func (idleRecorder) Last() *models.RecordingSession { return nil }

func TestServerRoutes(t *testing.T) {
	cfg := &config.Config{InstanceID: "rec-1", Version: "1.2.3", Port: 0, CatalogListLimit: 10}
	srv := NewServer(context.Background(), cfg, Deps{Recorder: idleRecorder{}})
	require.NoError(t, srv.Setup())

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/api/info", http.StatusOK},
		{http.MethodGet, "/docs", http.StatusMovedPermanently},
		{http.MethodGet, "/recordings/status", http.StatusOK},
		{http.MethodPost, "/recordings", http.StatusAccepted},
		{http.MethodPost, "/recordings/stop", http.StatusConflict},
		{http.MethodGet, "/sessions", http.StatusServiceUnavailable},
		{http.MethodGet, "/system/stats", http.StatusOK},
		{http.MethodGet, "/cameras", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "%s %s", tc.method, tc.path)
	}
}
