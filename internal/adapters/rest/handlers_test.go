package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estate-parser-service/internal/contextkeys"
	"estate-parser-service/internal/core/domain"
	"estate-parser-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Debug(string, port.Fields)        {}
func (testLogger) Info(string, port.Fields)         {}
func (testLogger) Warn(string, port.Fields)         {}
func (testLogger) Error(string, error, port.Fields) {}
func (l testLogger) WithFields(port.Fields) port.LoggerPort {
	return l
}

type fakeHistory struct {
	summary *domain.RunSummary
	err     error
}

func (f *fakeHistory) LatestRun(context.Context) (*domain.RunSummary, error) {
	return f.summary, f.err
}

func newTestRouter(history port.RunHistoryPort) http.Handler {
	handlers := NewOpsHandlers(history, "estate-parser-service")
	return newRouter(handlers, testLogger{})
}

func finishedSummary() *domain.RunSummary {
	started := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
	return &domain.RunSummary{
		RunID:          uuid.New(),
		TaskName:       "nightly",
		ListingsSaved:  12,
		PagesProcessed: 3,
		MethodsUsed:    []string{"api", "markup"},
		Blocked:        2,
		BlockEvents: []domain.BlockEvent{
			{URL: "https://portal.example/search?page=2", StatusCode: 403, Reason: "status_403", OccurredAt: started.Add(time.Minute)},
		},
		Errors: []domain.ScrapeError{
			{OccurredAt: started.Add(2 * time.Minute), Strategy: "markup", Target: "https://portal.example/search", Page: 3, Message: "fetch failed"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(5 * time.Minute),
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeHistory{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "estate-parser-service", body.Service)
}

func TestLatestRunEndpointReturnsSummary(t *testing.T) {
	summary := finishedSummary()
	router := newTestRouter(&fakeHistory{summary: summary})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body RunSummaryResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, summary.RunID.String(), body.RunID)
	require.Equal(t, "nightly", body.TaskName)
	require.Equal(t, 12, body.ListingsSaved)
	require.Equal(t, []string{"api", "markup"}, body.MethodsUsed)
	require.Len(t, body.Errors, 1)
	require.Equal(t, "fetch failed", body.Errors[0].Message)
	require.False(t, body.LikelyBlocked)
}

func TestLatestRunEndpointWhenNothingRecorded(t *testing.T) {
	router := newTestRouter(&fakeHistory{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "No completed runs yet")
}

func TestLatestRunEndpointOnStoreFailure(t *testing.T) {
	router := newTestRouter(&fakeHistory{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/latest", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBlocksEndpointReturnsRecentEvents(t *testing.T) {
	summary := finishedSummary()
	router := newTestRouter(&fakeHistory{summary: summary})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/blocks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body BlocksResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Blocked)
	require.Len(t, body.Events, 1)
	require.Equal(t, 403, body.Events[0].StatusCode)
	require.Equal(t, "status_403", body.Events[0].Reason)
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(&fakeHistory{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/does-not-exist", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoggerMiddlewareSeedsTraceID(t *testing.T) {
	var seenTraceID string
	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTraceID = contextkeys.TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	wrapped := LoggerMiddleware(testLogger{})(probe)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Trace-ID", "trace-from-upstream")
	wrapped.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "trace-from-upstream", seenTraceID)

	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	wrapped.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEmpty(t, seenTraceID)
	_, err := uuid.Parse(seenTraceID)
	require.NoError(t, err)
}
