package observability

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSuccess},
		{domain.NewValidationError("bad"), OutcomeInvalid},
		{fmt.Errorf("wrap: %w", domain.ErrNotFoundOrForbidden), OutcomeNotFound},
		{errors.New("db down"), OutcomeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOp("add", nil)
		m.ObserveTree(3)
		m.FeedOpened()
		m.FeedClosed()
	})
}

func TestObserveOpAndFeeds(t *testing.T) {
	m := NewMetrics()
	m.ObserveOp("add", nil)
	m.ObserveOp("add", nil)
	m.ObserveOp("update", domain.ErrNotFoundOrForbidden)
	m.FeedOpened()
	m.FeedOpened()
	m.FeedClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommentOpsTotal.WithLabelValues("add", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommentOpsTotal.WithLabelValues("update", OutcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveFeeds))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/tasks/{taskId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body),
		`taskboard_http_request_duration_seconds_count{method="GET",route="/tasks/{taskId}",status="418"} 1`),
		string(body))
}
