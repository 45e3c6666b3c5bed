package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/snippet-box/internal/metrics"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		w.Write([]byte("body"))
	})
}

func TestLogger_LevelsByStatus(t *testing.T) {
	tests := []struct {
		code  int
		level string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			rr := httptest.NewRecorder()
			Logger(logger)(statusHandler(tt.code)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/snippets", nil))

			assert.Equal(t, tt.code, rr.Code)
			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), "path=/api/snippets")
			assert.Contains(t, buf.String(), "bytes=4")
		})
	}
}

func TestMetrics_CountsRequests(t *testing.T) {
	m := metrics.New()
	h := Metrics(m)(statusHandler(http.StatusCreated))

	for i := 0; i < 3; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/snippets", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodPost, "201")))
}

func TestMetricsAndLogger_ShareWrapper(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	h := Metrics(m)(Logger(slog.New(slog.NewTextHandler(&buf, nil)))(statusHandler(http.StatusTeapot)))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "status=418")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "418")))
}
