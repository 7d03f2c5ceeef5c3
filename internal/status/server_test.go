package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdfpull/pdfpull/internal/downloader"
)

type staticProgress struct {
	snap downloader.Snapshot
}

func (s staticProgress) Progress() downloader.Snapshot { return s.snap }

func TestProgressEndpoint(t *testing.T) {
	src := staticProgress{snap: downloader.Snapshot{
		RunID:      "run-1",
		Total:      10,
		Downloaded: 4,
		Skipped:    2,
		Failed:     1,
		Elapsed:    3 * time.Second,
	}}
	srv := New("127.0.0.1:0", src, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got downloader.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, src.snap, got)
}

func TestHealthz(t *testing.T) {
	srv := New("127.0.0.1:0", staticProgress{}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New("127.0.0.1:0", staticProgress{}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
