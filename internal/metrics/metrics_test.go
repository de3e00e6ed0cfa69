package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveEmbed("formula", "resolved")
	m.ObserveEmbed("formula", "resolved")
	m.ObserveEmbed("image", "cancelled")
	m.ObserveUpload(nil)
	m.ObserveUpload(errors.New("down"))
	m.ObservePreview("last-line")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmbedOutcomesTotal.WithLabelValues("formula", "resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedOutcomesTotal.WithLabelValues("image", "cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreviewClassesTotal.WithLabelValues("last-line")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/documents", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `docpad_http_requests_total{method="GET",route="/api/documents",status="OK"} 1`)
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
