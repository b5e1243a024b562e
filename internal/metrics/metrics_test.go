package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Search("snatched")
	m.Search("snatched")
	m.Search("no_results")
	m.ProviderDone("nzbgeek", 12, time.Second, nil)
	m.ProviderDone("nzbgeek", 3, time.Second, nil)
	m.ProviderDone("tracker", 0, time.Second, errors.New("timeout"))
	m.Reject("size")
	m.Snatch("torrent")
	m.PostProcess("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.searches.WithLabelValues("snatched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("no_results")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.providerResults.WithLabelValues("nzbgeek")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerErrors.WithLabelValues("tracker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("size")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snatches.WithLabelValues("torrent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.postprocess.WithLabelValues("ok")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Search("x")
		m.ProviderDone("p", 1, time.Second, nil)
		m.Reject("r")
		m.Snatch("nzb")
		m.PostProcess("ok")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Snatch("nzb")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `albumhound_snatches_total{kind="nzb"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
