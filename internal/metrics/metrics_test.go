package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jengzang/sites-backend-go/internal/loader"
)

func TestRecorder_ObservesLoaderEvents(t *testing.T) {
	r := New()

	r.ObserveQuery(120*time.Millisecond, 300, true)
	r.ObserveQuery(10*time.Millisecond, 0, false)
	r.ObserveLimit(3000)
	r.ObserveSafeMode(true)
	r.ObserveEscalation(loader.ReasonQuerySlow)
	r.ObserveEscalation(loader.ReasonQuerySlow)
	r.ObserveFallback()
	r.ObserveWarmup(false)
	r.ObserveColdStart(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.QueriesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.QueriesTotal.WithLabelValues("failure")))
	assert.Equal(t, 3000.0, testutil.ToFloat64(r.CurrentLimit))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.SafeMode))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.EscalationTotal.WithLabelValues("viewport_query_slow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FallbackTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.WarmupTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.BootstrapTotal.WithLabelValues("success")))

	r.ObserveSafeMode(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.SafeMode))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveLimit(4000)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "sites_viewport_limit 4000")
}
