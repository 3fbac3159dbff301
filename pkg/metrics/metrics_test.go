package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RowsImported("tenants", 3)
	m.RowsImported("tenants", 2)
	m.RowsPending("tenants", 1)
	m.TierLookup("resolved")
	m.TierLookup("resolved")
	m.TierLookup("above_tiers")
	m.ReferenceRowsParsed(12)
	m.RefreshRun("ok")
	m.ImportDuration("fill", 150*time.Millisecond)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowsImported.WithLabelValues("tenants")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rowsPending.WithLabelValues("tenants")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tierLookups.WithLabelValues("resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tierLookups.WithLabelValues("above_tiers")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.referenceRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshRuns.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.importDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.TierLookup("ambiguous")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `seguro_tier_lookups_total{outcome="ambiguous"} 1`)
}
