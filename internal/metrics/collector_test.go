package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordSwap("command", OutcomeConfirmed, 2*time.Second)
	c.RecordSwap("auto_snipe_all", OutcomeDuplicate, 0)
	c.RecordSwap("snipe_loop", OutcomeFailed, time.Second)
	c.RecordListingFetch(true)
	c.RecordListingFetch(false)
	c.RecordListingFetch(false)
	c.AddNewAssets(3)
	c.AddNewAssets(0)
	c.RecordDispatch("auto_snipe_all")
	c.RecordLoopRestart("listing_poller")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.swaps.WithLabelValues("command", OutcomeConfirmed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.swaps.WithLabelValues("auto_snipe_all", OutcomeDuplicate)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.listingFetch.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.newAssets))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatches.WithLabelValues("auto_snipe_all")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.swapDuration), "duplicates are not timed")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sniper_swaps_total")
	assert.Contains(t, string(body), "sniper_loop_restarts_total")
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordSwap("command", OutcomeConfirmed, time.Second)
		c.RecordListingFetch(true)
		c.AddNewAssets(1)
		c.RecordDispatch("snipe_loop")
		c.RecordLoopRestart("snipe_loop")
	})
}
