package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.NotNil(t, r.TransactionsTotal)
	assert.NotNil(t, r.QueueItems)
	assert.NotNil(t, r.FullSyncRunsTotal)
	assert.NotNil(t, r.GetPrometheusRegistry())
}

func TestRecordTransaction(t *testing.T) {
	r := NewRegistry()

	r.RecordTransaction("topic", "course", "committed", 10*time.Millisecond)
	r.RecordTransaction("topic", "course", "committed", 20*time.Millisecond)
	r.RecordTransaction("topic", "forum", "rolled_back", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.TransactionsTotal.WithLabelValues("topic", "course", "committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TransactionsTotal.WithLabelValues("topic", "forum", "rolled_back")))
}

func TestRecordEntitiesAndQueue(t *testing.T) {
	r := NewRegistry()

	r.RecordEntities("post", 3, 1, 2)
	r.SetQueueItems("pending", 5)
	r.RecordQueueSweep("requeued", 2)
	r.RecordQueueSweep("failed", 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.EntitiesSyncedTotal.WithLabelValues("post", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EntitiesSyncedTotal.WithLabelValues("post", "failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.QueueItems.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.QueueSweptTotal.WithLabelValues("requeued")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.QueueSweptTotal.WithLabelValues("failed")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry

	assert.NotPanics(t, func() {
		r.RecordTransaction("topic", "course", "committed", time.Second)
		r.RecordConflict("topic")
		r.RecordResolution("merge")
		r.RecordQueueResult("completed")
		r.RecordQueueSweep("deleted", 3)
		r.SetQueueItems("failed", 1)
		r.RecordFullSync("success", time.Second)
		r.RecordEntities("user", 1, 0, 0)
		r.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	})
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.RecordFullSync("success", 2*time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `lmssync_full_sync_runs_total{result="success"} 1`))
}
