package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMutation("index", "applied")
		m.RecordSnapshot(1, 2, 3)
		m.RecordPersist(1, time.Millisecond, false, nil)
		m.RecordSearch(time.Millisecond, 4, nil)
		m.RecordContentCache(true)
		m.RecordWatcherEvent("indexed")
	})
}

func TestRecordMutation(t *testing.T) {
	m := New(nil)
	m.RecordMutation("index", "applied")
	m.RecordMutation("index", "applied")
	m.RecordMutation("remove", "noop")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("index", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("remove", "noop")))
}

func TestRecordSnapshotAndPersist(t *testing.T) {
	m := New(nil)
	m.RecordSnapshot(7, 3, 12)
	m.RecordPersist(7, 2*time.Millisecond, false, nil)
	m.RecordPersist(6, 0, true, nil)
	m.RecordPersist(8, time.Millisecond, false, errors.New("disk full"))

	assert.Equal(t, 7.0, testutil.ToFloat64(m.Generation))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Documents))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.Terms))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.PersistedGeneration), "failed write does not move the persisted gauge")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistTotal.WithLabelValues("error")))
}

func TestRecordSearch(t *testing.T) {
	m := New(nil)
	m.RecordSearch(time.Millisecond, 3, nil)
	m.RecordSearch(time.Millisecond, 0, nil)
	m.RecordSearch(0, 0, errors.New("bad query"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_result")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("error")))
}

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordMutation("clear", "applied")
	m.RecordContentCache(false)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `notes_index_mutations_total{op="clear",result="applied"} 1`))
	assert.True(t, strings.Contains(body, `notes_index_content_cache_requests_total{outcome="miss"} 1`))
}
