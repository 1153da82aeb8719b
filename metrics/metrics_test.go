package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer(t *testing.T) {
	m, err := New("proof_registry", ":0")
	require.NoError(t, err)

	m.ObserveCall("create", "ok", 3*time.Millisecond)
	m.ObserveCall("create", "ok", time.Millisecond)
	m.ObserveCall("revoke", "NotOwner", time.Millisecond)
	m.SetCurrentBlock(42)
	m.IncPublishFailure("redis-proof-events")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.calls.WithLabelValues("create", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calls.WithLabelValues("revoke", "NotOwner")))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.currentBlock))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `proof_registry_calls_total{call="create",result="ok"} 2`)
	assert.Contains(t, string(body), "proof_registry_current_block 42")
	assert.Contains(t, string(body), `proof_registry_event_publish_failures_total{sink="redis-proof-events"} 1`)
}
