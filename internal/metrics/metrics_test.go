package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := httpRequestsTotal
	Init()
	require.Same(t, first, httpRequestsTotal)
}

func TestDomainCollectors(t *testing.T) {
	Init()

	before := testutil.ToFloat64(liveFramesTotal.WithLabelValues("accepted"))
	ObserveLiveFrame("accepted")
	require.Equal(t, before+1, testutil.ToFloat64(liveFramesTotal.WithLabelValues("accepted")))

	gauge := testutil.ToFloat64(liveConnections)
	IncLiveConnections()
	require.Equal(t, gauge+1, testutil.ToFloat64(liveConnections))
	DecLiveConnections()
	require.Equal(t, gauge, testutil.ToFloat64(liveConnections))

	ObserveUpload(1 << 20)
	require.Equal(t, 1, testutil.CollectAndCount(uploadBytes))
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveLiveFrame("rejected")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "scribe_live_frames_total")
}
