package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposed(t *testing.T) {
	ObserveFetch(OutcomeSkip, 12*time.Millisecond)
	IncFetchRequest()
	ObserveBufferRefresh(true)
	ObserveBufferRefresh(false)
	ObserveHitTest(false)
	SetLayerFeaturesIndexed(42)
	AddLayerFeaturesSkipped(2)
	IncCacheMerged()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `geoview_fetch_total{outcome="skip"} `)
	assert.Contains(t, body, `geoview_fetch_duration_seconds_bucket`)
	assert.Contains(t, body, `geoview_buffer_refresh_total{result="rerender"} `)
	assert.Contains(t, body, `geoview_buffer_refresh_total{result="reuse"} `)
	assert.Contains(t, body, `geoview_hittest_total{result="miss"} `)
	assert.Contains(t, body, `geoview_layer_features_indexed 42`)
	assert.Contains(t, body, `geoview_cache_results_total{outcome="merged"} `)
}
