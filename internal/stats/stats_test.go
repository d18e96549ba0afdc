package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	su := NewStatsUpdater()
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	assert.NotNil(t, su.vars.Get("Uptime"), "expected uptime metric to be registered")

	// several updaters must be able to coexist
	assert.NotPanics(t, func() { NewStatsUpdater() })
}

func TestStatsUpdaterCounters(t *testing.T) {
	su := NewStatsUpdater()
	su.RegisterMetric("NumActiveSessions")
	su.Run()

	su.Incr("NumActiveSessions")
	su.Incr("NumActiveSessions")
	su.Decr("NumActiveSessions")
	su.Stop()

	assert.Equal(t, int64(1), su.Value("NumActiveSessions"), "expected increments and decrements to apply")
	assert.Equal(t, int64(0), su.Value("Unknown"), "expected unknown metrics to read as zero")
}

func TestRegisterMetricKeepsValue(t *testing.T) {
	su := NewStatsUpdater()
	su.RegisterMetric("NumRateLimited")
	su.Run()
	su.Incr("NumRateLimited")
	su.Stop()

	su.RegisterMetric("NumRateLimited")
	assert.Equal(t, int64(1), su.Value("NumRateLimited"), "expected re-registration to keep the counter")
}

func TestStatsHandler(t *testing.T) {
	su := NewStatsUpdater()
	su.RegisterMetric("NumFanoutDrops")

	rr := httptest.NewRecorder()
	su.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "expected json body")
	assert.Contains(t, body, "Uptime")
	assert.Equal(t, float64(0), body["NumFanoutDrops"])
}
