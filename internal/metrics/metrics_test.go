package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv, err := Serve("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	CyclesTotal.WithLabelValues("EURUSDT", "submitted").Inc()
	OrdersTotal.WithLabelValues("EURUSDT", "BUY", "accepted").Inc()
	LastPrediction.WithLabelValues("EURUSDT").Set(1.1012)

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "fxbot_last_prediction")

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["fxbot_cycles_total"])
	assert.True(t, names["fxbot_orders_total"])
	assert.True(t, names["fxbot_last_prediction"])

	assert.Equal(t, 1.1012, testutil.ToFloat64(LastPrediction.WithLabelValues("EURUSDT")))
}

func TestServeReportsBindError(t *testing.T) {
	srv, err := Serve("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	_, err = Serve(srv.Addr)
	assert.ErrorContains(t, err, "binding metrics endpoint")
}
