package metrics

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxbot_cycles_total", Help: "Decision cycles by pair and outcome"},
		[]string{"pair", "outcome"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fxbot_orders_total", Help: "Orders sent to the venue"},
		[]string{"pair", "direction", "result"},
	)
	LastPrediction = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "fxbot_last_prediction", Help: "Most recent predicted close"},
		[]string{"pair"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, OrdersTotal, LastPrediction)
}

// Serve binds addr and exposes /metrics on it in the background. The returned server's
// Addr holds the bound address.
func Serve(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding metrics endpoint %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	return srv, nil
}
