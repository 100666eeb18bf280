package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/downfa11-org/duraq/util"
)

func init() {
	prometheus.MustRegister(MessagesPushed, MessagesDelivered, PullsEmpty, CommandErrors)
	prometheus.MustRegister(PushLatency, QueueDepth, ConnectedClients)
}

// StartMetricsServer exposes /metrics on the given port in the
// background.
func StartMetricsServer(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		util.Info("Prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			util.Error("metrics server failed: %v", err)
		}
	}()
}
