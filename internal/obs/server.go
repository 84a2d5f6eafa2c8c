package obs

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServerPort is the fixed port the metrics server listens on
// when DC_METRICS_SERVER=1 is set.
const MetricsServerPort = 9090

// MaybeStartMetricsServer starts the /metrics and /healthz HTTP server
// when DC_METRICS_SERVER=1 is set in the environment. It returns a
// shutdown func that is a no-op when the server
// wasn't started, so callers can unconditionally `defer shutdown()`.
func MaybeStartMetricsServer(m *Metrics) (shutdown func(context.Context) error) {
	if os.Getenv("DC_METRICS_SERVER") != "1" {
		return func(context.Context) error { return nil }
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", MetricsServerPort),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv.Shutdown
}
