// Package metrics exposes decoder activity as Prometheus counters,
// optionally served over HTTP for scraping via --metrics-addr.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters a decode run updates.
type Metrics struct {
	BytesDecoded  *prometheus.CounterVec
	RunsEmitted   *prometheus.CounterVec
	RunsDropped   *prometheus.CounterVec
	FramingErrors *prometheus.CounterVec
}

// New registers and returns a fresh Metrics against its own registry, so
// multiple decode runs in the same process (e.g. in tests) never collide
// on metric registration.
func New() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	labels := []string{"channel", "direction"}

	m := &Metrics{
		BytesDecoded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcsdecode",
			Name:      "bytes_decoded_total",
			Help:      "Bytes successfully framed and emitted in a run.",
		}, labels),
		RunsEmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcsdecode",
			Name:      "runs_emitted_total",
			Help:      "Byte runs written to an output file.",
		}, labels),
		RunsDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcsdecode",
			Name:      "runs_dropped_total",
			Help:      "Byte runs discarded for being shorter than the minimum run size.",
		}, labels),
		FramingErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcsdecode",
			Name:      "framing_errors_total",
			Help:      "UART framing errors, labeled by kind.",
		}, append(append([]string{}, labels...), "kind")),
	}
	return m, reg
}

// Serve starts an HTTP server exposing reg on /metrics and blocks until
// ctx is canceled, then shuts the server down.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
