package cmd

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	transporthttp "github.com/otterscale/fluxstrap/internal/transport/http"
)

// newMetricsServer installs a Prometheus-backed global meter provider
// and returns an HTTP server exposing it on /metrics.
func newMetricsServer(address string) (*transporthttp.Server, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))

	return transporthttp.NewServer(
		transporthttp.WithAddress(address),
		transporthttp.WithMount(func(mux *http.ServeMux) error {
			mux.Handle("/metrics", promhttp.Handler())
			return nil
		}),
	)
}
