package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"clangraph/lib/env"
	"clangraph/lib/utils/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var logger = logging.NewLogger("MONITORING")

var registry = prometheus.NewRegistry()

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		addr := fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("PROMETHEUS_SERVER_ERROR", err, map[string]any{
				logging.PORT: port,
			})
		}
	}()
}

func loadMetricsPort(port string) (int, bool) {
	if port == "" {
		return 0, false
	}
	metricsPort, err := strconv.Atoi(port)
	if err != nil {
		logger.Warn("INVALID_METRICS_PORT", err, map[string]any{
			logging.PORT: port,
		})
		return 0, false
	}
	return metricsPort, true
}

// RegisterMetrics registers the run metrics and, when METRICS_PORT is set,
// serves them on /metrics for the lifetime of the process
func RegisterMetrics() {
	registry.MustRegister(collectors...)

	if metricsPort, ok := loadMetricsPort(env.MetricsPort); ok {
		serveMetrics(metricsPort)
		logger.Info("METRICS_SERVER_STARTED", map[string]any{
			logging.PORT: metricsPort,
		})
	}
}

// PushMetrics sends the final metric values to PUSHGATEWAY_URL, if configured.
// A CLI run is usually over before Prometheus would scrape it.
func PushMetrics(ctx context.Context, job string, grouping map[string]string) error {
	if env.PushgatewayURL == "" {
		return nil
	}

	pusher := push.New(env.PushgatewayURL, job).Gatherer(registry)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", env.PushgatewayURL, err)
	}

	logger.Debug("METRICS_PUSHED", map[string]any{
		logging.HOST: env.PushgatewayURL,
	})
	return nil
}
