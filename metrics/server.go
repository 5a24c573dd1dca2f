package metrics

import (
	"evcentral/internal"
	"evcentral/internal/config"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listen serves /metrics until the listener fails; returns nil at once when disabled.
func Listen(conf *config.Config, logger internal.LogHandler) error {
	if !conf.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	address := fmt.Sprintf("%s:%s", conf.Metrics.BindIP, conf.Metrics.Port)
	logger.Debug("starting metrics server on " + address)
	return http.ListenAndServe(address, mux)
}
