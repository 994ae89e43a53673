package infra

import (
	"sync"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	imetrics "github.com/pancudaniel7/blocksync-service/internal/pkg/metrics"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

var (
	registryOnce sync.Once
	promRegistry *prometheus.Registry
)

// InitMetricsRegistry creates the process registry and points the metrics
// package at it. It must run before any component touches a metric.
func InitMetricsRegistry() *prometheus.Registry {
	registryOnce.Do(func() {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector())
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		svc := viper.GetString("service.name")
		if svc == "" {
			svc = "blocksync"
		}
		inst := viper.GetString("service.instance")
		bi := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "service_build_info", Help: "build info", ConstLabels: prometheus.Labels{"service": svc, "instance": inst}}, []string{"version"})
		promRegistry.MustRegister(bi)
		bi.WithLabelValues(Version).Set(1)

		imetrics.UseRegisterer(promRegistry)
		_ = imetrics.App()
		_ = imetrics.Kafka()
		_ = imetrics.Reader()
		_ = imetrics.Syncer()
		_ = imetrics.Pipeline()
	})
	return promRegistry
}

func InitMetrics(app *fiber.App) {
	if app == nil {
		return
	}
	reg := InitMetricsRegistry()
	h := promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	app.Get("/metrics", adaptor.HTTPHandler(h))
}
