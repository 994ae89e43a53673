package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AppMetrics holds process-wide counters shared by every component.
type AppMetrics struct {
	ErrorsTotal   *prometheus.CounterVec
	WarningsTotal *prometheus.CounterVec
	Goroutines    prometheus.GaugeFunc
}

var (
	appOnce sync.Once
	app     *AppMetrics
)

func App() *AppMetrics {
	appOnce.Do(func() {
		f := promauto.With(Registerer())
		app = &AppMetrics{
			ErrorsTotal: f.NewCounterVec(
				prometheus.CounterOpts{Name: "app_errors_total", Help: "errors by component and reason"},
				[]string{"component", "reason"},
			),
			WarningsTotal: f.NewCounterVec(
				prometheus.CounterOpts{Name: "app_warnings_total", Help: "handled or transient failures by component and reason"},
				[]string{"component", "reason"},
			),
			Goroutines: f.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "app_goroutines",
				Help: "runtime.NumGoroutine",
			}, func() float64 { return float64(runtime.NumGoroutine()) }),
		}
	})
	return app
}
