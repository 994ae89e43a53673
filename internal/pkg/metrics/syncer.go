package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type SyncerMetrics struct {
	IterationsTotal     *prometheus.CounterVec
	PublishedBlocks     prometheus.Counter
	TipHeight           prometheus.Gauge
	ConfirmedHeight     prometheus.Gauge
	LastPublishedHeight prometheus.Gauge
	State               prometheus.Gauge
}

var (
	syncerOnce sync.Once
	syncer     *SyncerMetrics
)

func Syncer() *SyncerMetrics {
	syncerOnce.Do(func() {
		r := Registerer()
		syncer = &SyncerMetrics{
			IterationsTotal: promauto.With(r).NewCounterVec(
				prometheus.CounterOpts{
					Name: "syncer_iterations_total",
					Help: "sync loop iterations by outcome",
				},
				[]string{"outcome"},
			),
			PublishedBlocks: promauto.With(r).NewCounter(prometheus.CounterOpts{
				Name: "syncer_published_blocks_total",
				Help: "blocks published and marked as seen",
			}),
			TipHeight: promauto.With(r).NewGauge(prometheus.GaugeOpts{
				Name: "syncer_tip_height",
				Help: "last tip height reported by the chain reader",
			}),
			ConfirmedHeight: promauto.With(r).NewGauge(prometheus.GaugeOpts{
				Name: "syncer_confirmed_height",
				Help: "last confirmed height considered for publishing",
			}),
			LastPublishedHeight: promauto.With(r).NewGauge(prometheus.GaugeOpts{
				Name: "syncer_last_published_height",
				Help: "height of the last block published",
			}),
			State: promauto.With(r).NewGauge(prometheus.GaugeOpts{
				Name: "syncer_state",
				Help: "sync loop state (0=idle,1=running,2=stopping,3=stopped)",
			}),
		}
	})
	return syncer
}
