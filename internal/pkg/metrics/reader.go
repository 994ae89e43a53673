package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ReaderMetrics struct {
	RequestsTotal  *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	FetchLatencyMS *prometheus.HistogramVec
}

var (
	readerOnce sync.Once
	reader     *ReaderMetrics
)

// Reader returns chain reader metrics labelled by call ("tip" or "block").
func Reader() *ReaderMetrics {
	readerOnce.Do(func() {
		r := Registerer()
		reader = &ReaderMetrics{
			RequestsTotal: promauto.With(r).NewCounterVec(
				prometheus.CounterOpts{
					Name: "reader_requests_total",
					Help: "chain reader requests by driver and call",
				},
				[]string{"driver", "call"},
			),
			ErrorsTotal: promauto.With(r).NewCounterVec(
				prometheus.CounterOpts{
					Name: "reader_errors_total",
					Help: "chain reader failures by driver, call and code",
				},
				[]string{"driver", "call", "code"},
			),
			FetchLatencyMS: promauto.With(r).NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "reader_fetch_latency_ms",
					Help:    "chain reader request latency (ms)",
					Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
				},
				[]string{"driver", "call"},
			),
		}
	})
	return reader
}
