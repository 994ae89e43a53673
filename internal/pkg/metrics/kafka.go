package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values for KafkaMetrics.EnvelopesTotal.
const (
	ResultAcked  = "acked"
	ResultFailed = "failed"
)

// KafkaMetrics covers the envelope producer and its startup reachability check.
type KafkaMetrics struct {
	EnvelopesTotal     *prometheus.CounterVec
	ProduceErrorsTotal *prometheus.CounterVec
	AckLatencyMS       prometheus.Histogram
	EnvelopeBytes      prometheus.Histogram
	PingAttemptsTotal  prometheus.Counter
	BrokerReachable    prometheus.Gauge
}

var (
	kafkaOnce sync.Once
	kafka     *KafkaMetrics
)

func Kafka() *KafkaMetrics {
	kafkaOnce.Do(func() {
		f := promauto.With(Registerer())
		kafka = &KafkaMetrics{
			EnvelopesTotal: f.NewCounterVec(
				prometheus.CounterOpts{Name: "kafka_envelopes_total", Help: "block envelopes handed to kafka, by result"},
				[]string{"result"},
			),
			ProduceErrorsTotal: f.NewCounterVec(
				prometheus.CounterOpts{Name: "kafka_produce_errors_total", Help: "failed envelope sends by error type"},
				[]string{"type"},
			),
			AckLatencyMS: f.NewHistogram(prometheus.HistogramOpts{
				Name:    "kafka_ack_latency_ms",
				Help:    "time from produce to broker acknowledgment (ms)",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			}),
			EnvelopeBytes: f.NewHistogram(prometheus.HistogramOpts{
				Name:    "kafka_envelope_bytes",
				Help:    "serialized envelope size",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			}),
			PingAttemptsTotal: f.NewCounter(prometheus.CounterOpts{
				Name: "kafka_ping_attempts_total",
				Help: "startup cluster pings, including retries",
			}),
			BrokerReachable: f.NewGauge(prometheus.GaugeOpts{
				Name: "kafka_broker_reachable",
				Help: "1 after a successful startup ping, 0 once closed or unreachable",
			}),
		}
	})
	return kafka
}
