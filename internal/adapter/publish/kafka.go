package publish

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"github.com/pancudaniel7/blocksync-service/internal/core/entity"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/core/usecase"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
	imetrics "github.com/pancudaniel7/blocksync-service/internal/pkg/metrics"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/pattern"
)

const (
	HeaderBlockHeight = "block-height"
	HeaderEnvelopeID  = "envelope-id"

	defaultWriteTimeout     = 10 * time.Second
	defaultPingAttempts     = 5
	defaultPingInitialDelay = 500 * time.Millisecond
	defaultPingMaxDelay     = 5 * time.Second
)

type kgoClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Flush(ctx context.Context) error
	Close()
}

var newKgoClient = func(opts ...kgo.Opt) (kgoClient, error) {
	return kgo.NewClient(opts...)
}

// KafkaPublisher sends block envelopes to a single Kafka topic and waits for
// the broker acknowledgment of every record.
type KafkaPublisher struct {
	log          applog.AppLogger
	client       kgoClient
	cfg          Config
	writeTimeout time.Duration
	pingOpts     []pattern.RetryOption
	now          func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ port.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher validates cfg, loads TLS material for SASL_SSL and builds
// the producer client. It does not contact the cluster; see Ping.
func NewKafkaPublisher(log applog.AppLogger, cfg Config, v *validator.Validate) (*KafkaPublisher, error) {
	if err := v.Struct(cfg); err != nil {
		return nil, apperr.NewInvalidArgErr("invalid kafka publisher config", err)
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}

	if cfg.SecurityProtocol == SecuritySASLSSL {
		if err := v.Struct(cfg.SASL); err != nil {
			return nil, apperr.NewInvalidArgErr("invalid kafka SASL config", err)
		}
		if err := v.Struct(cfg.TLS); err != nil {
			return nil, apperr.NewInvalidArgErr("invalid kafka TLS config", err)
		}
		tlsCfg, err := LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			kgo.DialTLSConfig(tlsCfg),
			kgo.SASL(scram.Auth{User: cfg.SASL.Username, Pass: cfg.SASL.Password}.AsSha512Mechanism()),
		)
	}

	client, err := newKgoClient(opts...)
	if err != nil {
		return nil, apperr.NewInvalidArgErr("failed to init kafka client", err)
	}

	attempts := cfg.PingAttempts
	if attempts == 0 {
		attempts = defaultPingAttempts
	}

	kp := &KafkaPublisher{
		log:          log,
		client:       client,
		cfg:          cfg,
		writeTimeout: secondsOrDefault(cfg.WriteTimeoutSeconds, defaultWriteTimeout),
		now:          time.Now,
	}
	kp.pingOpts = []pattern.RetryOption{
		pattern.WithMaxAttempts(attempts),
		pattern.WithInitialDelay(defaultPingInitialDelay),
		pattern.WithMaxDelay(defaultPingMaxDelay),
		pattern.WithShouldRetry(kp.shouldRetry),
		pattern.WithOnRetry(func(attempt int, err error, next time.Duration) {
			kp.log.Warn("Kafka not reachable yet", "attempt", attempt, "retry_in", next, "err", err)
			imetrics.App().WarningsTotal.WithLabelValues(imetrics.ComponentKafka, "ping").Inc()
		}),
	}

	return kp, nil
}

// Ping checks that the cluster answers, retrying with backoff. A cluster that
// stays unreachable is returned as BlockStreamErr.
func (kp *KafkaPublisher) Ping(ctx context.Context) error {
	err := pattern.Retry(ctx, func(int) error {
		imetrics.Kafka().PingAttemptsTotal.Inc()
		pingCtx, cancel := context.WithTimeout(ctx, kp.writeTimeout)
		defer cancel()
		return kp.client.Ping(pingCtx)
	}, kp.pingOpts...)
	if err != nil {
		imetrics.Kafka().BrokerReachable.Set(0)
		kp.log.Error("Kafka cluster unreachable", "host", kp.cfg.Host, "port", kp.cfg.Port, "err", err)
		return apperr.NewBlockStreamErr("kafka cluster unreachable", err)
	}
	imetrics.Kafka().BrokerReachable.Set(1)
	kp.log.Info("Connected to Kafka", "host", kp.cfg.Host, "port", kp.cfg.Port, "topic", kp.cfg.Topic, "security", kp.cfg.SecurityProtocol)
	return nil
}

// Publish wraps block in an envelope, produces it and blocks until the broker
// acknowledges it or the write timeout elapses.
func (kp *KafkaPublisher) Publish(ctx context.Context, block entity.Block) (entity.PublishAck, error) {
	if kp.closed.Load() {
		return entity.PublishAck{}, apperr.NewBlockStreamErr("publisher is closed", nil)
	}
	height, ok := block.Height()
	if !ok {
		return entity.PublishAck{}, apperr.NewInvalidArgErr("block has no numeric height", nil)
	}

	env, err := usecase.NewEnvelope(kp.now(), block)
	if err != nil {
		return entity.PublishAck{}, err
	}
	payload, err := usecase.MarshalEnvelopeJSON(env)
	if err != nil {
		kp.log.Error("Failed to marshal envelope", "height", height, "err", err)
		return entity.PublishAck{}, apperr.NewBlockStreamErr("failed to marshal envelope", err)
	}

	rec := kp.buildRecord(height, env.ID, payload)

	writeCtx, cancel := context.WithTimeout(ctx, kp.writeTimeout)
	defer cancel()

	imetrics.Kafka().EnvelopeBytes.Observe(float64(len(payload)))
	start := time.Now()
	acked, err := kp.client.ProduceSync(writeCtx, rec).First()
	if err != nil {
		imetrics.Kafka().EnvelopesTotal.WithLabelValues(imetrics.ResultFailed).Inc()
		imetrics.Kafka().ProduceErrorsTotal.WithLabelValues(classifyProduceError(err)).Inc()
		kp.log.Debug("Kafka publish failed", "height", height, "id", env.ID, "topic", kp.cfg.Topic, "err", err)
		return entity.PublishAck{}, apperr.NewBlockStreamErr("failed to publish block to kafka", err)
	}
	imetrics.Kafka().AckLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	imetrics.Kafka().EnvelopesTotal.WithLabelValues(imetrics.ResultAcked).Inc()

	kp.log.Trace("Published block to Kafka", "topic", acked.Topic, "height", height, "partition", acked.Partition, "offset", acked.Offset)
	return entity.PublishAck{
		Topic:      acked.Topic,
		Partition:  acked.Partition,
		Offset:     acked.Offset,
		EnvelopeID: env.ID,
	}, nil
}

// FlushAndClose waits for buffered records then closes the client. Only the
// first call does work; later calls return its result.
func (kp *KafkaPublisher) FlushAndClose(ctx context.Context) error {
	kp.closeOnce.Do(func() {
		kp.closed.Store(true)
		if err := kp.client.Flush(ctx); err != nil {
			kp.log.Warn("Kafka flush did not complete", "err", err)
			kp.closeErr = apperr.NewBlockStreamErr("failed to flush kafka producer", err)
		}
		kp.client.Close()
		imetrics.Kafka().BrokerReachable.Set(0)
		kp.log.Trace("Kafka producer closed")
	})
	return kp.closeErr
}

func (kp *KafkaPublisher) buildRecord(height int64, envelopeID string, payload []byte) *kgo.Record {
	// Timestamp left to broker (CreateTime / LogAppendTime), not set explicitly.
	key := []byte(strconv.FormatInt(height, 10))
	return &kgo.Record{
		Topic: kp.cfg.Topic,
		Key:   key,
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: HeaderBlockHeight, Value: key},
			{Key: HeaderEnvelopeID, Value: []byte(envelopeID)},
		},
	}
}

func (kp *KafkaPublisher) shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if kerr.IsRetriable(err) {
		return true
	}
	// The topic may be provisioned shortly after startup.
	return errors.Is(err, kerr.UnknownTopicOrPartition)
}

func classifyProduceError(err error) string {
	var netErr net.Error
	var kErr *kerr.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &kErr):
		return "broker"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "other"
	}
}

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
