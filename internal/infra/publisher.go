package infra

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blocksync-service/internal/adapter/publish"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
)

// InitBlockPublisher wires the Kafka publisher and waits until the cluster
// answers a ping.
func InitBlockPublisher(ctx context.Context, logger applog.AppLogger, cfg Config, v *validator.Validate) (port.Publisher, error) {
	if logger == nil {
		return nil, fmt.Errorf("infra: logger is required to init block publisher")
	}
	if v == nil {
		v = validator.New()
	}

	publisher, err := publish.NewKafkaPublisher(logger, cfg.Kafka, v)
	if err != nil {
		return nil, fmt.Errorf("infra: failed to init block publisher: %w", err)
	}
	if err := publisher.Ping(ctx); err != nil {
		_ = publisher.FlushAndClose(ctx)
		return nil, fmt.Errorf("infra: kafka not reachable: %w", err)
	}
	return publisher, nil
}
