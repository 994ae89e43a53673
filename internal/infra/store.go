package infra

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pancudaniel7/blocksync-service/internal/adapter/store"
	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
)

// InitSeenStore opens the seen-height store selected by cfg.StoreDriver.
func InitSeenStore(ctx context.Context, log applog.AppLogger, cfg Config, v *validator.Validate) (port.SeenStore, error) {
	switch cfg.StoreDriver {
	case store.DriverRedis:
		s, err := store.OpenRedis(ctx, log, cfg.Redis, v)
		if err != nil {
			return nil, fmt.Errorf("infra: failed to init redis store: %w", err)
		}
		return s, nil
	default:
		s, err := store.OpenSQLite(ctx, log, cfg.SQLite, v)
		if err != nil {
			return nil, fmt.Errorf("infra: failed to init sqlite store: %w", err)
		}
		return s, nil
	}
}
