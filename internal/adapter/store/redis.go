package store

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/pancudaniel7/blocksync-service/internal/core/port"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/apperr"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/applog"
	"github.com/pancudaniel7/blocksync-service/internal/pkg/pattern"
)

// RedisStore keeps published heights as members of one Redis SET.
//
// Concurrency: RedisStore is safe for concurrent use; it relies on the
// concurrency-safe go-redis client.
type RedisStore struct {
	rdb       *redis.Client
	log       applog.AppLogger
	key       string
	closeOnce sync.Once
	closeErr  error
}

var _ port.SeenStore = (*RedisStore)(nil)

// OpenRedis builds the client and pings the server with a short backoff. An
// unreachable server is returned as BlockStoreErr.
func OpenRedis(ctx context.Context, log applog.AppLogger, cfg RedisConfig, v *validator.Validate) (*RedisStore, error) {
	if err := v.Struct(cfg); err != nil {
		return nil, apperr.NewInvalidArgErr("invalid redis store config", err)
	}

	opts := &redis.Options{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeoutSeconds) * time.Second,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(opts)

	err := pattern.Retry(ctx, func(attempt int) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis ping failed", "attempt", attempt, "err", err)
			return err
		}
		return nil
	},
		pattern.WithMaxAttempts(3),
		pattern.WithInitialDelay(200*time.Millisecond),
		pattern.WithMaxDelay(time.Second),
	)
	if err != nil {
		_ = rdb.Close()
		return nil, apperr.NewBlockStoreErr("redis unreachable at "+opts.Addr, err)
	}

	log.Info("Seen-height store ready", "driver", DriverRedis, "addr", opts.Addr, "key", cfg.Key)
	return &RedisStore{rdb: rdb, log: log, key: cfg.Key}, nil
}

func (s *RedisStore) Has(ctx context.Context, height int64) (bool, error) {
	if height < 0 {
		return false, apperr.NewInvalidArgErr("height must be non-negative", nil)
	}
	ok, err := s.rdb.SIsMember(ctx, s.key, strconv.FormatInt(height, 10)).Result()
	if err != nil {
		return false, apperr.NewBlockStoreErr("failed to check seen height", err)
	}
	return ok, nil
}

// Mark records height. Marking a height twice is a no-op.
func (s *RedisStore) Mark(ctx context.Context, height int64) error {
	if height < 0 {
		return apperr.NewInvalidArgErr("height must be non-negative", nil)
	}
	added, err := s.rdb.SAdd(ctx, s.key, strconv.FormatInt(height, 10)).Result()
	if err != nil {
		return apperr.NewBlockStoreErr("failed to mark seen height", err)
	}
	if added == 0 {
		s.log.Trace("Height already marked", "height", height)
	}
	return nil
}

func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() {
		if err := s.rdb.Close(); err != nil {
			s.closeErr = apperr.NewBlockStoreErr("failed to close redis store", err)
		}
	})
	return s.closeErr
}
