package util

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	redislib "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer runs the Redis backing the redis seen-height store.
type RedisContainer struct {
	container *redismodule.RedisContainer
	client    *redislib.Client
	host      string
	port      string
}

// StartRedis launches Redis from image, "redis:7" when empty.
func StartRedis(ctx context.Context, image string) (*RedisContainer, error) {
	if strings.TrimSpace(image) == "" {
		image = "redis:7"
	}
	ctr, err := redismodule.Run(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("start redis dep: %w", err)
	}
	rc := &RedisContainer{container: ctr}

	if rc.host, err = ctr.Host(ctx); err != nil {
		_ = rc.Terminate(ctx)
		return nil, fmt.Errorf("redis host: %w", err)
	}
	p, err := ctr.MappedPort(ctx, nat.Port("6379/tcp"))
	if err != nil {
		_ = rc.Terminate(ctx)
		return nil, fmt.Errorf("redis port: %w", err)
	}
	rc.port = p.Port()
	rc.client = redislib.NewClient(&redislib.Options{Addr: net.JoinHostPort(rc.host, rc.port)})
	return rc, nil
}

// Reset drops every key, including the seen-height set.
func (r *RedisContainer) Reset(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

// SeenHeights returns the sorted members of the seen-height set at key.
func (r *RedisContainer) SeenHeights(ctx context.Context, key string) ([]int64, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(members))
	for _, m := range members {
		h, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected member %q in %s: %w", m, key, err)
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Terminate closes the helper client and removes the container.
func (r *RedisContainer) Terminate(ctx context.Context) error {
	if r == nil || r.container == nil {
		return nil
	}
	if r.client != nil {
		_ = r.client.Close()
	}
	return r.container.Terminate(ctx)
}

// InitRedisContainer starts Redis from redis.image and points viper's
// redis.{host,port} at it. The caller owns the returned container.
func InitRedisContainer(ctx context.Context) (*RedisContainer, error) {
	rc, err := StartRedis(ctx, viper.GetString("redis.image"))
	if err != nil {
		return nil, err
	}
	viper.Set("redis.host", rc.host)
	viper.Set("redis.port", rc.port)
	return rc, nil
}
