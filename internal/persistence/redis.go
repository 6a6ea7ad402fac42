package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/config"
)

// Redis wraps the go-redis client used for locks and the analysis trigger counter.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client. An unreachable server is logged, not fatal: the
// readiness check reports it until it comes up.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// resolvedCounterKey holds the number of tickets resolved since the last analysis run.
func resolvedCounterKey(orgID string) string {
	return "helpdesk:resolved_since_analysis:" + orgID
}

// IncrResolved bumps the organization's resolved-ticket counter and returns the new value.
func (r *Redis) IncrResolved(ctx context.Context, orgID string) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, errors.New("redis client not configured")
	}
	return r.Client.Incr(ctx, resolvedCounterKey(orgID)).Result()
}

// ResetResolved clears the organization's resolved-ticket counter.
func (r *Redis) ResetResolved(ctx context.Context, orgID string) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Del(ctx, resolvedCounterKey(orgID)).Err()
}
