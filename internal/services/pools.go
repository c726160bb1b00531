package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultMetricsTTL = 30 * time.Second

// poolMetricsSource is the slice of the MCP server the pool service uses.
type poolMetricsSource interface {
	GetPoolMetrics(ctx context.Context, poolAddress string) (json.RawMessage, error)
}

// PoolService serves pool metrics from the MCP server, with an optional
// Redis read-through cache in front of it. Cache failures are logged and
// never block the request.
type PoolService struct {
	source poolMetricsSource
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewPoolService(source poolMetricsSource, cache *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *PoolService {
	if ttl <= 0 {
		ttl = defaultMetricsTTL
	}
	return &PoolService{source: source, cache: cache, ttl: ttl, logger: logger}
}

// Metrics returns the metrics document for poolAddress.
func (s *PoolService) Metrics(ctx context.Context, poolAddress string) (json.RawMessage, error) {
	key := "pool:metrics:" + poolAddress

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Bytes()
		if err == nil && len(cached) > 0 {
			return json.RawMessage(cached), nil
		}
		if err != nil && err != redis.Nil {
			s.logger.Warnw("pool metrics cache read failed", "pool", poolAddress, "error", err)
		}
	}

	metrics, err := s.source.GetPoolMetrics(ctx, poolAddress)
	if err != nil {
		return nil, fmt.Errorf("fetch pool metrics: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(metrics), s.ttl).Err(); err != nil {
			s.logger.Warnw("pool metrics cache write failed", "pool", poolAddress, "error", err)
		}
	}

	return metrics, nil
}
