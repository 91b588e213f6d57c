package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	rediscommon "smart-industry/common/redis"
	"smart-industry/internal/config"
	"smart-industry/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 缓存中没有该 worker 的评估结果
var ErrCacheMiss = errors.New("verdict not cached")

// CacheManager Redis 缓存管理器
// 保存每个 worker 最新的评估结果，并把所有评估结果追加到 verdict stream
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) latestKey(workerID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.LatestKeyPrefix,
		workerID,
		c.config.Cache.LatestSuffix,
	)
}

// UpdateLatestVerdict 写入 worker 最新评估结果（带 TTL）
func (c *CacheManager) UpdateLatestVerdict(ctx context.Context, v *domain.RiskVerdict) error {
	key := c.latestKey(v.WorkerID)

	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	if err := c.redisClient.Set(ctx, key, jsonData, c.config.Cache.LatestTTL).Err(); err != nil {
		return fmt.Errorf("failed to set verdict cache: %w", err)
	}

	c.logger.Debug("Updated verdict cache",
		zap.String("worker_id", v.WorkerID),
		zap.String("key", key),
	)
	return nil
}

// GetLatestVerdict 读取 worker 最新评估结果
func (c *CacheManager) GetLatestVerdict(ctx context.Context, workerID string) (*domain.RiskVerdict, error) {
	val, err := c.redisClient.Get(ctx, c.latestKey(workerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get verdict cache: %w", err)
	}

	var v domain.RiskVerdict
	if err := json.Unmarshal([]byte(val), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
	}
	return &v, nil
}

// AppendVerdict 追加到 verdict stream（近似裁剪到 StreamMaxLen）
func (c *CacheManager) AppendVerdict(ctx context.Context, v *domain.RiskVerdict) (string, error) {
	id, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Cache.VerdictStream, c.config.Cache.StreamMaxLen, v)
	if err != nil {
		return "", fmt.Errorf("failed to append verdict to stream: %w", err)
	}
	return id, nil
}

// RecentVerdicts 最近的评估结果，按时间倒序
// unsafeOnly 为 true 时只返回 Unsafe 结果（告警列表）
func (c *CacheManager) RecentVerdicts(ctx context.Context, count int64, unsafeOnly bool) ([]domain.RiskVerdict, error) {
	msgs, err := rediscommon.ReadLatestFromStream(ctx, c.redisClient, c.config.Cache.VerdictStream, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read verdict stream: %w", err)
	}

	verdicts := make([]domain.RiskVerdict, 0, len(msgs))
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var v domain.RiskVerdict
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			c.logger.Warn("Skipping malformed verdict stream entry",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if unsafeOnly && !v.Unsafe() {
			continue
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, nil
}
