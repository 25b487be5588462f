package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/vikashojha7762/resume-screening-system/internal/config"
	"github.com/vikashojha7762/resume-screening-system/internal/constants"
	"github.com/vikashojha7762/resume-screening-system/internal/embedding"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// Redis同时充当Embedding层的向量缓存
var _ embedding.VectorCache = (*Redis)(nil)

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// matchCacheTTL 返回匹配分数缓存的过期时间
func (r *Redis) matchCacheTTL() time.Duration {
	if r.config.MatchCacheTTLSeconds > 0 {
		return time.Duration(r.config.MatchCacheTTLSeconds) * time.Second
	}
	return constants.MatchCacheDuration
}

// embeddingCacheTTL 返回向量缓存的过期时间
func (r *Redis) embeddingCacheTTL() time.Duration {
	if r.config.EmbeddingCacheTTLSeconds > 0 {
		return time.Duration(r.config.EmbeddingCacheTTLSeconds) * time.Second
	}
	return constants.EmbeddingCacheDuration
}

// SetMatchScore 缓存单个岗位-候选人的匹配分数
func (r *Redis) SetMatchScore(ctx context.Context, score *types.MatchScore) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if score == nil {
		return fmt.Errorf("匹配分数不能为空")
	}

	key := fmt.Sprintf(constants.KeyMatchScore, score.JobID, score.CandidateID)
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("序列化匹配分数失败: %w", err)
	}
	return r.Client.Set(ctx, key, data, r.matchCacheTTL()).Err()
}

// GetMatchScore 读取缓存的匹配分数，未命中返回 ErrNotFound
func (r *Redis) GetMatchScore(ctx context.Context, jobID, candidateID string) (*types.MatchScore, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}

	key := fmt.Sprintf(constants.KeyMatchScore, jobID, candidateID)
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err // 包括 redis.Nil
	}

	var score types.MatchScore
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, fmt.Errorf("反序列化匹配分数失败: %w", err)
	}
	return &score, nil
}

// GetVector 实现 embedding.VectorCache，按文本键读取缓存向量
func (r *Redis) GetVector(ctx context.Context, textKey string) ([]float64, bool, error) {
	if r.Client == nil {
		return nil, false, fmt.Errorf("redis client is not initialized")
	}

	key := fmt.Sprintf(constants.KeyTextEmbedding, textKey)
	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var vector []float64
	if err := json.Unmarshal(data, &vector); err != nil {
		return nil, false, fmt.Errorf("反序列化缓存向量失败: %w", err)
	}
	return vector, true, nil
}

// SetVector 实现 embedding.VectorCache，写入缓存向量
func (r *Redis) SetVector(ctx context.Context, textKey string, vector []float64) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}

	key := fmt.Sprintf(constants.KeyTextEmbedding, textKey)
	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("序列化向量失败: %w", err)
	}
	return r.Client.Set(ctx, key, data, r.embeddingCacheTTL()).Err()
}
