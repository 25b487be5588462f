package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"github.com/vikashojha7762/resume-screening-system/internal/logger"
)

// VectorCache 向量缓存的窄接口，由Redis适配器实现。
// 缓存未命中或读写失败都只是性能损失，不影响正确性。
type VectorCache interface {
	// GetVector 按键读取缓存向量，未命中返回 (nil, false, nil)
	GetVector(ctx context.Context, key string) ([]float64, bool, error)
	// SetVector 写入缓存向量
	SetVector(ctx context.Context, key string, vector []float64) error
}

// CachedProvider 在Provider外层增加按文本MD5键的向量缓存
type CachedProvider struct {
	inner Provider
	cache VectorCache
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider 包装一个Provider，命中缓存时跳过远程调用
func NewCachedProvider(inner Provider, cache VectorCache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

// Dimension 返回底层Provider的向量维度
func (c *CachedProvider) Dimension() int {
	return c.inner.Dimension()
}

// Embed 先查缓存，未命中时调用底层Provider并回填
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := TextKey(text)

	if vector, ok, err := c.cache.GetVector(ctx, key); err == nil && ok {
		return vector, nil
	} else if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("读取向量缓存失败，回退到远程调用")
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetVector(ctx, key, vector); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("写入向量缓存失败")
	}

	return vector, nil
}

// BatchEmbed 逐条查缓存，仅把未命中的文本交给底层Provider批量处理
func (c *CachedProvider) BatchEmbed(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, len(texts))
	missingIdx := make([]int, 0, len(texts))
	missingTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		key := TextKey(text)
		if vector, ok, err := c.cache.GetVector(ctx, key); err == nil && ok {
			results[i] = vector
			continue
		}
		missingIdx = append(missingIdx, i)
		missingTexts = append(missingTexts, text)
	}

	if len(missingTexts) == 0 {
		return results, nil
	}

	vectors, err := c.inner.BatchEmbed(ctx, missingTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missingIdx {
		results[idx] = vectors[j]
		if err := c.cache.SetVector(ctx, TextKey(texts[idx]), vectors[j]); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("写入向量缓存失败")
		}
	}

	return results, nil
}

// TextKey 计算文本的缓存键（MD5十六进制）
func TextKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
