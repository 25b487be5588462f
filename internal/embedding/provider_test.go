package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashojha7762/resume-screening-system/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"相同向量", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"正交向量", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"反向向量", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"空向量", nil, nil, 0.0},
		{"维度不一致", []float64{1, 2}, []float64{1}, 0.0},
		{"零向量", []float64{0, 0}, []float64{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	v := NormalizeL2([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9, "归一化后的向量模长应为1")

	zero := NormalizeL2([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, zero, "零向量应原样返回")
}

// newTestEmbedder 启动一个模拟的OpenAI兼容端点，按文本长度返回确定性向量
func newTestEmbedder(t *testing.T, requestCount *int) *OpenAIEmbedder {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requestCount++

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var texts []string
		switch input := req.Input.(type) {
		case string:
			texts = []string{input}
		case []interface{}:
			for _, item := range input {
				texts = append(texts, item.(string))
			}
		}

		resp := embeddingResponse{Object: "list", Model: req.Model}
		for i, text := range texts {
			resp.Data = append(resp.Data, embeddingEntry{
				Object:    "embedding",
				Embedding: []float64{float64(len(text)), 1},
				Index:     i,
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)

	embedder, err := NewOpenAIEmbedder(config.EmbeddingConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		Model:      "test-model",
		Dimensions: 2,
		BatchSize:  2,
	})
	require.NoError(t, err)
	return embedder
}

func TestOpenAIEmbedderBatchSplitting(t *testing.T) {
	requestCount := 0
	embedder := newTestEmbedder(t, &requestCount)

	vectors, err := embedder.BatchEmbed(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)

	// 批大小为2，5条文本应拆成3次请求
	assert.Equal(t, 3, requestCount, "超过批大小的输入应拆分请求")
	assert.Equal(t, []float64{3, 1}, vectors[2], "结果顺序应与输入一致")
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	requestCount := 0
	embedder := newTestEmbedder(t, &requestCount)

	vectors, err := embedder.BatchEmbed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, requestCount, "空输入不应发起请求")
}

func TestNewOpenAIEmbedderRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(config.EmbeddingConfig{})
	assert.Error(t, err, "缺少API密钥应报错")
}

// memoryVectorCache 测试用内存向量缓存
type memoryVectorCache struct {
	data map[string][]float64
}

func (m *memoryVectorCache) GetVector(_ context.Context, key string) ([]float64, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryVectorCache) SetVector(_ context.Context, key string, vector []float64) error {
	m.data[key] = vector
	return nil
}

func TestCachedProviderSkipsRemoteOnHit(t *testing.T) {
	requestCount := 0
	embedder := newTestEmbedder(t, &requestCount)
	cache := &memoryVectorCache{data: map[string][]float64{}}
	cached := NewCachedProvider(embedder, cache)

	ctx := context.Background()

	first, err := cached.Embed(ctx, "resume text")
	require.NoError(t, err)
	assert.Equal(t, 1, requestCount)

	second, err := cached.Embed(ctx, "resume text")
	require.NoError(t, err)
	assert.Equal(t, 1, requestCount, "缓存命中时不应再次调用远程服务")
	assert.Equal(t, first, second)
}

func TestCachedProviderBatchPartialHit(t *testing.T) {
	requestCount := 0
	embedder := newTestEmbedder(t, &requestCount)
	cache := &memoryVectorCache{data: map[string][]float64{
		TextKey("cached"): {99, 1},
	}}
	cached := NewCachedProvider(embedder, cache)

	vectors, err := cached.BatchEmbed(context.Background(), []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	assert.Equal(t, []float64{99, 1}, vectors[0], "命中的条目应来自缓存")
	assert.Equal(t, []float64{5, 1}, vectors[1], "未命中的条目应来自远程服务")
	assert.Equal(t, 1, requestCount)

	_, ok, _ := cache.GetVector(context.Background(), TextKey("fresh"))
	assert.True(t, ok, "远程结果应回填缓存")
}
