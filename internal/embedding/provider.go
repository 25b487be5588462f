package embedding

import (
	"context"
	"math"
)

// Provider 文本向量化能力的抽象接口。
// 模型推理本身由外部服务提供，核心只依赖该接口。
type Provider interface {
	// Embed 将单条文本转换为向量表示
	Embed(ctx context.Context, text string) ([]float64, error)

	// BatchEmbed 批量将文本转换为向量表示，结果顺序与输入一致
	BatchEmbed(ctx context.Context, texts []string) ([][]float64, error)

	// Dimension 返回向量维度
	Dimension() int
}

// CosineSimilarity 计算两个向量的余弦相似度 [-1,1]。
// 向量为空或维度不一致时返回0。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeL2 返回向量的L2归一化副本，零向量原样返回
func NormalizeL2(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		out := make([]float64, len(v))
		copy(out, v)
		return out
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
