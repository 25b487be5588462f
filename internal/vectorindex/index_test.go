package vectorindex

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRejectsBadInput(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrNoVectors)

	_, err = Build([][]float64{{1, 0}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch, "维度不一致的向量应报错")
}

func TestFlatIndexSearch(t *testing.T) {
	vectors := [][]float64{
		{1, 0},   // 与查询同向
		{0, 1},   // 正交
		{-1, 0},  // 反向
		{0.9, 0.1},
	}

	index, err := Build(vectors)
	require.NoError(t, err)
	assert.Equal(t, 4, index.Size())

	results, err := index.Search([]float64{1, 0}, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2, "阈值0.5应过滤掉正交和反向向量")

	// 结果按相似度降序
	assert.Equal(t, 0, results[0].Index)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, 3, results[1].Index)
	assert.True(t, results[0].Similarity >= results[1].Similarity)
}

func TestFlatIndexTopK(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0.99, 0.01}, {0.98, 0.02}, {0.97, 0.03}}
	index, err := Build(vectors)
	require.NoError(t, err)

	results, err := index.Search([]float64{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2, "k=2应只返回前两个结果")
	assert.Equal(t, 0, results[0].Index)
}

func TestFlatIndexDimensionMismatch(t *testing.T) {
	index, err := Build([][]float64{{1, 0}})
	require.NoError(t, err)

	_, err = index.Search([]float64{1, 0, 0}, 1, 0)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestClusteredIndexAboveThreshold(t *testing.T) {
	// 超过平铺阈值时应构建聚类索引
	rng := rand.New(rand.NewSource(42))
	const n = 1200
	const dim = 8

	vectors := make([][]float64, n)
	for i := range vectors {
		v := make([]float64, dim)
		for d := range v {
			v[d] = rng.NormFloat64()
		}
		vectors[i] = v
	}
	// 植入一个与查询完全同向的向量
	target := make([]float64, dim)
	target[0] = 1
	vectors[777] = target

	index, err := Build(vectors)
	require.NoError(t, err)
	assert.Equal(t, n, index.Size())

	_, isClustered := index.(*clusteredIndex)
	assert.True(t, isClustered, "向量数超过阈值时应使用聚类索引")

	query := make([]float64, dim)
	query[0] = 1
	results, err := index.Search(query, 5, 0.9)
	require.NoError(t, err)
	require.NotEmpty(t, results, "近似索引应能找到植入的同向向量")
	assert.Equal(t, 777, results[0].Index)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestSearchDeterminism(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0.8, 0.6}, {0.6, 0.8}}
	index, err := Build(vectors)
	require.NoError(t, err)

	first, err := index.Search([]float64{1, 1}, 3, 0)
	require.NoError(t, err)
	second, err := index.Search([]float64{1, 1}, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second, "相同查询应返回完全一致的结果")
}

func TestHandlePublishAndSearch(t *testing.T) {
	handle := NewHandle()

	// 未发布索引时搜索必须显式失败
	_, err := handle.Search([]float64{1, 0}, 1, 0)
	assert.True(t, errors.Is(err, ErrIndexNotBuilt))
	assert.Zero(t, handle.Size())

	index, err := Build([][]float64{{1, 0}, {0, 1}})
	require.NoError(t, err)
	handle.Publish(index)

	results, err := handle.Search([]float64{1, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 2, handle.Size())

	// 重建后整体替换
	rebuilt, err := Build([][]float64{{0, 1}})
	require.NoError(t, err)
	handle.Publish(rebuilt)
	assert.Equal(t, 1, handle.Size())
}

func TestSimilarityIsCosine(t *testing.T) {
	// 未归一化的输入向量在构建时归一化，点积即余弦
	index, err := Build([][]float64{{3, 4}})
	require.NoError(t, err)

	results, err := index.Search([]float64{6, 8}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)

	results, err = index.Search([]float64{4, -3}, 1, -1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.0, results[0].Similarity, 1e-9)
	assert.False(t, math.IsNaN(results[0].Similarity))
}
