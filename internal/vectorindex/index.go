package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/vikashojha7762/resume-screening-system/internal/embedding"
)

var (
	// ErrIndexNotBuilt 在未构建的索引上执行搜索属于编程错误，必须显式失败
	ErrIndexNotBuilt = errors.New("向量索引尚未构建")
	// ErrNoVectors 构建索引时没有提供任何向量
	ErrNoVectors = errors.New("没有可构建索引的向量")
	// ErrDimensionMismatch 查询向量维度与索引不一致
	ErrDimensionMismatch = errors.New("查询向量维度与索引不一致")
)

// flatThreshold 向量数低于该值时使用精确的平铺索引，
// 超过时切换到聚类近似索引以限制单次查询成本
const flatThreshold = 1000

// SearchResult 一条检索结果
type SearchResult struct {
	// Index 向量在构建输入中的下标
	Index int
	// Similarity 与查询向量的余弦相似度
	Similarity float64
}

// Index 向量相似度索引。实现是不可变的：候选集变化时重建一个
// 新索引再原子替换发布，绝不原地修改查询中的索引。
type Index interface {
	// Search 返回相似度不低于threshold的前k个结果，按相似度降序
	Search(query []float64, k int, threshold float64) ([]SearchResult, error)

	// Size 返回索引中的向量数
	Size() int
}

// Build 根据向量规模选择合适的索引实现。
// 所有向量在构建时做L2归一化，点积即余弦相似度。
func Build(vectors [][]float64) (Index, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, ErrNoVectors
	}
	normalized := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: 向量 %d 维度 %d, 期望 %d", ErrDimensionMismatch, i, len(v), dim)
		}
		normalized[i] = embedding.NormalizeL2(v)
	}

	if len(normalized) <= flatThreshold {
		return &flatIndex{vectors: normalized, dim: dim}, nil
	}

	return buildClusteredIndex(normalized, dim)
}

// flatIndex 精确的平铺索引，逐一计算点积
type flatIndex struct {
	vectors [][]float64
	dim     int
}

func (f *flatIndex) Size() int {
	return len(f.vectors)
}

func (f *flatIndex) Search(query []float64, k int, threshold float64) ([]SearchResult, error) {
	if len(query) != f.dim {
		return nil, ErrDimensionMismatch
	}

	q := embedding.NormalizeL2(query)
	results := make([]SearchResult, 0, len(f.vectors))
	for i, v := range f.vectors {
		sim := dot(q, v)
		if sim >= threshold {
			results = append(results, SearchResult{Index: i, Similarity: sim})
		}
	}

	return topK(results, k), nil
}

// clusteredIndex 基于k-means聚类的近似索引。
// 查询只扫描与查询向量最近的nprobe个簇。
type clusteredIndex struct {
	centroids   [][]float64
	assignments [][]int // 每个簇内的向量下标
	vectors     [][]float64
	dim         int
	nprobe      int
}

// buildClusteredIndex 以 nlist=min(100, n/10) 个簇做有限轮次的k-means
func buildClusteredIndex(vectors [][]float64, dim int) (*clusteredIndex, error) {
	n := len(vectors)
	nlist := n / 10
	if nlist > 100 {
		nlist = 100
	}
	if nlist < 1 {
		nlist = 1
	}

	// 初始中心取等距样本，保证构建确定性
	centroids := make([][]float64, nlist)
	for i := range centroids {
		src := vectors[i*n/nlist]
		c := make([]float64, dim)
		copy(c, src)
		centroids[i] = c
	}

	const maxIterations = 10
	assignment := make([]int, n)
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}

		// 重算簇中心
		counts := make([]int, nlist)
		sums := make([][]float64, nlist)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignment[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += x
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
			centroids[c] = embedding.NormalizeL2(centroids[c])
		}

		if !changed {
			break
		}
	}

	assignments := make([][]int, nlist)
	for i, c := range assignment {
		assignments[c] = append(assignments[c], i)
	}

	nprobe := nlist / 10
	if nprobe < 1 {
		nprobe = 1
	}

	return &clusteredIndex{
		centroids:   centroids,
		assignments: assignments,
		vectors:     vectors,
		dim:         dim,
		nprobe:      nprobe,
	}, nil
}

func (c *clusteredIndex) Size() int {
	return len(c.vectors)
}

func (c *clusteredIndex) Search(query []float64, k int, threshold float64) ([]SearchResult, error) {
	if len(query) != c.dim {
		return nil, ErrDimensionMismatch
	}

	q := embedding.NormalizeL2(query)

	// 按与查询向量的相似度选出nprobe个簇
	type centroidSim struct {
		idx int
		sim float64
	}
	sims := make([]centroidSim, len(c.centroids))
	for i, centroid := range c.centroids {
		sims[i] = centroidSim{idx: i, sim: dot(q, centroid)}
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].sim > sims[j].sim })

	probe := c.nprobe
	if probe > len(sims) {
		probe = len(sims)
	}

	var results []SearchResult
	for _, cs := range sims[:probe] {
		for _, vecIdx := range c.assignments[cs.idx] {
			sim := dot(q, c.vectors[vecIdx])
			if sim >= threshold {
				results = append(results, SearchResult{Index: vecIdx, Similarity: sim})
			}
		}
	}

	return topK(results, k), nil
}

// nearestCentroid 返回与向量点积最大的簇中心下标
func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestSim := math.Inf(-1)
	for i, c := range centroids {
		if sim := dot(v, c); sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	return best
}

// topK 按相似度降序返回前k个结果，相似度相同时按下标升序保证确定性
func topK(results []SearchResult, k int) []SearchResult {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Index < results[j].Index
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
