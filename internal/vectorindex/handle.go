package vectorindex

import "sync/atomic"

// Handle 已发布索引的原子句柄。
// 候选集变化时构建新索引后整体替换，并发读安全，
// 进行中的搜索继续使用替换前的索引快照。
type Handle struct {
	current atomic.Pointer[indexHolder]
}

type indexHolder struct {
	index Index
}

// NewHandle 创建一个尚未发布任何索引的句柄
func NewHandle() *Handle {
	return &Handle{}
}

// Publish 原子地替换当前索引
func (h *Handle) Publish(index Index) {
	h.current.Store(&indexHolder{index: index})
}

// Search 在当前已发布的索引上搜索，未发布时返回ErrIndexNotBuilt
func (h *Handle) Search(query []float64, k int, threshold float64) ([]SearchResult, error) {
	holder := h.current.Load()
	if holder == nil || holder.index == nil {
		return nil, ErrIndexNotBuilt
	}
	return holder.index.Search(query, k, threshold)
}

// Size 返回当前已发布索引的向量数，未发布时为0
func (h *Handle) Size() int {
	holder := h.current.Load()
	if holder == nil || holder.index == nil {
		return 0
	}
	return holder.index.Size()
}
