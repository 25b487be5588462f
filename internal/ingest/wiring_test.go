package ingest

import (
	"github.com/vikashojha7762/resume-screening-system/internal/storage"
)

// 存储层各组件满足摄入服务的窄接口
var (
	_ ObjectStore    = (*storage.MinIO)(nil)
	_ CandidateStore = (*storage.MySQL)(nil)
)
