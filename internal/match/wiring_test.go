package match

import (
	"github.com/vikashojha7762/resume-screening-system/internal/storage"
)

// 存储层各组件满足编排器的窄接口
var (
	_ ScoreCache     = (*storage.Redis)(nil)
	_ ResultStore    = (*storage.MySQL)(nil)
	_ AuditPublisher = (*storage.RabbitMQ)(nil)
)
