package constants

import "time"

// 匹配策略名称
const (
	StrategyStandard      = "standard"
	StrategyFast          = "fast"
	StrategyComprehensive = "comprehensive"
)

// 审计事件类型
const (
	EventMatchInitiated = "match_initiated"
	EventMatchCompleted = "match_completed"
	EventMatchResult    = "match_result"
	EventBiasDetection  = "bias_detection"
	EventRankingChange  = "ranking_change"
)

// 缓存相关常量
const (
	// MatchCacheDuration 匹配结果缓存时长
	MatchCacheDuration = time.Hour
	// EmbeddingCacheDuration 向量缓存时长
	EmbeddingCacheDuration = time.Hour
)

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// MatchModulePrefix 匹配模块
	MatchModulePrefix = "match"
	// EmbeddingModulePrefix 向量模块
	EmbeddingModulePrefix = "embedding"

	// EntityScore 匹配分数实体
	EntityScore = "score"
	// EntityVector 文本向量实体
	EntityVector = "vector"

	// KeyMatchScore 匹配分数缓存 (STRING, JSON值)
	// 格式: app:match:score:{jobID}:{candidateID}
	KeyMatchScore = AppPrefix + ":" + MatchModulePrefix + ":" + EntityScore + ":%s:%s"

	// KeyTextEmbedding 文本向量缓存 (STRING, JSON值)
	// 格式: app:embedding:vector:{md5(text)}
	KeyTextEmbedding = AppPrefix + ":" + EmbeddingModulePrefix + ":" + EntityVector + ":%s"
)
