package match

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikashojha7762/resume-screening-system/internal/bias"
	"github.com/vikashojha7762/resume-screening-system/internal/constants"
	"github.com/vikashojha7762/resume-screening-system/internal/embedding"
	"github.com/vikashojha7762/resume-screening-system/internal/logger"
	"github.com/vikashojha7762/resume-screening-system/internal/ranking"
	"github.com/vikashojha7762/resume-screening-system/internal/scoring"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
	"github.com/vikashojha7762/resume-screening-system/internal/vectorindex"
)

// ScoreCache 每对(岗位,候选人)匹配分数的缓存。纯优化：
// 读写失败只记录警告，不影响匹配结果的正确性。
type ScoreCache interface {
	GetMatchScore(ctx context.Context, jobID, candidateID string) (*types.MatchScore, error)
	SetMatchScore(ctx context.Context, score *types.MatchScore) error
}

// ResultStore 匹配结果的持久化存储
type ResultStore interface {
	UpsertMatchResults(ctx context.Context, jobID string, strategy string, candidates []types.RankedCandidate) error
}

// AuditPublisher 审计事件发布
type AuditPublisher interface {
	PublishAuditEvent(ctx context.Context, event *types.AuditEvent) error
}

// Options 单次匹配运行的参数
type Options struct {
	// Strategy 匹配策略: standard, fast, comprehensive。未知策略回退到standard
	Strategy string
	// Weights 自定义评分权重，nil时使用默认权重
	Weights *scoring.Weights
	// DiversityWeight 多样性重排权重 [0,1]，0表示关闭
	DiversityWeight float64
	// EnableBiasAudit 是否对岗位描述做偏见审计
	EnableBiasAudit bool
}

// Orchestrator 匹配流水线编排器：向量化、评分、排序、偏见审计、
// 结果持久化和审计事件发布。
type Orchestrator struct {
	scorer   *scoring.Scorer
	ranker   *ranking.Ranker
	auditor  *bias.Auditor
	embedder embedding.Provider

	cache ScoreCache
	store ResultStore
	audit AuditPublisher

	concurrency   int
	batchTimeout  time.Duration
	fastTopK      int
	fastThreshold float64
	fastKeep      int

	// fast策略跨批次复用的候选人向量索引。索引位置与indexed切片
	// 成对解读，重建与检索都在indexMu内完成以保持两者一致。
	indexMu       sync.Mutex
	indexHandle   *vectorindex.Handle
	indexed       []*types.CandidateProfile
	indexKey      string
	indexRebuilds int

	tracer trace.Tracer
}

// Option 编排器可选配置
type Option func(*Orchestrator)

// WithScoreCache 启用每对匹配分数缓存
func WithScoreCache(cache ScoreCache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithResultStore 启用匹配结果持久化
func WithResultStore(store ResultStore) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithAuditPublisher 启用审计事件发布
func WithAuditPublisher(audit AuditPublisher) Option {
	return func(o *Orchestrator) { o.audit = audit }
}

// WithConcurrency 设置评分工作协程数上限
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithBatchTimeout 设置整批匹配的超时，超时返回已完成部分
func WithBatchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.batchTimeout = d
		}
	}
}

// WithFastParams 设置fast策略的ANN预筛参数
func WithFastParams(topK int, threshold float64, keep int) Option {
	return func(o *Orchestrator) {
		if topK > 0 {
			o.fastTopK = topK
		}
		o.fastThreshold = threshold
		if keep > 0 {
			o.fastKeep = keep
		}
	}
}

// NewOrchestrator 创建匹配编排器
func NewOrchestrator(scorer *scoring.Scorer, ranker *ranking.Ranker, auditor *bias.Auditor, embedder embedding.Provider, options ...Option) *Orchestrator {
	o := &Orchestrator{
		scorer:        scorer,
		ranker:        ranker,
		auditor:       auditor,
		embedder:      embedder,
		concurrency:   8,
		batchTimeout:  60 * time.Second,
		fastTopK:      100,
		fastThreshold: 0.5,
		fastKeep:      50,
		indexHandle:   vectorindex.NewHandle(),
		tracer:        otel.Tracer("internal/match"),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Match 对一个岗位和一组候选人画像执行完整匹配流水线。
// 上下文超时或取消时返回已完成部分，Partial置位。
// 抽取失败(LowConfidence)的候选人以零分条目保留在结果中，绝不丢弃。
func (o *Orchestrator) Match(ctx context.Context, job *types.JobRequirements, profiles []*types.CandidateProfile, opts Options) (*types.RankedResult, error) {
	start := time.Now()

	if job == nil || job.JobID == "" {
		return nil, fmt.Errorf("岗位要求或ID不能为空")
	}

	strategy := opts.Strategy
	switch strategy {
	case constants.StrategyStandard, constants.StrategyFast, constants.StrategyComprehensive:
	case "":
		strategy = constants.StrategyStandard
	default:
		logger.Ctx(ctx).Warn().Str("strategy", strategy).Msg("未知匹配策略，回退到standard")
		strategy = constants.StrategyStandard
	}

	ctx, span := o.tracer.Start(ctx, "match.Match", trace.WithAttributes(
		attribute.String("job.id", job.JobID),
		attribute.String("match.strategy", strategy),
		attribute.Int("candidates.count", len(profiles)),
	))
	defer span.End()

	// 上层未设置deadline时使用编排器自己的整批超时
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && o.batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.batchTimeout)
		defer cancel()
	}

	o.publishEvent(ctx, matchInitiatedEvent(job.JobID, strategy, len(profiles)))

	// 岗位描述偏见审计，每次运行都做
	var biasReport *types.BiasReport
	if opts.EnableBiasAudit && o.auditor != nil {
		biasReport = o.auditor.Audit(job.Title + "\n" + job.Description)
		span.SetAttributes(attribute.Float64("bias.overall_score", biasReport.OverallBiasScore))
		o.publishEvent(ctx, biasDetectionEvent(job.JobID, biasReport))
	}

	o.ensureEmbeddings(ctx, job, profiles)

	// 策略决定参与详细评分的候选人集合
	selected := profiles
	if strategy == constants.StrategyFast {
		selected = o.prefilterCandidates(ctx, job, profiles)
	}

	scores, partial := o.scoreCandidates(ctx, job, selected, opts.Weights)
	span.SetAttributes(
		attribute.Int("scored.count", len(scores)),
		attribute.Bool("partial", partial),
	)

	// 排序阶段不再派发新工作，用独立的后台上下文完成收尾
	finishCtx := context.WithoutCancel(ctx)

	profileByID := make(map[string]*types.CandidateProfile, len(profiles))
	for _, p := range profiles {
		profileByID[p.CandidateID] = p
	}

	ranked, err := o.ranker.Rank(finishCtx, scores, profileByID, opts.DiversityWeight)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if opts.DiversityWeight > 0 {
		o.publishRankingChanges(finishCtx, job.JobID, scores, ranked)
	}

	if strategy == constants.StrategyComprehensive && o.auditor != nil {
		for i := range ranked {
			ranked[i].AnonymizedProfile = o.auditor.Anonymize(profileByID[ranked[i].CandidateID])
		}
	}

	if o.store != nil {
		if err := o.store.UpsertMatchResults(finishCtx, job.JobID, strategy, ranked); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("job_id", job.JobID).Msg("持久化匹配结果失败")
		}
	}

	elapsed := time.Since(start)
	o.publishEvent(finishCtx, matchCompletedEvent(job.JobID, strategy, len(ranked), partial, elapsed))

	span.SetStatus(codes.Ok, "")
	return &types.RankedResult{
		JobID:       job.JobID,
		Strategy:    strategy,
		Candidates:  ranked,
		BiasReport:  biasReport,
		Partial:     partial,
		ScoredCount: len(scores),
		Elapsed:     elapsed,
	}, nil
}

// ensureEmbeddings 为缺少向量的岗位和候选人补齐向量表示。
// 向量化失败只降级语义分，不中断匹配。
func (o *Orchestrator) ensureEmbeddings(ctx context.Context, job *types.JobRequirements, profiles []*types.CandidateProfile) {
	if o.embedder == nil {
		return
	}

	jobText := strings.TrimSpace(job.Title + " " + job.Description)
	if len(job.Embedding) == 0 && jobText != "" {
		vector, err := o.embedder.Embed(ctx, jobText)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("job_id", job.JobID).Msg("岗位向量化失败，语义分将降级")
		} else {
			job.Embedding = vector
		}
	}

	var missing []*types.CandidateProfile
	var texts []string
	for _, p := range profiles {
		if len(p.Embedding) == 0 && strings.TrimSpace(p.RawText) != "" {
			missing = append(missing, p)
			texts = append(texts, p.RawText)
		}
	}
	if len(missing) == 0 {
		return
	}

	vectors, err := o.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int("count", len(missing)).Msg("候选人向量化失败，语义分将降级")
		return
	}
	for i, p := range missing {
		p.Embedding = vectors[i]
	}
}

// prefilterCandidates fast策略的ANN预筛：在跨批次复用的向量索引上
// 取与岗位向量相似度达标的前若干名。无向量的候选人无法预筛，
// 其中抽取失败者仍保留，正常候选人回落到结果之外。
func (o *Orchestrator) prefilterCandidates(ctx context.Context, job *types.JobRequirements, profiles []*types.CandidateProfile) []*types.CandidateProfile {
	if len(job.Embedding) == 0 {
		logger.Ctx(ctx).Warn().Str("job_id", job.JobID).Msg("岗位缺少向量，fast策略回退到全量评分")
		return profiles
	}

	var vectors [][]float64
	var indexed []*types.CandidateProfile
	var lowConfidence []*types.CandidateProfile
	for _, p := range profiles {
		if p.LowConfidence {
			lowConfidence = append(lowConfidence, p)
			continue
		}
		if len(p.Embedding) == 0 {
			continue
		}
		vectors = append(vectors, p.Embedding)
		indexed = append(indexed, p)
	}

	if len(vectors) == 0 {
		return append(lowConfidence, profilesWithEmbeddingless(profiles, lowConfidence)...)
	}

	topK := o.fastTopK
	if topK > len(indexed) {
		topK = len(indexed)
	}
	results, snapshot, err := o.searchCandidateIndex(ctx, indexed, vectors, job.Embedding, topK)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("候选人向量索引不可用，fast策略回退到全量评分")
		return profiles
	}

	keep := o.fastKeep
	if keep > len(results) {
		keep = len(results)
	}
	selected := make([]*types.CandidateProfile, 0, keep+len(lowConfidence))
	for _, r := range results[:keep] {
		selected = append(selected, snapshot[r.Index])
	}
	// 抽取失败的候选人始终保留
	return append(selected, lowConfidence...)
}

// searchCandidateIndex 在复用索引上检索。候选集未变化时直接复用
// 已发布的索引，变化时重建新索引后整体替换。检索在锁内完成，
// 保证返回的结果下标按同一批indexed切片解读。
func (o *Orchestrator) searchCandidateIndex(ctx context.Context, indexed []*types.CandidateProfile, vectors [][]float64, query []float64, topK int) ([]vectorindex.SearchResult, []*types.CandidateProfile, error) {
	key := candidateSetKey(indexed)

	o.indexMu.Lock()
	defer o.indexMu.Unlock()

	if o.indexKey != key {
		index, err := vectorindex.Build(vectors)
		if err != nil {
			return nil, nil, fmt.Errorf("构建候选人向量索引失败: %w", err)
		}
		o.indexHandle.Publish(index)
		o.indexed = indexed
		o.indexKey = key
		o.indexRebuilds++
		logger.Ctx(ctx).Debug().Int("size", index.Size()).Msg("候选人向量索引已重建")
	}

	results, err := o.indexHandle.Search(query, topK, o.fastThreshold)
	if err != nil {
		return nil, nil, fmt.Errorf("向量检索失败: %w", err)
	}
	return results, o.indexed, nil
}

// candidateSetKey 候选集指纹，顺序敏感
func candidateSetKey(indexed []*types.CandidateProfile) string {
	var b strings.Builder
	for _, p := range indexed {
		b.WriteString(p.CandidateID)
		b.WriteByte(0)
	}
	return b.String()
}

// profilesWithEmbeddingless 返回既非LowConfidence也没有向量的候选人
func profilesWithEmbeddingless(profiles, lowConfidence []*types.CandidateProfile) []*types.CandidateProfile {
	skip := make(map[string]bool, len(lowConfidence))
	for _, p := range lowConfidence {
		skip[p.CandidateID] = true
	}
	var rest []*types.CandidateProfile
	for _, p := range profiles {
		if !skip[p.CandidateID] {
			rest = append(rest, p)
		}
	}
	return rest
}

// scoreCandidates 用有界工作池对候选人逐个评分。
// 上下文取消后停止派发，返回已完成的部分并置位partial。
func (o *Orchestrator) scoreCandidates(ctx context.Context, job *types.JobRequirements, profiles []*types.CandidateProfile, weights *scoring.Weights) ([]*types.MatchScore, bool) {
	type indexedScore struct {
		idx   int
		score *types.MatchScore
	}

	jobs := make(chan int)
	results := make(chan indexedScore, len(profiles))

	workers := o.concurrency
	if workers > len(profiles) {
		workers = len(profiles)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				score := o.scoreOne(ctx, job, profiles[idx], weights)
				if score != nil {
					results <- indexedScore{idx: idx, score: score}
				}
			}
		}()
	}

	partial := false
dispatch:
	for i := range profiles {
		if ctx.Err() != nil {
			partial = true
			break
		}
		select {
		case <-ctx.Done():
			partial = true
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	// 按输入顺序收集，保证结果确定性
	byIndex := make([]*types.MatchScore, len(profiles))
	for r := range results {
		byIndex[r.idx] = r.score
	}
	scores := make([]*types.MatchScore, 0, len(profiles))
	for _, s := range byIndex {
		if s != nil {
			scores = append(scores, s)
		}
	}
	return scores, partial
}

// scoreOne 对单个候选人评分：LowConfidence直接给零分条目，
// 其余先查缓存，未命中时计算并回填。
func (o *Orchestrator) scoreOne(ctx context.Context, job *types.JobRequirements, profile *types.CandidateProfile, weights *scoring.Weights) *types.MatchScore {
	if profile.LowConfidence {
		return lowConfidenceScore(job.JobID, profile.CandidateID)
	}

	if o.cache != nil {
		cached, err := o.cache.GetMatchScore(ctx, job.JobID, profile.CandidateID)
		if err == nil && cached != nil {
			return cached
		}
	}

	score, err := o.scorer.Score(ctx, profile, job, weights)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("job_id", job.JobID).
			Str("candidate_id", profile.CandidateID).
			Msg("候选人评分失败")
		return nil
	}

	if o.cache != nil {
		if err := o.cache.SetMatchScore(ctx, score); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("写入匹配分数缓存失败")
		}
	}

	o.publishEvent(ctx, matchResultEvent(score))
	return score
}

// lowConfidenceScore 抽取失败候选人的零分占位条目
func lowConfidenceScore(jobID, candidateID string) *types.MatchScore {
	return &types.MatchScore{
		JobID:         jobID,
		CandidateID:   candidateID,
		OverallScore:  0,
		MandatoryMet:  false,
		LowConfidence: true,
		Explanation:   "Text extraction failed; candidate requires manual review.",
	}
}

// publishRankingChanges 对比纯分数排序和多样性重排后的名次，
// 为每个名次发生变化的候选人发布审计事件。
func (o *Orchestrator) publishRankingChanges(ctx context.Context, jobID string, scores []*types.MatchScore, ranked []types.RankedCandidate) {
	baseline := make([]*types.MatchScore, len(scores))
	copy(baseline, scores)
	sort.SliceStable(baseline, func(i, j int) bool {
		return baseline[i].OverallScore > baseline[j].OverallScore
	})
	baselineRank := make(map[string]int, len(baseline))
	for i, s := range baseline {
		baselineRank[s.CandidateID] = i + 1
	}

	for _, c := range ranked {
		if before, ok := baselineRank[c.CandidateID]; ok && before != c.Rank {
			o.publishEvent(ctx, rankingChangeEvent(jobID, c.CandidateID, before, c.Rank))
		}
	}
}

// publishEvent 发布审计事件，失败只记录警告
func (o *Orchestrator) publishEvent(ctx context.Context, event *types.AuditEvent) {
	if o.audit == nil || event == nil {
		return
	}
	if err := o.audit.PublishAuditEvent(ctx, event); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_type", event.EventType).Msg("发布审计事件失败")
	}
}
