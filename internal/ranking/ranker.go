package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

const (
	// 同一聚类内分数的最大离差（按0-1归一化分数计）
	clusterTolerance = 0.15

	// 无任何在职/离职日期信息时的默认最近任职分
	recencyUnknown = 0.5

	// 离职后最近任职分线性衰减到0的年数
	recencyDecayYears = 5.0
)

// 多样性加分项，三项封顶1.0
const (
	institutionBonus = 0.3
	experienceBonus  = 0.3
	skillMixBonus    = 0.4
)

// 一流院校关键词，用于多样性统计的院校分层
var tier1Institutions = []string{"mit", "stanford", "harvard", "caltech", "princeton"}

// Ranker 对已评分的候选人做排序、并列打破、多样性重排和分数聚类
type Ranker struct {
	now    func() time.Time
	tracer trace.Tracer
}

// NewRanker 创建排序引擎
func NewRanker() *Ranker {
	return &Ranker{
		now:    time.Now,
		tracer: otel.Tracer("internal/ranking"),
	}
}

// Rank 对候选人排序并赋予 1..N 的名次。
// profiles 以候选人ID为键，提供并列打破所需的经验/学历/任职信息；
// 缺失的画像按零值处理。diversityWeight 在 (0,1] 时启用多样性重排：
// 排序依据改为 score×(1-w) + diversity×w。
func (r *Ranker) Rank(ctx context.Context, scores []*types.MatchScore, profiles map[string]*types.CandidateProfile, diversityWeight float64) ([]types.RankedCandidate, error) {
	_, span := r.tracer.Start(ctx, "ranking.Rank", trace.WithAttributes(
		attribute.Int("candidates.count", len(scores)),
		attribute.Float64("diversity.weight", diversityWeight),
	))
	defer span.End()

	if diversityWeight < 0 || diversityWeight > 1 {
		return nil, fmt.Errorf("diversity_weight 必须在 [0,1] 区间内, 实际为 %v", diversityWeight)
	}

	ranked := make([]types.RankedCandidate, len(scores))
	for i, s := range scores {
		ranked[i] = types.RankedCandidate{MatchScore: *s}
		ranked[i].RecencyScore = r.recencyScore(profiles[s.CandidateID])
		ranked[i].AdjustedScore = s.OverallScore
	}

	if diversityWeight > 0 {
		diversity := r.diversityScores(ranked, profiles)
		for i := range ranked {
			ranked[i].DiversityScore = diversity[i]
			ranked[i].AdjustedScore = ranked[i].OverallScore*(1-diversityWeight) +
				ranked[i].DiversityScore*diversityWeight
		}
	}

	r.sortCandidates(ranked, profiles)

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	r.assignClusters(ranked)

	span.SetAttributes(attribute.Int("clusters.count", clusterCount(ranked)))
	return ranked, nil
}

// sortCandidates 多级降序排序：排序依据分 -> 工作年限 -> 学历 -> 最近任职
func (r *Ranker) sortCandidates(ranked []types.RankedCandidate, profiles map[string]*types.CandidateProfile) {
	expYears := func(c *types.RankedCandidate) float64 {
		if p := profiles[c.CandidateID]; p != nil {
			return p.TotalExperienceYears
		}
		return 0
	}
	eduLevel := func(c *types.RankedCandidate) types.DegreeLevel {
		if p := profiles[c.CandidateID]; p != nil {
			return p.HighestDegree
		}
		return types.DegreeUnknown
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if a.AdjustedScore != b.AdjustedScore {
			return a.AdjustedScore > b.AdjustedScore
		}
		if ea, eb := expYears(a), expYears(b); ea != eb {
			return ea > eb
		}
		if da, db := eduLevel(a), eduLevel(b); da != db {
			return da > db
		}
		return a.RecencyScore > b.RecencyScore
	})
}

// recencyScore 最近任职分：在职1.0，离职后5年内线性衰减到0，
// 无日期信息时给0.5。
func (r *Ranker) recencyScore(profile *types.CandidateProfile) float64 {
	if profile == nil || len(profile.Positions) == 0 {
		return recencyUnknown
	}

	var mostRecent time.Time
	for _, p := range profile.Positions {
		if p.Current {
			return 1.0
		}
		if p.End.After(mostRecent) {
			mostRecent = p.End
		}
	}
	if mostRecent.IsZero() {
		return recencyUnknown
	}

	yearsAgo := r.now().Sub(mostRecent).Hours() / 24 / 365.25
	return math.Max(0, 1.0-yearsAgo/recencyDecayYears)
}

// diversityScores 计算每个候选人的多样性加分：
// 院校层级、经验档位、技能分类组合三个维度中处于少数派的候选人获得加分。
func (r *Ranker) diversityScores(ranked []types.RankedCandidate, profiles map[string]*types.CandidateProfile) []float64 {
	n := len(ranked)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}

	tiers := make([]string, n)
	brackets := make([]string, n)
	skillMix := make([]float64, n)
	tierCounts := make(map[string]int)
	bracketCounts := make(map[string]int)

	for i, c := range ranked {
		p := profiles[c.CandidateID]
		tiers[i] = institutionTier(p)
		brackets[i] = experienceBracket(p)
		skillMix[i] = skillCategoryMix(p)
		tierCounts[tiers[i]]++
		bracketCounts[brackets[i]]++
	}

	for i := range ranked {
		score := 0.0
		if float64(tierCounts[tiers[i]]) < float64(n)/3 {
			score += institutionBonus
		}
		if float64(bracketCounts[brackets[i]]) < float64(n)/2 {
			score += experienceBonus
		}

		similar := 0
		for j := range ranked {
			if math.Abs(skillMix[j]-skillMix[i]) < 0.1 {
				similar++
			}
		}
		if float64(similar) < float64(n)/2 {
			score += skillMixBonus
		}

		scores[i] = math.Min(score, 1.0)
	}
	return scores
}

// assignClusters 一次遍历的分数聚类：候选人已按分数降序排列，
// 聚类均值单调递减，因此只需和最新的聚类比较，整体O(n)。
func (r *Ranker) assignClusters(ranked []types.RankedCandidate) {
	clusterID := -1
	clusterSum := 0.0
	clusterSize := 0

	for i := range ranked {
		score := ranked[i].OverallScore / 100
		if clusterID >= 0 && math.Abs(score-clusterSum/float64(clusterSize)) < clusterTolerance {
			ranked[i].ClusterID = clusterID
			clusterSum += score
			clusterSize++
			continue
		}
		clusterID++
		ranked[i].ClusterID = clusterID
		clusterSum = score
		clusterSize = 1
	}
}

func clusterCount(ranked []types.RankedCandidate) int {
	if len(ranked) == 0 {
		return 0
	}
	return ranked[len(ranked)-1].ClusterID + 1
}

func institutionTier(p *types.CandidateProfile) string {
	if p == nil || len(p.Education) == 0 {
		return "tier3"
	}
	institution := strings.ToLower(p.Education[0].Institution)
	for _, kw := range tier1Institutions {
		if strings.Contains(institution, kw) {
			return "tier1"
		}
	}
	if strings.Contains(institution, "university") || strings.Contains(institution, "college") {
		return "tier2"
	}
	return "tier3"
}

func experienceBracket(p *types.CandidateProfile) string {
	years := 0.0
	if p != nil {
		years = p.TotalExperienceYears
	}
	switch {
	case years >= 7:
		return "senior"
	case years >= 3:
		return "mid"
	default:
		return "junior"
	}
}

// skillCategoryMix 技能分类覆盖度，按最多6个分类归一化
func skillCategoryMix(p *types.CandidateProfile) float64 {
	if p == nil {
		return 0
	}
	categories := make(map[string]bool)
	for _, s := range p.Skills {
		if s.Category != "" {
			categories[s.Category] = true
		}
	}
	return float64(len(categories)) / 6.0
}
