package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
}

func newTestRanker() *Ranker {
	r := NewRanker()
	r.now = fixedNow
	return r
}

func score(candidateID string, overall float64) *types.MatchScore {
	return &types.MatchScore{
		JobID:        "job-1",
		CandidateID:  candidateID,
		OverallScore: overall,
		MandatoryMet: true,
	}
}

func TestRankAssignsConsecutiveRanks(t *testing.T) {
	r := newTestRanker()
	scores := []*types.MatchScore{
		score("c1", 42), score("c2", 88), score("c3", 88), score("c4", 13), score("c5", 60),
	}

	ranked, err := r.Rank(context.Background(), scores, nil, 0)
	require.NoError(t, err)
	require.Len(t, ranked, 5)

	seen := make(map[int]bool)
	for i, c := range ranked {
		assert.Equal(t, i+1, c.Rank, "名次必须是1..N连续无间断")
		assert.False(t, seen[c.Rank], "名次不能重复")
		seen[c.Rank] = true
	}
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].OverallScore, ranked[i].OverallScore)
	}
}

func TestRankTieBreakByExperienceThenEducation(t *testing.T) {
	r := newTestRanker()
	scores := []*types.MatchScore{score("junior", 75), score("senior", 75), score("phd", 75)}
	profiles := map[string]*types.CandidateProfile{
		"junior": {CandidateID: "junior", TotalExperienceYears: 2, HighestDegree: types.DegreeBachelors},
		"senior": {CandidateID: "senior", TotalExperienceYears: 8, HighestDegree: types.DegreeBachelors},
		"phd":    {CandidateID: "phd", TotalExperienceYears: 2, HighestDegree: types.DegreePhD},
	}

	ranked, err := r.Rank(context.Background(), scores, profiles, 0)
	require.NoError(t, err)

	assert.Equal(t, "senior", ranked[0].CandidateID, "同分时按工作年限打破并列")
	assert.Equal(t, "phd", ranked[1].CandidateID, "年限也相同时按学历打破并列")
	assert.Equal(t, "junior", ranked[2].CandidateID)
}

func TestRankTieBreakByRecency(t *testing.T) {
	r := newTestRanker()
	scores := []*types.MatchScore{score("stale", 75), score("current", 75)}
	profiles := map[string]*types.CandidateProfile{
		"current": {CandidateID: "current", TotalExperienceYears: 5, HighestDegree: types.DegreeBachelors,
			Positions: []types.Position{{Title: "Engineer", Current: true}}},
		"stale": {CandidateID: "stale", TotalExperienceYears: 5, HighestDegree: types.DegreeBachelors,
			Positions: []types.Position{{Title: "Engineer", End: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)}}},
	}

	ranked, err := r.Rank(context.Background(), scores, profiles, 0)
	require.NoError(t, err)

	assert.Equal(t, "current", ranked[0].CandidateID)
	assert.Equal(t, 1.0, ranked[0].RecencyScore)
	assert.InDelta(t, 0.2, ranked[1].RecencyScore, 0.01, "离职4年后的最近任职分")
}

func TestRecencyScoreUnknownDates(t *testing.T) {
	r := newTestRanker()

	assert.Equal(t, 0.5, r.recencyScore(nil))
	assert.Equal(t, 0.5, r.recencyScore(&types.CandidateProfile{}))
	assert.Equal(t, 0.5, r.recencyScore(&types.CandidateProfile{
		Positions: []types.Position{{Title: "Engineer"}},
	}), "职位存在但无日期信息时给中性分")
}

func TestRecencyScoreDecaysToZero(t *testing.T) {
	r := newTestRanker()
	p := &types.CandidateProfile{Positions: []types.Position{
		{Title: "Engineer", End: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}

	assert.Equal(t, 0.0, r.recencyScore(p), "离职超过5年后衰减到0")
}

func TestRankDiversityWeightFlipsOrder(t *testing.T) {
	r := newTestRanker()
	// A 是多数派画像（主流院校层级、相同经验档位、相同技能组合），
	// B 在三个维度上都属于少数派。
	scores := []*types.MatchScore{score("a1", 90), score("a2", 89), score("a3", 88), score("b", 70)}
	majority := func(id string) *types.CandidateProfile {
		return &types.CandidateProfile{
			CandidateID:          id,
			TotalExperienceYears: 8,
			Education:            []types.Education{{Institution: "Stanford University"}},
			Skills:               []types.Skill{{Name: "python", Category: "Programming Languages"}},
		}
	}
	profiles := map[string]*types.CandidateProfile{
		"a1": majority("a1"), "a2": majority("a2"), "a3": majority("a3"),
		"b": {
			CandidateID:          "b",
			TotalExperienceYears: 2,
			Education:            []types.Education{{Institution: "Springfield Community College"}},
			Skills: []types.Skill{
				{Name: "python", Category: "Programming Languages"},
				{Name: "docker", Category: "DevOps & Tools"},
				{Name: "postgresql", Category: "Databases"},
			},
		},
	}

	baseline, err := r.Rank(context.Background(), scores, profiles, 0)
	require.NoError(t, err)
	assert.Equal(t, "a1", baseline[0].CandidateID)
	assert.Equal(t, "b", baseline[3].CandidateID)
	for _, c := range baseline {
		assert.Zero(t, c.DiversityScore, "权重为0时不计算多样性加分")
		assert.Equal(t, c.OverallScore, c.AdjustedScore)
	}

	reranked, err := r.Rank(context.Background(), scores, profiles, 1.0)
	require.NoError(t, err)
	assert.Equal(t, "b", reranked[0].CandidateID, "权重为1时完全按多样性加分排序")
	assert.Equal(t, 1.0, reranked[0].DiversityScore)
	assert.Equal(t, 1.0, reranked[0].AdjustedScore)
	assert.Equal(t, 1, reranked[0].Rank)
}

func TestRankDiversityWeightOutOfRange(t *testing.T) {
	r := newTestRanker()
	scores := []*types.MatchScore{score("c1", 50)}

	_, err := r.Rank(context.Background(), scores, nil, -0.1)
	assert.Error(t, err)
	_, err = r.Rank(context.Background(), scores, nil, 1.5)
	assert.Error(t, err)
}

func TestRankClustersCloseScores(t *testing.T) {
	r := newTestRanker()
	scores := []*types.MatchScore{
		score("c1", 92), score("c2", 90), score("c3", 88),
		score("c4", 60), score("c5", 58),
		score("c6", 20),
	}

	ranked, err := r.Rank(context.Background(), scores, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, ranked[0].ClusterID, ranked[1].ClusterID)
	assert.Equal(t, ranked[1].ClusterID, ranked[2].ClusterID)
	assert.NotEqual(t, ranked[2].ClusterID, ranked[3].ClusterID, "分差超过容差时开启新聚类")
	assert.Equal(t, ranked[3].ClusterID, ranked[4].ClusterID)
	assert.NotEqual(t, ranked[4].ClusterID, ranked[5].ClusterID)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 2}, clusterIDs(ranked))
}

func TestRankDeterministic(t *testing.T) {
	r := newTestRanker()
	scores := []*types.MatchScore{score("c1", 80), score("c2", 80), score("c3", 55)}
	profiles := map[string]*types.CandidateProfile{
		"c1": {CandidateID: "c1", TotalExperienceYears: 4},
		"c2": {CandidateID: "c2", TotalExperienceYears: 4},
	}

	first, err := r.Rank(context.Background(), scores, profiles, 0.3)
	require.NoError(t, err)
	second, err := r.Rank(context.Background(), scores, profiles, 0.3)
	require.NoError(t, err)

	assert.Equal(t, first, second, "相同输入下排序结果必须完全一致")
}

func TestRankEmptyInput(t *testing.T) {
	r := newTestRanker()

	ranked, err := r.Rank(context.Background(), nil, nil, 0.5)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func clusterIDs(ranked []types.RankedCandidate) []int {
	ids := make([]int, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ClusterID
	}
	return ids
}
