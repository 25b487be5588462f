package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashojha7762/resume-screening-system/internal/storage/models"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

func TestMatchResultRecordRoundTrip(t *testing.T) {
	ranked := &types.RankedCandidate{
		MatchScore: types.MatchScore{
			JobID:        "job-1",
			CandidateID:  "cand-1",
			OverallScore: 82.5,
			ComponentScores: types.ComponentScores{
				Skills:     0.9,
				Experience: 0.8,
				Semantic:   0.7,
			},
			MatchedSkills: []string{"python", "go"},
			MissingSkills: []string{"kubernetes"},
			MandatoryMet:  true,
			Explanation:   "Good match with solid qualifications.",
			Rank:          3,
		},
	}

	record, err := matchResultRecord("job-1", "standard", ranked, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "job-1", record.JobID)
	assert.Equal(t, "cand-1", record.CandidateID)
	assert.Equal(t, 82.5, record.OverallScore)
	assert.Equal(t, "standard", record.Strategy)
	assert.Equal(t, 3, record.Rank)

	score, err := matchScoreFromRecord(record)
	require.NoError(t, err)
	assert.Equal(t, &ranked.MatchScore, score, "记录往返转换必须无损")
}

func TestMatchResultRecordEmptySkillLists(t *testing.T) {
	ranked := &types.RankedCandidate{
		MatchScore: types.MatchScore{
			JobID:         "job-1",
			CandidateID:   "cand-2",
			LowConfidence: true,
		},
	}

	record, err := matchResultRecord("job-1", "fast", ranked, time.Now())
	require.NoError(t, err)
	assert.True(t, record.LowConfidence)
	assert.Equal(t, 0.0, record.OverallScore, "抽取失败的候选人分数恒为0")

	score, err := matchScoreFromRecord(record)
	require.NoError(t, err)
	assert.Empty(t, score.MatchedSkills)
	assert.Empty(t, score.MissingSkills)
}

func TestStringsJSONHelpers(t *testing.T) {
	data, err := models.StringsToJSON([]string{"a", "b"})
	require.NoError(t, err)

	values, err := models.StringsFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, values)

	empty, err := models.StringsToJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty), "nil切片存为空数组而不是null")
}
