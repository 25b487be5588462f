package bias

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

func TestAuditNeutralJobDescription(t *testing.T) {
	a := NewAuditor()

	report := a.Audit("We are hiring a backend developer. Responsibilities include building APIs and maintaining services.")

	assert.False(t, report.GenderBias.Detected)
	assert.False(t, report.AgeBias.Detected)
	assert.False(t, report.InstitutionBias.Detected)
	assert.Equal(t, 0.0, report.OverallBiasScore)
	assert.Equal(t, []string{"Job description appears relatively unbiased."}, report.Recommendations)
}

func TestAuditGenderImbalance(t *testing.T) {
	a := NewAuditor()
	// 5个男性化倾向词，0个女性化倾向词
	report := a.Audit("Seeking an aggressive, dominant leader who is competitive and tough.")

	require.True(t, report.GenderBias.Detected)
	// 失衡比例1.0，命中5词：0.5×1.0 + 0.5×(5/20) = 0.625
	assert.InDelta(t, 0.625, report.GenderBias.Score, 1e-9)
	assert.Contains(t, report.GenderBias.Evidence, "aggressive")
	assert.Contains(t, report.GenderBias.Evidence, "leader")

	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "gender-neutral") {
			found = true
		}
	}
	assert.True(t, found, "性别偏见超过阈值时必须给出整改建议")
}

func TestAuditBalancedGenderWordsScoreLow(t *testing.T) {
	a := NewAuditor()

	report := a.Audit("A confident and supportive team member.")

	require.True(t, report.GenderBias.Detected)
	// 失衡比例0，命中2词：0.5×0 + 0.5×(2/20) = 0.05
	assert.InDelta(t, 0.05, report.GenderBias.Score, 1e-9)
}

func TestAuditAgeBias(t *testing.T) {
	a := NewAuditor()

	report := a.Audit("Looking for a recent graduate, ideally 25 years old, fresh talent welcome.")

	require.True(t, report.AgeBias.Detected)
	assert.InDelta(t, 0.6, report.AgeBias.Score, 1e-9, "3次命中，每次计0.2")
	assert.Len(t, report.AgeBias.Evidence, 3)
}

func TestAuditInstitutionBias(t *testing.T) {
	a := NewAuditor()

	report := a.Audit("Only Ivy League graduates from prestigious, elite schools will be considered.")

	require.True(t, report.InstitutionBias.Detected)
	assert.Equal(t, 1.0, report.InstitutionBias.Score, "3个关键词即达到上限")
}

func TestAuditHyphenatedInstitutionKeywords(t *testing.T) {
	a := NewAuditor()

	// "top-tier" 连字符写法须与 "top tier" 命中同一关键词
	report := a.Audit("aggressive, competitive, decisive leader; recent graduate from a top-tier university")

	require.True(t, report.InstitutionBias.Detected)
	assert.InDelta(t, 1.0/3.0, report.InstitutionBias.Score, 1e-9)
	assert.Contains(t, report.InstitutionBias.Evidence, "top tier")

	// 同一文本的其余两类分数不受折叠影响
	assert.InDelta(t, 0.6, report.GenderBias.Score, 1e-9, "4个男性化倾向词：0.5×1.0 + 0.5×(4/20)")
	assert.InDelta(t, 0.2, report.AgeBias.Score, 1e-9)
	assert.InDelta(t, 0.6, report.OverallBiasScore, 1e-9)
}

func TestAuditOverallIsMaxOfCategories(t *testing.T) {
	a := NewAuditor()

	report := a.Audit("Seeking fresh talent for a prestigious firm. Must be assertive.")

	maxScore := report.GenderBias.Score
	if report.AgeBias.Score > maxScore {
		maxScore = report.AgeBias.Score
	}
	if report.InstitutionBias.Score > maxScore {
		maxScore = report.InstitutionBias.Score
	}
	assert.Equal(t, maxScore, report.OverallBiasScore)
}

func TestAuditDeterministic(t *testing.T) {
	a := NewAuditor()
	text := "Seeking an aggressive leader and a supportive, caring mentor for fresh talent."

	first := a.Audit(text)
	second := a.Audit(text)

	assert.Equal(t, first, second)
}

func TestAnonymizeTextRemovesPII(t *testing.T) {
	got := AnonymizeText("Contact John Smith at john.smith@example.com or (555) 123-4567, see https://johnsmith.dev for details.")

	assert.NotContains(t, got, "john.smith@example.com")
	assert.NotContains(t, got, "123-4567")
	assert.NotContains(t, got, "johnsmith.dev")
	assert.NotContains(t, got, "John")
	assert.NotContains(t, got, "Smith")
	assert.Contains(t, got, "***@***.***")
	assert.Contains(t, got, "***-***-****")
}

func TestAnonymizeTextKeepsLowercaseContent(t *testing.T) {
	got := AnonymizeText("experienced in python and distributed systems")

	assert.Equal(t, "experienced in python and distributed systems", got)
}

func TestAnonymizeProfile(t *testing.T) {
	a := NewAuditor()
	profile := &types.CandidateProfile{
		CandidateID: "cand-1",
		RawText:     "Jane Doe\njane@example.com\n555-123-4567",
		Contact: types.ContactInfo{
			Email:    "jane@example.com",
			Phone:    "555-123-4567",
			LinkedIn: "linkedin.com/in/janedoe",
			GitHub:   "github.com/janedoe",
			Website:  "janedoe.dev",
		},
		Skills: []types.Skill{{Name: "python", Confidence: 0.9}},
		Positions: []types.Position{{
			Title:       "Software Engineer",
			Company:     "Acme Corp",
			Description: "Worked with Jane Doe on billing, contact jane@example.com",
			End:         time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		TotalExperienceYears: 4.5,
		Education: []types.Education{{
			Degree:      "B.S.",
			Level:       types.DegreeBachelors,
			Field:       "Computer Science",
			Institution: "Stanford University",
			GPA:         3.8,
		}},
		HighestDegree: types.DegreeBachelors,
	}

	anon := a.Anonymize(profile)
	require.NotNil(t, anon)

	assert.Equal(t, "***@***.***", anon.Contact.Email)
	assert.Equal(t, "***-***-****", anon.Contact.Phone)
	assert.Empty(t, anon.Contact.LinkedIn)
	assert.Empty(t, anon.Contact.GitHub)
	assert.Empty(t, anon.Contact.Website)

	assert.NotContains(t, anon.RawText, "jane@example.com")
	assert.NotContains(t, anon.RawText, "Jane")
	assert.NotContains(t, anon.Positions[0].Description, "jane@example.com")

	assert.Equal(t, "*** University", anon.Education[0].Institution)
	assert.Equal(t, "Computer Science", anon.Education[0].Field, "脱敏保留专业")
	assert.Equal(t, types.DegreeBachelors, anon.Education[0].Level, "脱敏保留学位")
	assert.Equal(t, 4.5, anon.TotalExperienceYears)
	assert.Equal(t, profile.Skills, anon.Skills)

	// 原画像不被修改
	assert.Equal(t, "jane@example.com", profile.Contact.Email)
	assert.Equal(t, "Stanford University", profile.Education[0].Institution)
}

func TestAnonymizeNilProfile(t *testing.T) {
	a := NewAuditor()

	assert.Nil(t, a.Anonymize(nil))
}
