package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashojha7762/resume-screening-system/internal/skills"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

const sampleResume = `John Smith
Email: john.smith@example.com
Phone: (555) 123-4567
linkedin.com/in/john-smith
github.com/johnsmith

Summary
Senior backend engineer focused on matching systems.

Skills
Python, Go, PostgreSQL, Docker, Kubernetes

Experience
Senior Software Engineer at Acme Corp
Jan 2019 - Present
Built candidate matching services.
Software Engineer at Widget LLC
Mar 2016 - Dec 2018
Developed internal APIs.

Education
B.S. in Computer Science
Stanford University
GPA: 3.8`

// stubStrategy 测试用提取策略
type stubStrategy struct {
	name string
	text string
	err  error
}

func (s *stubStrategy) Name() string                { return s.name }
func (s *stubStrategy) Supports(format string) bool { return format == "pdf" }
func (s *stubStrategy) Extract(_ context.Context, _ []byte, _ string) (string, map[string]interface{}, error) {
	return s.text, nil, s.err
}

func TestChainFallsBackToNextStrategy(t *testing.T) {
	chain := NewChain(
		&stubStrategy{name: "first", err: errors.New("解析失败")},
		&stubStrategy{name: "second", text: ""},
		&stubStrategy{name: "third", text: "usable text"},
	)

	text, err := chain.Extract(context.Background(), []byte("data"), "pdf", "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "usable text", text, "应返回第一个产出非空文本的策略结果")
}

func TestChainAllStrategiesFail(t *testing.T) {
	chain := NewChain(
		&stubStrategy{name: "first", err: errors.New("解析失败")},
		&stubStrategy{name: "second", text: "   \n"},
	)

	_, err := chain.Extract(context.Background(), []byte("data"), "pdf", "resume.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTextExtracted, "所有策略失败应返回 ErrNoTextExtracted")
}

func TestChainUnsupportedFormat(t *testing.T) {
	chain := NewChain(&stubStrategy{name: "pdf-only", text: "text"})

	_, err := chain.Extract(context.Background(), []byte("data"), "xlsx", "resume.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPlainTextStrategy(t *testing.T) {
	s := NewPlainTextStrategy()
	assert.True(t, s.Supports("txt"))
	assert.False(t, s.Supports("pdf"))

	text, _, err := s.Extract(context.Background(), []byte("hello\xffworld"), "resume.txt")
	require.NoError(t, err)
	assert.Equal(t, "helloworld", text, "非法UTF-8字节应被丢弃")
}

func TestCleanText(t *testing.T) {
	dirty := "Line  one\t\thas   spaces\n\n\n\n\nLine two ©® special"
	cleaned := CleanText(dirty)

	assert.Equal(t, "Line one has spaces\n\nLine two special", cleaned)
}

func TestDetectSections(t *testing.T) {
	sections := DetectSections(sampleResume)

	assert.Contains(t, sections, types.SectionSummary)
	assert.Contains(t, sections, types.SectionSkills)
	assert.Contains(t, sections, types.SectionExperience)
	assert.Contains(t, sections, types.SectionEducation)
	assert.NotContains(t, sections, types.SectionCertifications)
}

func TestExtractContactInfo(t *testing.T) {
	contact := ExtractContactInfo(sampleResume)

	assert.Equal(t, "john.smith@example.com", contact.Email)
	assert.Equal(t, "(555) 123-4567", contact.Phone)
	assert.Equal(t, "linkedin.com/in/john-smith", contact.LinkedIn)
	assert.Equal(t, "github.com/johnsmith", contact.GitHub)
}

func TestExtractContactInfoMissingFields(t *testing.T) {
	contact := ExtractContactInfo("没有任何联系方式的文本")

	assert.Empty(t, contact.Email)
	assert.Empty(t, contact.Phone)
	assert.Empty(t, contact.LinkedIn, "识别不到的字段应保持空字符串而不是报错")
}

func TestExtractContactInfoWebsite(t *testing.T) {
	contact := ExtractContactInfo("Portfolio: https://www.johnsmith.dev and more")

	assert.Equal(t, "johnsmith.dev", contact.Website)
}

func TestExtractSkillsVocabulary(t *testing.T) {
	e := NewSkillExtractor(skills.NewMatcher())
	extracted := e.ExtractSkills(sampleResume, nil)

	names := make(map[string]float64)
	for _, s := range extracted {
		names[s.Name] = s.Confidence
	}

	for _, want := range []string{"python", "go", "postgresql", "docker", "kubernetes"} {
		assert.Contains(t, names, want, "词表匹配应命中 %s", want)
	}
	// 技能章节出现 + 已知技能，置信度应高于纯正文提及
	assert.GreaterOrEqual(t, names["python"], 0.6)

	for _, s := range extracted {
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

func TestExtractSkillsCategories(t *testing.T) {
	e := NewSkillExtractor(skills.NewMatcher())
	extracted := e.ExtractSkills("Skills\nPython, PostgreSQL, Docker", nil)

	categories := make(map[string]string)
	for _, s := range extracted {
		categories[s.Name] = s.Category
	}

	assert.Equal(t, "Programming Languages", categories["python"])
	assert.Equal(t, "Databases", categories["postgresql"])
	assert.Equal(t, "Cloud & DevOps", categories["docker"])
}

func TestExtractSkillsJobFallback(t *testing.T) {
	e := NewSkillExtractor(skills.NewMatcher())

	// 词表和技能章节都无命中，只能靠岗位技能直配
	text := "负责招聘渠道建设，主导 talent acquisition 流程优化。"
	extracted := e.ExtractSkills(text, []string{"talent acquisition", "payroll management"})

	require.Len(t, extracted, 1)
	assert.Equal(t, "talent acquisition", extracted[0].Name)
}

func TestExtractSkillsIdempotent(t *testing.T) {
	e := NewSkillExtractor(skills.NewMatcher())

	first := e.ExtractSkills(sampleResume, nil)
	second := e.ExtractSkills(sampleResume, nil)

	assert.Equal(t, first, second, "相同输入必须产出相同的技能集和置信度")
}

func TestExtractExperienceSection(t *testing.T) {
	e := NewExperienceExtractor()
	e.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	positions, total := e.ExtractExperience(sampleResume)

	require.Len(t, positions, 2)
	assert.Equal(t, "Senior Software Engineer", positions[0].Title)
	assert.Equal(t, "Acme Corp", positions[0].Company)
	assert.True(t, positions[0].Current)
	assert.False(t, positions[0].IsInternship)
	assert.InDelta(t, 6.4, positions[0].DurationYears, 0.15)

	assert.Equal(t, "Software Engineer", positions[1].Title)
	assert.False(t, positions[1].Current)
	assert.InDelta(t, 2.8, positions[1].DurationYears, 0.15)

	assert.InDelta(t, 9.2, total, 0.3)
}

func TestExtractExperienceDateRangeScan(t *testing.T) {
	e := NewExperienceExtractor()
	e.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	// 无经历章节标题，只能靠日期区间扫描；两段区间相邻应被合并
	text := "Acme 2018 - 2020 然后 Widget 2020 - 2021"
	positions, total := e.ExtractExperience(text)

	require.Len(t, positions, 1, "间隔不超过90天的区间应合并为一段")
	assert.InDelta(t, 3.0, total, 0.1)
}

func TestExtractExperienceYearsPattern(t *testing.T) {
	e := NewExperienceExtractor()

	positions, total := e.ExtractExperience("HR professional with 7 years of experience in talent acquisition.")

	assert.Empty(t, positions)
	assert.InDelta(t, 7.0, total, 0.001)
}

func TestExtractExperienceNothingFound(t *testing.T) {
	e := NewExperienceExtractor()

	positions, total := e.ExtractExperience("完全没有经历信息的文本")

	assert.Empty(t, positions)
	assert.Zero(t, total)
}

func TestInternshipsExcludedFromTotal(t *testing.T) {
	e := NewExperienceExtractor()
	e.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	text := `Experience
Marketing Intern at BigCo
Jun 2022 - Aug 2023
Assisted with campaigns.`

	positions, total := e.ExtractExperience(text)

	require.Len(t, positions, 1)
	assert.True(t, positions[0].IsInternship)
	assert.Zero(t, total, "只有实习经历的画像总年限必须恰好为0")
}

func TestIsInternship(t *testing.T) {
	tests := []struct {
		name     string
		position types.Position
		want     bool
	}{
		{"实习标题", types.Position{Title: "HR Intern"}, true},
		{"学生项目", types.Position{Title: "Student Researcher"}, true},
		{"培训生", types.Position{Title: "Management Trainee"}, true},
		{"职业角色覆盖实习词", types.Position{Title: "Engineering Manager", Description: "mentored interns"}, false},
		{"普通职位", types.Position{Title: "HR Specialist"}, false},
		{"描述提到实习但有职业词", types.Position{Title: "Software Engineer", Description: "started as intern"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInternship(tt.position))
		})
	}
}

func TestExtractEducation(t *testing.T) {
	educations := ExtractEducation(sampleResume)

	require.Len(t, educations, 1)
	assert.Equal(t, types.DegreeBachelors, educations[0].Level)
	assert.Equal(t, "Computer Science", educations[0].Field)
	assert.Equal(t, "Stanford University", educations[0].Institution)
	assert.InDelta(t, 3.8, educations[0].GPA, 0.001)
}

func TestExtractEducationGPARescale(t *testing.T) {
	text := `Education
B.Tech in Information Technology
CGPA: 8.5
2018`

	educations := ExtractEducation(text)

	require.Len(t, educations, 1)
	assert.InDelta(t, 3.4, educations[0].GPA, 0.001, "10分制GPA应换算到4.0制")
	assert.Equal(t, 2018, educations[0].GradYear)
}

func TestExtractEducationHighestDegree(t *testing.T) {
	text := `Education
Ph.D. in Economics
Harvard University
M.S. in Statistics
MIT
B.A. in Mathematics
Yale University`

	educations := ExtractEducation(text)

	require.Len(t, educations, 3)
	assert.Equal(t, types.DegreePhD, types.HighestDegreeOf(educations))
}

func TestExtractEducationMissing(t *testing.T) {
	educations := ExtractEducation("没有教育信息")
	assert.Empty(t, educations)
}

func TestExtractFromTextComposesAllStages(t *testing.T) {
	p := NewProfileExtractor(nil, skills.NewMatcher())

	profile := p.ExtractFromText(context.Background(), "cand-001", sampleResume, nil)

	assert.Equal(t, "cand-001", profile.CandidateID)
	assert.Equal(t, "john.smith@example.com", profile.Contact.Email)
	assert.NotEmpty(t, profile.Skills)
	assert.NotEmpty(t, profile.Positions)
	assert.Greater(t, profile.TotalExperienceYears, 0.0)
	assert.Equal(t, types.DegreeBachelors, profile.HighestDegree)
	assert.False(t, profile.LowConfidence)
}

func TestExtractFromTextDeterministic(t *testing.T) {
	p := NewProfileExtractor(nil, skills.NewMatcher())

	first := p.ExtractFromText(context.Background(), "cand-001", sampleResume, nil)
	second := p.ExtractFromText(context.Background(), "cand-001", sampleResume, nil)

	assert.Equal(t, first.Skills, second.Skills)
	assert.Equal(t, first.TotalExperienceYears, second.TotalExperienceYears)
	assert.Equal(t, first.Education, second.Education)
}
