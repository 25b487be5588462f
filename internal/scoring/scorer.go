package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikashojha7762/resume-screening-system/internal/embedding"
	"github.com/vikashojha7762/resume-screening-system/internal/skills"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// ErrMalformedRequirements 岗位要求字段非法（经验年限为负数或非有限值等），
// 直接快速失败而不是悄悄纠正
var ErrMalformedRequirements = errors.New("岗位要求字段非法")

// 候选人和岗位都没有任何经验信息时的中性分
const neutralExperienceScore = 0.5

// 超出期望年限的过度资历惩罚，每年5%，下限0.7
const (
	overqualifyPenaltyPerYear = 0.05
	overqualifyFloor          = 0.7
)

// Weights 三个评分维度的权重，使用前按总和归一化
type Weights struct {
	Skills     float64 `json:"skills" yaml:"skills"`
	Experience float64 `json:"experience" yaml:"experience"`
	Semantic   float64 `json:"semantic" yaml:"semantic"`
}

// DefaultWeights 默认权重：技能50%、经验30%、语义20%
func DefaultWeights() Weights {
	return Weights{Skills: 0.5, Experience: 0.3, Semantic: 0.2}
}

// Normalized 返回总和为1.0的归一化权重。
// 任一权重为负、非有限值或总和为0时返回 ErrMalformedRequirements。
func (w Weights) Normalized() (Weights, error) {
	for _, v := range []float64{w.Skills, w.Experience, w.Semantic} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Weights{}, fmt.Errorf("%w: 权重必须是非负有限值", ErrMalformedRequirements)
		}
	}
	sum := w.Skills + w.Experience + w.Semantic
	if sum == 0 {
		return Weights{}, fmt.Errorf("%w: 权重总和不能为0", ErrMalformedRequirements)
	}
	return Weights{
		Skills:     w.Skills / sum,
		Experience: w.Experience / sum,
		Semantic:   w.Semantic / sum,
	}, nil
}

// Scorer 把技能、经验、语义三个信号合成为总分 [0,100]。
// 评分是纯函数：相同输入恒产出相同结果。
type Scorer struct {
	matcher        *skills.Matcher
	defaultWeights Weights
	semanticFloor  float64
	tracer         trace.Tracer
}

// Option Scorer 的配置选项
type Option func(*Scorer)

// WithSemanticFloor 配置语义分下限（双方都有可用文本时生效）
func WithSemanticFloor(floor float64) Option {
	return func(s *Scorer) {
		s.semanticFloor = floor
	}
}

// WithDefaultWeights 配置默认权重
func WithDefaultWeights(w Weights) Option {
	return func(s *Scorer) {
		s.defaultWeights = w
	}
}

// NewScorer 创建评分引擎
func NewScorer(matcher *skills.Matcher, opts ...Option) *Scorer {
	s := &Scorer{
		matcher:        matcher,
		defaultWeights: DefaultWeights(),
		semanticFloor:  0.4,
		tracer:         otel.Tracer("internal/scoring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score 计算单个(岗位,候选人)对的匹配分。
// weights 为 nil 时使用默认权重。硬性要求不满足时返回总分0、
// MandatoryMet=false 的结果，这是正常业务结论而不是错误。
func (s *Scorer) Score(ctx context.Context, profile *types.CandidateProfile, req *types.JobRequirements, weights *Weights) (*types.MatchScore, error) {
	_, span := s.tracer.Start(ctx, "scoring.Score", trace.WithAttributes(
		attribute.String("job.id", req.JobID),
		attribute.String("candidate.id", profile.CandidateID),
	))
	defer span.End()

	if err := validateRequirements(req); err != nil {
		return nil, err
	}

	w := s.defaultWeights
	if weights != nil {
		w = *weights
	}
	normalized, err := w.Normalized()
	if err != nil {
		return nil, err
	}

	score := &types.MatchScore{
		JobID:         req.JobID,
		CandidateID:   profile.CandidateID,
		MatchedSkills: []string{},
		MissingSkills: []string{},
		MandatoryMet:  true,
	}

	if !s.mandatoryMet(profile, req) {
		score.MandatoryMet = false
		score.Explanation = "Candidate does not meet mandatory requirements."
		span.SetAttributes(attribute.Bool("score.mandatory_met", false))
		return score, nil
	}

	skillScore, matched, missing := s.skillScore(profile, req)
	expScore := s.experienceScore(profile, req)
	semScore := s.semanticScore(profile, req)

	score.MatchedSkills = matched
	score.MissingSkills = missing
	score.ComponentScores = types.ComponentScores{
		Skills:     round2(skillScore),
		Experience: round2(expScore),
		Semantic:   round2(semScore),
	}

	overall := (skillScore*normalized.Skills +
		expScore*normalized.Experience +
		semScore*normalized.Semantic) * 100
	overall = math.Max(0, math.Min(100, overall))
	score.OverallScore = round2(overall)

	score.Explanation = s.explain(score, profile, req)

	span.SetAttributes(attribute.Float64("score.overall", score.OverallScore))
	return score, nil
}

func validateRequirements(req *types.JobRequirements) error {
	if req == nil {
		return fmt.Errorf("%w: 岗位要求为空", ErrMalformedRequirements)
	}
	for name, v := range map[string]float64{
		"required_experience_years":  req.RequiredExperienceYears,
		"preferred_experience_years": req.PreferredExperienceYears,
		"mandatory_experience_years": req.Mandatory.ExperienceYears,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s 必须是非负有限值", ErrMalformedRequirements, name)
		}
	}
	return nil
}

// mandatoryMet 检查硬性门槛：技能、最低年限、最低学历
func (s *Scorer) mandatoryMet(profile *types.CandidateProfile, req *types.JobRequirements) bool {
	candidateSkills := skillNames(profile.Skills)
	for _, required := range req.Mandatory.Skills {
		if !s.matcher.MatchAgainst(required, candidateSkills) {
			return false
		}
	}
	if req.Mandatory.ExperienceYears > 0 && profile.TotalExperienceYears < req.Mandatory.ExperienceYears {
		return false
	}
	if req.Mandatory.Degree > types.DegreeUnknown && profile.HighestDegree < req.Mandatory.Degree {
		return false
	}
	return true
}

// skillScore 技能分 = 0.7×必备命中率 + 0.3×加分项命中率。
// 岗位完全没有技能要求时给满分。
func (s *Scorer) skillScore(profile *types.CandidateProfile, req *types.JobRequirements) (float64, []string, []string) {
	candidateSkills := skillNames(profile.Skills)
	matched := []string{}
	missing := []string{}

	if len(req.RequiredSkills) == 0 && len(req.PreferredSkills) == 0 {
		return 1.0, matched, missing
	}

	matchedRequired := 0
	for _, skill := range req.RequiredSkills {
		if s.matcher.MatchAgainst(skill, candidateSkills) {
			matchedRequired++
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}

	matchedPreferred := 0
	for _, skill := range req.PreferredSkills {
		if s.matcher.MatchAgainst(skill, candidateSkills) {
			matchedPreferred++
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}

	requiredRatio := 1.0
	if len(req.RequiredSkills) > 0 {
		requiredRatio = float64(matchedRequired) / float64(len(req.RequiredSkills))
	}
	preferredRatio := 1.0
	if len(req.PreferredSkills) > 0 {
		preferredRatio = float64(matchedPreferred) / float64(len(req.PreferredSkills))
	}

	return requiredRatio*0.7 + preferredRatio*0.3, matched, missing
}

// experienceScore 经验分。零职业年限恒为0（岗位无要求也一样），
// 除非岗位和候选人双方都为零，此时给中性分0.5。
// 达到要求年限为满分，超出期望年限按每年5%递减，下限0.7。
func (s *Scorer) experienceScore(profile *types.CandidateProfile, req *types.JobRequirements) float64 {
	years := profile.TotalExperienceYears
	required := req.RequiredExperienceYears
	preferred := req.PreferredExperienceYears
	if preferred < required {
		preferred = required
	}

	if years <= 0 {
		if required == 0 && preferred == 0 {
			return neutralExperienceScore
		}
		return 0
	}
	if required == 0 && preferred == 0 {
		return 1.0
	}

	switch {
	case years > preferred:
		excess := years - preferred
		return math.Max(overqualifyFloor, 1.0-excess*overqualifyPenaltyPerYear)
	case years >= required:
		return 1.0
	default:
		return years / required * 0.7
	}
}

// semanticScore 语义分 = 余弦相似度从 [-1,1] 映射到 [0,1]。
// 双方都有可用文本时应用下限，真正的0只出现在文本缺失时。
func (s *Scorer) semanticScore(profile *types.CandidateProfile, req *types.JobRequirements) float64 {
	candidateText := strings.TrimSpace(profile.RawText)
	jobText := strings.TrimSpace(req.Description + req.Title)
	if candidateText == "" || jobText == "" {
		return 0
	}

	if len(profile.Embedding) == 0 || len(req.Embedding) == 0 {
		// 文本存在但缺向量，按下限给分而不是0
		return s.semanticFloor
	}

	sim := (embedding.CosineSimilarity(profile.Embedding, req.Embedding) + 1) / 2
	sim = math.Max(0, math.Min(1, sim))
	if sim < s.semanticFloor {
		sim = s.semanticFloor
	}
	return sim
}

// explain 按固定模板拼装解释文本：总评 + 最强/最弱维度 + 各维度要点
func (s *Scorer) explain(score *types.MatchScore, profile *types.CandidateProfile, req *types.JobRequirements) string {
	var parts []string

	switch {
	case score.OverallScore >= 80:
		parts = append(parts, "Excellent match with strong alignment across all criteria.")
	case score.OverallScore >= 60:
		parts = append(parts, "Good match with solid qualifications.")
	case score.OverallScore >= 40:
		parts = append(parts, "Moderate match with some gaps in requirements.")
	default:
		parts = append(parts, "Limited match with significant gaps.")
	}

	strongest, weakest := extremeComponents(score.ComponentScores)
	parts = append(parts, fmt.Sprintf("Strongest area: %s; weakest area: %s.", strongest, weakest))

	if len(score.MatchedSkills) > 0 {
		parts = append(parts, fmt.Sprintf("Matched %d of %d job skills.",
			len(score.MatchedSkills), len(req.RequiredSkills)+len(req.PreferredSkills)))
	}
	if len(score.MissingSkills) > 0 {
		parts = append(parts, fmt.Sprintf("Missing %d required or preferred skills.", len(score.MissingSkills)))
	}

	if req.RequiredExperienceYears > 0 {
		if profile.TotalExperienceYears >= req.RequiredExperienceYears {
			parts = append(parts, fmt.Sprintf("Meets experience requirement (%.1f years).", profile.TotalExperienceYears))
		} else {
			parts = append(parts, fmt.Sprintf("Below experience requirement (%.1f vs %.1f years).",
				profile.TotalExperienceYears, req.RequiredExperienceYears))
		}
	}

	if profile.HighestDegree > types.DegreeUnknown {
		parts = append(parts, fmt.Sprintf("Education: %s.", profile.HighestDegree))
	}

	return strings.Join(parts, " ")
}

// extremeComponents 返回分数最高和最低的维度名，同分时按固定顺序取先者
func extremeComponents(c types.ComponentScores) (string, string) {
	components := []struct {
		name  string
		value float64
	}{
		{"skills", c.Skills},
		{"experience", c.Experience},
		{"semantic", c.Semantic},
	}

	strongest, weakest := components[0], components[0]
	for _, comp := range components[1:] {
		if comp.value > strongest.value {
			strongest = comp
		}
		if comp.value < weakest.value {
			weakest = comp
		}
	}
	return strongest.name, weakest.name
}

func skillNames(s []types.Skill) []string {
	names := make([]string, len(s))
	for i, skill := range s {
		names[i] = skill.Name
	}
	return names
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
