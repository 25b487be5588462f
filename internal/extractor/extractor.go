package extractor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikashojha7762/resume-screening-system/internal/logger"
	"github.com/vikashojha7762/resume-screening-system/internal/skills"
	"github.com/vikashojha7762/resume-screening-system/internal/tracing"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// ProfileExtractor 把原始文档字节加工成结构化候选人画像。
// 文本提取失败是致命错误；联系方式/技能/经历/教育四个阶段相互独立，
// 单个阶段失败只记警告并保留空默认值，不影响其余阶段。
type ProfileExtractor struct {
	chain      *Chain
	skills     *SkillExtractor
	experience *ExperienceExtractor
	tracer     trace.Tracer
}

// NewProfileExtractor 创建画像提取器
func NewProfileExtractor(chain *Chain, matcher *skills.Matcher) *ProfileExtractor {
	return &ProfileExtractor{
		chain:      chain,
		skills:     NewSkillExtractor(matcher),
		experience: NewExperienceExtractor(),
		tracer:     otel.Tracer("internal/extractor"),
	}
}

// ExtractProfile 从文档字节中提取完整画像。
// jobSkills 是岗位技能表，仅供技能提取的第三级回退使用，可以为空。
// 所有文本提取策略都失败时返回包 ErrNoTextExtracted 的错误。
func (p *ProfileExtractor) ExtractProfile(ctx context.Context, candidateID string, data []byte, format string, jobSkills []string) (*types.CandidateProfile, error) {
	ctx, span := p.tracer.Start(ctx, "extractor.ExtractProfile", trace.WithAttributes(
		attribute.String("candidate.id", candidateID),
		attribute.String("document.format", format),
	))
	defer span.End()

	rawText, err := p.chain.Extract(ctx, data, format, candidateID)
	if err != nil {
		return nil, fmt.Errorf("候选人 %s 文本提取失败: %w", candidateID, err)
	}

	cleaned := CleanText(rawText)
	profile := p.ExtractFromText(ctx, candidateID, cleaned, jobSkills)

	span.SetAttributes(
		attribute.Int("profile.skill_count", len(profile.Skills)),
		attribute.Int("profile.position_count", len(profile.Positions)),
		attribute.Float64("profile.total_experience_years", profile.TotalExperienceYears),
		attribute.String("document.text_preview", tracing.SafeResumeContent(cleaned)),
	)
	return profile, nil
}

// ExtractFromText 对已清洗的纯文本做四阶段结构化提取。
// 相同文本恒产出相同画像。
func (p *ProfileExtractor) ExtractFromText(ctx context.Context, candidateID, text string, jobSkills []string) *types.CandidateProfile {
	profile := &types.CandidateProfile{
		CandidateID: candidateID,
		RawText:     text,
		Sections:    DetectSections(text),
		Skills:      []types.Skill{},
		Positions:   []types.Position{},
		Education:   []types.Education{},
	}

	p.runStage(ctx, candidateID, "contact", func() {
		profile.Contact = ExtractContactInfo(text)
	})
	p.runStage(ctx, candidateID, "skills", func() {
		if extracted := p.skills.ExtractSkills(text, jobSkills); extracted != nil {
			profile.Skills = extracted
		}
	})
	p.runStage(ctx, candidateID, "experience", func() {
		positions, total := p.experience.ExtractExperience(text)
		if positions != nil {
			profile.Positions = positions
		}
		profile.TotalExperienceYears = total
	})
	p.runStage(ctx, candidateID, "education", func() {
		if educations := ExtractEducation(text); educations != nil {
			profile.Education = educations
		}
		profile.HighestDegree = types.HighestDegreeOf(profile.Education)
	})

	return profile
}

// runStage 执行单个提取阶段，吞掉panic并记警告，保证阶段之间互不拖累
func (p *ProfileExtractor) runStage(ctx context.Context, candidateID, stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Warn().
				Str("candidate_id", candidateID).
				Str("stage", stage).
				Interface("panic", r).
				Msg("画像提取阶段失败，该阶段保留空默认值")
		}
	}()
	fn()
}
