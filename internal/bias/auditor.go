package bias

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// 性别倾向词表，按词形小写匹配
var (
	masculineCodedWords = []string{
		"aggressive", "ambitious", "assertive", "competitive", "confident",
		"decisive", "determined", "dominant", "independent", "leader",
		"logical", "objective", "outspoken", "strong", "tough",
	}
	feminineCodedWords = []string{
		"collaborative", "compassionate", "cooperative", "emotional",
		"gentle", "helpful", "nurturing", "sensitive", "supportive",
		"understanding", "warm", "caring", "empathetic",
	}
)

// 年龄暗示模式
var agePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{2,3}\s*years?\s+old\b`),
	regexp.MustCompile(`(?i)\b(?:recent|new)\s+graduate\b`),
	regexp.MustCompile(`(?i)\b(?:fresh|young)\s+talent\b`),
	regexp.MustCompile(`(?i)\bseasoned\s+professional\b`),
	regexp.MustCompile(`(?i)\bexperienced\s+executive\b`),
}

// 院校偏好关键词
var institutionBiasKeywords = []string{
	"ivy league", "top tier", "prestigious", "elite",
	"top university", "leading institution",
}

// 脱敏用的PII识别模式
var (
	anonymizeEmailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	anonymizePhoneRe = regexp.MustCompile(`\+?\(?[0-9]{3}\)?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}`)
	anonymizeURLRe   = regexp.MustCompile(`https?://\S+`)
)

const (
	maskedEmail       = "***@***.***"
	maskedPhone       = "***-***-****"
	maskedWord        = "***"
	maskedInstitution = "*** University"

	// 超过该阈值的类别才会产生整改建议
	recommendationThreshold = 0.3
)

// Auditor 对岗位描述做偏见审计，并为盲筛生成脱敏的候选人画像
type Auditor struct{}

// NewAuditor 创建偏见审计器
func NewAuditor() *Auditor {
	return &Auditor{}
}

// Audit 检测岗位文本中的性别、年龄和院校偏见。
// 三类分数各自落在 [0,1]，总分取三者最大值。
func (a *Auditor) Audit(jobText string) *types.BiasReport {
	report := &types.BiasReport{
		GenderBias:      a.detectGenderBias(jobText),
		AgeBias:         a.detectAgeBias(jobText),
		InstitutionBias: a.detectInstitutionBias(jobText),
	}

	report.OverallBiasScore = report.GenderBias.Score
	if report.AgeBias.Score > report.OverallBiasScore {
		report.OverallBiasScore = report.AgeBias.Score
	}
	if report.InstitutionBias.Score > report.OverallBiasScore {
		report.OverallBiasScore = report.InstitutionBias.Score
	}

	report.Recommendations = a.recommendations(report)
	return report
}

// normalizeForMatching 小写化并把连字符/下划线折叠成空格，
// 使 "top-tier" 和 "top tier" 这类写法命中同一关键词
func normalizeForMatching(text string) string {
	lower := strings.ToLower(text)
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, lower)
}

// detectGenderBias 性别倾向分 = 0.5×词频失衡比例 + 0.5×min(总命中数/20, 1)
func (a *Auditor) detectGenderBias(text string) types.CategoryBias {
	lower := normalizeForMatching(text)

	var evidence []string
	masculine := 0
	for _, w := range masculineCodedWords {
		if strings.Contains(lower, w) {
			masculine++
			evidence = append(evidence, w)
		}
	}
	feminine := 0
	for _, w := range feminineCodedWords {
		if strings.Contains(lower, w) {
			feminine++
			evidence = append(evidence, w)
		}
	}

	total := masculine + feminine
	imbalance := 0.0
	if total > 0 {
		imbalance = abs(masculine-feminine) / float64(total)
	}
	volume := float64(total) / 20.0
	if volume > 1 {
		volume = 1
	}

	score := imbalance*0.5 + volume*0.5
	if score > 1 {
		score = 1
	}
	sort.Strings(evidence)

	return types.CategoryBias{
		Score:    score,
		Detected: total > 0,
		Evidence: evidence,
	}
}

// detectAgeBias 年龄偏见分 = min(命中数/5, 1)
func (a *Auditor) detectAgeBias(text string) types.CategoryBias {
	var evidence []string
	for _, re := range agePatterns {
		evidence = append(evidence, re.FindAllString(text, -1)...)
	}

	score := float64(len(evidence)) / 5.0
	if score > 1 {
		score = 1
	}

	return types.CategoryBias{
		Score:    score,
		Detected: len(evidence) > 0,
		Evidence: evidence,
	}
}

// detectInstitutionBias 院校偏见分 = min(命中关键词数/3, 1)
func (a *Auditor) detectInstitutionBias(text string) types.CategoryBias {
	lower := normalizeForMatching(text)

	var evidence []string
	for _, kw := range institutionBiasKeywords {
		if strings.Contains(lower, kw) {
			evidence = append(evidence, kw)
		}
	}

	score := float64(len(evidence)) / 3.0
	if score > 1 {
		score = 1
	}

	return types.CategoryBias{
		Score:    score,
		Detected: len(evidence) > 0,
		Evidence: evidence,
	}
}

func (a *Auditor) recommendations(report *types.BiasReport) []string {
	var recs []string
	if report.GenderBias.Score > recommendationThreshold {
		recs = append(recs, "Consider using more gender-neutral language. Balance masculine and feminine descriptors.")
	}
	if report.AgeBias.Score > recommendationThreshold {
		recs = append(recs, "Remove age-related language. Focus on skills and experience rather than age or years since graduation.")
	}
	if report.InstitutionBias.Score > recommendationThreshold {
		recs = append(recs, "Avoid specifying institution tiers. Focus on skills and competencies rather than where candidates studied.")
	}
	if len(recs) == 0 {
		recs = append(recs, "Job description appears relatively unbiased.")
	}
	return recs
}

// Anonymize 返回用于盲筛的脱敏画像副本，原画像不被修改。
// 联系方式替换为掩码，正文去除邮箱/电话/URL和疑似人名，
// 教育经历保留学位和专业但抹去院校名称。
func (a *Auditor) Anonymize(profile *types.CandidateProfile) *types.CandidateProfile {
	if profile == nil {
		return nil
	}

	anon := *profile
	anon.Contact = types.ContactInfo{
		Email: maskedEmail,
		Phone: maskedPhone,
	}
	anon.RawText = AnonymizeText(profile.RawText)

	anon.Positions = make([]types.Position, len(profile.Positions))
	for i, p := range profile.Positions {
		anon.Positions[i] = p
		anon.Positions[i].Description = AnonymizeText(p.Description)
	}

	anon.Education = make([]types.Education, len(profile.Education))
	for i, e := range profile.Education {
		anon.Education[i] = e
		anon.Education[i].Institution = maskedInstitution
	}

	anon.Skills = append([]types.Skill(nil), profile.Skills...)
	return &anon
}

// AnonymizeText 抹去文本中的邮箱、电话、URL，
// 并把可能是人名的首字母大写纯字母词(长度>2)替换为掩码。
func AnonymizeText(text string) string {
	if text == "" {
		return ""
	}

	text = anonymizeEmailRe.ReplaceAllString(text, maskedEmail)
	text = anonymizePhoneRe.ReplaceAllString(text, maskedPhone)
	text = anonymizeURLRe.ReplaceAllString(text, maskedWord)

	words := strings.Fields(text)
	for i, w := range words {
		if looksLikeName(w) {
			words[i] = maskedWord
		}
	}
	return strings.Join(words, " ")
}

func looksLikeName(word string) bool {
	runes := []rune(word)
	if len(runes) <= 2 || !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func abs(v int) float64 {
	if v < 0 {
		return float64(-v)
	}
	return float64(v)
}
