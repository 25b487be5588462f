package skills

import (
	"regexp"
	"strings"
)

// 规范化重写规则，按固定顺序应用
var (
	humanResourcesRe = regexp.MustCompile(`\bhuman\s+resources?\b`)
	peopleOpsRe      = regexp.MustCompile(`\bpeople\s+operations\b`)
	lifecycleRe      = regexp.MustCompile(`\bemployee\s+lifecycle\b`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// defaultSynonyms 技能同义词表，查询时双向生效
var defaultSynonyms = map[string][]string{
	// HR/招聘领域
	"recruiting":                 {"talent acquisition", "recruitment", "hiring", "talent sourcing"},
	"talent acquisition":         {"recruiting", "recruitment", "hiring", "talent sourcing"},
	"recruitment":                {"recruiting", "talent acquisition", "hiring"},
	"hiring":                     {"recruiting", "talent acquisition", "recruitment"},
	"people management":          {"team management", "staff management", "personnel management"},
	"employee relations":         {"er", "labor relations", "workplace relations"},
	"performance management":     {"performance review", "performance evaluation", "appraisal"},
	"hr policies":                {"human resources policies", "hr policy", "workplace policies"},
	"labor law compliance":       {"employment law", "labor law", "compliance"},
	"payroll management":         {"payroll", "payroll processing", "salary management"},
	"compensation and benefits":  {"compensation", "benefits", "total rewards", "c&b"},
	"training and development":   {"learning and development", "l&d", "training", "employee development"},
	"conflict resolution":        {"dispute resolution", "mediation", "conflict management"},
	"employee engagement":        {"engagement", "employee satisfaction", "workplace culture"},
	"workforce planning":         {"workforce strategy", "talent planning", "resource planning"},
	"hr operations":              {"hr ops", "human resources operations", "hr administration"},
	"hr analytics":               {"people analytics", "hr metrics", "hr data analysis"},
	"hrms tools":                 {"hrms", "hris", "human resources management system"},
	"ats tools":                  {"ats", "applicant tracking system", "recruitment software"},
	"communication skills":       {"communication", "verbal communication", "written communication"},
	"interpersonal skills":       {"people skills", "soft skills", "relationship building"},
	"problem solving":            {"problem-solving", "analytical thinking", "troubleshooting"},
	"decision making":            {"decision-making", "judgment", "critical thinking"},
	"strategic thinking":         {"strategy", "strategic planning", "strategic vision"},
	"organizational development": {"od", "organizational change", "change management"},
	"change management":          {"change leadership", "transformation", "organizational change"},
	"confidentiality":            {"data privacy", "privacy", "confidential handling"},
	"ethical practices":          {"ethics", "professional ethics", "integrity"},
	// 技术领域
	"python":     {"python programming", "python development"},
	"javascript": {"js", "ecmascript"},
	"react":      {"react.js", "reactjs"},
	"postgresql": {"postgres", "postgresql database"},
	"docker":     {"docker containerization", "containerization"},
	"kubernetes": {"k8s", "kubernetes orchestration"},
}

// Matcher 技能规范化与匹配器。
// 匹配按三级放宽：精确相等、包含匹配、多词技能的词重叠匹配，
// 用召回率换取对抽取噪音的容忍度。
type Matcher struct {
	synonyms map[string][]string
}

// NewMatcher 创建使用内置同义词表的匹配器
func NewMatcher() *Matcher {
	return &Matcher{synonyms: defaultSynonyms}
}

// Normalize 将技能短语规范化为统一的比较形式
func (m *Matcher) Normalize(skill string) string {
	if skill == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(skill))

	// 固定短语重写
	normalized = humanResourcesRe.ReplaceAllString(normalized, "hr")
	normalized = peopleOpsRe.ReplaceAllString(normalized, "people management")
	normalized = lifecycleRe.ReplaceAllString(normalized, "employee relations")

	// 折叠多余空白
	normalized = strings.TrimSpace(whitespaceRe.ReplaceAllString(normalized, " "))

	return normalized
}

// Variants 返回技能的规范形式及其同义词集合，同义词表双向查询
func (m *Matcher) Variants(skill string) []string {
	normalized := m.Normalize(skill)
	seen := map[string]bool{normalized: true}
	variants := []string{normalized}

	add := func(s string) {
		n := m.Normalize(s)
		if n != "" && !seen[n] {
			seen[n] = true
			variants = append(variants, n)
		}
	}

	// 正向查询
	for _, synonym := range m.synonyms[normalized] {
		add(synonym)
	}

	// 反向查询：规范形式出现在某主技能的同义词列表中时，包含该主技能
	for mainSkill, synonyms := range m.synonyms {
		for _, synonym := range synonyms {
			if m.Normalize(synonym) == normalized {
				add(mainSkill)
				break
			}
		}
	}

	return variants
}

// Match 判断两个技能短语是否匹配
func (m *Matcher) Match(a, b string) bool {
	return m.MatchAgainst(a, []string{b})
}

// MatchAgainst 判断岗位技能是否匹配候选人技能列表中的任意一项
func (m *Matcher) MatchAgainst(jobSkill string, candidateSkills []string) bool {
	jobVariants := m.Variants(jobSkill)

	normalizedCandidate := make([]string, 0, len(candidateSkills))
	for _, s := range candidateSkills {
		if n := m.Normalize(s); n != "" {
			normalizedCandidate = append(normalizedCandidate, n)
		}
	}

	// 精确匹配
	for _, variant := range jobVariants {
		for _, cs := range normalizedCandidate {
			if variant == cs {
				return true
			}
		}
	}

	// 包含匹配：双方长度不低于3个字符
	for _, variant := range jobVariants {
		if len(variant) < 3 {
			continue
		}
		for _, cs := range normalizedCandidate {
			if len(cs) < 3 {
				continue
			}
			if strings.Contains(cs, variant) || strings.Contains(variant, cs) {
				return true
			}
		}
	}

	// 词重叠匹配：仅针对多词技能，任一方向重叠率达到60%即匹配
	for _, variant := range jobVariants {
		variantWords := wordSet(variant)
		if len(variantWords) < 2 {
			continue
		}
		for _, cs := range normalizedCandidate {
			candidateWords := wordSet(cs)
			if len(candidateWords) < 2 {
				continue
			}
			common := 0
			for w := range variantWords {
				if candidateWords[w] {
					common++
				}
			}
			if common == 0 {
				continue
			}
			overlapVariant := float64(common) / float64(len(variantWords))
			overlapCandidate := float64(common) / float64(len(candidateWords))
			if overlapVariant >= 0.6 || overlapCandidate >= 0.6 {
				return true
			}
		}
	}

	return false
}

func wordSet(s string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(s) {
		words[w] = true
	}
	return words
}
