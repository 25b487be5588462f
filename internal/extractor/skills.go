package extractor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vikashojha7762/resume-screening-system/internal/skills"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

var skillsSectionHeaderRe = regexp.MustCompile(`(?im)^.*(?:skills?|technical\s+skills?|competencies?|expertise)[:;]?\s*$`)

var skillDelimiterRe = regexp.MustCompile(`[,;•\-\n]`)

// 技能别名表，提取时统一到规范名
var skillAliases = map[string]string{
	"js":        "javascript",
	"ts":        "typescript",
	"cplusplus": "c++",
	"cpp":       "c++",
	"csharp":    "c#",
	"golang":    "go",
	"node":      "node.js",
	"nodejs":    "node.js",

	"reactjs":    "react",
	"react.js":   "react",
	"vuejs":      "vue",
	"vue.js":     "vue",
	"angularjs":  "angular",
	"angular.js": "angular",

	"postgres": "postgresql",
	"pg":       "postgresql",
	"mongo":    "mongodb",
	"ms sql":   "sql server",
	"mssql":    "sql server",

	"amazon web services":   "aws",
	"google cloud":          "gcp",
	"google cloud platform": "gcp",

	"k8s":   "kubernetes",
	"kube":  "kubernetes",
	"ci/cd": "continuous integration",
	"cicd":  "continuous integration",
}

// 技能分类词表
var skillCategories = map[string][]string{
	"Programming Languages": {
		"python", "java", "javascript", "typescript", "c++", "c#", "go", "rust",
		"ruby", "php", "swift", "kotlin", "scala", "r", "matlab", "perl",
	},
	"Web Frameworks": {
		"react", "angular", "vue", "django", "flask", "fastapi", "spring",
		"express", "next.js", "nuxt", "laravel", "rails", "asp.net",
	},
	"Databases": {
		"postgresql", "mysql", "mongodb", "redis", "elasticsearch", "cassandra",
		"oracle", "sql server", "dynamodb", "couchdb", "neo4j",
	},
	"Cloud & DevOps": {
		"aws", "azure", "gcp", "docker", "kubernetes", "jenkins", "gitlab ci",
		"terraform", "ansible", "chef", "puppet", "vagrant", "prometheus",
	},
	"Data Science & ML": {
		"pandas", "numpy", "scikit-learn", "tensorflow", "pytorch", "keras",
		"jupyter", "matplotlib", "seaborn", "plotly", "spark", "hadoop",
	},
	"Tools & Others": {
		"git", "linux", "bash", "powershell", "jira", "confluence", "slack",
		"postman", "swagger", "graphql", "rest api", "microservices",
	},
}

// SkillExtractor 从简历文本中提取技能。
// 三级回退：词表匹配 -> 技能章节解析 -> 岗位技能直配，
// 仅当前一级产出为零时才启用下一级。
type SkillExtractor struct {
	matcher         *skills.Matcher
	skillToCategory map[string]string
	skillRes        map[string]*regexp.Regexp
}

// NewSkillExtractor 创建技能提取器
func NewSkillExtractor(matcher *skills.Matcher) *SkillExtractor {
	e := &SkillExtractor{
		matcher:         matcher,
		skillToCategory: make(map[string]string),
		skillRes:        make(map[string]*regexp.Regexp),
	}

	wordOnly := regexp.MustCompile(`^[\w ]+$`)
	for category, list := range skillCategories {
		for _, s := range list {
			e.skillToCategory[s] = category
			// 含标点的技能名（c++、c#、next.js）无法用 \b 界定，退化为子串匹配
			if wordOnly.MatchString(s) {
				e.skillRes[s] = regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)
			}
		}
	}

	return e
}

// normalize 统一技能写法：小写、去空白、套用别名表
func (e *SkillExtractor) normalize(skill string) string {
	s := strings.ToLower(strings.TrimSpace(skill))
	if canonical, ok := skillAliases[s]; ok {
		return canonical
	}
	return s
}

// ExtractSkills 提取技能及置信度。jobSkills 仅用于第三级回退：
// 前两级一无所获时，直接用岗位技能表在原文中找子串。
// 相同输入恒产出相同结果。
func (e *SkillExtractor) ExtractSkills(text string, jobSkills []string) []types.Skill {
	textLower := strings.ToLower(text)
	sectionSkills := e.parseSkillsSection(text)

	mentions := make(map[string]int)

	// 第一级：词表匹配
	for skill, re := range e.skillRes {
		if n := len(re.FindAllStringIndex(textLower, -1)); n > 0 {
			mentions[e.normalize(skill)] += n
		}
	}
	for skill := range e.skillToCategory {
		if _, ok := e.skillRes[skill]; ok {
			continue
		}
		if n := strings.Count(textLower, skill); n > 0 {
			mentions[e.normalize(skill)] += n
		}
	}

	// 第二级：技能章节解析
	if len(mentions) == 0 {
		for _, s := range sectionSkills {
			if normalized := e.normalize(s); normalized != "" {
				mentions[normalized]++
			}
		}
	}

	// 第三级：岗位技能直配
	if len(mentions) == 0 {
		for _, jobSkill := range jobSkills {
			if jobSkill == "" {
				continue
			}
			if strings.Contains(textLower, strings.ToLower(jobSkill)) {
				mentions[e.normalize(jobSkill)]++
				continue
			}
			for _, variant := range e.matcher.Variants(jobSkill) {
				if strings.Contains(textLower, variant) {
					mentions[e.normalize(jobSkill)]++
					break
				}
			}
		}
	}

	inSection := make(map[string]bool, len(sectionSkills))
	for _, s := range sectionSkills {
		inSection[e.normalize(s)] = true
	}

	result := make([]types.Skill, 0, len(mentions))
	for name, count := range mentions {
		confidence := float64(count) * 0.2
		if confidence > 0.6 {
			confidence = 0.6
		}
		if inSection[name] {
			confidence += 0.3
		}
		if _, known := e.skillToCategory[name]; known {
			confidence += 0.1
		}
		if confidence > 1.0 {
			confidence = 1.0
		}

		category := e.skillToCategory[name]
		if category == "" {
			category = "Other"
		}

		result = append(result, types.Skill{
			Name:       name,
			Confidence: confidence,
			Category:   category,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// parseSkillsSection 解析专门的技能章节，按常见分隔符切分
func (e *SkillExtractor) parseSkillsSection(text string) []string {
	body := sectionBody(text, skillsSectionHeaderRe)
	if body == "" {
		return nil
	}

	parts := skillDelimiterRe.Split(body, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
