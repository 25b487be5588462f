package extractor

import (
	"regexp"
	"strings"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t]+`)
	specialCharRe     = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:!?\-()/@+#&]`)
	multiNewlineRe    = regexp.MustCompile(`\n{3,}`)
)

// 章节标题的识别模式，按行匹配
var sectionPatterns = map[types.SectionType]*regexp.Regexp{
	types.SectionExperience:     regexp.MustCompile(`(?i)(work\s+experience|professional\s+experience|experience|employment|career)`),
	types.SectionEducation:      regexp.MustCompile(`(?i)(education|academic|qualifications|degrees)`),
	types.SectionSkills:         regexp.MustCompile(`(?i)(skills|technical\s+skills|competencies|expertise)`),
	types.SectionSummary:        regexp.MustCompile(`(?i)(summary|profile|objective|about)`),
	types.SectionProjects:       regexp.MustCompile(`(?i)(projects|portfolio|work\s+samples)`),
	types.SectionCertifications: regexp.MustCompile(`(?i)(certifications|certificates|licenses)`),
}

// CleanText 清洗提取出的原始文本：压缩行内空白、去除特殊字符
// （保留常见标点）、合并多余空行。换行保留，章节检测依赖行结构。
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = horizontalSpaceRe.ReplaceAllString(line, " ")
		line = specialCharRe.ReplaceAllString(line, " ")
		line = horizontalSpaceRe.ReplaceAllString(line, " ")
		lines[i] = strings.TrimSpace(line)
	}
	cleaned := strings.Join(lines, "\n")
	cleaned = multiNewlineRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// DetectSections 扫描文本各行，返回各章节标题出现的行号。
// 相同输入产出相同结果。
func DetectSections(text string) types.SectionMap {
	lines := strings.Split(text, "\n")
	sections := make(types.SectionMap)

	for lineNum, line := range lines {
		for sectionType, pattern := range sectionPatterns {
			if pattern.MatchString(line) {
				sections[sectionType] = append(sections[sectionType], lineNum)
			}
		}
	}

	return sections
}

// sectionBody 截取某章节标题之后、下一个空行跟大写字母行之前的正文。
// 找不到章节时返回空字符串。
func sectionBody(text string, headerRe *regexp.Regexp) string {
	loc := headerRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}

	rest := text[loc[1]:]
	if idx := strings.Index(rest, "\n"); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		return ""
	}

	// 章节在下一个 "空行+大写开头的行" 处结束
	end := len(rest)
	searchFrom := 0
	for {
		idx := strings.Index(rest[searchFrom:], "\n\n")
		if idx < 0 {
			break
		}
		boundary := searchFrom + idx
		after := strings.TrimLeft(rest[boundary+2:], "\n")
		if after != "" && after[0] >= 'A' && after[0] <= 'Z' {
			end = boundary
			break
		}
		searchFrom = boundary + 2
	}

	return strings.TrimSpace(rest[:end])
}
