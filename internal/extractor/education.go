package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

var educationSectionHeaderRe = regexp.MustCompile(`(?im)^.*(?:education|academic|qualifications|degrees?)[:;]?\s*$`)

// 各学位等级的识别模式，按等级从高到低排列
var degreePatterns = []struct {
	level    types.DegreeLevel
	patterns []*regexp.Regexp
}{
	{types.DegreePhD, []*regexp.Regexp{
		regexp.MustCompile(`(?i)Ph\.?D\.?`),
		regexp.MustCompile(`(?i)Doctor of Philosophy`),
		regexp.MustCompile(`(?i)Doctorate`),
	}},
	{types.DegreeMasters, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bM\.?S\.?c?\.?\b`),
		regexp.MustCompile(`(?i)Master of Science`),
		regexp.MustCompile(`(?i)Master of Arts`),
		regexp.MustCompile(`(?i)\bM\.?A\.?\b`),
		regexp.MustCompile(`(?i)\bM\.?B\.?A\.?\b`),
		regexp.MustCompile(`(?i)Master of Business Administration`),
		regexp.MustCompile(`(?i)\bM\.?Eng\.?\b`),
		regexp.MustCompile(`(?i)Master of Engineering`),
	}},
	{types.DegreeBachelors, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bB\.?S\.?c?\.?\b`),
		regexp.MustCompile(`(?i)Bachelor of Science`),
		regexp.MustCompile(`(?i)Bachelor of Arts`),
		regexp.MustCompile(`(?i)\bB\.?A\.?\b`),
		regexp.MustCompile(`(?i)\bB\.?Eng\.?\b`),
		regexp.MustCompile(`(?i)Bachelor of Engineering`),
		regexp.MustCompile(`(?i)\bB\.?Tech\.?\b`),
		regexp.MustCompile(`(?i)Bachelor of Technology`),
	}},
	{types.DegreeAssociates, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bA\.?A\.?\b`),
		regexp.MustCompile(`(?i)\bA\.?S\.?\b`),
		regexp.MustCompile(`(?i)Associate of Arts`),
		regexp.MustCompile(`(?i)Associate of Science`),
	}},
	{types.DegreeDiploma, []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bDiploma\b`),
		regexp.MustCompile(`(?i)\bCertificate\b`),
	}},
}

var (
	fieldOfStudyRe = regexp.MustCompile(`(?:in|of)\s+([A-Z][a-zA-Z ]+?)(?:\s*[,|(\n]|\s*$)`)

	gpaRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)GPA[:\s]*([0-9]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)CGPA[:\s]*([0-9]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)Grade[:\s]*([0-9]+\.?[0-9]*)`),
	}

	gradYearRe = regexp.MustCompile(`\b(19|20)[0-9]{2}\b`)
)

// ExtractEducation 从简历文本中提取教育经历。
// 找不到教育章节时返回空列表，不报错。
func ExtractEducation(text string) []types.Education {
	body := sectionBody(text, educationSectionHeaderRe)
	if body == "" {
		return nil
	}

	var educations []types.Education
	var current *types.Education

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if degree, level, ok := matchDegree(line); ok {
			if current != nil {
				educations = append(educations, *current)
			}
			current = &types.Education{Degree: degree, Level: level}
			if m := fieldOfStudyRe.FindStringSubmatch(line); m != nil {
				current.Field = strings.TrimSpace(m[1])
			}
			if year := extractGradYear(line); year > 0 {
				current.GradYear = year
			}
			if gpa, ok := extractGPA(line); ok {
				current.GPA = gpa
			}
			continue
		}

		if current == nil {
			continue
		}
		if gpa, ok := extractGPA(line); ok {
			current.GPA = gpa
			continue
		}
		if year := extractGradYear(line); year > 0 {
			current.GradYear = year
			continue
		}
		// 既非GPA也非年份的行依次填充院校和专业
		if current.Institution == "" {
			current.Institution = line
		} else if current.Field == "" {
			current.Field = line
		}
	}
	if current != nil {
		educations = append(educations, *current)
	}

	return educations
}

// matchDegree 识别行中的学位及等级，按等级从高到低优先匹配
func matchDegree(line string) (string, types.DegreeLevel, bool) {
	for _, group := range degreePatterns {
		for _, re := range group.patterns {
			if m := re.FindString(line); m != "" {
				return strings.TrimSpace(m), group.level, true
			}
		}
	}
	return "", types.DegreeUnknown, false
}

// extractGradYear 提取毕业年份，多个年份取最近的一个
func extractGradYear(line string) int {
	best := 0
	for _, m := range gradYearRe.FindAllString(line, -1) {
		if year, err := strconv.Atoi(m); err == nil && year > best {
			best = year
		}
	}
	return best
}

// extractGPA 提取GPA/CGPA，10分制统一换算到4.0制
func extractGPA(line string) (float64, bool) {
	for _, re := range gpaRes {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		gpa, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if gpa > 4.0 && gpa <= 10.0 {
			gpa = gpa / 10.0 * 4.0
		}
		return math.Round(gpa*100) / 100, true
	}
	return 0, false
}
