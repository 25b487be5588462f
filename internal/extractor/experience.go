package extractor

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// 相邻日期区间合并的最大间隔
const experienceGapMerge = 90 * 24 * time.Hour

var (
	experienceSectionHeaderRe = regexp.MustCompile(`(?im)^.*(?:work\s+experience|professional\s+experience|employment|experience|career)[:;]?\s*$`)

	jobTitleRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Senior|Junior|Lead|Principal|Staff|Associate)?\s*(?:Software|Backend|Frontend|Full.?Stack|DevOps|Data|ML|AI|HR)?\s*(?:Engineer|Developer|Architect|Scientist|Analyst|Manager|Director|Consultant|Specialist|Coordinator|Officer|Intern)`),
		regexp.MustCompile(`(?i)(?:Product|Project|Engineering|Technical)\s*Manager`),
		regexp.MustCompile(`(?i)(?:Chief|VP|Vice President|Head of)\s+\w+`),
	}

	companyRe = regexp.MustCompile(`(?:at|@)\s+([A-Z][a-zA-Z0-9&. ]+?)(?:\s*[|,(]|\s*$)`)

	dateRangeRe = regexp.MustCompile(`(?i)([A-Za-z]{3,9}\.?\s+\d{4}|\d{1,2}[/\-]\d{4}|\d{4})\s*[-–—]\s*([A-Za-z]{3,9}\.?\s+\d{4}|\d{1,2}[/\-]\d{4}|\d{4}|Present|Current|Now)`)

	yearsOfExperienceRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*\+?\s*years?\s+(?:of\s+)?(?:work\s+|professional\s+|relevant\s+)?experience`)
)

// 实习/学术类经历的识别关键词
var internshipKeywords = []string{
	"intern", "internship", "trainee", "virtual internship", "co-op", "coop",
	"student", "academic", "university project", "college project", "project",
}

// 职业角色关键词，出现时覆盖实习判定
var professionalIndicators = []string{
	"manager", "executive", "lead", "officer", "specialist", "director",
	"coordinator", "analyst", "engineer", "developer", "consultant",
	"supervisor", "head of",
}

// ExperienceExtractor 从简历文本中提取工作经历。
// 三级回退：章节结构化解析 -> 全文日期区间扫描（合并间隔不超过90天的
// 相邻区间）-> "N years of experience" 自述匹配，前一级产出为零时才启用下一级。
type ExperienceExtractor struct {
	now func() time.Time
}

// NewExperienceExtractor 创建工作经历提取器
func NewExperienceExtractor() *ExperienceExtractor {
	return &ExperienceExtractor{now: time.Now}
}

// ExtractExperience 返回解析出的职位列表和总工作年限。
// 实习/学术类职位保留在列表中，但不计入总年限。
func (e *ExperienceExtractor) ExtractExperience(text string) ([]types.Position, float64) {
	// 第一级：章节结构化解析
	positions := e.parseSection(text)

	// 第二级：全文日期区间扫描
	if len(positions) == 0 {
		positions = e.scanDateRanges(text)
	}

	if len(positions) > 0 {
		total := 0.0
		for _, p := range positions {
			if !p.IsInternship {
				total += p.DurationYears
			}
		}
		return positions, round1(total)
	}

	// 第三级："N years of experience" 自述
	if m := yearsOfExperienceRe.FindStringSubmatch(text); m != nil {
		years, err := strconv.ParseFloat(m[1], 64)
		if err == nil && years > 0 {
			return nil, round1(years)
		}
	}

	return nil, 0
}

// IsInternship 判断职位是否为实习/学术类经历。
// 标题出现职业角色关键词时直接判定为职业经历；否则标题或描述
// 命中实习关键词（且描述中无职业角色关键词）即判定为实习。
func IsInternship(p types.Position) bool {
	title := strings.ToLower(p.Title)
	if containsAny(title, professionalIndicators) {
		return false
	}
	if containsAny(title, internshipKeywords) {
		return true
	}

	description := strings.ToLower(p.Description + " " + p.Company)
	if containsAny(description, internshipKeywords) && !containsAny(description, professionalIndicators) {
		return true
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// parseSection 结构化解析经历章节：职位标题行开启新条目，
// 日期区间行补充起止时间，其余行归入描述。
func (e *ExperienceExtractor) parseSection(text string) []types.Position {
	body := sectionBody(text, experienceSectionHeaderRe)
	if body == "" {
		return nil
	}

	var positions []types.Position
	var current *types.Position

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if title := matchJobTitle(line); title != "" {
			if current != nil {
				positions = append(positions, *current)
			}
			current = &types.Position{Title: title}
			if m := companyRe.FindStringSubmatch(line); m != nil {
				current.Company = strings.TrimSpace(m[1])
			}
			if start, end, isCurrent, ok := e.parseDateRange(line); ok {
				current.Start, current.End, current.Current = start, end, isCurrent
			}
			continue
		}

		if current == nil {
			continue
		}
		if start, end, isCurrent, ok := e.parseDateRange(line); ok {
			current.Start, current.End, current.Current = start, end, isCurrent
			continue
		}
		if current.Description == "" {
			current.Description = line
		} else {
			current.Description += " " + line
		}
	}
	if current != nil {
		positions = append(positions, *current)
	}

	for i := range positions {
		e.enrich(&positions[i])
	}
	return positions
}

// scanDateRanges 扫描全文中的日期区间，按开始时间排序后合并
// 重叠或间隔不超过90天的相邻区间，每个合并后的区间算作一段经历。
func (e *ExperienceExtractor) scanDateRanges(text string) []types.Position {
	type span struct {
		start, end time.Time
		current    bool
	}

	var spans []span
	for _, m := range dateRangeRe.FindAllString(text, -1) {
		if start, end, isCurrent, ok := e.parseDateRange(m); ok {
			spans = append(spans, span{start: start, end: end, current: isCurrent})
		}
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if !s.start.After(last.end.Add(experienceGapMerge)) {
			if s.end.After(last.end) {
				last.end = s.end
			}
			last.current = last.current || s.current
		} else {
			merged = append(merged, s)
		}
	}

	positions := make([]types.Position, 0, len(merged))
	for _, s := range merged {
		p := types.Position{Start: s.start, Current: s.current}
		if !s.current {
			p.End = s.end
		}
		e.enrich(&p)
		positions = append(positions, p)
	}
	return positions
}

// parseDateRange 解析形如 "Jan 2020 - Mar 2022" / "2018-2020" / "05/2019 - Present" 的区间
func (e *ExperienceExtractor) parseDateRange(s string) (start, end time.Time, current bool, ok bool) {
	m := dateRangeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, time.Time{}, false, false
	}

	start, ok = parseDateToken(m[1])
	if !ok {
		return time.Time{}, time.Time{}, false, false
	}

	endToken := strings.ToLower(strings.TrimSpace(m[2]))
	if endToken == "present" || endToken == "current" || endToken == "now" {
		return start, e.now(), true, true
	}

	end, ok = parseDateToken(m[2])
	if !ok || end.Before(start) {
		return time.Time{}, time.Time{}, false, false
	}
	return start, end, false, true
}

// enrich 从起止时间推导任职时长
func (e *ExperienceExtractor) enrich(p *types.Position) {
	p.IsInternship = IsInternship(*p)

	if p.Start.IsZero() {
		return
	}
	end := p.End
	if p.Current || end.IsZero() {
		end = e.now()
	}
	if end.Before(p.Start) {
		return
	}

	months := end.Sub(p.Start).Hours() / 24 / 30.44
	p.DurationYears = round1(months / 12)
}

func matchJobTitle(line string) string {
	for _, re := range jobTitleRes {
		if m := strings.TrimSpace(re.FindString(line)); m != "" {
			return m
		}
	}
	return ""
}

var dateLayouts = []string{"Jan 2006", "January 2006", "1/2006", "01/2006", "1-2006", "01-2006", "2006"}

// parseDateToken 解析单个日期写法（月名+年 / 月/年 / 纯年份）。
// 无法按已知格式解析时退化为取其中的四位年份，如 "Acme 2018" -> 2018。
func parseDateToken(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ".", ""))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if m := gradYearRe.FindString(s); m != "" {
		if year, err := strconv.Atoi(m); err == nil {
			return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
