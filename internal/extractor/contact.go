package extractor

import (
	"regexp"
	"strings"

	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// 电话模式按优先级排列，第一个命中即采用
	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\+?\(?[0-9]{3}\)?[\-\s.]?[0-9]{3}[\-\s.]?[0-9]{4,6}`),
		regexp.MustCompile(`\+?[1-9][0-9]{7,14}`),
		regexp.MustCompile(`\([0-9]{3}\)\s?[0-9]{3}-[0-9]{4}`),
	}

	linkedinRe = regexp.MustCompile(`(?i)linkedin\.com/(?:in|pub)/([a-zA-Z0-9\-]+)`)
	githubRe   = regexp.MustCompile(`(?i)github\.com/([a-zA-Z0-9\-]+)`)
	websiteRe  = regexp.MustCompile(`(?:https?://)?(?:www\.)?([a-zA-Z0-9\-]+\.[a-zA-Z]{2,})`)
)

// 个人网站识别时排除的常见邮箱域名
var excludedWebsiteDomains = map[string]bool{
	"gmail.com":    true,
	"yahoo.com":    true,
	"outlook.com":  true,
	"hotmail.com":  true,
	"linkedin.com": true,
	"github.com":   true,
}

// ExtractContactInfo 从简历文本中提取联系方式。
// 纯模式匹配，永不报错，识别不到的字段保持空字符串。
func ExtractContactInfo(text string) types.ContactInfo {
	contact := types.ContactInfo{}

	if m := emailRe.FindString(text); m != "" {
		contact.Email = m
	}

	for _, re := range phoneRes {
		if m := re.FindString(text); m != "" {
			contact.Phone = strings.TrimSpace(m)
			break
		}
	}

	if m := linkedinRe.FindStringSubmatch(text); m != nil {
		contact.LinkedIn = "linkedin.com/in/" + m[1]
	}

	if m := githubRe.FindStringSubmatch(text); m != nil {
		contact.GitHub = "github.com/" + m[1]
	}

	for _, m := range websiteRe.FindAllStringSubmatch(text, -1) {
		domain := strings.ToLower(m[1])
		if !excludedWebsiteDomains[domain] {
			contact.Website = m[1]
			break
		}
	}

	return contact
}
