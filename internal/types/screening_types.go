package types

import "time"

// SectionType 表示简历章节类型
type SectionType string

const (
	// SectionSummary 个人简介章节
	SectionSummary SectionType = "SUMMARY"
	// SectionExperience 工作经历章节
	SectionExperience SectionType = "EXPERIENCE"
	// SectionEducation 教育经历章节
	SectionEducation SectionType = "EDUCATION"
	// SectionSkills 技能章节
	SectionSkills SectionType = "SKILLS"
	// SectionProjects 项目经历章节
	SectionProjects SectionType = "PROJECTS"
	// SectionCertifications 证书章节
	SectionCertifications SectionType = "CERTIFICATIONS"
)

// SectionMap 记录各章节标题在清洗后文本中出现的行号
type SectionMap map[SectionType][]int

// ContactInfo 联系方式，未识别的字段保持空字符串
type ContactInfo struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Website  string `json:"website,omitempty"`
}

// Skill 单项技能及其抽取置信度
type Skill struct {
	// Name 规范化后的技能名称
	Name string `json:"name"`
	// Confidence 抽取置信度 [0,1]
	Confidence float64 `json:"confidence"`
	// Category 技能分类，如 "recruitment"、"technical"
	Category string `json:"category,omitempty"`
}

// Position 一段工作经历
type Position struct {
	Title   string `json:"title"`
	Company string `json:"company,omitempty"`
	// Start/End 为零值表示未能解析出日期；End 为零值且 Current 为 true 表示在职
	Start         time.Time `json:"start,omitempty"`
	End           time.Time `json:"end,omitempty"`
	Current       bool      `json:"current"`
	DurationYears float64   `json:"duration_years"`
	// IsInternship 实习/学术类经历，不计入总工作年限
	IsInternship bool   `json:"is_internship"`
	Description  string `json:"description,omitempty"`
}

// DegreeLevel 学位等级，数值越大学位越高
type DegreeLevel int

const (
	DegreeUnknown    DegreeLevel = 0
	DegreeDiploma    DegreeLevel = 1
	DegreeAssociates DegreeLevel = 2
	DegreeBachelors  DegreeLevel = 3
	DegreeMasters    DegreeLevel = 4
	DegreePhD        DegreeLevel = 5
)

// String 返回学位等级的可读名称
func (d DegreeLevel) String() string {
	switch d {
	case DegreePhD:
		return "phd"
	case DegreeMasters:
		return "masters"
	case DegreeBachelors:
		return "bachelors"
	case DegreeAssociates:
		return "associates"
	case DegreeDiploma:
		return "diploma"
	default:
		return "unknown"
	}
}

// Education 一条教育经历
type Education struct {
	Degree       string      `json:"degree,omitempty"`
	Level        DegreeLevel `json:"level"`
	Field        string      `json:"field,omitempty"`
	Institution  string      `json:"institution,omitempty"`
	GradYear     int         `json:"graduation_year,omitempty"`
	// GPA 统一换算到4.0制
	GPA float64 `json:"gpa,omitempty"`
}

// CandidateProfile 从简历文本抽取出的结构化候选人画像。
// 画像在抽取时一次性生成，之后除整体重抽取外不再修改。
type CandidateProfile struct {
	CandidateID string      `json:"candidate_id"`
	RawText     string      `json:"raw_text"`
	Sections    SectionMap  `json:"sections,omitempty"`
	Contact     ContactInfo `json:"contact"`
	Skills      []Skill     `json:"skills"`
	Positions   []Position  `json:"positions"`
	// TotalExperienceYears 仅累计职业经历，实习/学术经历不计入
	TotalExperienceYears float64     `json:"total_experience_years"`
	Education            []Education `json:"education"`
	HighestDegree        DegreeLevel `json:"highest_degree"`
	Embedding            []float64   `json:"embedding,omitempty"`
	// LowConfidence 抽取完全失败时置位，画像按零值参与排序而不是被丢弃
	LowConfidence bool `json:"low_confidence"`
}

// HighestDegreeOf 按学位等级序从教育经历中取最高学位
func HighestDegreeOf(educations []Education) DegreeLevel {
	highest := DegreeUnknown
	for _, e := range educations {
		if e.Level > highest {
			highest = e.Level
		}
	}
	return highest
}

// MandatoryRequirements 硬性门槛，任一不满足则总分直接为0
type MandatoryRequirements struct {
	Skills          []string    `json:"skills,omitempty"`
	ExperienceYears float64     `json:"experience_years,omitempty"`
	Degree          DegreeLevel `json:"degree,omitempty"`
}

// JobRequirements 岗位要求
type JobRequirements struct {
	JobID                    string                `json:"job_id"`
	Title                    string                `json:"title,omitempty"`
	Description              string                `json:"description,omitempty"`
	RequiredSkills           []string              `json:"required_skills"`
	PreferredSkills          []string              `json:"preferred_skills,omitempty"`
	RequiredExperienceYears  float64               `json:"required_experience_years"`
	PreferredExperienceYears float64               `json:"preferred_experience_years,omitempty"`
	RequiredDegree           DegreeLevel           `json:"required_degree,omitempty"`
	PreferredInstitutions    []string              `json:"preferred_institutions,omitempty"`
	// InstitutionTiers 院校分层表，院校名 -> 层级(1为最高)
	InstitutionTiers map[string]int        `json:"institution_tiers,omitempty"`
	Mandatory        MandatoryRequirements `json:"mandatory,omitempty"`
	Embedding        []float64             `json:"embedding,omitempty"`
}

// ComponentScores 各维度归一化分数 [0,1]
type ComponentScores struct {
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
	Semantic   float64 `json:"semantic"`
}

// MatchScore 单个(岗位,候选人)对的匹配结果。
// 每次匹配运行重算并按 (job_id, candidate_id) 覆盖写入。
type MatchScore struct {
	JobID       string `json:"job_id"`
	CandidateID string `json:"candidate_id"`
	// OverallScore 总分 [0,100]
	OverallScore    float64         `json:"overall_score"`
	ComponentScores ComponentScores `json:"component_scores"`
	MatchedSkills   []string        `json:"matched_skills"`
	MissingSkills   []string        `json:"missing_skills"`
	// MandatoryMet 硬性要求是否全部满足；为 false 时总分为0，不是错误
	MandatoryMet bool   `json:"mandatory_met"`
	Explanation  string `json:"explanation"`
	// Rank 由排序引擎赋值 (1..N)，评分引擎不自行填写
	Rank int `json:"rank,omitempty"`
	// LowConfidence 对应抽取失败的候选人，分数恒为0
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// CategoryBias 单一类别的偏见检测结果
type CategoryBias struct {
	// Score 偏见强度 [0,1]
	Score    float64  `json:"score"`
	Detected bool     `json:"detected"`
	Evidence []string `json:"evidence,omitempty"`
}

// BiasReport 岗位文本的偏见审计报告，仅随审计事件输出，不落库
type BiasReport struct {
	GenderBias      CategoryBias `json:"gender_bias"`
	AgeBias         CategoryBias `json:"age_bias"`
	InstitutionBias CategoryBias `json:"institution_bias"`
	// OverallBiasScore 三类分数的最大值
	OverallBiasScore float64  `json:"overall_bias_score"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

// RankedCandidate 排序结果中的一个条目
type RankedCandidate struct {
	MatchScore
	// DiversityScore 多样性加分 [0,1]，仅在启用多样性重排时填写
	DiversityScore float64 `json:"diversity_score,omitempty"`
	// AdjustedScore 多样性加权后的排序依据分
	AdjustedScore float64 `json:"adjusted_score,omitempty"`
	// ClusterID 分数聚类编号，从0开始
	ClusterID int `json:"cluster_id"`
	// RecencyScore 最近任职时间分 [0,1]
	RecencyScore float64 `json:"recency_score"`
	// AnonymizedProfile comprehensive策略下附带的脱敏画像
	AnonymizedProfile *CandidateProfile `json:"anonymized_profile,omitempty"`
}

// RankedResult 一次匹配运行的完整排序结果
type RankedResult struct {
	JobID      string            `json:"job_id"`
	Strategy   string            `json:"strategy"`
	Candidates []RankedCandidate `json:"candidates"`
	BiasReport *BiasReport       `json:"bias_report,omitempty"`
	// Partial 超时导致只返回已完成部分时置位
	Partial bool `json:"partial,omitempty"`
	// ScoredCount 实际完成评分的候选人数
	ScoredCount int           `json:"scored_count"`
	Elapsed     time.Duration `json:"elapsed"`
}

// AuditEvent 合规审计事件，经消息队列发往外部审计存储
type AuditEvent struct {
	EventID     string                 `json:"event_id"`
	EventType   string                 `json:"event_type"`
	Timestamp   time.Time              `json:"timestamp"`
	JobID       string                 `json:"job_id"`
	CandidateID string                 `json:"candidate_id,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}
