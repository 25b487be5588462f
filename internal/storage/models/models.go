package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Candidate 候选人主表
type Candidate struct {
	CandidateID  string `gorm:"type:char(36);primaryKey"`
	PrimaryName  string `gorm:"type:varchar(255)"`
	PrimaryPhone string `gorm:"type:varchar(50);index:idx_candidates_primary_phone"`
	PrimaryEmail string `gorm:"type:varchar(255);index:idx_candidates_primary_email"`
	// ResumeObjectKey 原始简历文件在对象存储中的键
	ResumeObjectKey string `gorm:"type:varchar(1024)"`
	RawTextMD5      string `gorm:"type:char(32);index:idx_candidates_raw_text_md5"`
	// ProfileJSON 抽取后的结构化画像快照
	ProfileJSON datatypes.JSON `gorm:"type:json"`
	// LowConfidence 文本抽取失败的候选人标记
	LowConfidence bool      `gorm:"default:false"`
	CreatedAt     time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt     time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// Job 岗位信息表
type Job struct {
	JobID              string         `gorm:"type:char(36);primaryKey"`
	JobTitle           string         `gorm:"type:varchar(255);not null"`
	JobDescriptionText string         `gorm:"type:text"`
	// RequirementsJSON 结构化岗位要求（技能/年限/学历/硬性条件）
	RequirementsJSON datatypes.JSON `gorm:"type:json"`
	Status           string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jobs_status"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// MatchResult 岗位-候选人匹配结果表，(job_id, candidate_id) 唯一，重复评分时覆盖
type MatchResult struct {
	MatchID     uint64 `gorm:"primaryKey;autoIncrement"`
	JobID       string `gorm:"type:char(36);not null;uniqueIndex:idx_mr_job_candidate,priority:1;index:idx_mr_job_overall,priority:1"`
	CandidateID string `gorm:"type:char(36);not null;uniqueIndex:idx_mr_job_candidate,priority:2"`

	OverallScore    float64 `gorm:"type:double;not null;index:idx_mr_job_overall,priority:2"`
	SkillScore      float64 `gorm:"type:double"`
	ExperienceScore float64 `gorm:"type:double"`
	SemanticScore   float64 `gorm:"type:double"`

	MatchedSkillsJSON datatypes.JSON `gorm:"type:json"`
	MissingSkillsJSON datatypes.JSON `gorm:"type:json"`

	MandatoryMet  bool   `gorm:"not null;default:true"`
	LowConfidence bool   `gorm:"not null;default:false"`
	Explanation   string `gorm:"type:text"`
	// Rank 本次排序运行中的名次 (1..N)
	Rank     int    `gorm:"type:int"`
	Strategy string `gorm:"type:varchar(50)"`

	ScoredAt  time.Time `gorm:"type:datetime(6);index:idx_mr_scored_at"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (MatchResult) TableName() string {
	return "match_results"
}

// ToJSON 把任意可序列化值转换为 datatypes.JSON 列值
func ToJSON(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化为JSON列失败: %w", err)
	}
	return datatypes.JSON(data), nil
}

// StringsToJSON 字符串切片转JSON列，nil切片存为空数组
func StringsToJSON(values []string) (datatypes.JSON, error) {
	if values == nil {
		values = []string{}
	}
	return ToJSON(values)
}

// StringsFromJSON JSON列还原为字符串切片
func StringsFromJSON(data datatypes.JSON) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("反序列化JSON列失败: %w", err)
	}
	return values, nil
}
