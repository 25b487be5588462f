package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vikashojha7762/resume-screening-system/internal/config"
	"github.com/vikashojha7762/resume-screening-system/internal/storage/models"
	"github.com/vikashojha7762/resume-screening-system/internal/tracing"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

var mysqlTracer = otel.Tracer("internal/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 未命中记录是业务逻辑的正常分支，不作为错误上报
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 提供匹配结果和候选人/岗位数据的持久化
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	tracingPlugin := NewGormTracingPlugin(cfg.Database)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.Candidate{},
		&models.Job{},
		&models.MatchResult{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// UpsertMatchResults 批量写入匹配结果。同一 (job_id, candidate_id) 的旧记录被覆盖，
// 重复评分不会产生重复行。
func (m *MySQL) UpsertMatchResults(ctx context.Context, jobID string, strategy string, candidates []types.RankedCandidate) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpsertMatchResults",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.operation", "INSERT_ON_DUPLICATE"),
		attribute.String("db.sql.table", "match_results"),
		attribute.String("job.id", jobID),
		attribute.Int("batch.size", len(candidates)),
	)

	if len(candidates) == 0 {
		span.SetStatus(codes.Ok, "no results to upsert")
		return nil
	}

	now := time.Now()
	records := make([]models.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		record, err := matchResultRecord(jobID, strategy, &c, now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		records = append(records, *record)
	}

	err := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "job_id"}, {Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_score", "skill_score", "experience_score", "semantic_score",
				"matched_skills_json", "missing_skills_json",
				"mandatory_met", "low_confidence", "explanation", "rank", "strategy", "scored_at",
			}),
		}).Create(&records).Error

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("写入匹配结果失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListMatchResultsForJob 按总分降序返回岗位的全部匹配结果
func (m *MySQL) ListMatchResultsForJob(ctx context.Context, jobID string) ([]*types.MatchScore, error) {
	var records []models.MatchResult
	err := m.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("overall_score DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询岗位匹配结果失败: %w", err)
	}

	scores := make([]*types.MatchScore, 0, len(records))
	for i := range records {
		score, err := matchScoreFromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, nil
}

// SaveCandidate 保存候选人及其画像快照，已存在时覆盖画像字段
func (m *MySQL) SaveCandidate(ctx context.Context, profile *types.CandidateProfile, resumeObjectKey, rawTextMD5 string) error {
	if profile == nil || profile.CandidateID == "" {
		return fmt.Errorf("候选人画像或ID不能为空")
	}

	profileJSON, err := models.ToJSON(profile)
	if err != nil {
		return err
	}

	record := models.Candidate{
		CandidateID:     profile.CandidateID,
		PrimaryEmail:    profile.Contact.Email,
		PrimaryPhone:    profile.Contact.Phone,
		ResumeObjectKey: resumeObjectKey,
		RawTextMD5:      rawTextMD5,
		ProfileJSON:     profileJSON,
		LowConfidence:   profile.LowConfidence,
	}

	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"primary_email", "primary_phone", "resume_object_key",
				"raw_text_md5", "profile_json", "low_confidence",
			}),
		}).Create(&record).Error
}

// GetCandidateProfile 读取候选人画像快照
func (m *MySQL) GetCandidateProfile(ctx context.Context, candidateID string) (*types.CandidateProfile, error) {
	var record models.Candidate
	err := m.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		First(&record).Error
	if err != nil {
		return nil, err
	}

	if len(record.ProfileJSON) == 0 {
		return nil, fmt.Errorf("候选人 %s 没有画像快照", candidateID)
	}
	var profile types.CandidateProfile
	if err := json.Unmarshal(record.ProfileJSON, &profile); err != nil {
		return nil, fmt.Errorf("反序列化候选人画像失败: %w", err)
	}
	return &profile, nil
}

// SaveJob 保存岗位及结构化要求，已存在时覆盖
func (m *MySQL) SaveJob(ctx context.Context, req *types.JobRequirements) error {
	if req == nil || req.JobID == "" {
		return fmt.Errorf("岗位要求或ID不能为空")
	}

	requirementsJSON, err := models.ToJSON(req)
	if err != nil {
		return err
	}

	record := models.Job{
		JobID:              req.JobID,
		JobTitle:           req.Title,
		JobDescriptionText: req.Description,
		RequirementsJSON:   requirementsJSON,
	}

	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"job_title", "job_description_text", "requirements_json",
			}),
		}).Create(&record).Error
}

// GetJob 读取岗位的结构化要求
func (m *MySQL) GetJob(ctx context.Context, jobID string) (*types.JobRequirements, error) {
	var record models.Job
	err := m.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		First(&record).Error
	if err != nil {
		return nil, err
	}

	if len(record.RequirementsJSON) == 0 {
		return nil, fmt.Errorf("岗位 %s 没有结构化要求", jobID)
	}
	var req types.JobRequirements
	if err := json.Unmarshal(record.RequirementsJSON, &req); err != nil {
		return nil, fmt.Errorf("反序列化岗位要求失败: %w", err)
	}
	return &req, nil
}

// matchResultRecord 把排序结果条目转换为数据库记录
func matchResultRecord(jobID, strategy string, c *types.RankedCandidate, scoredAt time.Time) (*models.MatchResult, error) {
	matchedJSON, err := models.StringsToJSON(c.MatchedSkills)
	if err != nil {
		return nil, err
	}
	missingJSON, err := models.StringsToJSON(c.MissingSkills)
	if err != nil {
		return nil, err
	}

	return &models.MatchResult{
		JobID:             jobID,
		CandidateID:       c.CandidateID,
		OverallScore:      c.OverallScore,
		SkillScore:        c.ComponentScores.Skills,
		ExperienceScore:   c.ComponentScores.Experience,
		SemanticScore:     c.ComponentScores.Semantic,
		MatchedSkillsJSON: matchedJSON,
		MissingSkillsJSON: missingJSON,
		MandatoryMet:      c.MandatoryMet,
		LowConfidence:     c.LowConfidence,
		Explanation:       c.Explanation,
		Rank:              c.Rank,
		Strategy:          strategy,
		ScoredAt:          scoredAt,
	}, nil
}

// matchScoreFromRecord 把数据库记录还原为匹配分数
func matchScoreFromRecord(record *models.MatchResult) (*types.MatchScore, error) {
	matched, err := models.StringsFromJSON(record.MatchedSkillsJSON)
	if err != nil {
		return nil, err
	}
	missing, err := models.StringsFromJSON(record.MissingSkillsJSON)
	if err != nil {
		return nil, err
	}

	return &types.MatchScore{
		JobID:        record.JobID,
		CandidateID:  record.CandidateID,
		OverallScore: record.OverallScore,
		ComponentScores: types.ComponentScores{
			Skills:     record.SkillScore,
			Experience: record.ExperienceScore,
			Semantic:   record.SemanticScore,
		},
		MatchedSkills: matched,
		MissingSkills: missing,
		MandatoryMet:  record.MandatoryMet,
		LowConfidence: record.LowConfidence,
		Explanation:   record.Explanation,
		Rank:          record.Rank,
	}, nil
}
