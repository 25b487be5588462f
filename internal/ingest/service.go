package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikashojha7762/resume-screening-system/internal/embedding"
	"github.com/vikashojha7762/resume-screening-system/internal/extractor"
	"github.com/vikashojha7762/resume-screening-system/internal/logger"
	"github.com/vikashojha7762/resume-screening-system/internal/tracing"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// ObjectStore 简历原件的对象存储，可选依赖
type ObjectStore interface {
	UploadResumeBytes(ctx context.Context, candidateID, fileExt string, data []byte) (string, string, error)
}

// CandidateStore 候选人画像的持久化存储，可选依赖
type CandidateStore interface {
	SaveCandidate(ctx context.Context, profile *types.CandidateProfile, resumeObjectKey, rawTextMD5 string) error
}

// Service 简历摄入服务：原件归档、文本抽取、画像向量化和落库。
// 抽取失败不是错误，产出LowConfidence画像继续后续流程。
type Service struct {
	extractor *extractor.ProfileExtractor
	embedder  embedding.Provider
	objects   ObjectStore
	store     CandidateStore
	tracer    trace.Tracer
}

// Option 摄入服务可选配置
type Option func(*Service)

// WithObjectStore 启用简历原件归档
func WithObjectStore(objects ObjectStore) Option {
	return func(s *Service) { s.objects = objects }
}

// WithCandidateStore 启用候选人画像落库
func WithCandidateStore(store CandidateStore) Option {
	return func(s *Service) { s.store = store }
}

// NewService 创建简历摄入服务
func NewService(profileExtractor *extractor.ProfileExtractor, embedder embedding.Provider, opts ...Option) *Service {
	s := &Service{
		extractor: profileExtractor,
		embedder:  embedder,
		tracer:    otel.Tracer("internal/ingest"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestResume 摄入一份简历：归档原件、抽取画像、向量化、落库。
// jobSkills 作为技能抽取的回退词表，可为空。
func (s *Service) IngestResume(ctx context.Context, candidateID string, data []byte, format string, jobSkills []string) (*types.CandidateProfile, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.IngestResume", trace.WithAttributes(
		attribute.String("candidate.id", candidateID),
		attribute.String("document.format", format),
		attribute.Int("document.size", len(data)),
	))
	defer span.End()

	if candidateID == "" {
		err := fmt.Errorf("候选人ID不能为空")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(data) == 0 {
		err := fmt.Errorf("简历内容为空: %s", candidateID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var objectKey, rawTextMD5 string
	if s.objects != nil {
		key, md5sum, err := s.objects.UploadResumeBytes(ctx, candidateID, "."+strings.TrimPrefix(format, "."), data)
		if err != nil {
			// 归档失败不阻断抽取，后续可以重传
			logger.Ctx(ctx).Warn().Err(err).Str("candidate_id", candidateID).Msg("简历原件归档失败")
		} else {
			objectKey = key
			rawTextMD5 = md5sum
		}
	}

	profile, err := s.extractor.ExtractProfile(ctx, candidateID, data, format, jobSkills)
	if err != nil {
		if !errors.Is(err, extractor.ErrNoTextExtracted) && !errors.Is(err, extractor.ErrUnsupportedFormat) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		// 抽取失败产出LowConfidence画像，候选人以零分参与匹配而不是消失
		logger.Ctx(ctx).Warn().Err(err).Str("candidate_id", candidateID).Msg("文本抽取失败，生成低置信度画像")
		profile = &types.CandidateProfile{
			CandidateID:   candidateID,
			Skills:        []types.Skill{},
			Positions:     []types.Position{},
			Education:     []types.Education{},
			LowConfidence: true,
		}
	}
	span.SetAttributes(attribute.Bool("profile.low_confidence", profile.LowConfidence))
	logger.Ctx(ctx).Debug().
		Str("candidate_id", candidateID).
		Str("contact_email", tracing.MaskPII(profile.Contact.Email)).
		Int("skill_count", len(profile.Skills)).
		Msg("候选人画像构建完成")

	if s.embedder != nil && !profile.LowConfidence && strings.TrimSpace(profile.RawText) != "" {
		vector, err := s.embedder.Embed(ctx, profile.RawText)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("candidate_id", candidateID).Msg("画像向量化失败，语义匹配将降级")
		} else {
			profile.Embedding = vector
		}
	}

	if s.store != nil {
		if err := s.store.SaveCandidate(ctx, profile, objectKey, rawTextMD5); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("candidate_id", candidateID).Msg("候选人画像落库失败")
		}
	}

	span.SetStatus(codes.Ok, "")
	return profile, nil
}

// IngestFile 从本地文件摄入简历，文件名(不含扩展名)作为候选人ID
func (s *Service) IngestFile(ctx context.Context, path string, jobSkills []string) (*types.CandidateProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取简历文件失败: %w", err)
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	candidateID := strings.TrimSuffix(base, ext)
	format := strings.TrimPrefix(strings.ToLower(ext), ".")
	if format == "" {
		format = "txt"
	}

	return s.IngestResume(ctx, candidateID, data, format, jobSkills)
}

// IngestDirectory 摄入目录下所有受支持的简历文件，按文件名排序保证顺序稳定。
// 单个文件失败只记录日志，不中断整批。
func (s *Service) IngestDirectory(ctx context.Context, dir string, jobSkills []string) ([]*types.CandidateProfile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取简历目录失败: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".txt", ".md":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	profiles := make([]*types.CandidateProfile, 0, len(names))
	for _, name := range names {
		profile, err := s.IngestFile(ctx, filepath.Join(dir, name), jobSkills)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("file", name).Msg("简历摄入失败，跳过")
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}
