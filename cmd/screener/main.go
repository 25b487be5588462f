package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/vikashojha7762/resume-screening-system/internal/bias"
	"github.com/vikashojha7762/resume-screening-system/internal/config"
	"github.com/vikashojha7762/resume-screening-system/internal/embedding"
	"github.com/vikashojha7762/resume-screening-system/internal/extractor"
	"github.com/vikashojha7762/resume-screening-system/internal/ingest"
	"github.com/vikashojha7762/resume-screening-system/internal/logger"
	"github.com/vikashojha7762/resume-screening-system/internal/match"
	"github.com/vikashojha7762/resume-screening-system/internal/ranking"
	"github.com/vikashojha7762/resume-screening-system/internal/scoring"
	"github.com/vikashojha7762/resume-screening-system/internal/skills"
	"github.com/vikashojha7762/resume-screening-system/internal/storage"
	"github.com/vikashojha7762/resume-screening-system/internal/tracing"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// jobSpec 岗位要求文件的YAML结构
type jobSpec struct {
	JobID                    string            `yaml:"job_id"`
	Title                    string            `yaml:"title"`
	Description              string            `yaml:"description"`
	RequiredSkills           []string          `yaml:"required_skills"`
	PreferredSkills          []string          `yaml:"preferred_skills"`
	RequiredExperienceYears  float64           `yaml:"required_experience_years"`
	PreferredExperienceYears float64           `yaml:"preferred_experience_years"`
	RequiredDegree           int               `yaml:"required_degree"`
	PreferredInstitutions    []string          `yaml:"preferred_institutions"`
	InstitutionTiers         map[string]int    `yaml:"institution_tiers"`
	Mandatory                struct {
		Skills          []string `yaml:"skills"`
		ExperienceYears float64  `yaml:"experience_years"`
		Degree          int      `yaml:"degree"`
	} `yaml:"mandatory"`
}

func main() {
	var (
		configPath string
		jobPath    string
		resumeDir  string
		strategy   string
		diversity  float64
		biasAudit  bool
		showTop    int
		stored     bool
	)
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.StringVarP(&jobPath, "job", "j", "", "岗位要求YAML文件路径(必填)")
	pflag.StringVarP(&resumeDir, "resumes", "r", "", "简历目录路径(必填，--stored模式下忽略)")
	pflag.StringVarP(&strategy, "strategy", "s", "", "匹配策略: standard, fast, comprehensive")
	pflag.Float64VarP(&diversity, "diversity", "d", -1, "多样性重排权重 [0,1]，-1表示使用配置值")
	pflag.BoolVar(&biasAudit, "bias-audit", true, "是否对岗位描述做偏见审计")
	pflag.IntVarP(&showTop, "top", "n", 20, "输出前N名候选人")
	pflag.BoolVar(&stored, "stored", false, "只读取已持久化的匹配结果，不重新评分")
	pflag.Parse()

	if jobPath == "" || (resumeDir == "" && !stored) {
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	shutdownTracer, err := tracing.InitTracer(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Endpoint:     cfg.Tracing.Endpoint,
		ServiceName:  cfg.Tracing.ServiceName,
		SamplerRatio: cfg.Tracing.SamplerRatio,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("链路追踪初始化失败，继续运行")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracer(shutdownCtx)
		}()
	}

	// 存储后端全部不可用时降级为纯内存运行
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("存储服务不可用，结果不会持久化")
		storageManager = nil
	} else {
		defer storageManager.Close()
	}

	embedder := buildEmbedder(cfg, storageManager)
	if embedder == nil {
		logger.Warn().Msg("未配置向量服务，语义匹配将降级")
	}

	job, err := loadJob(jobPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", jobPath).Msg("加载岗位要求失败")
	}

	if stored {
		if storageManager == nil || storageManager.MySQL == nil {
			logger.Fatal().Msg("--stored 模式需要可用的MySQL存储")
		}
		scores, err := storageManager.MySQL.ListMatchResultsForJob(ctx, job.JobID)
		if err != nil {
			logger.Fatal().Err(err).Str("job_id", job.JobID).Msg("读取持久化匹配结果失败")
		}
		printStoredResults(job.JobID, scores, showTop)
		return
	}

	matcher := skills.NewMatcher()
	profileExtractor := extractor.NewProfileExtractor(buildChain(ctx, cfg), matcher)

	var ingestOpts []ingest.Option
	var matchOpts []match.Option
	if storageManager != nil {
		if storageManager.MinIO != nil {
			ingestOpts = append(ingestOpts, ingest.WithObjectStore(storageManager.MinIO))
		}
		if storageManager.MySQL != nil {
			ingestOpts = append(ingestOpts, ingest.WithCandidateStore(storageManager.MySQL))
			matchOpts = append(matchOpts, match.WithResultStore(storageManager.MySQL))
			if err := storageManager.MySQL.SaveJob(ctx, job); err != nil {
				logger.Warn().Err(err).Msg("岗位要求落库失败")
			}
		}
		if storageManager.Redis != nil {
			matchOpts = append(matchOpts, match.WithScoreCache(storageManager.Redis))
		}
		if storageManager.RabbitMQ != nil {
			matchOpts = append(matchOpts, match.WithAuditPublisher(storageManager.RabbitMQ))
		}
	}

	ingestService := ingest.NewService(profileExtractor, embedder, ingestOpts...)
	profiles, err := ingestService.IngestDirectory(ctx, resumeDir, job.RequiredSkills)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", resumeDir).Msg("简历摄入失败")
	}
	if len(profiles) == 0 {
		logger.Fatal().Str("dir", resumeDir).Msg("目录下没有可摄入的简历")
	}
	logger.Info().Int("count", len(profiles)).Msg("简历摄入完成")

	scorer := scoring.NewScorer(matcher,
		scoring.WithDefaultWeights(scoring.Weights{
			Skills:     cfg.Matching.SkillsWeight,
			Experience: cfg.Matching.ExperienceWeight,
			Semantic:   cfg.Matching.SemanticWeight,
		}),
		scoring.WithSemanticFloor(cfg.Matching.SemanticFloor),
	)

	matchOpts = append(matchOpts,
		match.WithConcurrency(cfg.Matching.Concurrency),
		match.WithBatchTimeout(config.GetDuration(cfg.Matching.BatchTimeout, 60*time.Second)),
		match.WithFastParams(cfg.Matching.FastTopK, cfg.Matching.FastThreshold, 50),
	)
	orchestrator := match.NewOrchestrator(scorer, ranking.NewRanker(), bias.NewAuditor(), embedder, matchOpts...)

	if strategy == "" {
		strategy = cfg.Matching.DefaultStrategy
	}
	diversityWeight := cfg.Matching.DiversityWeight
	if diversity >= 0 {
		diversityWeight = diversity
	}

	result, err := orchestrator.Match(ctx, job, profiles, match.Options{
		Strategy:        strategy,
		DiversityWeight: diversityWeight,
		EnableBiasAudit: biasAudit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("匹配失败")
	}

	printResult(result, showTop)
}

// buildEmbedder 按配置组装向量服务，Redis可用时套上缓存层
func buildEmbedder(cfg *config.Config, storageManager *storage.Storage) embedding.Provider {
	if cfg.Embedding.APIKey == "" {
		return nil
	}
	provider, err := embedding.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化向量服务失败，语义匹配将降级")
		return nil
	}
	if storageManager != nil && storageManager.Redis != nil {
		return embedding.NewCachedProvider(provider, storageManager.Redis)
	}
	return provider
}

// buildChain 组装文本提取策略链: eino PDF → Tika OCR回退 → 纯文本
func buildChain(ctx context.Context, cfg *config.Config) *extractor.Chain {
	var strategies []extractor.TextStrategy

	einoStrategy, err := extractor.NewEinoPDFStrategy(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化eino PDF提取器失败")
	} else {
		strategies = append(strategies, einoStrategy)
	}

	if cfg.Tika.ServerURL != "" {
		tikaOpts := []extractor.TikaOption{
			extractor.WithTikaTimeout(time.Duration(cfg.Tika.Timeout) * time.Second),
		}
		if cfg.Tika.OCRLanguage != "" {
			tikaOpts = append(tikaOpts, extractor.WithTikaOCRLanguage(cfg.Tika.OCRLanguage))
		}
		strategies = append(strategies, extractor.NewTikaStrategy(cfg.Tika.ServerURL, tikaOpts...))
	}

	strategies = append(strategies, extractor.NewPlainTextStrategy())
	return extractor.NewChain(strategies...)
}

func loadJob(path string) (*types.JobRequirements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取岗位要求文件失败: %w", err)
	}
	var spec jobSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("解析岗位要求文件失败: %w", err)
	}
	if spec.JobID == "" {
		return nil, fmt.Errorf("岗位要求缺少job_id")
	}
	return &types.JobRequirements{
		JobID:                    spec.JobID,
		Title:                    spec.Title,
		Description:              spec.Description,
		RequiredSkills:           spec.RequiredSkills,
		PreferredSkills:          spec.PreferredSkills,
		RequiredExperienceYears:  spec.RequiredExperienceYears,
		PreferredExperienceYears: spec.PreferredExperienceYears,
		RequiredDegree:           types.DegreeLevel(spec.RequiredDegree),
		PreferredInstitutions:    spec.PreferredInstitutions,
		InstitutionTiers:         spec.InstitutionTiers,
		Mandatory: types.MandatoryRequirements{
			Skills:          spec.Mandatory.Skills,
			ExperienceYears: spec.Mandatory.ExperienceYears,
			Degree:          types.DegreeLevel(spec.Mandatory.Degree),
		},
	}, nil
}

// printStoredResults 打印已落库的匹配结果，按总分降序
func printStoredResults(jobID string, scores []*types.MatchScore, showTop int) {
	if len(scores) == 0 {
		fmt.Printf("岗位 %s 没有已持久化的匹配结果\n", jobID)
		return
	}
	fmt.Printf("岗位 %s 已持久化匹配结果: %d人\n\n", jobID, len(scores))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "排名\t候选人\t总分\t技能\t经验\t语义\t硬性要求\t匹配技能")
	for i, s := range scores {
		if i >= showTop {
			break
		}
		mandatory := "满足"
		if !s.MandatoryMet {
			mandatory = "不满足"
		}
		if s.LowConfidence {
			mandatory = "待人工审核"
		}
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			s.Rank, s.CandidateID, s.OverallScore,
			s.ComponentScores.Skills, s.ComponentScores.Experience, s.ComponentScores.Semantic,
			mandatory, strings.Join(s.MatchedSkills, ", "))
	}
	w.Flush()
}

func printResult(result *types.RankedResult, showTop int) {
	fmt.Printf("岗位 %s 匹配完成: 策略=%s 评分=%d人 耗时=%s\n",
		result.JobID, result.Strategy, result.ScoredCount, result.Elapsed.Round(time.Millisecond))
	if result.Partial {
		fmt.Println("注意: 本次运行超时，以下为已完成的部分结果")
	}

	if result.BiasReport != nil {
		fmt.Printf("\n岗位描述偏见审计: 总分=%.2f (性别=%.2f 年龄=%.2f 院校=%.2f)\n",
			result.BiasReport.OverallBiasScore,
			result.BiasReport.GenderBias.Score,
			result.BiasReport.AgeBias.Score,
			result.BiasReport.InstitutionBias.Score)
		for _, rec := range result.BiasReport.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "排名\t候选人\t总分\t技能\t经验\t语义\t硬性要求\t匹配技能")
	for i, c := range result.Candidates {
		if i >= showTop {
			break
		}
		mandatory := "满足"
		if !c.MandatoryMet {
			mandatory = "不满足"
		}
		if c.LowConfidence {
			mandatory = "待人工审核"
		}
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			c.Rank, c.CandidateID, c.OverallScore,
			c.ComponentScores.Skills, c.ComponentScores.Experience, c.ComponentScores.Semantic,
			mandatory, strings.Join(c.MatchedSkills, ", "))
	}
	w.Flush()
}
