package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vikashojha7762/resume-screening-system/internal/logger"
	"github.com/vikashojha7762/resume-screening-system/internal/tracing"
)

var (
	// ErrNoTextExtracted 所有提取策略都未能得到可用文本
	ErrNoTextExtracted = errors.New("未能从文档中提取到任何可用文本")
	// ErrUnsupportedFormat 没有任何策略支持该文件格式
	ErrUnsupportedFormat = errors.New("不支持的文件格式")
)

// TextStrategy 一种文本提取策略。
// 策略按优先级依次尝试：前一个策略失败或产出空文本时才轮到下一个，
// 结构化提取排在OCR之前。
type TextStrategy interface {
	// Name 策略名称，用于日志和追踪
	Name() string
	// Supports 是否支持该文件格式（小写扩展名，不含点）
	Supports(format string) bool
	// Extract 从原始字节中提取纯文本和解析器元数据
	Extract(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error)
}

// Chain 按优先级组织的提取策略链
type Chain struct {
	strategies []TextStrategy
	tracer     trace.Tracer
}

// NewChain 创建提取策略链，strategies 的顺序即尝试的优先级
func NewChain(strategies ...TextStrategy) *Chain {
	return &Chain{
		strategies: strategies,
		tracer:     otel.Tracer("internal/extractor"),
	}
}

// Extract 逐个尝试支持该格式的策略，返回第一个非空文本。
// 所有策略都失败时返回 ErrNoTextExtracted。
func (c *Chain) Extract(ctx context.Context, data []byte, format, uri string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "extractor.Chain.Extract", trace.WithAttributes(
		attribute.String("document.format", format),
		attribute.Int("document.size_bytes", len(data)),
	))
	defer span.End()

	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))

	tried := 0
	prev := ""
	for _, s := range c.strategies {
		if !s.Supports(format) {
			continue
		}
		if tried > 0 {
			tracing.RecordExtractionFallback(span, prev, s.Name())
		}
		tried++
		prev = s.Name()

		text, _, err := s.Extract(ctx, data, uri)
		if err != nil {
			logger.Ctx(ctx).Warn().
				Err(err).
				Str("strategy", s.Name()).
				Str("uri", uri).
				Msg("文本提取策略失败，尝试下一个策略")
			continue
		}
		if strings.TrimSpace(text) == "" {
			logger.Ctx(ctx).Warn().
				Str("strategy", s.Name()).
				Str("uri", uri).
				Msg("文本提取策略返回空文本，尝试下一个策略")
			continue
		}

		span.SetAttributes(
			attribute.String("extraction.strategy", s.Name()),
			attribute.Int("extraction.text_length", len(text)),
		)
		return text, nil
	}

	if tried == 0 {
		err := fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		return "", err
	}

	tracing.RecordError(span, ErrNoTextExtracted, tracing.ErrorTypeExtraction)
	return "", ErrNoTextExtracted
}
