package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFStrategy 使用 Eino PDF Parser 提取原生文本层，
// 是PDF文档的首选策略，仅当PDF为扫描件时才需要回退到OCR。
type EinoPDFStrategy struct {
	parser  *pdf.PDFParser
	timeout time.Duration
	logger  *log.Logger
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFStrategy)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFStrategy) {
		e.logger = logger
	}
}

// WithEinoTimeout 配置单次解析的超时时间
func WithEinoTimeout(timeout time.Duration) EinoPDFOption {
	return func(e *EinoPDFStrategy) {
		e.timeout = timeout
	}
}

var _ TextStrategy = (*EinoPDFStrategy)(nil)

// NewEinoPDFStrategy 初始化 Eino PDF 文本提取策略。
// 默认配置为不按页面分割，以获取整个文档的连续文本。
func NewEinoPDFStrategy(ctx context.Context, options ...EinoPDFOption) (*EinoPDFStrategy, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false, // 整个PDF的文本作为单个字符串返回
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Eino PDF parser 失败: %w", err)
	}

	s := &EinoPDFStrategy{
		parser:  p,
		timeout: 30 * time.Second,
		logger:  log.New(os.Stderr, "[PDF解析器] ", log.LstdFlags),
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Name 实现 TextStrategy 接口
func (e *EinoPDFStrategy) Name() string {
	return "eino_pdf"
}

// Supports 实现 TextStrategy 接口，仅处理PDF
func (e *EinoPDFStrategy) Supports(format string) bool {
	return format == "pdf"
}

// Extract 从PDF字节中提取完整的纯文本内容和元数据
func (e *EinoPDFStrategy) Extract(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	e.logger.Printf("开始提取PDF文本 (URI: %s, %.2f MB)", uri, float64(len(data))/1024/1024)

	extraMeta := map[string]interface{}{
		"source_file_path": uri,
		"extraction_time":  time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(extraMeta),
	)

	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("PDF提取失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", extraMeta, fmt.Errorf("eino PDF parser 解析 %s 失败: %w", uri, err)
	}
	if len(docs) == 0 {
		e.logger.Printf("PDF解析无结果 (用时 %.2f秒)", duration.Seconds())
		return "", extraMeta, fmt.Errorf("eino PDF parser 未返回任何文档 (URI: %s)", uri)
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var fullContent string
	for i, doc := range docs {
		fullContent += doc.Content
		if i < len(docs)-1 {
			fullContent += "\n\n"
		}
	}

	metadata := make(map[string]interface{})
	if docs[0].MetaData != nil {
		metadata = docs[0].MetaData
	}
	for k, v := range extraMeta {
		metadata[k] = v
	}
	metadata["processing_duration_ms"] = duration.Milliseconds()
	metadata["document_count"] = len(docs)
	metadata["text_length"] = len(fullContent)

	e.logger.Printf("PDF提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(fullContent), duration.Seconds())
	return fullContent, metadata, nil
}
