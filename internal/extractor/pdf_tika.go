package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// 各格式对应的Content-Type，Tika按此选择解析器
var tikaContentTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// TikaStrategy 基于Apache Tika服务器的文本提取策略。
// Tika内置OCR能力，作为扫描件PDF和图片简历的兜底策略，
// 同时承担 doc/docx 的原生解析。
type TikaStrategy struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	// OCR语言，传给Tesseract
	ocrLanguage string
	// 是否提取精简元数据
	extractMinimalMetadata bool
	// 日志记录
	logger *log.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaStrategy)

// WithTikaOCRLanguage 配置OCR识别语言
func WithTikaOCRLanguage(lang string) TikaOption {
	return func(e *TikaStrategy) {
		e.ocrLanguage = lang
	}
}

// WithTikaMinimalMetadata 配置是否提取精简的关键元数据
func WithTikaMinimalMetadata(extract bool) TikaOption {
	return func(e *TikaStrategy) {
		e.extractMinimalMetadata = extract
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(e *TikaStrategy) {
		e.logger = logger
	}
}

// WithTikaTimeout 配置HTTP客户端超时时间
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaStrategy) {
		e.Client.Timeout = timeout
	}
}

var _ TextStrategy = (*TikaStrategy)(nil)

// NewTikaStrategy 创建一个新的Tika文本提取策略
func NewTikaStrategy(serverURL string, options ...TikaOption) *TikaStrategy {
	client := &http.Client{
		Timeout: 60 * time.Second, // OCR较慢，默认60秒超时
	}

	s := &TikaStrategy{
		ServerURL:              serverURL,
		Client:                 client,
		ocrLanguage:            "eng",
		extractMinimalMetadata: true,
		logger:                 log.New(os.Stderr, "[TikaOCR] ", log.LstdFlags),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Name 实现 TextStrategy 接口
func (e *TikaStrategy) Name() string {
	return "tika_ocr"
}

// Supports 实现 TextStrategy 接口
func (e *TikaStrategy) Supports(format string) bool {
	_, ok := tikaContentTypes[format]
	return ok
}

// Extract 将文档字节发送到Tika服务器提取纯文本
func (e *TikaStrategy) Extract(ctx context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()
	e.logger.Printf("开始通过Tika提取文本 (URI: %s)", uri)

	baseMetadata := map[string]interface{}{
		"extraction_time":  time.Now().Format(time.RFC3339),
		"source_file_path": uri,
	}

	url := fmt.Sprintf("%s/tika", e.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", baseMetadata, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Content-Type", e.contentTypeFor(uri))
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("X-Tika-OCRLanguage", e.ocrLanguage)
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", baseMetadata, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", baseMetadata, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", baseMetadata, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	text := string(textBytes)
	baseMetadata["text_length"] = len(text)
	baseMetadata["processing_duration_ms"] = time.Since(startTime).Milliseconds()

	if e.extractMinimalMetadata {
		metadataStartTime := time.Now()
		rawMetadata, err := e.extractMetadata(ctx, data, uri)
		if err == nil {
			for k, v := range rawMetadata {
				if isImportantMetadata(k) {
					baseMetadata[k] = v
				}
			}
		} else {
			e.logger.Printf("元数据提取失败: %v, 继续使用基本元数据", err)
		}
		baseMetadata["metadata_processing_ms"] = time.Since(metadataStartTime).Milliseconds()
	}

	e.logger.Printf("Tika提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(text), time.Since(startTime).Seconds())
	return text, baseMetadata, nil
}

// contentTypeFor 根据URI扩展名推断Content-Type，默认按PDF处理
func (e *TikaStrategy) contentTypeFor(uri string) string {
	for ext, ct := range tikaContentTypes {
		if len(uri) > len(ext)+1 && uri[len(uri)-len(ext)-1:] == "."+ext {
			return ct
		}
	}
	return "application/pdf"
}

// extractMetadata 提取文档元数据
func (e *TikaStrategy) extractMetadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/meta", e.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	req.Header.Set("Content-Type", e.contentTypeFor(uri))
	req.Header.Set("Accept", "application/json")
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	metadataBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}

	return metadata, nil
}

// 判断元数据字段是否重要
func isImportantMetadata(key string) bool {
	importantKeys := map[string]bool{
		"pdf:PDFVersion":                true,
		"xmpTPg:NPages":                 true,
		"dcterms:created":               true,
		"language":                      true,
		"pdf:charsPerPage":              true,
		"dc:title":                      true,
		"Content-Type":                  true,
		"pdf:docinfo:title":             true,
		"pdf:docinfo:created":           true,
		"pdf:totalUnmappedUnicodeChars": true,
	}
	return importantKeys[key]
}
