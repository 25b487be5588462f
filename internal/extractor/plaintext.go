package extractor

import (
	"context"
	"strings"
	"unicode/utf8"
)

// PlainTextStrategy 处理纯文本简历，按UTF-8解码并丢弃非法字节
type PlainTextStrategy struct{}

var _ TextStrategy = (*PlainTextStrategy)(nil)

// NewPlainTextStrategy 创建纯文本提取策略
func NewPlainTextStrategy() *PlainTextStrategy {
	return &PlainTextStrategy{}
}

// Name 实现 TextStrategy 接口
func (p *PlainTextStrategy) Name() string {
	return "plaintext"
}

// Supports 实现 TextStrategy 接口
func (p *PlainTextStrategy) Supports(format string) bool {
	return format == "txt" || format == "text" || format == "md" || format == ""
}

// Extract 实现 TextStrategy 接口
func (p *PlainTextStrategy) Extract(_ context.Context, data []byte, uri string) (string, map[string]interface{}, error) {
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			b.WriteRune(r)
		}
		data = data[size:]
	}

	text := b.String()
	metadata := map[string]interface{}{
		"source_file_path": uri,
		"text_length":      len(text),
	}
	return text, metadata, nil
}
