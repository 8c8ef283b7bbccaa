package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// TextExtractor 从原始文件中提取纯文本，name 用于推断文件类型。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, name string) (string, error)
}

var plainTextExt = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// IsPlainText 判断文件是否可以不经 Tika 直接读取。
func IsPlainText(name string) bool {
	return plainTextExt[strings.ToLower(filepath.Ext(name))]
}

// RoutingExtractor 直接读取纯文本文件，其余格式交给 fallback（通常是 Tika）。
type RoutingExtractor struct {
	fallback TextExtractor
}

// NewRoutingExtractor 创建一个新的 RoutingExtractor，fallback 为 nil 时只支持纯文本。
func NewRoutingExtractor(fallback TextExtractor) *RoutingExtractor {
	return &RoutingExtractor{fallback: fallback}
}

// ExtractText 实现 TextExtractor。
func (e *RoutingExtractor) ExtractText(ctx context.Context, r io.Reader, name string) (string, error) {
	if IsPlainText(name) {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("读取文件失败: %w", err)
		}
		return string(data), nil
	}
	if e.fallback == nil {
		return "", fmt.Errorf("不支持的文件类型: %s", filepath.Ext(name))
	}
	return e.fallback.ExtractText(ctx, r, name)
}
