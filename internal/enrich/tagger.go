package enrich

import (
	"fmt"
	"strings"

	"note-search-go/internal/model"
)

const (
	// DefaultLimitPhrases 是默认输出的关键词个数。
	DefaultLimitPhrases = 4
	// DefaultLimitSentences 是默认输出的摘要句数。
	DefaultLimitSentences = 3
)

// Ranker 是可替换的短语排序模型：给出按重要度降序的短语以及句子边界。
type Ranker interface {
	Rank(text string) (model.RankedText, error)
}

// TagExtractor 组合 Ranker 与 Summarizer，为一篇文档输出关键词和摘要。
type TagExtractor struct {
	ranker         Ranker
	limitPhrases   int
	limitSentences int
}

// Option 配置 TagExtractor。
type Option func(*TagExtractor)

// WithLimitPhrases 设置关键词个数。
func WithLimitPhrases(n int) Option {
	return func(t *TagExtractor) {
		if n > 0 {
			t.limitPhrases = n
		}
	}
}

// WithLimitSentences 设置摘要句数。
func WithLimitSentences(n int) Option {
	return func(t *TagExtractor) {
		if n > 0 {
			t.limitSentences = n
		}
	}
}

// NewTagExtractor 创建一个新的 TagExtractor 实例。
func NewTagExtractor(ranker Ranker, opts ...Option) *TagExtractor {
	t := &TagExtractor{
		ranker:         ranker,
		limitPhrases:   DefaultLimitPhrases,
		limitSentences: DefaultLimitSentences,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Extract 返回文档的关键词与摘要。空文本直接返回空结果，不调用排序模型。
func (t *TagExtractor) Extract(text string) (model.TagResult, error) {
	result := model.TagResult{Keywords: []string{}, Summary: []string{}}
	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	ranked, err := t.ranker.Rank(text)
	if err != nil {
		return result, fmt.Errorf("短语排序失败: %w", err)
	}

	for _, p := range ranked.Phrases {
		if len(result.Keywords) == t.limitPhrases {
			break
		}
		result.Keywords = append(result.Keywords, p.Text)
	}
	result.Summary = NewSummarizer(t.limitPhrases, t.limitSentences).Summarize(ranked.Phrases, ranked.Sentences)
	return result, nil
}
