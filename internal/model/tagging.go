// Package model 定义了流水线、索引与查询之间传递的数据结构。
package model

// Span 是文档文本中的字节区间 [Start, End)。
type Span struct {
	Start int
	End   int
}

// Contains 判断 other 是否完全落在当前区间内。
func (s Span) Contains(other Span) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// Phrase 是排序模型给出的关键短语，Spans 记录它在文档中的每一次出现。
type Phrase struct {
	Text  string
	Rank  float64
	Spans []Span
}

// Sentence 是文档中的一个句子，Index 从 0 开始按文档顺序编号。
type Sentence struct {
	Index int
	Span
	Text string
}

// RankedText 是短语排序模型的输出：按 Rank 降序排列的短语与覆盖全文的句子边界。
type RankedText struct {
	Phrases   []Phrase
	Sentences []Sentence
}

// TagResult 存储关键词与摘要句的提取结果。
type TagResult struct {
	Keywords []string `json:"keywords"`
	Summary  []string `json:"summary"`
}

// EmbeddingResult 存储文本向量以及生成它的模型。
type EmbeddingResult struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}
