// Package enrich 为文档生成关键词、摘要与向量。
package enrich

import (
	"math"
	"sort"

	"note-search-go/internal/model"
)

// SentenceGap 记录一个句子以及它没有覆盖到的短语权重大小，Gap 越小句子越有代表性。
type SentenceGap struct {
	Sentence model.Sentence
	Gap      float64
}

// Summarizer 按短语覆盖度挑选最有代表性的句子。
type Summarizer struct {
	limitPhrases   int
	limitSentences int
}

// NewSummarizer 创建一个摘要器，limitPhrases 为参与计算的短语数 K，limitSentences 为输出句数 M。
func NewSummarizer(limitPhrases, limitSentences int) *Summarizer {
	return &Summarizer{limitPhrases: limitPhrases, limitSentences: limitSentences}
}

// Summarize 返回 gap 最小的前 M 个句子原文，顺序为代表性顺序而非行文顺序。
func (s *Summarizer) Summarize(phrases []model.Phrase, sentences []model.Sentence) []string {
	ranked := s.Score(phrases, sentences)
	n := min(s.limitSentences, len(ranked))
	summary := make([]string, 0, n)
	for _, sg := range ranked[:n] {
		summary = append(summary, sg.Sentence.Text)
	}
	return summary
}

// Score 计算每个句子的 gap 并按 gap 升序稳定排序，gap 相同的句子保持原文顺序。
func (s *Summarizer) Score(phrases []model.Phrase, sentences []model.Sentence) []SentenceGap {
	top := phrases
	if len(top) > s.limitPhrases {
		top = top[:s.limitPhrases]
	}
	unit := normalizeRanks(top)

	covered := make([][]bool, len(sentences))
	for j := range covered {
		covered[j] = make([]bool, len(top))
	}
	for i, sentenceIDs := range Attribute(top, sentences) {
		for _, j := range sentenceIDs {
			covered[j][i] = true
		}
	}

	gaps := make([]SentenceGap, len(sentences))
	for j, sent := range sentences {
		var sumSq float64
		for i, u := range unit {
			if !covered[j][i] {
				sumSq += u * u
			}
		}
		gaps[j] = SentenceGap{Sentence: sent, Gap: math.Sqrt(sumSq)}
	}

	sort.SliceStable(gaps, func(a, b int) bool { return gaps[a].Gap < gaps[b].Gap })
	return gaps
}

// Attribute 返回每个短语出现过的句子位置。
// 短语的每一次出现只归属于第一个完整包含它的句子，落在句子边界之外的出现被忽略。
func Attribute(phrases []model.Phrase, sentences []model.Sentence) [][]int {
	membership := make([][]int, len(phrases))
	for i, p := range phrases {
		for _, span := range p.Spans {
			for j, sent := range sentences {
				if !sent.Contains(span) {
					continue
				}
				if !containsInt(membership[i], j) {
					membership[i] = append(membership[i], j)
				}
				break
			}
		}
	}
	return membership
}

// normalizeRanks 把排名归一化为和为 1 的单位权重；总和为 0 时返回 nil，所有句子的 gap 因而都为 0。
func normalizeRanks(phrases []model.Phrase) []float64 {
	var sum float64
	for _, p := range phrases {
		sum += p.Rank
	}
	if sum <= 0 {
		return nil
	}
	unit := make([]float64, len(phrases))
	for i, p := range phrases {
		unit[i] = p.Rank / sum
	}
	return unit
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
