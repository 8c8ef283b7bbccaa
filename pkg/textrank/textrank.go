// Package textrank 实现了基于共现图的关键短语排序模型。
//
// 文本先按句切分，再用 bleve 的 standard 分析器（unicode 分词、小写、英文停用词）得到词元。
// 相邻且中间只有空白的非停用词组成候选短语；词元在窗口内的共现关系构成无向图，
// 用 PageRank 计算词的重要度，短语得分为其各词得分的平方和开方，最后归一化到 [0,1]。
package textrank

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/registry"

	"note-search-go/internal/model"
)

const (
	defaultWindow     = 3
	defaultMaxWords   = 3
	defaultDamping    = 0.85
	defaultIterations = 50
	convergence       = 1e-6
)

// 句末标点后接空白，或空行，视为句子边界。
var sentenceBoundary = regexp.MustCompile(`[.!?]+["')\]]*\s+|\n[ \t]*\n\s*`)

// Ranker 是 enrich.Ranker 的默认实现。每次运行独立构造，不共享状态。
type Ranker struct {
	analyzer analysis.Analyzer
	window   int
	maxWords int
}

// New 创建一个新的 Ranker 实例。
func New() (*Ranker, error) {
	cache := registry.NewCache()
	analyzer, err := cache.AnalyzerNamed(standard.Name)
	if err != nil {
		return nil, fmt.Errorf("加载 bleve 分析器失败: %w", err)
	}
	return &Ranker{analyzer: analyzer, window: defaultWindow, maxWords: defaultMaxWords}, nil
}

type occurrence struct {
	key   string
	terms []string
	span  model.Span
}

// Rank 返回按得分降序排列的短语，以及首尾相接覆盖全文的句子。
func (r *Ranker) Rank(text string) (model.RankedText, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return model.RankedText{}, nil
	}

	tokens := r.analyzer.Analyze([]byte(text))
	tokenSentence := assignSentences(tokens, sentences)

	scores := pageRank(buildGraph(tokens, tokenSentence, r.window))
	occurrences := r.candidates(text, tokens, tokenSentence)

	byKey := make(map[string]*model.Phrase)
	var keys []string
	for _, occ := range occurrences {
		a, ok := byKey[occ.key]
		if !ok {
			var sumSq float64
			for _, term := range occ.terms {
				sumSq += scores[term] * scores[term]
			}
			a = &model.Phrase{Text: occ.key, Rank: math.Sqrt(sumSq)}
			byKey[occ.key] = a
			keys = append(keys, occ.key)
		}
		a.Spans = append(a.Spans, occ.span)
	}

	phrases := make([]model.Phrase, 0, len(keys))
	var maxRank float64
	for _, k := range keys {
		phrases = append(phrases, *byKey[k])
		maxRank = math.Max(maxRank, byKey[k].Rank)
	}
	if maxRank > 0 {
		for i := range phrases {
			phrases[i].Rank /= maxRank
		}
	}
	sort.SliceStable(phrases, func(i, j int) bool { return phrases[i].Rank > phrases[j].Rank })

	return model.RankedText{Phrases: phrases, Sentences: sentences}, nil
}

// candidates 把相邻的非停用词组合成不超过 maxWords 个词的候选短语。
func (r *Ranker) candidates(text string, tokens analysis.TokenStream, tokenSentence []int) []occurrence {
	var out []occurrence
	var run []*analysis.Token

	flush := func() {
		if len(run) == 0 {
			return
		}
		terms := make([]string, 0, len(run))
		for _, tok := range run {
			terms = append(terms, string(tok.Term))
		}
		span := model.Span{Start: run[0].Start, End: run[len(run)-1].End}
		out = append(out, occurrence{
			key:   strings.Join(strings.Fields(strings.ToLower(text[span.Start:span.End])), " "),
			terms: terms,
			span:  span,
		})
		run = run[:0]
	}

	for i, tok := range tokens {
		if tokenSentence[i] < 0 {
			flush()
			continue
		}
		if len(run) > 0 {
			prevIdx := i - 1
			prev := tokens[prevIdx]
			adjacent := tok.Position == prev.Position+1 &&
				tokenSentence[i] == tokenSentence[prevIdx] &&
				strings.TrimSpace(text[prev.End:tok.Start]) == ""
			if !adjacent || len(run) == r.maxWords {
				flush()
			}
		}
		run = append(run, tok)
	}
	flush()
	return out
}

// SplitSentences 按句末标点与空行切分文本。返回的句子首尾相接覆盖全文，纯空白片段并入相邻句子。
func SplitSentences(text string) []model.Sentence {
	var sentences []model.Sentence
	start := 0
	cut := func(end int) {
		trimmed := strings.TrimSpace(text[start:end])
		if trimmed == "" {
			if n := len(sentences); n > 0 {
				sentences[n-1].End = end
				start = end
			}
			return
		}
		sentences = append(sentences, model.Sentence{
			Index: len(sentences),
			Span:  model.Span{Start: start, End: end},
			Text:  trimmed,
		})
		start = end
	}
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		cut(loc[1])
	}
	if start < len(text) {
		cut(len(text))
	}
	return sentences
}

// assignSentences 返回每个词元所在的句子位置，词元有序，因此只需单向推进。
func assignSentences(tokens analysis.TokenStream, sentences []model.Sentence) []int {
	out := make([]int, len(tokens))
	j := 0
	for i, tok := range tokens {
		span := model.Span{Start: tok.Start, End: tok.End}
		for j < len(sentences) && sentences[j].End <= tok.Start {
			j++
		}
		if j < len(sentences) && sentences[j].Contains(span) {
			out[i] = j
		} else {
			out[i] = -1
		}
	}
	return out
}

type graph map[string]map[string]float64

// buildGraph 在同一句内、窗口范围内的词元之间连边，边权为共现次数。
func buildGraph(tokens analysis.TokenStream, tokenSentence []int, window int) graph {
	g := make(graph)
	for i, tok := range tokens {
		if tokenSentence[i] < 0 {
			continue
		}
		a := string(tok.Term)
		if _, ok := g[a]; !ok {
			g[a] = make(map[string]float64)
		}
		for j := i + 1; j < len(tokens) && j < i+window; j++ {
			if tokenSentence[j] != tokenSentence[i] {
				break
			}
			b := string(tokens[j].Term)
			if a == b {
				continue
			}
			if _, ok := g[b]; !ok {
				g[b] = make(map[string]float64)
			}
			g[a][b]++
			g[b][a]++
		}
	}
	return g
}

// pageRank 在加权无向图上迭代计算节点得分。节点与邻居按字典序遍历，结果与 map 的迭代顺序无关。
func pageRank(g graph) map[string]float64 {
	nodes := make([]string, 0, len(g))
	for node := range g {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	neighbors := make(map[string][]string, len(g))
	weightSum := make(map[string]float64, len(g))
	scores := make(map[string]float64, len(g))
	for _, node := range nodes {
		for neighbor, w := range g[node] {
			neighbors[node] = append(neighbors[node], neighbor)
			weightSum[node] += w
		}
		sort.Strings(neighbors[node])
		scores[node] = 1
	}

	for iter := 0; iter < defaultIterations; iter++ {
		next := make(map[string]float64, len(g))
		var delta float64
		for _, node := range nodes {
			var sum float64
			for _, neighbor := range neighbors[node] {
				sum += g[node][neighbor] / weightSum[neighbor] * scores[neighbor]
			}
			next[node] = (1 - defaultDamping) + defaultDamping*sum
			delta = math.Max(delta, math.Abs(next[node]-scores[node]))
		}
		scores = next
		if delta < convergence {
			break
		}
	}
	return scores
}
