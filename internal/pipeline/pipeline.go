// Package pipeline 定义了从原始条目到索引记录的处理流程：提取文本、打标签、可选的向量化。
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"iter"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"note-search-go/internal/config"
	"note-search-go/internal/model"
	"note-search-go/pkg/log"
	"note-search-go/pkg/metrics"
)

// Tagger 为文本生成关键词与摘要。
type Tagger interface {
	Extract(text string) (model.TagResult, error)
}

// Embedder 为文本生成向量。
type Embedder interface {
	Extract(ctx context.Context, text string) (model.EmbeddingResult, error)
}

// Stats 记录一次处理过程中各类结果的条目数。
type Stats struct {
	Produced int
	Empty    int
	Failed   int
}

// Pipeline 把条目逐个加工成某种索引结构的记录。
type Pipeline struct {
	schema    string
	index     string
	extractor TextExtractor
	tagger    Tagger
	embedder  Embedder
	stats     Stats
}

// Option 用于定制 Pipeline。
type Option func(*Pipeline)

// WithEmbedder 为文献记录计算向量，不设置时不写 embedding 字段。
func WithEmbedder(e Embedder) Option {
	return func(p *Pipeline) { p.embedder = e }
}

// New 创建一个新的 Pipeline 实例，schema 必须是 config.SchemaNotes 或 config.SchemaArticles。
func New(schema, index string, extractor TextExtractor, tagger Tagger, opts ...Option) (*Pipeline, error) {
	if schema != config.SchemaNotes && schema != config.SchemaArticles {
		return nil, fmt.Errorf("%w: 未知的索引结构 %q", config.ErrInvalid, schema)
	}
	p := &Pipeline{schema: schema, index: index, extractor: extractor, tagger: tagger}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Stats 返回到目前为止的处理统计。
func (p *Pipeline) Stats() Stats {
	return p.stats
}

// Process 惰性地处理条目：每拉取一条记录才向来源索取下一个条目。
// 单个条目的失败只记录并跳过；来源返回的错误或 ctx 取消会作为最后一个元素产出，随后序列结束。
func (p *Pipeline) Process(ctx context.Context, items iter.Seq2[Item, error]) iter.Seq2[model.IndexRecord, error] {
	return func(yield func(model.IndexRecord, error) bool) {
		for item, err := range items {
			if err != nil {
				log.Errorf("[Pipeline] 读取来源失败: %v", err)
				yield(model.IndexRecord{}, err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(model.IndexRecord{}, err)
				return
			}

			rec, ok := p.processItem(ctx, item)
			if !ok {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (p *Pipeline) processItem(ctx context.Context, item Item) (model.IndexRecord, bool) {
	id := item.Identifier()

	text, err := p.text(ctx, item)
	if err != nil {
		log.Warnf("[Pipeline] 提取文本失败, 跳过: %s, error: %v", id, err)
		p.count("failed_extract")
		return model.IndexRecord{}, false
	}
	if strings.TrimSpace(text) == "" {
		log.Infof("[Pipeline] 内容为空, 跳过: %s", id)
		p.count("skipped_empty")
		return model.IndexRecord{}, false
	}
	log.Debugf("[Pipeline] 文本提取成功: %s, 长度: %d 字符", id, utf8.RuneCountInString(text))

	tags, err := p.tagger.Extract(text)
	if err != nil {
		log.Warnf("[Pipeline] 提取关键词失败, 跳过: %s, error: %v", id, err)
		p.count("failed_enrich")
		return model.IndexRecord{}, false
	}

	var rec model.IndexRecord
	switch p.schema {
	case config.SchemaNotes:
		rec = p.noteRecord(item, text, tags)
	case config.SchemaArticles:
		rec, err = p.articleRecord(ctx, item, text, tags)
		if err != nil {
			log.Warnf("[Pipeline] 生成向量失败, 跳过: %s, error: %v", id, err)
			p.count("failed_enrich")
			return model.IndexRecord{}, false
		}
	}
	p.count("produced")
	return rec, true
}

func (p *Pipeline) text(ctx context.Context, item Item) (string, error) {
	if item.Open == nil {
		return item.Text, nil
	}
	r, err := item.Open(ctx)
	if err != nil {
		return "", err
	}
	defer r.Close()
	return p.extractor.ExtractText(ctx, r, path.Base(filepath.ToSlash(item.Path)))
}

func (p *Pipeline) noteRecord(item Item, text string, tags model.TagResult) model.IndexRecord {
	return model.IndexRecord{
		Index: p.index,
		ID:    documentID(item),
		Source: model.NoteDocument{
			Name:     NoteName(item.Path),
			Path:     item.Path,
			Topic:    item.Topic,
			Keywords: tags.Keywords,
			Summary:  tags.Summary,
			Content:  text,
		},
	}
}

func (p *Pipeline) articleRecord(ctx context.Context, item Item, text string, tags model.TagResult) (model.IndexRecord, error) {
	title := item.Title
	if title == "" {
		title = NoteName(item.Path)
	}
	doc := model.ArticleDocument{
		Title:    title,
		Path:     item.Path,
		Authors:  item.Authors,
		Keywords: tags.Keywords,
		Summary:  tags.Summary,
		Content:  text,
	}
	if p.embedder != nil {
		// 向量基于摘要句计算，摘要为空时退回全文
		input := strings.Join(tags.Summary, " ")
		if strings.TrimSpace(input) == "" {
			input = text
		}
		emb, err := p.embedder.Extract(ctx, input)
		if err != nil {
			return model.IndexRecord{}, err
		}
		doc.Embedding = emb.Embedding
	}
	return model.IndexRecord{Index: p.index, ID: documentID(item), Source: doc}, nil
}

func (p *Pipeline) count(result string) {
	switch result {
	case "produced":
		p.stats.Produced++
	case "skipped_empty":
		p.stats.Empty++
	default:
		p.stats.Failed++
	}
	metrics.PipelineItemsTotal.WithLabelValues(p.index, result).Inc()
}

// documentID 外部记录使用自身的 Key，文件使用路径的 sha1，重复导入时 ID 保持不变。
func documentID(item Item) string {
	if item.Key != "" {
		return item.Key
	}
	sum := sha1.Sum([]byte(item.Path))
	return hex.EncodeToString(sum[:])
}

// NoteName 由文件路径得到笔记名：去掉目录与扩展名，转小写并删除标点。
func NoteName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	base = strings.TrimSuffix(base, path.Ext(base))
	name := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, base)
	return strings.TrimSpace(name)
}
