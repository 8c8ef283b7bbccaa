package model

// SourceFields 是查询结果中从 _source 复制出来的字段，两种索引结构的字段取并集。
type SourceFields struct {
	Name     string   `json:"name,omitempty"`
	Title    string   `json:"title,omitempty"`
	Path     string   `json:"path,omitempty"`
	Topic    string   `json:"topic,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Summary  []string `json:"summary,omitempty"`
	Authors  []string `json:"authors,omitempty"`
}

// DisplayName 返回结果的展示名：笔记取 name，文章取 title。
func (s SourceFields) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Title
}

// SearchResult 定义了返回给展示层的单条检索结果。
type SearchResult struct {
	Score      float64      `json:"score"`
	Index      string       `json:"index"`
	ID         string       `json:"id"`
	Source     SourceFields `json:"source"`
	Highlights []string     `json:"highlights"`
}

// FacetCount 是某个字段取值及其文档数。
type FacetCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// FacetGroup 是一个分面字段下的全部计数，顺序与搜索引擎返回一致。
type FacetGroup struct {
	Field  string       `json:"field"`
	Counts []FacetCount `json:"counts"`
}
