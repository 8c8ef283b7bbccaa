package model

// IndexRecord 是写入索引的最小单元，Source 为 NoteDocument 或 ArticleDocument。
type IndexRecord struct {
	Index  string
	ID     string
	Source any
}

// NoteDocument 对应 notes 索引中的文档结构。
type NoteDocument struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Topic    string   `json:"topic,omitempty"`
	Keywords []string `json:"keywords"`
	Summary  []string `json:"summary"`
	Content  string   `json:"content"`
}

// ArticleDocument 对应 articles 索引中的文档结构。
type ArticleDocument struct {
	Title     string    `json:"title"`
	Path      string    `json:"path,omitempty"`
	Authors   []string  `json:"authors,omitempty"`
	Keywords  []string  `json:"keywords"`
	Summary   []string  `json:"summary"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
}
