// Package render 把检索结果与分面统计渲染成终端文本。
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"note-search-go/internal/model"
	"note-search-go/pkg/log"
)

const (
	openTag  = "<em>"
	closeTag = "</em>"
)

// ErrMalformedHighlight 表示高亮片段中的 <em> 标记不成对或存在嵌套。
var ErrMalformedHighlight = errors.New("malformed highlight markup")

// Emphasis 把一段命中文本转换为展示层的强调样式。
type Emphasis func(string) string

var (
	emphasisStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0066")).Bold(true)
	pathStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Underline(true)
	rankStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	indexStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	keywordStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
)

// DefaultEmphasis 使用 lipgloss 的前景色加粗。
func DefaultEmphasis(s string) string {
	return emphasisStyle.Render(s)
}

// Highlight 把片段中的 <em>…</em> 替换为 emph 的输出，换行折叠为空格。
// 标记嵌套、缺少开始或结束标记时返回 ErrMalformedHighlight。
func Highlight(fragment string, emph Emphasis) (string, error) {
	fragment = strings.TrimSpace(strings.ReplaceAll(fragment, "\n", " "))

	var b strings.Builder
	rest := fragment
	for rest != "" {
		open := strings.Index(rest, openTag)
		closing := strings.Index(rest, closeTag)
		switch {
		case open < 0 && closing < 0:
			b.WriteString(rest)
			rest = ""
		case open < 0 || (closing >= 0 && closing < open):
			return "", fmt.Errorf("%w: 缺少 %s", ErrMalformedHighlight, openTag)
		default:
			b.WriteString(rest[:open])
			rest = rest[open+len(openTag):]
			end := strings.Index(rest, closeTag)
			if end < 0 {
				return "", fmt.Errorf("%w: 缺少 %s", ErrMalformedHighlight, closeTag)
			}
			if strings.Contains(rest[:end], openTag) {
				return "", fmt.Errorf("%w: 嵌套的 %s", ErrMalformedHighlight, openTag)
			}
			b.WriteString(emph(rest[:end]))
			rest = rest[end+len(closeTag):]
		}
	}
	return b.String(), nil
}

// Highlights 逐个转换片段，格式错误的片段被丢弃，不影响其余片段。
func Highlights(fragments []string, emph Emphasis) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		h, err := Highlight(f, emph)
		if err != nil {
			log.Debugf("[Render] 丢弃高亮片段: %v", err)
			continue
		}
		out = append(out, h)
	}
	return out
}

// Results 按检索顺序输出结果：路径、序号、索引、得分、关键词以及高亮片段。
func Results(w io.Writer, results []model.SearchResult, emph Emphasis) error {
	if emph == nil {
		emph = DefaultEmphasis
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}
	for i, r := range results {
		ref := r.Source.Path
		if ref == "" {
			ref = r.Source.DisplayName()
		}
		lines := []string{
			pathStyle.Render(ref),
			rankStyle.Render(fmt.Sprintf("[%d]", i)) + indexStyle.Render("[index:"+r.Index+"]") + scoreStyle.Render(fmt.Sprintf("[%.3f]", r.Score)),
		}
		if name := r.Source.DisplayName(); name != "" && name != ref {
			lines = append(lines, headerStyle.Render(name))
		}
		if len(r.Source.Keywords) > 0 {
			lines = append(lines, keywordStyle.Render(strings.Join(r.Source.Keywords, ", ")))
		}
		lines = append(lines, Highlights(r.Highlights, emph)...)
		if _, err := fmt.Fprintln(w, strings.Join(lines, "\n")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Facets 输出每个分面字段的取值与文档数。
func Facets(w io.Writer, groups []model.FacetGroup) error {
	for _, g := range groups {
		if _, err := fmt.Fprintln(w, headerStyle.Render(g.Field)); err != nil {
			return err
		}
		if len(g.Counts) == 0 {
			if _, err := fmt.Fprintln(w, "  (none)"); err != nil {
				return err
			}
			continue
		}
		for _, c := range g.Counts {
			if _, err := fmt.Fprintf(w, "  %s %s\n", keywordStyle.Render(c.Term), scoreStyle.Render(fmt.Sprintf("(%d)", c.Count))); err != nil {
				return err
			}
		}
	}
	return nil
}
