// Package tui 实现 start 命令的交互式检索会话。
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"note-search-go/internal/model"
	"note-search-go/internal/render"
)

// SearchPort 是交互界面需要的查询能力，由 service.SearchService 实现。
type SearchPort interface {
	Search(ctx context.Context, phrase, index string) ([]model.SearchResult, error)
	Facets(ctx context.Context, phrase, index string) ([]model.FacetGroup, error)
}

type resultsMsg struct {
	query   string
	results []model.SearchResult
	facets  []model.FacetGroup
	err     error
}

// Model 是交互会话的 Bubble Tea 模型。
type Model struct {
	ctx      context.Context
	service  SearchPort
	indices  []string
	current  int
	input    textinput.Model
	viewport viewport.Model
	results  []model.SearchResult
	facets   []model.FacetGroup
	status   string
	cursor   int
	ready    bool
	width    int
}

// New 创建交互会话。indices 为可以切换的索引，空字符串表示查询全部索引。
func New(ctx context.Context, service SearchPort, indices ...string) Model {
	if len(indices) == 0 {
		indices = []string{""}
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "输入查询并回车, Tab 切换索引, Esc 退出"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		service:  service,
		indices:  indices,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Ready.",
	}
}

// Init 启动光标闪烁。
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Index 返回当前选中的索引。
func (m Model) Index() string { return m.indices[m.current] }

func (m Model) query(q string) tea.Cmd {
	index := m.Index()
	return func() tea.Msg {
		results, err := m.service.Search(m.ctx, q, index)
		if err != nil {
			return resultsMsg{query: q, err: err}
		}
		facets, err := m.service.Facets(m.ctx, q, index)
		return resultsMsg{query: q, results: results, facets: facets, err: err}
	}
}

// Update 处理按键、窗口与查询结果消息。
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, fh := boxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width*2/3-fh)
		m.viewport.Height = max(3, msg.Height-6-fh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case resultsMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results, m.facets = nil, nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results, m.facets = msg.results, msg.facets
		}
		m.cursor = 0
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.status = fmt.Sprintf("Searching %q...", q)
			return m, m.query(q)
		case tea.KeyTab:
			m.current = (m.current + 1) % len(m.indices)
			return m, nil
		case tea.KeyDown:
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
			}
			return m, nil
		case tea.KeyUp:
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View 渲染结果区、分面面板、输入框与状态栏。
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	index := m.Index()
	if index == "" {
		index = "all"
	}
	header := titleStyle.Render("Note Search") + " " + mutedStyle.Render("[index: "+index+"]")
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(m.viewport.View()),
		boxStyle.Render(m.renderFacets()),
	)
	return header + "\n" + body + "\n" + boxStyle.Render(m.input.View()) + "\n" + statusStyle.Render(m.status)
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	lines := []string{
		fmt.Sprintf("Result %d/%d  score=%.3f  index=%s", m.cursor+1, len(m.results), r.Score, r.Index),
		titleStyle.Render(r.Source.DisplayName()),
	}
	if r.Source.Path != "" {
		lines = append(lines, mutedStyle.Render(r.Source.Path))
	}
	if len(r.Source.Keywords) > 0 {
		lines = append(lines, "keywords: "+strings.Join(r.Source.Keywords, ", "))
	}
	if len(r.Source.Authors) > 0 {
		lines = append(lines, "authors: "+strings.Join(r.Source.Authors, ", "))
	}
	lines = append(lines, "")
	lines = append(lines, render.Highlights(r.Highlights, render.DefaultEmphasis)...)
	return strings.Join(lines, "\n")
}

func (m Model) renderFacets() string {
	if len(m.facets) == 0 {
		return mutedStyle.Render("No facets.")
	}
	var lines []string
	for _, g := range m.facets {
		lines = append(lines, titleStyle.Render(g.Field))
		for _, c := range g.Counts {
			lines = append(lines, fmt.Sprintf("  %s (%d)", c.Term, c.Count))
		}
	}
	return strings.Join(lines, "\n")
}

var (
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
