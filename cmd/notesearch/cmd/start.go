package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"note-search-go/internal/tui"
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "打开交互式检索界面",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.newSearchService()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			// 第一个选项为空字符串，表示同时检索全部索引
			indices := append([]string{""}, a.defaultIndices()...)
			p := tea.NewProgram(tui.New(ctx, svc, indices...),
				tea.WithAltScreen(),
				tea.WithContext(ctx),
			)
			_, err = p.Run()
			return err
		},
	}
}
