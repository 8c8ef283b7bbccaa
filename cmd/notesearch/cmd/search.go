package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"note-search-go/internal/render"
)

func newSearchCmd(a *app) *cobra.Command {
	var index string

	cmd := &cobra.Command{
		Use:   "search <phrase>",
		Short: "全文检索并输出带高亮的结果",
		Example: `  notesearch search "graph ranking"
  notesearch search pagerank --index articles`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newSearchService()
			if err != nil {
				return err
			}
			results, err := svc.Search(cmd.Context(), strings.Join(args, " "), index)
			if err != nil {
				return err
			}
			return render.Results(cmd.OutOrStdout(), results, render.DefaultEmphasis)
		},
	}

	cmd.Flags().StringVarP(&index, "index", "i", "", "要检索的索引，多个用逗号分隔，默认检索全部")
	return cmd
}
