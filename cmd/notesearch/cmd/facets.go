package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"note-search-go/internal/render"
)

func newFacetsCmd(a *app) *cobra.Command {
	var index string

	cmd := &cobra.Command{
		Use:   "facets <phrase>",
		Short: "统计命中文档的关键词与作者分布",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newSearchService()
			if err != nil {
				return err
			}
			groups, err := svc.Facets(cmd.Context(), strings.Join(args, " "), index)
			if err != nil {
				return err
			}
			return render.Facets(cmd.OutOrStdout(), groups)
		},
	}

	cmd.Flags().StringVarP(&index, "index", "i", "", "要统计的索引，多个用逗号分隔，默认统计全部")
	return cmd
}
