package cmd

import (
	"github.com/spf13/cobra"

	"note-search-go/internal/config"
	"note-search-go/internal/pipeline"
	"note-search-go/pkg/zotero"
)

func newZoteroUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "zotero-upload",
		Short: "重建文献索引并导入 Zotero 文献库",
		Long: `通过 Zotero Web API 分页读取文献，以摘要作为正文提取关键词与摘要句，
启用 embedding 时同时写入向量。凭据来自配置或 ZOTERO_LIBRARY_ID / ZOTERO_API_KEY 环境变量。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := zotero.NewClient(a.cfg.Zotero, nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			source := "zotero:" + a.cfg.Zotero.LibraryType + "/" + a.cfg.Zotero.LibraryID
			return a.ingest(ctx, cmd.OutOrStdout(), "zotero-upload", config.SchemaArticles, source,
				pipeline.ZoteroSource(ctx, client))
		},
	}
}
