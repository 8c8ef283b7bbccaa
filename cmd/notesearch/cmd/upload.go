package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"note-search-go/internal/config"
	"note-search-go/internal/pipeline"
)

func newUploadCmd(a *app) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "重建索引并导入本地目录或单个文件",
		Long: `递归读取目录下的 PDF、文本与 Markdown 文件，提取关键词与摘要后写入索引。
目标索引会先被删除再重建，重复执行得到相同的结果。`,
		Example: `  notesearch upload ~/notes
  notesearch upload ~/papers --schema articles`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			// 在删除旧索引之前确认路径可读
			if _, err := os.Stat(root); err != nil {
				return fmt.Errorf("无法读取 %s: %w", args[0], err)
			}
			return a.ingest(cmd.Context(), cmd.OutOrStdout(), "upload", schema, root, pipeline.FolderSource(root))
		},
	}

	cmd.Flags().StringVar(&schema, "schema", config.SchemaNotes, "索引结构: notes 或 articles")
	return cmd
}
