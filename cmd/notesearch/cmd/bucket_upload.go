package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"note-search-go/internal/config"
	"note-search-go/internal/pipeline"
	"note-search-go/pkg/storage"
)

func newBucketUploadCmd(a *app) *cobra.Command {
	var schema string

	cmd := &cobra.Command{
		Use:   "bucket-upload [prefix]",
		Short: "重建索引并导入 MinIO 存储桶中的文档",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			ctx := cmd.Context()
			client, err := storage.NewMinIO(ctx, a.cfg.MinIO)
			if err != nil {
				return err
			}
			bucket := a.cfg.MinIO.BucketName
			source := fmt.Sprintf("s3://%s/%s", bucket, prefix)
			return a.ingest(ctx, cmd.OutOrStdout(), "bucket-upload", schema, source,
				pipeline.BucketSource(ctx, client, bucket, prefix))
		},
	}

	cmd.Flags().StringVar(&schema, "schema", config.SchemaNotes, "索引结构: notes 或 articles")
	return cmd
}
