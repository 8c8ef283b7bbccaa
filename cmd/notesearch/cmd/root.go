// Package cmd 提供 notesearch 的全部子命令。
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"note-search-go/internal/config"
	"note-search-go/pkg/log"
	"note-search-go/pkg/metrics"
)

// app 持有一次命令执行期间的配置，各子命令通过它构造自己的客户端。
type app struct {
	configPath string
	cfg        *config.Config
}

// NewRootCmd 创建 notesearch 根命令。
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "notesearch",
		Short: "为笔记与文献建立关键词、摘要和向量索引，并在终端中检索",
		Long: `notesearch 从本地目录、MinIO 存储桶或 Zotero 文献库读取文档，
提取关键词与摘要后批量写入 Elasticsearch，并提供命令行、交互界面与 HTTP 三种检索方式。`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { log.Sync() },
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "configs/config.yaml", "配置文件路径，不存在时使用默认配置")

	cmd.AddCommand(newUploadCmd(a))
	cmd.AddCommand(newBucketUploadCmd(a))
	cmd.AddCommand(newZoteroUploadCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newFacetsCmd(a))
	cmd.AddCommand(newStartCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

// setup 加载配置并初始化日志与指标。
func (a *app) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	metrics.Register()
	a.cfg = cfg
	return nil
}

// Execute 运行根命令，收到 SIGINT/SIGTERM 时取消上下文。
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}
