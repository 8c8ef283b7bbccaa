package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"note-search-go/internal/handler"
	"note-search-go/pkg/log"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "以 HTTP 服务提供检索、分面与导入台账查询",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = a.cfg.Server.Port
			}
			svc, err := a.newSearchService()
			if err != nil {
				return err
			}
			runs, closeRuns := a.newRunService()
			defer closeRuns()

			gin.SetMode(a.cfg.Server.Mode)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%s", port),
				Handler:           handler.NewRouter(svc, runs),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "监听端口，默认取 server.port")
	return cmd
}

// serve 启动服务并在 ctx 取消后优雅停机，最多等待 5 秒。
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("[Server] 服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("[Server] 接收到停机信号，正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP 服务器关闭失败: %w", err)
	}
	log.Info("[Server] 服务已优雅关闭")
	return nil
}
