package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"note-search-go/internal/middleware"
	"note-search-go/internal/service"
)

// NewRouter 注册查询、台账、健康检查与 Prometheus 指标路由。
func NewRouter(searchService service.SearchService, runService service.RunService) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")
	{
		searchHandler := NewSearchHandler(searchService)
		apiV1.GET("/search", searchHandler.Search)
		apiV1.GET("/facets", searchHandler.Facets)
		apiV1.GET("/runs", NewRunHandler(runService).List)
	}
	return r
}
