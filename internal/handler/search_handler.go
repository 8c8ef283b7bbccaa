// Package handler 提供只读的 HTTP 查询接口。
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"note-search-go/internal/service"
	"note-search-go/pkg/es"
	"note-search-go/pkg/log"
)

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 处理 GET /api/v1/search?query=...&index=...
func (h *SearchHandler) Search(c *gin.Context) {
	query, ok := requireQuery(c)
	if !ok {
		return
	}
	index := c.Query("index")

	results, err := h.searchService.Search(c.Request.Context(), query, index)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": results, "message": "success"})
}

// Facets 处理 GET /api/v1/facets?query=...&index=...
func (h *SearchHandler) Facets(c *gin.Context) {
	query, ok := requireQuery(c)
	if !ok {
		return
	}

	groups, err := h.searchService.Facets(c.Request.Context(), query, c.Query("index"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": groups, "message": "success"})
}

func requireQuery(c *gin.Context) (string, bool) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		log.Warnf("[SearchHandler] 请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "query 参数不能为空"})
		return "", false
	}
	return query, true
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, es.ErrIndexNotFound):
		status = http.StatusNotFound
	case errors.Is(err, es.ErrUnavailable):
		status = http.StatusBadGateway
	}
	log.Errorf("[SearchHandler] 查询失败: %v", err)
	c.JSON(status, gin.H{"code": status, "message": "查询失败"})
}
