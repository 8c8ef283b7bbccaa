package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"note-search-go/internal/service"
)

// RunHandler 暴露导入台账。
type RunHandler struct {
	runService service.RunService
}

// NewRunHandler 创建一个新的 RunHandler 实例。
func NewRunHandler(runService service.RunService) *RunHandler {
	return &RunHandler{runService: runService}
}

// List 处理 GET /api/v1/runs?index=...&limit=...
func (h *RunHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	runs, err := h.runService.Recent(c.Query("index"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": runs, "message": "success"})
}
