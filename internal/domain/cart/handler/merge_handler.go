package handler

import (
	"chara_shop/internal/domain/cart/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/pkg/response"

	"github.com/gin-gonic/gin"
)

// MergeHandler 匿名会话合并接口
type MergeHandler struct {
	mergeService service.MergeService
}

func NewMergeHandler(mergeService service.MergeService) *MergeHandler {
	return &MergeHandler{mergeService: mergeService}
}

// Merge 登录后合并匿名会话
// POST /api/v1/sessions/merge
// 会话不存在或已合并过时返回空结果（幂等）
func (h *MergeHandler) Merge(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	var req struct {
		AnonymousToken string `json:"anonymousToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.mergeService.Merge(req.AnonymousToken, userID)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, result)
}
