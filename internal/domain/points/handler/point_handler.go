package handler

import (
	"errors"
	"time"

	"chara_shop/internal/domain/points/repository"
	"chara_shop/internal/domain/points/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/pkg/response"
	"chara_shop/pkg/utils"

	"github.com/gin-gonic/gin"
)

// PointHandler 积分接口
type PointHandler struct {
	pointService service.PointService
}

func NewPointHandler(pointService service.PointService) *PointHandler {
	return &PointHandler{pointService: pointService}
}

// Balance 查询当前可用积分
// GET /api/v1/points/balance
func (h *PointHandler) Balance(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	balance, err := h.pointService.Balance(userID)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, gin.H{"balance": balance})
}

// History 积分流水
// GET /api/v1/points/history?page=1&limit=20
func (h *PointHandler) History(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, "Invalid pagination parameters")
		return
	}

	result, err := h.pointService.History(userID, &page)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, result)
}

// Consume 消费积分
// POST /api/v1/points/consume
func (h *PointHandler) Consume(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	var req struct {
		OrderID     string `json:"orderId" binding:"required,uuid"`
		PointsToUse int    `json:"pointsToUse" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.pointService.Consume(userID, req.PointsToUse, req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientPoints):
			response.Fail(c, response.ErrPointsInsufficient, "Insufficient points")
		case errors.Is(err, service.ErrInvalidAmount):
			response.Fail(c, response.ErrPointsInvalidValue, "Invalid point amount")
		case errors.Is(err, repository.ErrRecordConflict):
			response.Fail(c, response.ErrPointsInvalidValue, "Points were modified concurrently, please retry")
		default:
			response.Internal(c)
		}
		return
	}

	response.Success(c, result)
}

// Cancel 撤销某订单的积分消费
// POST /api/v1/points/cancel
func (h *PointHandler) Cancel(c *gin.Context) {
	var req struct {
		OrderID string `json:"orderId" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.pointService.Cancel(req.OrderID); err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, gin.H{"cancelled": true})
}

// Grant 发放积分（仅管理员）
// POST /api/v1/admin/points/grant
func (h *PointHandler) Grant(c *gin.Context) {
	var req struct {
		UserID    string `json:"userId" binding:"required,uuid"`
		Amount    int    `json:"amount" binding:"required,min=1"`
		ValidDays int    `json:"validDays" binding:"required,min=1"`
		Reason    string `json:"reason" binding:"max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	expiresAt := time.Now().AddDate(0, 0, req.ValidDays)
	record, err := h.pointService.Grant(req.UserID, req.Amount, expiresAt, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			response.Fail(c, response.ErrPointsInvalidValue, "Invalid point amount")
			return
		}
		response.Internal(c)
		return
	}

	response.Success(c, record)
}
