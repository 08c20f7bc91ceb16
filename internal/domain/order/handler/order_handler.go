package handler

import (
	"errors"

	itemRepo "chara_shop/internal/domain/item/repository"
	pointsRepo "chara_shop/internal/domain/points/repository"
	pointsService "chara_shop/internal/domain/points/service"
	"chara_shop/internal/domain/order/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/pkg/response"
	"chara_shop/pkg/utils"

	"github.com/gin-gonic/gin"
)

// OrderHandler 订单接口
type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// Commit 提交订单
// POST /api/v1/orders
// 业务拒绝（库存/积分/优惠券/价格）返回带原因的业务码，
// 基础设施失败返回 500，事务保证此时什么都没发生
func (h *OrderHandler) Commit(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	var req struct {
		AddressID       string              `json:"addressId" binding:"required,uuid"`
		PaymentMethodID string              `json:"paymentMethodId" binding:"required,uuid"`
		Items           []service.CommitLine `json:"items" binding:"required,min=1,dive"`
		Pricing         service.Pricing     `json:"pricing" binding:"required"`
		PointsToUse     int                 `json:"pointsToUse" binding:"min=0"`
		CouponCode      string              `json:"couponCode" binding:"max=50"`
		IdempotencyKey  string              `json:"idempotencyKey" binding:"max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	order, err := h.orderService.Commit(&service.CommitRequest{
		UserID:          userID,
		AddressID:       req.AddressID,
		PaymentMethodID: req.PaymentMethodID,
		Lines:           req.Items,
		Pricing:         req.Pricing,
		PointsToUse:     req.PointsToUse,
		CouponCode:      req.CouponCode,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		h.failCommit(c, err)
		return
	}

	response.Success(c, order)
}

// Cancel 取消订单
// POST /api/v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	err := h.orderService.Cancel(c.Param("id"), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			response.Fail(c, response.ErrOrderNotFound, "Order not found")
		case errors.Is(err, service.ErrNotCancellable):
			response.Fail(c, response.ErrOrderNotCancellable, "Order is not cancellable")
		default:
			response.Internal(c)
		}
		return
	}

	response.Success(c, gin.H{"cancelled": true})
}

// Get 订单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	order, err := h.orderService.GetOrder(c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			response.Fail(c, response.ErrOrderNotFound, "Order not found")
			return
		}
		response.Internal(c)
		return
	}

	response.Success(c, order)
}

// History 订单历史
// GET /api/v1/orders?page=1&limit=20
func (h *OrderHandler) History(c *gin.Context) {
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

	result, err := h.orderService.History(userID, &page)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, result)
}

func (h *OrderHandler) failCommit(c *gin.Context, err error) {
	switch {
	case errors.Is(err, itemRepo.ErrInsufficientInventory):
		response.Fail(c, response.ErrOrderInventoryShort, "Insufficient inventory")
	case errors.Is(err, pointsService.ErrInsufficientPoints):
		response.Fail(c, response.ErrPointsInsufficient, "Insufficient points")
	case errors.Is(err, service.ErrInvalidCoupon):
		response.Fail(c, response.ErrCouponInvalid, err.Error())
	case errors.Is(err, service.ErrPriceMismatch):
		response.Fail(c, response.ErrOrderPriceMismatch, "Pricing does not match authoritative prices")
	case errors.Is(err, service.ErrItemUnavailable):
		response.Fail(c, response.ErrItemNotFound, "Item unavailable")
	case errors.Is(err, pointsRepo.ErrRecordConflict):
		// 重试耗尽的并发冲突按业务拒绝上报，与 points 端点口径一致
		response.Fail(c, response.ErrPointsInvalidValue, "Points were modified concurrently, please retry")
	default:
		response.Internal(c)
	}
}
