package handler

import (
	"chara_shop/internal/domain/coupon/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/pkg/response"
	"chara_shop/pkg/utils"

	"github.com/gin-gonic/gin"
)

// CouponHandler 优惠券接口
type CouponHandler struct {
	couponService service.CouponService
}

func NewCouponHandler(couponService service.CouponService) *CouponHandler {
	return &CouponHandler{couponService: couponService}
}

// Validate 校验优惠券
// POST /api/v1/coupons/validate
// 校验是只读操作，不会锁定或核销券
func (h *CouponHandler) Validate(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	var req struct {
		Code      string             `json:"code" binding:"required"`
		CartTotal int                `json:"cartTotal" binding:"required,min=1"`
		CartItems []service.CartLine `json:"cartItems" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.couponService.Validate(req.Code, &service.ValidationInput{
		UserID:    userID,
		CartTotal: req.CartTotal,
		Lines:     req.CartItems,
	})
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, result)
}

// Create 创建优惠券（仅管理员）
// POST /api/v1/admin/coupons
func (h *CouponHandler) Create(c *gin.Context) {
	var req service.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	coupon, err := h.couponService.Create(&req)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, coupon)
}

// List 优惠券列表（仅管理员）
// GET /api/v1/admin/coupons?page=1&limit=20
func (h *CouponHandler) List(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, "Invalid pagination parameters")
		return
	}

	result, err := h.couponService.List(&page)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, result)
}
