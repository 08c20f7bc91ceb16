package handler

import (
	"errors"

	"chara_shop/internal/domain/item/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/pkg/response"
	"chara_shop/pkg/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ItemHandler 商品接口
type ItemHandler struct {
	itemService      service.ItemService
	recommendService service.RecommendationService
}

func NewItemHandler(itemService service.ItemService, recommendService service.RecommendationService) *ItemHandler {
	return &ItemHandler{
		itemService:      itemService,
		recommendService: recommendService,
	}
}

// List 商品列表
// GET /api/v1/items?page=1&limit=20
func (h *ItemHandler) List(c *gin.Context) {
	var page utils.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, "Invalid pagination parameters")
		return
	}

	result, err := h.itemService.ListItems(&page)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, result)
}

// Get 商品详情
// GET /api/v1/items/:id
// 已登录用户顺带记录浏览历史（记录失败不影响响应）
func (h *ItemHandler) Get(c *gin.Context) {
	id := c.Param("id")

	item, err := h.itemService.GetItem(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Fail(c, response.ErrItemNotFound, "Item not found")
			return
		}
		response.Internal(c)
		return
	}

	if userID, ok := middleware.CurrentUserID(c); ok {
		h.itemService.RecordView(userID, item.ID)
	}

	response.Success(c, item)
}

// Popular 最近 30 天浏览量排行
// GET /api/v1/items/popular?limit=10
func (h *ItemHandler) Popular(c *gin.Context) {
	var req struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Invalid parameters")
		return
	}

	items, err := h.recommendService.PopularItems(c.Request.Context(), req.Limit)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, items)
}

// Create 创建商品（仅管理员）
// POST /api/v1/admin/items
func (h *ItemHandler) Create(c *gin.Context) {
	var req service.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if req.HasSizes && len(req.Sizes) == 0 {
		response.BadRequest(c, "Sized item requires at least one size")
		return
	}

	item, err := h.itemService.CreateItem(&req)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, item)
}
