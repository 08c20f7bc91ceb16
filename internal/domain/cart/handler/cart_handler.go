package handler

import (
	"errors"

	"chara_shop/internal/domain/cart/model"
	"chara_shop/internal/domain/cart/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/pkg/response"

	"github.com/gin-gonic/gin"
)

const anonymousTokenHeader = "X-Anonymous-Token"

// CartHandler 购物车与收藏接口
// 登录用户走 JWT，匿名访客带 X-Anonymous-Token 头，两者共用同一组路由
type CartHandler struct {
	cartService    service.CartService
	sessionService service.SessionService
}

func NewCartHandler(cartService service.CartService, sessionService service.SessionService) *CartHandler {
	return &CartHandler{
		cartService:    cartService,
		sessionService: sessionService,
	}
}

// resolveOwner 识别请求归属：优先登录身份，其次匿名会话
func (h *CartHandler) resolveOwner(c *gin.Context) (ownerType, ownerID string, ok bool) {
	if userID, authed := middleware.CurrentUserID(c); authed {
		return model.OwnerTypeUser, userID, true
	}

	token := c.GetHeader(anonymousTokenHeader)
	if token == "" {
		response.BadRequest(c, "Missing user identity or anonymous token")
		return "", "", false
	}
	session, err := h.sessionService.Resolve(token)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.BadRequest(c, "Anonymous session not found or expired")
			return "", "", false
		}
		response.Internal(c)
		return "", "", false
	}
	return model.OwnerTypeAnonymous, session.ID, true
}

// IssueSession 签发匿名会话
// POST /api/v1/sessions/anonymous
func (h *CartHandler) IssueSession(c *gin.Context) {
	session, err := h.sessionService.Issue()
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, gin.H{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// GetCart 获取购物车
// GET /api/v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	ownerType, ownerID, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	cart, err := h.cartService.GetCart(ownerType, ownerID)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, cart)
}

// AddItem 加购
// POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	ownerType, ownerID, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	var req struct {
		ItemID   string `json:"itemId" binding:"required,uuid"`
		Size     string `json:"size" binding:"max=20"`
		Quantity int    `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	line, err := h.cartService.AddItem(ownerType, ownerID, req.ItemID, req.Size, req.Quantity)
	if err != nil {
		h.failCart(c, err)
		return
	}

	response.Success(c, line)
}

// UpdateLine 修改行数量
// PUT /api/v1/cart/items/:id
func (h *CartHandler) UpdateLine(c *gin.Context) {
	ownerType, ownerID, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.cartService.UpdateQuantity(ownerType, ownerID, c.Param("id"), req.Quantity); err != nil {
		h.failCart(c, err)
		return
	}

	response.Success(c, nil)
}

// RemoveLine 删除行
// DELETE /api/v1/cart/items/:id
func (h *CartHandler) RemoveLine(c *gin.Context) {
	ownerType, ownerID, ok := h.resolveOwner(c)
	if !ok {
		return
	}

	if err := h.cartService.RemoveLine(ownerType, ownerID, c.Param("id")); err != nil {
		h.failCart(c, err)
		return
	}

	response.Success(c, nil)
}

// ListFavorites 收藏列表
// GET /api/v1/favorites
func (h *CartHandler) ListFavorites(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.BadRequest(c, "Missing user identity")
		return
	}

	favs, err := h.cartService.ListFavorites(userID)
	if err != nil {
		response.Internal(c)
		return
	}

	response.Success(c, favs)
}

// AddFavorite 收藏
// POST /api/v1/favorites
func (h *CartHandler) AddFavorite(c *gin.Context) {
	var req struct {
		ItemID string `json:"itemId" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if userID, ok := middleware.CurrentUserID(c); ok {
		if err := h.cartService.AddFavorite(userID, req.ItemID); err != nil {
			h.failCart(c, err)
			return
		}
		response.Success(c, nil)
		return
	}

	ownerType, sessionID, ok := h.resolveOwner(c)
	if !ok {
		return
	}
	if ownerType != model.OwnerTypeAnonymous {
		response.BadRequest(c, "Missing user identity")
		return
	}
	if err := h.cartService.AddAnonymousFavorite(sessionID, req.ItemID); err != nil {
		h.failCart(c, err)
		return
	}
	response.Success(c, nil)
}

// RemoveFavorite 取消收藏
// DELETE /api/v1/favorites/:itemId
func (h *CartHandler) RemoveFavorite(c *gin.Context) {
	itemID := c.Param("itemId")

	if userID, ok := middleware.CurrentUserID(c); ok {
		if err := h.cartService.RemoveFavorite(userID, itemID); err != nil {
			response.Internal(c)
			return
		}
		response.Success(c, nil)
		return
	}

	ownerType, sessionID, ok := h.resolveOwner(c)
	if !ok {
		return
	}
	if ownerType != model.OwnerTypeAnonymous {
		response.BadRequest(c, "Missing user identity")
		return
	}
	if err := h.cartService.RemoveAnonymousFavorite(sessionID, itemID); err != nil {
		response.Internal(c)
		return
	}
	response.Success(c, nil)
}

func (h *CartHandler) failCart(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrItemNotFound), errors.Is(err, service.ErrInvalidSize):
		response.Fail(c, response.ErrItemNotFound, err.Error())
	case errors.Is(err, service.ErrLineNotFound):
		response.Fail(c, response.ErrCartItemNotFound, "Cart line not found")
	case errors.Is(err, service.ErrInvalidQuantity):
		response.BadRequest(c, "Quantity must be positive")
	default:
		response.Internal(c)
	}
}
