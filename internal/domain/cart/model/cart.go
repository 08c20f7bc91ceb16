package model

import (
	"time"

	baseModel "chara_shop/pkg/model"
)

// 购物车归属类型
const (
	OwnerTypeUser      = "user"
	OwnerTypeAnonymous = "anonymous"
)

// Cart 购物车
// 归属用 (owner_type, owner_id) 表达：登录用户挂 userID，
// 匿名访客挂 AnonymousSession.ID，一个归属只有一辆车
type Cart struct {
	baseModel.BaseModel
	OwnerType string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_carts_owner,priority:1" json:"ownerType"`
	OwnerID   string     `gorm:"type:uuid;not null;uniqueIndex:idx_carts_owner,priority:2" json:"ownerId"`
	Items     []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
}

// CartItem 购物车行
// 同一辆车里 (itemId, size) 唯一，重复加购走数量累加
type CartItem struct {
	baseModel.BaseModel
	CartID   string `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_line,priority:1" json:"cartId"`
	ItemID   string `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_line,priority:2" json:"itemId"`
	Size     string `gorm:"type:varchar(20);not null;default:'';uniqueIndex:idx_cart_items_line,priority:3" json:"size"`
	Quantity int    `gorm:"not null" json:"quantity"`
}

// Favorite 收藏，存在即收藏（二值，不累加）
type Favorite struct {
	baseModel.BaseModel
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_favorites_user_item,priority:1" json:"userId"`
	ItemID string `gorm:"type:uuid;not null;uniqueIndex:idx_favorites_user_item,priority:2" json:"itemId"`
}

// AnonymousSession 匿名会话
// 登录合并成功后整条删除，合并因此天然幂等
type AnonymousSession struct {
	baseModel.BaseModel
	Token     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
}

// AnonymousFavorite 匿名收藏
type AnonymousFavorite struct {
	baseModel.BaseModel
	SessionID string `gorm:"type:uuid;not null;uniqueIndex:idx_anon_favorites_session_item,priority:1" json:"sessionId"`
	ItemID    string `gorm:"type:uuid;not null;uniqueIndex:idx_anon_favorites_session_item,priority:2" json:"itemId"`
}
