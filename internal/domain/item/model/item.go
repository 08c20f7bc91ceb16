package model

import (
	"time"

	baseModel "chara_shop/pkg/model"
)

// Item 商品
// has_sizes=false 时 Item.Inventory 是唯一权威库存；
// has_sizes=true 时权威库存在 ItemSize.Inventory，Item.Inventory 不再使用
type Item struct {
	baseModel.BaseModel
	Name        string     `gorm:"type:varchar(200);not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Price       int        `gorm:"not null" json:"price"` // 单价 (日元整数)
	HasSizes    bool       `gorm:"not null;default:false" json:"hasSizes"`
	Inventory   int        `gorm:"not null;default:0" json:"inventory"`
	CategoryIDs []string   `gorm:"serializer:json" json:"categoryIds"`
	IsActive    bool       `gorm:"not null;default:true" json:"isActive"`
	Sizes       []ItemSize `gorm:"foreignKey:ItemID" json:"sizes,omitempty"`
}

// ItemSize 尺码级库存
type ItemSize struct {
	baseModel.BaseModel
	ItemID    string `gorm:"type:uuid;not null;uniqueIndex:idx_item_sizes_item_size,priority:1" json:"itemId"`
	Size      string `gorm:"type:varchar(20);not null;uniqueIndex:idx_item_sizes_item_size,priority:2" json:"size"`
	Inventory int    `gorm:"not null;default:0" json:"inventory"`
}

// ViewHistory 浏览历史 (推荐排行的原始数据)
type ViewHistory struct {
	baseModel.BaseModel
	UserID   string    `gorm:"type:uuid;index;not null" json:"userId"`
	ItemID   string    `gorm:"type:uuid;index;not null" json:"itemId"`
	ViewedAt time.Time `gorm:"index;not null" json:"viewedAt"`
}
