package model

import (
	baseModel "chara_shop/pkg/model"
)

// 订单状态
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Order 订单
// 创建后除状态和积分/优惠券关联字段外不可变，
// 金额都是下单时刻的快照（日元整数）
type Order struct {
	baseModel.BaseModel
	UserID          string      `gorm:"type:uuid;index;not null" json:"userId"`
	Status          string      `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	AddressID       string      `gorm:"type:uuid;not null" json:"addressId"`
	PaymentMethodID string      `gorm:"type:uuid;not null" json:"paymentMethodId"`
	Subtotal        int         `gorm:"not null" json:"subtotal"`
	ShippingFee     int         `gorm:"not null;default:0" json:"shippingFee"`
	Tax             int         `gorm:"not null;default:0" json:"tax"`
	DiscountAmount  int         `gorm:"not null;default:0" json:"discountAmount"`
	PointsUsed      int         `gorm:"not null;default:0" json:"pointsUsed"`
	Total           int         `gorm:"not null" json:"total"`
	PointsUsedIDs   []string    `gorm:"column:points_used_ids;serializer:json" json:"pointsUsedIds,omitempty"`
	CouponID        *string     `gorm:"type:uuid" json:"couponId,omitempty"`
	CouponCode      string      `gorm:"type:varchar(50)" json:"couponCode,omitempty"`
	IdempotencyKey  *string     `gorm:"type:varchar(64);uniqueIndex" json:"idempotencyKey,omitempty"`
	Items           []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// OrderItem 订单行，下单时快照单价和尺码，之后不再读商品现价
type OrderItem struct {
	baseModel.BaseModel
	OrderID  string `gorm:"type:uuid;index;not null" json:"orderId"`
	ItemID   string `gorm:"type:uuid;not null" json:"itemId"`
	ItemName string `gorm:"type:varchar(200);not null" json:"itemName"`
	Size     string `gorm:"type:varchar(20);not null;default:''" json:"size"`
	Price    int    `gorm:"not null" json:"price"`
	Quantity int    `gorm:"not null" json:"quantity"`
}
