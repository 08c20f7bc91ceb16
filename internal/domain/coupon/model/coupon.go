package model

import (
	"time"

	baseModel "chara_shop/pkg/model"
)

// 折扣类型
const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)

// Coupon 优惠券
// UserID 为空表示不限用户；一张券只能核销一次，核销不可逆
type Coupon struct {
	baseModel.BaseModel
	Code                  string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	UserID                *string    `gorm:"type:uuid;index" json:"userId,omitempty"`
	DiscountType          string     `gorm:"type:varchar(20);not null" json:"discountType"`
	DiscountValue         int        `gorm:"not null" json:"discountValue"`
	MinimumPurchase       int        `gorm:"not null;default:0" json:"minimumPurchase"`
	MaxDiscountAmount     *int       `json:"maxDiscountAmount,omitempty"`
	ApplicableProductIDs  []string   `gorm:"serializer:json" json:"applicableProductIds,omitempty"`
	ApplicableCategoryIDs []string   `gorm:"serializer:json" json:"applicableCategoryIds,omitempty"`
	ExcludedProductIDs    []string   `gorm:"serializer:json" json:"excludedProductIds,omitempty"`
	ExcludedCategoryIDs   []string   `gorm:"serializer:json" json:"excludedCategoryIds,omitempty"`
	ExpiryDate            *time.Time `json:"expiryDate,omitempty"`
	IsUsed                bool       `gorm:"not null;default:false" json:"isUsed"`
	IsActive              bool       `gorm:"not null;default:true" json:"isActive"`
	UsedAt                *time.Time `json:"usedAt,omitempty"`
	UsedByOrderID         *string    `gorm:"type:uuid" json:"usedByOrderId,omitempty"`
}

// CouponUsage 核销历史，只追加
type CouponUsage struct {
	baseModel.BaseModel
	CouponID       string    `gorm:"type:uuid;index;not null" json:"couponId"`
	UserID         string    `gorm:"type:uuid;index;not null" json:"userId"`
	OrderID        string    `gorm:"type:uuid;not null" json:"orderId"`
	DiscountAmount int       `gorm:"not null" json:"discountAmount"`
	UsedAt         time.Time `gorm:"not null" json:"usedAt"`
}
