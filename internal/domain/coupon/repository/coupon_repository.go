package repository

import (
	"errors"
	"time"

	"chara_shop/internal/domain/coupon/model"

	"gorm.io/gorm"
)

// ErrAlreadyUsed 优惠券已被核销（条件更新未命中）
var ErrAlreadyUsed = errors.New("coupon already used")

// CouponRepository 优惠券数据访问接口
type CouponRepository interface {
	Create(coupon *model.Coupon) error
	GetByCode(code string) (*model.Coupon, error)
	GetByID(id string) (*model.Coupon, error)
	List(offset, limit int) ([]model.Coupon, int64, error)

	// MarkUsedTx 一次性核销：is_used 条件更新 + 追加核销历史
	// 已被核销时返回 ErrAlreadyUsed
	MarkUsedTx(tx *gorm.DB, couponID, userID, orderID string, discountAmount int) error

	ListUsages(couponID string) ([]model.CouponUsage, error)
}

type couponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) Create(coupon *model.Coupon) error {
	return r.db.Create(coupon).Error
}

func (r *couponRepository) GetByCode(code string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.First(&coupon, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *couponRepository) GetByID(id string) (*model.Coupon, error) {
	var coupon model.Coupon
	err := r.db.First(&coupon, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *couponRepository) List(offset, limit int) ([]model.Coupon, int64, error) {
	var coupons []model.Coupon
	var total int64

	if err := r.db.Model(&model.Coupon{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&coupons).Error
	return coupons, total, err
}

func (r *couponRepository) MarkUsedTx(tx *gorm.DB, couponID, userID, orderID string, discountAmount int) error {
	now := time.Now()

	result := tx.Model(&model.Coupon{}).
		Where("id = ? AND is_used = ?", couponID, false).
		Updates(map[string]interface{}{
			"is_used":          true,
			"used_at":          now,
			"used_by_order_id": orderID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyUsed
	}

	usage := &model.CouponUsage{
		CouponID:       couponID,
		UserID:         userID,
		OrderID:        orderID,
		DiscountAmount: discountAmount,
		UsedAt:         now,
	}
	return tx.Create(usage).Error
}

func (r *couponRepository) ListUsages(couponID string) ([]model.CouponUsage, error) {
	var usages []model.CouponUsage
	err := r.db.Where("coupon_id = ?", couponID).
		Order("used_at ASC").
		Find(&usages).Error
	return usages, err
}
