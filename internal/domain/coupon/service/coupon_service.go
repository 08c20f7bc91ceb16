package service

import (
	"errors"
	"time"

	"chara_shop/internal/domain/coupon/model"
	"chara_shop/internal/domain/coupon/repository"
	"chara_shop/pkg/utils"

	"gorm.io/gorm"
)

// CartLine 参与校验的购物车行
type CartLine struct {
	ItemID      string   `json:"itemId"`
	CategoryIDs []string `json:"categoryIds"`
	Quantity    int      `json:"quantity"`
	UnitPrice   int      `json:"unitPrice"`
}

// ValidationInput 校验上下文
type ValidationInput struct {
	UserID    string
	CartTotal int
	Lines     []CartLine
}

// ValidationResult 校验结果
// 业务上的不可用（过期、门槛不足等）走 IsValid=false + Message，
// 只有基础设施故障才作为 error 返回
type ValidationResult struct {
	IsValid        bool          `json:"isValid"`
	DiscountAmount int           `json:"discountAmount"`
	Coupon         *model.Coupon `json:"coupon,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// CreateCouponRequest 创建优惠券请求（管理端）
type CreateCouponRequest struct {
	Code                  string     `json:"code" binding:"required,max=50"`
	UserID                *string    `json:"userId" binding:"omitempty,uuid"`
	DiscountType          string     `json:"discountType" binding:"required,oneof=percentage fixed"`
	DiscountValue         int        `json:"discountValue" binding:"required,min=1"`
	MinimumPurchase       int        `json:"minimumPurchase" binding:"min=0"`
	MaxDiscountAmount     *int       `json:"maxDiscountAmount" binding:"omitempty,min=1"`
	ApplicableProductIDs  []string   `json:"applicableProductIds"`
	ApplicableCategoryIDs []string   `json:"applicableCategoryIds"`
	ExcludedProductIDs    []string   `json:"excludedProductIds"`
	ExcludedCategoryIDs   []string   `json:"excludedCategoryIds"`
	ExpiryDate            *time.Time `json:"expiryDate"`
}

// CouponService 优惠券服务
type CouponService interface {
	Validate(code string, input *ValidationInput) (*ValidationResult, error)

	// MarkUsedTx 在订单提交事务里核销
	// 同一张券的并发核销只有一个成功，其余拿到 repository.ErrAlreadyUsed
	MarkUsedTx(tx *gorm.DB, couponID, userID, orderID string, discountAmount int) error

	Create(req *CreateCouponRequest) (*model.Coupon, error)
	List(page *utils.Pagination) (*utils.PageResult, error)
}

type couponService struct {
	repo repository.CouponRepository
}

func NewCouponService(repo repository.CouponRepository) CouponService {
	return &couponService{repo: repo}
}

// Validate 按固定顺序做短路校验
func (s *couponService) Validate(code string, input *ValidationInput) (*ValidationResult, error) {
	// 1. 券存在且启用
	coupon, err := s.repo.GetByCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("Coupon not found"), nil
		}
		return nil, err
	}
	if !coupon.IsActive {
		return invalid("Coupon not found"), nil
	}

	// 2. 未过期
	if coupon.ExpiryDate != nil && !coupon.ExpiryDate.After(time.Now()) {
		return invalid("Coupon has expired"), nil
	}

	// 3. 指定用户的券只能本人使用
	if coupon.UserID != nil && *coupon.UserID != input.UserID {
		return invalid("Coupon is not available for this user"), nil
	}

	// 4. 未核销
	if coupon.IsUsed {
		return invalid("Coupon has already been used"), nil
	}

	// 5. 满足最低消费门槛
	if coupon.MinimumPurchase > 0 && input.CartTotal < coupon.MinimumPurchase {
		return invalid("Cart total does not meet the minimum purchase requirement"), nil
	}

	// 6. 声明了适用范围时，至少一行命中
	if len(coupon.ApplicableProductIDs) > 0 || len(coupon.ApplicableCategoryIDs) > 0 {
		if !anyLineMatches(input.Lines, coupon.ApplicableProductIDs, coupon.ApplicableCategoryIDs) {
			return invalid("Coupon does not apply to any item in the cart"), nil
		}
	}

	// 7. 排除名单优先：任何一行命中排除即不可用
	if len(coupon.ExcludedProductIDs) > 0 || len(coupon.ExcludedCategoryIDs) > 0 {
		if anyLineMatches(input.Lines, coupon.ExcludedProductIDs, coupon.ExcludedCategoryIDs) {
			return invalid("Coupon cannot be used with an excluded item"), nil
		}
	}

	return &ValidationResult{
		IsValid:        true,
		DiscountAmount: computeDiscount(coupon, input.CartTotal),
		Coupon:         coupon,
	}, nil
}

func (s *couponService) MarkUsedTx(tx *gorm.DB, couponID, userID, orderID string, discountAmount int) error {
	return s.repo.MarkUsedTx(tx, couponID, userID, orderID, discountAmount)
}

func (s *couponService) Create(req *CreateCouponRequest) (*model.Coupon, error) {
	coupon := &model.Coupon{
		Code:                  req.Code,
		UserID:                req.UserID,
		DiscountType:          req.DiscountType,
		DiscountValue:         req.DiscountValue,
		MinimumPurchase:       req.MinimumPurchase,
		MaxDiscountAmount:     req.MaxDiscountAmount,
		ApplicableProductIDs:  req.ApplicableProductIDs,
		ApplicableCategoryIDs: req.ApplicableCategoryIDs,
		ExcludedProductIDs:    req.ExcludedProductIDs,
		ExcludedCategoryIDs:   req.ExcludedCategoryIDs,
		ExpiryDate:            req.ExpiryDate,
		IsActive:              true,
	}
	if err := s.repo.Create(coupon); err != nil {
		return nil, err
	}
	return coupon, nil
}

func (s *couponService) List(page *utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	coupons, total, err := s.repo.List(offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{
		List:  coupons,
		Total: total,
		Page:  page.Page,
		Limit: limit,
	}, nil
}

func invalid(message string) *ValidationResult {
	return &ValidationResult{IsValid: false, Message: message}
}

// anyLineMatches 任何一行按商品 ID 或分类 ID 命中名单即为 true
func anyLineMatches(lines []CartLine, productIDs, categoryIDs []string) bool {
	products := toSet(productIDs)
	categories := toSet(categoryIDs)

	for _, line := range lines {
		if _, ok := products[line.ItemID]; ok {
			return true
		}
		for _, cid := range line.CategoryIDs {
			if _, ok := categories[cid]; ok {
				return true
			}
		}
	}
	return false
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// computeDiscount 计算折扣金额
// percentage 向下取整并受 MaxDiscountAmount 封顶，
// fixed 受 cartTotal 封顶，订单金额不可能为负
func computeDiscount(coupon *model.Coupon, cartTotal int) int {
	switch coupon.DiscountType {
	case model.DiscountTypePercentage:
		discount := cartTotal * coupon.DiscountValue / 100
		if coupon.MaxDiscountAmount != nil && discount > *coupon.MaxDiscountAmount {
			discount = *coupon.MaxDiscountAmount
		}
		return discount
	case model.DiscountTypeFixed:
		if coupon.DiscountValue > cartTotal {
			return cartTotal
		}
		return coupon.DiscountValue
	default:
		return 0
	}
}
