package service

import (
	"testing"
	"time"

	"chara_shop/internal/domain/coupon/model"
	"chara_shop/internal/domain/coupon/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestCouponService(t *testing.T) (CouponService, repository.CouponRepository, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Coupon{}, &model.CouponUsage{}))

	repo := repository.NewCouponRepository(db)
	return NewCouponService(repo), repo, db
}

func futureDate(days int) *time.Time {
	d := time.Now().AddDate(0, 0, days)
	return &d
}

func intPtr(v int) *int { return &v }

func basicInput(userID string, cartTotal int) *ValidationInput {
	return &ValidationInput{
		UserID:    userID,
		CartTotal: cartTotal,
		Lines: []CartLine{
			{ItemID: "item-1", CategoryIDs: []string{"cat-plush"}, Quantity: 1, UnitPrice: cartTotal},
		},
	}
}

func TestCouponService_Validate_Checks(t *testing.T) {
	svc, repo, _ := newTestCouponService(t)
	userID := uuid.New().String()

	t.Run("unknown code is not found", func(t *testing.T) {
		result, err := svc.Validate("NO-SUCH-CODE", basicInput(userID, 1000))
		assert.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "Coupon not found", result.Message)
	})

	t.Run("inactive coupon behaves like not found", func(t *testing.T) {
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "INACTIVE", DiscountType: model.DiscountTypeFixed, DiscountValue: 100, IsActive: false,
		}))

		result, err := svc.Validate("INACTIVE", basicInput(userID, 1000))
		assert.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "Coupon not found", result.Message)
	})

	t.Run("expired coupon is rejected", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "EXPIRED", DiscountType: model.DiscountTypeFixed, DiscountValue: 100,
			ExpiryDate: &past, IsActive: true,
		}))

		result, err := svc.Validate("EXPIRED", basicInput(userID, 1000))
		assert.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "Coupon has expired", result.Message)
	})

	t.Run("coupon bound to another user is rejected", func(t *testing.T) {
		other := uuid.New().String()
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "PERSONAL", UserID: &other,
			DiscountType: model.DiscountTypeFixed, DiscountValue: 100, IsActive: true,
		}))

		result, err := svc.Validate("PERSONAL", basicInput(userID, 1000))
		assert.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "Coupon is not available for this user", result.Message)
	})

	t.Run("used coupon is rejected", func(t *testing.T) {
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "USED", DiscountType: model.DiscountTypeFixed, DiscountValue: 100,
			IsUsed: true, IsActive: true,
		}))

		result, err := svc.Validate("USED", basicInput(userID, 1000))
		assert.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "Coupon has already been used", result.Message)
	})

	t.Run("minimum purchase threshold", func(t *testing.T) {
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "MIN3000", DiscountType: model.DiscountTypeFixed, DiscountValue: 500,
			MinimumPurchase: 3000, IsActive: true,
		}))

		result, err := svc.Validate("MIN3000", basicInput(userID, 2999))
		assert.NoError(t, err)
		assert.False(t, result.IsValid)

		result, err = svc.Validate("MIN3000", basicInput(userID, 3000))
		assert.NoError(t, err)
		assert.True(t, result.IsValid)
	})

	t.Run("applicable list requires at least one matching line", func(t *testing.T) {
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "PLUSH-ONLY", DiscountType: model.DiscountTypeFixed, DiscountValue: 300,
			ApplicableCategoryIDs: []string{"cat-plush"}, IsActive: true,
		}))

		result, err := svc.Validate("PLUSH-ONLY", basicInput(userID, 1000))
		assert.NoError(t, err)
		assert.True(t, result.IsValid)

		noMatch := &ValidationInput{
			UserID:    userID,
			CartTotal: 1000,
			Lines:     []CartLine{{ItemID: "item-9", CategoryIDs: []string{"cat-sticker"}}},
		}
		result, err = svc.Validate("PLUSH-ONLY", noMatch)
		assert.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "Coupon does not apply to any item in the cart", result.Message)
	})

	t.Run("exclusion wins even when an applicable line matches", func(t *testing.T) {
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "NO-LIMITED", DiscountType: model.DiscountTypeFixed, DiscountValue: 300,
			ApplicableCategoryIDs: []string{"cat-plush"},
			ExcludedProductIDs:    []string{"item-limited"}, IsActive: true,
		}))

		mixed := &ValidationInput{
			UserID:    userID,
			CartTotal: 5000,
			Lines: []CartLine{
				{ItemID: "item-1", CategoryIDs: []string{"cat-plush"}},
				{ItemID: "item-limited", CategoryIDs: []string{"cat-plush"}},
			},
		}
		result, err := svc.Validate("NO-LIMITED", mixed)
		assert.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, "Coupon cannot be used with an excluded item", result.Message)
	})
}

func TestCouponService_DiscountComputation(t *testing.T) {
	svc, repo, _ := newTestCouponService(t)
	userID := uuid.New().String()

	t.Run("percentage discount floors and respects the cap", func(t *testing.T) {
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "PCT15", DiscountType: model.DiscountTypePercentage, DiscountValue: 15,
			MaxDiscountAmount: intPtr(500), IsActive: true,
		}))

		// floor(1333 * 15 / 100) = 199
		result, err := svc.Validate("PCT15", basicInput(userID, 1333))
		assert.NoError(t, err)
		assert.True(t, result.IsValid)
		assert.Equal(t, 199, result.DiscountAmount)

		// floor(9999 * 15 / 100) = 1499 → capped to 500
		result, err = svc.Validate("PCT15", basicInput(userID, 9999))
		assert.NoError(t, err)
		assert.Equal(t, 500, result.DiscountAmount)
	})

	t.Run("fixed discount never exceeds the cart total", func(t *testing.T) {
		assert.NoError(t, repo.Create(&model.Coupon{
			Code: "FIXED500", DiscountType: model.DiscountTypeFixed, DiscountValue: 500, IsActive: true,
		}))

		result, err := svc.Validate("FIXED500", basicInput(userID, 300))
		assert.NoError(t, err)
		assert.True(t, result.IsValid)
		assert.Equal(t, 300, result.DiscountAmount)

		result, err = svc.Validate("FIXED500", basicInput(userID, 2000))
		assert.NoError(t, err)
		assert.Equal(t, 500, result.DiscountAmount)
	})
}

func TestCouponService_MarkUsedTx(t *testing.T) {
	svc, repo, db := newTestCouponService(t)
	userID := uuid.New().String()
	orderID := uuid.New().String()

	coupon := &model.Coupon{
		Code: "ONESHOT", DiscountType: model.DiscountTypeFixed, DiscountValue: 500, IsActive: true,
	}
	assert.NoError(t, repo.Create(coupon))

	t.Run("first use succeeds and records usage history", func(t *testing.T) {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.MarkUsedTx(tx, coupon.ID, userID, orderID, 500)
		})
		assert.NoError(t, err)

		got, err := repo.GetByID(coupon.ID)
		assert.NoError(t, err)
		assert.True(t, got.IsUsed)
		assert.NotNil(t, got.UsedAt)
		assert.Equal(t, orderID, *got.UsedByOrderID)

		usages, err := repo.ListUsages(coupon.ID)
		assert.NoError(t, err)
		assert.Len(t, usages, 1)
		assert.Equal(t, 500, usages[0].DiscountAmount)
	})

	t.Run("second use is rejected", func(t *testing.T) {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.MarkUsedTx(tx, coupon.ID, userID, uuid.New().String(), 500)
		})
		assert.ErrorIs(t, err, repository.ErrAlreadyUsed)

		usages, _ := repo.ListUsages(coupon.ID)
		assert.Len(t, usages, 1)
	})
}
