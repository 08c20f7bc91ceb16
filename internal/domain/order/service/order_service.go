package service

import (
	"errors"
	"fmt"
	"time"

	cartModel "chara_shop/internal/domain/cart/model"
	cartRepo "chara_shop/internal/domain/cart/repository"
	couponRepo "chara_shop/internal/domain/coupon/repository"
	couponService "chara_shop/internal/domain/coupon/service"
	itemModel "chara_shop/internal/domain/item/model"
	itemRepo "chara_shop/internal/domain/item/repository"
	pointsRepo "chara_shop/internal/domain/points/repository"
	pointsService "chara_shop/internal/domain/points/service"
	"chara_shop/internal/domain/order/model"
	"chara_shop/internal/domain/order/repository"
	"chara_shop/internal/pkg/worker"
	"chara_shop/pkg/logger"
	"chara_shop/pkg/metrics"
	baseModel "chara_shop/pkg/model"
	"chara_shop/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrItemUnavailable 商品不存在、已下架或尺码非法
	ErrItemUnavailable = errors.New("item unavailable")
	// ErrPriceMismatch 客户端报价与权威价格对不上
	ErrPriceMismatch = errors.New("pricing mismatch")
	// ErrInvalidCoupon 优惠券在提交时刻不可用
	// 购物车页看到可用、提交时已失效的券必须让提交失败，而不是悄悄去掉折扣
	ErrInvalidCoupon = errors.New("coupon is not valid at commit time")
	// ErrOrderNotFound 订单不存在或不属于该用户
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotCancellable 只有 pending 状态的订单可以取消
	ErrNotCancellable = errors.New("order is not cancellable")
)

// CommitLine 下单请求行
type CommitLine struct {
	ItemID   string `json:"itemId" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Size     string `json:"size" binding:"max=20"`
}

// Pricing 客户端看到并确认的金额，提交时服务端逐项复核
type Pricing struct {
	Subtotal    int `json:"subtotal" binding:"required,min=1"`
	ShippingFee int `json:"shippingFee" binding:"min=0"`
	Tax         int `json:"tax" binding:"min=0"`
	Total       int `json:"total" binding:"required,min=0"`
}

// CommitRequest 下单请求
type CommitRequest struct {
	UserID          string
	AddressID       string
	PaymentMethodID string
	Lines           []CommitLine
	Pricing         Pricing
	PointsToUse     int
	CouponCode      string
	// IdempotencyKey 客户端生成的幂等键，网络重试时返回已创建的订单而不是重复下单
	IdempotencyKey string
}

// OrderService 订单事务协调器
//
// 一次提交是单个数据库事务：库存复核、优惠券复核、积分消费、
// 订单落库、购物车清行、库存扣减、优惠券核销，任何一步失败整体回滚。
// 积分记录的乐观冲突在内部有限次重试，重试耗尽后按业务拒绝上报。
type OrderService interface {
	Commit(req *CommitRequest) (*model.Order, error)
	Cancel(orderID, userID string) error
	GetOrder(orderID, userID string) (*model.Order, error)
	History(userID string, page *utils.Pagination) (*utils.PageResult, error)
}

type orderService struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	items       itemRepo.ItemRepository
	carts       cartRepo.CartRepository
	points      pointsService.PointService
	coupons     couponService.CouponService
	invalidator *worker.InvalidationPool
	collector   *metrics.MetricsCollector
	maxRetries  int
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	items itemRepo.ItemRepository,
	carts cartRepo.CartRepository,
	points pointsService.PointService,
	coupons couponService.CouponService,
	invalidator *worker.InvalidationPool,
	collector *metrics.MetricsCollector,
	maxRetries int,
) OrderService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &orderService{
		db:          db,
		orderRepo:   orderRepo,
		items:       items,
		carts:       carts,
		points:      points,
		coupons:     coupons,
		invalidator: invalidator,
		collector:   collector,
		maxRetries:  maxRetries,
	}
}

func (s *orderService) Commit(req *CommitRequest) (*model.Order, error) {
	start := time.Now()

	// 幂等键命中时直接返回已创建的订单，不再扣第二次
	if req.IdempotencyKey != "" {
		existing, err := s.orderRepo.GetByIdempotencyKey(req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var order *model.Order
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		order, err = s.commitOnce(req)
		if err == nil || !errors.Is(err, pointsRepo.ErrRecordConflict) {
			break
		}
		logger.Log.Warn("order commit lost a points race, retrying",
			zap.String("userID", req.UserID),
			zap.Int("attempt", attempt+1))
	}

	// 幂等键撞唯一索引：两个携同一键的并发提交都通过了预检，
	// 输家的事务已回滚，改读赢家创建的订单
	if err != nil && req.IdempotencyKey != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
		if existing, rerr := s.orderRepo.GetByIdempotencyKey(req.IdempotencyKey); rerr == nil {
			order, err = existing, nil
		}
	}

	s.collector.RecordOrderCommit(commitResultLabel(err), time.Since(start))
	if err != nil {
		return nil, err
	}

	// 提交成功后异步清掉受影响的派生缓存，失败只影响新鲜度
	if s.invalidator != nil {
		s.invalidator.AddTask(worker.InvalidationTask{
			Patterns: []string{"recommend:popular:*"},
		})
	}

	logger.Log.Info("order committed",
		zap.String("orderID", order.ID),
		zap.String("userID", req.UserID),
		zap.Int("total", order.Total))
	return order, nil
}

func (s *orderService) commitOnce(req *CommitRequest) (*model.Order, error) {
	var order *model.Order

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 1. 逐行复核商品和权威库存
		lineItems := make([]*itemModel.Item, len(req.Lines))
		subtotal := 0
		for i, line := range req.Lines {
			item, err := s.loadLineItem(tx, line)
			if err != nil {
				return err
			}
			lineItems[i] = item
			subtotal += item.Price * line.Quantity
		}
		if subtotal != req.Pricing.Subtotal {
			return ErrPriceMismatch
		}

		// 2. 优惠券在提交时刻重新校验
		discount := 0
		var couponID *string
		if req.CouponCode != "" {
			result, err := s.coupons.Validate(req.CouponCode, &couponService.ValidationInput{
				UserID:    req.UserID,
				CartTotal: subtotal,
				Lines:     buildCouponLines(req.Lines, lineItems),
			})
			if err != nil {
				return err
			}
			if !result.IsValid {
				return fmt.Errorf("%w: %s", ErrInvalidCoupon, result.Message)
			}
			discount = result.DiscountAmount
			couponID = &result.Coupon.ID
		}

		// 金额复核：折扣和积分都以服务端计算为准
		expectedTotal := subtotal + req.Pricing.ShippingFee + req.Pricing.Tax - discount - req.PointsToUse
		if expectedTotal < 0 || expectedTotal != req.Pricing.Total {
			return ErrPriceMismatch
		}

		orderID := uuid.New().String()

		// 3. 积分消费，失败中止整个提交
		var pointsResult *pointsService.ConsumeResult
		if req.PointsToUse > 0 {
			var err error
			pointsResult, err = s.points.ConsumeTx(tx, req.UserID, req.PointsToUse, orderID)
			if err != nil {
				return err
			}
		}

		// 4. 创建订单和订单行，快照单价与尺码
		order = &model.Order{
			BaseModel:       baseModel.BaseModel{ID: orderID},
			UserID:          req.UserID,
			Status:          model.StatusPending,
			AddressID:       req.AddressID,
			PaymentMethodID: req.PaymentMethodID,
			Subtotal:        subtotal,
			ShippingFee:     req.Pricing.ShippingFee,
			Tax:             req.Pricing.Tax,
			DiscountAmount:  discount,
			Total:           req.Pricing.Total,
			CouponID:        couponID,
			CouponCode:      req.CouponCode,
		}
		if req.IdempotencyKey != "" {
			order.IdempotencyKey = &req.IdempotencyKey
		}
		if pointsResult != nil {
			order.PointsUsed = pointsResult.UsedPoints
			order.PointsUsedIDs = pointsResult.NegativeRecordIDs
		}
		for i, line := range req.Lines {
			order.Items = append(order.Items, model.OrderItem{
				ItemID:   line.ItemID,
				ItemName: lineItems[i].Name,
				Size:     line.Size,
				Price:    lineItems[i].Price,
				Quantity: line.Quantity,
			})
		}
		if err := s.orderRepo.CreateTx(tx, order); err != nil {
			return err
		}

		// 5. 只删除本次买走的购物车行，留下没买的
		if err := s.removePurchasedLines(tx, req.UserID, req.Lines); err != nil {
			return err
		}

		// 6. 条件扣减权威库存，抢不到即库存不足
		for i, line := range req.Lines {
			if err := s.decrementLine(tx, lineItems[i], line); err != nil {
				return err
			}
		}

		// 7. 核销优惠券并落核销历史
		if couponID != nil {
			if err := s.coupons.MarkUsedTx(tx, *couponID, req.UserID, orderID, discount); err != nil {
				if errors.Is(err, couponRepo.ErrAlreadyUsed) {
					// 两个并发提交抢同一张券，输家整单回滚
					return fmt.Errorf("%w: coupon was used by a concurrent order", ErrInvalidCoupon)
				}
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) loadLineItem(tx *gorm.DB, line CommitLine) (*itemModel.Item, error) {
	var item itemModel.Item
	if err := tx.Preload("Sizes").First(&item, "id = ?", line.ItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemUnavailable
		}
		return nil, err
	}
	if !item.IsActive {
		return nil, ErrItemUnavailable
	}

	if item.HasSizes {
		if line.Size == "" {
			return nil, ErrItemUnavailable
		}
		found := false
		for _, sz := range item.Sizes {
			if sz.Size == line.Size {
				found = true
				if sz.Inventory < line.Quantity {
					return nil, itemRepo.ErrInsufficientInventory
				}
			}
		}
		if !found {
			return nil, ErrItemUnavailable
		}
	} else {
		if line.Size != "" {
			return nil, ErrItemUnavailable
		}
		if item.Inventory < line.Quantity {
			return nil, itemRepo.ErrInsufficientInventory
		}
	}

	return &item, nil
}

func (s *orderService) decrementLine(tx *gorm.DB, item *itemModel.Item, line CommitLine) error {
	if item.HasSizes {
		return s.items.DecrementSizeInventoryTx(tx, line.ItemID, line.Size, line.Quantity)
	}
	return s.items.DecrementItemInventoryTx(tx, line.ItemID, line.Quantity)
}

func (s *orderService) removePurchasedLines(tx *gorm.DB, userID string, lines []CommitLine) error {
	cart, err := s.carts.GetByOwnerTx(tx, cartModel.OwnerTypeUser, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 没有购物车也允许直接下单
			return nil
		}
		return err
	}

	var lineIDs []string
	for _, line := range lines {
		cartLine, err := s.carts.FindLineTx(tx, cart.ID, line.ItemID, line.Size)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		lineIDs = append(lineIDs, cartLine.ID)
	}
	return s.carts.DeleteLinesTx(tx, lineIDs)
}

// Cancel 取消 pending 订单：回补库存、返还积分
// 优惠券的核销不可逆（补偿发券属于管理端操作），折扣记录保持原样
func (s *orderService) Cancel(orderID, userID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.GetByIDTx(tx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.UserID != userID {
			return ErrOrderNotFound
		}

		changed, err := s.orderRepo.UpdateStatusTx(tx, orderID, model.StatusPending, model.StatusCancelled)
		if err != nil {
			return err
		}
		if !changed {
			return ErrNotCancellable
		}

		for _, line := range order.Items {
			if line.Size != "" {
				err = s.items.RestoreSizeInventoryTx(tx, line.ItemID, line.Size, line.Quantity)
			} else {
				err = s.items.RestoreItemInventoryTx(tx, line.ItemID, line.Quantity)
			}
			if err != nil {
				return err
			}
		}

		return s.points.CancelTx(tx, orderID)
	})
	if err != nil {
		return err
	}

	if s.invalidator != nil {
		s.invalidator.AddTask(worker.InvalidationTask{
			Patterns: []string{"recommend:popular:*"},
		})
	}
	logger.Log.Info("order cancelled", zap.String("orderID", orderID))
	return nil
}

func (s *orderService) GetOrder(orderID, userID string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) History(userID string, page *utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	orders, total, err := s.orderRepo.ListByUser(userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{
		List:  orders,
		Total: total,
		Page:  page.Page,
		Limit: limit,
	}, nil
}

func buildCouponLines(lines []CommitLine, items []*itemModel.Item) []couponService.CartLine {
	out := make([]couponService.CartLine, 0, len(lines))
	for i, line := range lines {
		out = append(out, couponService.CartLine{
			ItemID:      line.ItemID,
			CategoryIDs: items[i].CategoryIDs,
			Quantity:    line.Quantity,
			UnitPrice:   items[i].Price,
		})
	}
	return out
}

func commitResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, itemRepo.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, pointsService.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, ErrInvalidCoupon):
		return "invalid_coupon"
	case errors.Is(err, ErrPriceMismatch), errors.Is(err, ErrItemUnavailable):
		return "rejected"
	case errors.Is(err, pointsRepo.ErrRecordConflict):
		return "conflict"
	default:
		return "error"
	}
}
