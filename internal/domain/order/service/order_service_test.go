package service

import (
	"fmt"
	"testing"
	"time"

	cartModel "chara_shop/internal/domain/cart/model"
	cartRepo "chara_shop/internal/domain/cart/repository"
	couponModel "chara_shop/internal/domain/coupon/model"
	couponRepo "chara_shop/internal/domain/coupon/repository"
	couponService "chara_shop/internal/domain/coupon/service"
	itemModel "chara_shop/internal/domain/item/model"
	itemRepo "chara_shop/internal/domain/item/repository"
	pointsModel "chara_shop/internal/domain/points/model"
	pointsRepo "chara_shop/internal/domain/points/repository"
	pointsService "chara_shop/internal/domain/points/service"
	"chara_shop/internal/domain/order/model"
	"chara_shop/internal/domain/order/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type orderTestEnv struct {
	db      *gorm.DB
	orders  OrderService
	items   itemRepo.ItemRepository
	carts   cartRepo.CartRepository
	points  pointsService.PointService
	coupons couponService.CouponService
}

func newOrderTestEnv(t *testing.T) *orderTestEnv {
	// 具名共享内存库：事务占用连接期间服务仍会通过连接池读库，
	// 匿名 :memory: 会让每个新连接各自拿到一个空库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&itemModel.Item{}, &itemModel.ItemSize{},
		&cartModel.Cart{}, &cartModel.CartItem{},
		&couponModel.Coupon{}, &couponModel.CouponUsage{},
		&pointsModel.PointRecord{},
		&model.Order{}, &model.OrderItem{},
	))

	items := itemRepo.NewItemRepository(db)
	carts := cartRepo.NewCartRepository(db)
	points := pointsService.NewPointService(db, pointsRepo.NewPointRepository(db))
	coupons := couponService.NewCouponService(couponRepo.NewCouponRepository(db))

	orders := NewOrderService(
		db,
		repository.NewOrderRepository(db),
		items, carts, points, coupons,
		nil, nil, 3,
	)

	return &orderTestEnv{
		db:      db,
		orders:  orders,
		items:   items,
		carts:   carts,
		points:  points,
		coupons: coupons,
	}
}

func (e *orderTestEnv) createItem(t *testing.T, name string, price, inventory int) *itemModel.Item {
	item := &itemModel.Item{Name: name, Price: price, Inventory: inventory, IsActive: true}
	assert.NoError(t, e.db.Create(item).Error)
	return item
}

func (e *orderTestEnv) grantPoints(t *testing.T, userID string, amount, validDays int) {
	_, err := e.points.Grant(userID, amount, time.Now().AddDate(0, 0, validDays), "campaign")
	assert.NoError(t, err)
}

func (e *orderTestEnv) inventoryOf(t *testing.T, itemID string) int {
	item, err := e.items.GetByID(itemID)
	assert.NoError(t, err)
	return item.Inventory
}

func simpleRequest(userID string, item *itemModel.Item, qty int) *CommitRequest {
	subtotal := item.Price * qty
	return &CommitRequest{
		UserID:          userID,
		AddressID:       uuid.New().String(),
		PaymentMethodID: uuid.New().String(),
		Lines:           []CommitLine{{ItemID: item.ID, Quantity: qty}},
		Pricing:         Pricing{Subtotal: subtotal, Total: subtotal},
	}
}

func TestOrderService_Commit_Success(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()

	item := env.createItem(t, "ぬいぐるみ", 2500, 10)
	other := env.createItem(t, "ポスター", 800, 5)

	// 购物车里有两行，只买其中一行
	cart, err := env.carts.GetOrCreateByOwnerTx(env.db, cartModel.OwnerTypeUser, userID)
	assert.NoError(t, err)
	assert.NoError(t, env.carts.CreateLineTx(env.db, &cartModel.CartItem{CartID: cart.ID, ItemID: item.ID, Quantity: 2}))
	assert.NoError(t, env.carts.CreateLineTx(env.db, &cartModel.CartItem{CartID: cart.ID, ItemID: other.ID, Quantity: 1}))

	env.grantPoints(t, userID, 1000, 30)

	req := &CommitRequest{
		UserID:          userID,
		AddressID:       uuid.New().String(),
		PaymentMethodID: uuid.New().String(),
		Lines:           []CommitLine{{ItemID: item.ID, Quantity: 2}},
		Pricing:         Pricing{Subtotal: 5000, ShippingFee: 500, Tax: 500, Total: 5500},
		PointsToUse:     500,
	}

	order, err := env.orders.Commit(req)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPending, order.Status)
	assert.Equal(t, 5000, order.Subtotal)
	assert.Equal(t, 500, order.PointsUsed)
	assert.Len(t, order.Items, 1)
	assert.Equal(t, 2500, order.Items[0].Price) // 快照单价
	assert.Len(t, order.PointsUsedIDs, 1)

	// 库存扣减
	assert.Equal(t, 8, env.inventoryOf(t, item.ID))

	// 只删除买走的购物车行
	updated, err := env.carts.GetByOwnerTx(env.db, cartModel.OwnerTypeUser, userID)
	assert.NoError(t, err)
	assert.Len(t, updated.Items, 1)
	assert.Equal(t, other.ID, updated.Items[0].ItemID)

	// 积分余额扣掉 500
	balance, err := env.points.Balance(userID)
	assert.NoError(t, err)
	assert.Equal(t, 500, balance)
}

func TestOrderService_Commit_WithCoupon(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "Tシャツ", 3000, 10)

	coupon := &couponModel.Coupon{
		Code: "SAVE500", DiscountType: couponModel.DiscountTypeFixed, DiscountValue: 500, IsActive: true,
	}
	assert.NoError(t, env.db.Create(coupon).Error)

	req := simpleRequest(userID, item, 1)
	req.CouponCode = "SAVE500"
	req.Pricing.Total = 2500

	order, err := env.orders.Commit(req)
	assert.NoError(t, err)
	assert.Equal(t, 500, order.DiscountAmount)
	assert.Equal(t, 2500, order.Total)
	assert.Equal(t, coupon.ID, *order.CouponID)

	// 券已核销且有历史
	var got couponModel.Coupon
	assert.NoError(t, env.db.First(&got, "id = ?", coupon.ID).Error)
	assert.True(t, got.IsUsed)
	assert.Equal(t, order.ID, *got.UsedByOrderID)

	var usages int64
	env.db.Model(&couponModel.CouponUsage{}).Where("coupon_id = ?", coupon.ID).Count(&usages)
	assert.Equal(t, int64(1), usages)
}

// raceLosingCoupons 校验通过但核销永远输给并发订单
// 用来制造最后一步才失败的提交
type raceLosingCoupons struct {
	couponService.CouponService
}

func (s *raceLosingCoupons) MarkUsedTx(tx *gorm.DB, couponID, userID, orderID string, discountAmount int) error {
	return couponRepo.ErrAlreadyUsed
}

func TestOrderService_Commit_AtomicRollback(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "マグカップ", 1200, 10)

	// 购物车有一行，提交会尝试删掉它
	cart, err := env.carts.GetOrCreateByOwnerTx(env.db, cartModel.OwnerTypeUser, userID)
	assert.NoError(t, err)
	assert.NoError(t, env.carts.CreateLineTx(env.db, &cartModel.CartItem{CartID: cart.ID, ItemID: item.ID, Quantity: 1}))

	env.grantPoints(t, userID, 300, 30)

	coupon := &couponModel.Coupon{
		Code: "RACEME", DiscountType: couponModel.DiscountTypeFixed, DiscountValue: 200, IsActive: true,
	}
	assert.NoError(t, env.db.Create(coupon).Error)

	// 核销（第 7 步）失败时，积分消费、订单落库、购物车清行、
	// 库存扣减必须一并回滚
	orders := NewOrderService(
		env.db,
		repository.NewOrderRepository(env.db),
		env.items, env.carts, env.points,
		&raceLosingCoupons{env.coupons},
		nil, nil, 3,
	)

	req := simpleRequest(userID, item, 1)
	req.PointsToUse = 300
	req.CouponCode = "RACEME"
	req.Pricing.Total = 1200 - 200 - 300

	_, err = orders.Commit(req)
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	// 没有订单、库存未动、购物车未动、积分未动
	var orderCount int64
	env.db.Model(&model.Order{}).Count(&orderCount)
	assert.Equal(t, int64(0), orderCount)

	assert.Equal(t, 10, env.inventoryOf(t, item.ID))

	updated, _ := env.carts.GetByOwnerTx(env.db, cartModel.OwnerTypeUser, userID)
	assert.Len(t, updated.Items, 1)

	balance, _ := env.points.Balance(userID)
	assert.Equal(t, 300, balance)
}

func TestOrderService_Commit_InsufficientInventory(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "限定フィギュア", 9800, 1)

	req := simpleRequest(userID, item, 2)

	_, err := env.orders.Commit(req)
	assert.ErrorIs(t, err, itemRepo.ErrInsufficientInventory)

	var orderCount int64
	env.db.Model(&model.Order{}).Count(&orderCount)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, 1, env.inventoryOf(t, item.ID))
}

func TestOrderService_Commit_LastUnitSingleWinner(t *testing.T) {
	env := newOrderTestEnv(t)
	item := env.createItem(t, "ラスト1点グッズ", 5000, 1)

	first, err := env.orders.Commit(simpleRequest(uuid.New().String(), item, 1))
	assert.NoError(t, err)
	assert.NotNil(t, first)

	_, err = env.orders.Commit(simpleRequest(uuid.New().String(), item, 1))
	assert.ErrorIs(t, err, itemRepo.ErrInsufficientInventory)

	assert.Equal(t, 0, env.inventoryOf(t, item.ID))
	var orderCount int64
	env.db.Model(&model.Order{}).Count(&orderCount)
	assert.Equal(t, int64(1), orderCount)
}

func TestOrderService_Commit_PriceMismatch(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "ステッカー", 400, 10)

	req := simpleRequest(userID, item, 1)
	req.Pricing.Subtotal = 300 // 客户端报价与权威价格不符

	_, err := env.orders.Commit(req)
	assert.ErrorIs(t, err, ErrPriceMismatch)

	req = simpleRequest(userID, item, 1)
	req.Pricing.Total = 999 // 合计对不上

	_, err = env.orders.Commit(req)
	assert.ErrorIs(t, err, ErrPriceMismatch)
}

func TestOrderService_Commit_InsufficientPoints(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "キーホルダー", 1000, 5)

	env.grantPoints(t, userID, 100, 30)

	req := simpleRequest(userID, item, 1)
	req.PointsToUse = 200
	req.Pricing.Total = 800

	_, err := env.orders.Commit(req)
	assert.ErrorIs(t, err, pointsService.ErrInsufficientPoints)

	assert.Equal(t, 5, env.inventoryOf(t, item.ID))
	balance, _ := env.points.Balance(userID)
	assert.Equal(t, 100, balance)
}

// conflictingPoints 积分消费永远输给并发事务
type conflictingPoints struct {
	pointsService.PointService
	calls int
}

func (s *conflictingPoints) ConsumeTx(tx *gorm.DB, userID string, amount int, orderID string) (*pointsService.ConsumeResult, error) {
	s.calls++
	return nil, pointsRepo.ErrRecordConflict
}

func TestOrderService_Commit_ConflictRetryExhausted(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "ランダム缶バッジ", 1000, 5)

	points := &conflictingPoints{PointService: env.points}
	orders := NewOrderService(
		env.db,
		repository.NewOrderRepository(env.db),
		env.items, env.carts, points, env.coupons,
		nil, nil, 3,
	)

	req := simpleRequest(userID, item, 1)
	req.PointsToUse = 100
	req.Pricing.Total = 900

	_, err := orders.Commit(req)
	// 重试耗尽后作为业务冲突上报，不是笼统的内部错误
	assert.ErrorIs(t, err, pointsRepo.ErrRecordConflict)
	assert.Equal(t, 3, points.calls)
	assert.Equal(t, "conflict", commitResultLabel(err))

	// 每次尝试都整体回滚
	var orderCount int64
	env.db.Model(&model.Order{}).Count(&orderCount)
	assert.Equal(t, int64(0), orderCount)
	assert.Equal(t, 5, env.inventoryOf(t, item.ID))
}

func TestOrderService_Commit_IdempotencyKeyReplay(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "トートバッグ", 2000, 10)

	req := simpleRequest(userID, item, 1)
	req.IdempotencyKey = uuid.New().String()

	first, err := env.orders.Commit(req)
	assert.NoError(t, err)

	// 网络重试带同一个键：返回已创建的订单，不重复扣库存
	second, err := env.orders.Commit(req)
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 9, env.inventoryOf(t, item.ID))
	var orderCount int64
	env.db.Model(&model.Order{}).Count(&orderCount)
	assert.Equal(t, int64(1), orderCount)
}

// racingOrders 第一次幂等键查询扑空，模拟预检与并发赢家插入之间的竞态
type racingOrders struct {
	repository.OrderRepository
	lookups int
}

func (r *racingOrders) GetByIdempotencyKey(key string) (*model.Order, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.OrderRepository.GetByIdempotencyKey(key)
}

func TestOrderService_Commit_IdempotencyKeyRace(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "ハンドタオル", 1000, 10)

	req := simpleRequest(userID, item, 1)
	req.IdempotencyKey = uuid.New().String()

	winner, err := env.orders.Commit(req)
	assert.NoError(t, err)

	// 预检扑空、落库撞唯一索引的输家改读赢家创建的订单
	repo := &racingOrders{OrderRepository: repository.NewOrderRepository(env.db)}
	loser := NewOrderService(
		env.db, repo,
		env.items, env.carts, env.points, env.coupons,
		nil, nil, 3,
	)

	replayed, err := loser.Commit(req)
	assert.NoError(t, err)
	assert.Equal(t, winner.ID, replayed.ID)
	assert.Equal(t, 2, repo.lookups)

	// 库存只扣一次，订单只有一单
	assert.Equal(t, 9, env.inventoryOf(t, item.ID))
	var orderCount int64
	env.db.Model(&model.Order{}).Count(&orderCount)
	assert.Equal(t, int64(1), orderCount)
}

func TestOrderService_Commit_SizedItem(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()

	item := &itemModel.Item{
		Name: "パーカー", Price: 4500, HasSizes: true, IsActive: true,
		Sizes: []itemModel.ItemSize{{Size: "M", Inventory: 2}, {Size: "L", Inventory: 1}},
	}
	assert.NoError(t, env.db.Create(item).Error)

	req := &CommitRequest{
		UserID:          userID,
		AddressID:       uuid.New().String(),
		PaymentMethodID: uuid.New().String(),
		Lines:           []CommitLine{{ItemID: item.ID, Quantity: 1, Size: "M"}},
		Pricing:         Pricing{Subtotal: 4500, Total: 4500},
	}

	order, err := env.orders.Commit(req)
	assert.NoError(t, err)
	assert.Equal(t, "M", order.Items[0].Size)

	mSize, err := env.items.GetSize(item.ID, "M")
	assert.NoError(t, err)
	assert.Equal(t, 1, mSize.Inventory)

	lSize, _ := env.items.GetSize(item.ID, "L")
	assert.Equal(t, 1, lSize.Inventory)

	// 尺码缺失或不存在直接拒绝
	bad := &CommitRequest{
		UserID: userID, AddressID: uuid.New().String(), PaymentMethodID: uuid.New().String(),
		Lines:   []CommitLine{{ItemID: item.ID, Quantity: 1}},
		Pricing: Pricing{Subtotal: 4500, Total: 4500},
	}
	_, err = env.orders.Commit(bad)
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestOrderService_Cancel(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "クッション", 3500, 4)

	env.grantPoints(t, userID, 1000, 30)

	req := simpleRequest(userID, item, 2)
	req.PointsToUse = 700
	req.Pricing.Total = 7000 - 700

	order, err := env.orders.Commit(req)
	assert.NoError(t, err)
	assert.Equal(t, 2, env.inventoryOf(t, item.ID))

	assert.NoError(t, env.orders.Cancel(order.ID, userID))

	// 库存回补、积分返还、状态迁移
	assert.Equal(t, 4, env.inventoryOf(t, item.ID))

	balance, _ := env.points.Balance(userID)
	assert.Equal(t, 1000, balance)

	got, err := env.orders.GetOrder(order.ID, userID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, 0, got.PointsUsed)

	// 二次取消被拒绝，且不会重复回补
	assert.ErrorIs(t, env.orders.Cancel(order.ID, userID), ErrNotCancellable)
	assert.Equal(t, 4, env.inventoryOf(t, item.ID))
}

func TestOrderService_Cancel_WrongUser(t *testing.T) {
	env := newOrderTestEnv(t)
	userID := uuid.New().String()
	item := env.createItem(t, "カレンダー", 1500, 3)

	order, err := env.orders.Commit(simpleRequest(userID, item, 1))
	assert.NoError(t, err)

	assert.ErrorIs(t, env.orders.Cancel(order.ID, uuid.New().String()), ErrOrderNotFound)
}
