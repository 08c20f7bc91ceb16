package order

import (
	cartRepo "chara_shop/internal/domain/cart/repository"
	couponRepo "chara_shop/internal/domain/coupon/repository"
	couponService "chara_shop/internal/domain/coupon/service"
	itemRepo "chara_shop/internal/domain/item/repository"
	pointsRepo "chara_shop/internal/domain/points/repository"
	pointsService "chara_shop/internal/domain/points/service"
	"chara_shop/internal/domain/order/handler"
	"chara_shop/internal/domain/order/repository"
	"chara_shop/internal/domain/order/service"
	"chara_shop/internal/pkg/config"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/internal/pkg/registry"
)

// Module 订单模块
// 依赖 item/points/coupon/cart 的服务，优先级放在最后
type Module struct{}

func init() {
	registry.Register(&Module{})
}

func (m *Module) Name() string {
	return "order"
}

func (m *Module) Priority() int {
	return 50
}

func (m *Module) Init(ctx *registry.ModuleContext) error {
	orderRepo := repository.NewOrderRepository(ctx.DB)
	items := itemRepo.NewItemRepository(ctx.DB)
	carts := cartRepo.NewCartRepository(ctx.DB)
	points := pointsService.NewPointService(ctx.DB, pointsRepo.NewPointRepository(ctx.DB))
	coupons := couponService.NewCouponService(couponRepo.NewCouponRepository(ctx.DB))

	orderService := service.NewOrderService(
		ctx.DB,
		orderRepo,
		items,
		carts,
		points,
		coupons,
		ctx.Invalidator,
		ctx.Metrics,
		config.GlobalConfig.Shop.CommitMaxRetries,
	)
	orderHandler := handler.NewOrderHandler(orderService)

	api := ctx.Router.Group("/api/v1")
	{
		orders := api.Group("/orders")
		orders.Use(middleware.AuthMiddleware())
		{
			orders.POST("", orderHandler.Commit)
			orders.GET("", orderHandler.History)
			orders.GET("/:id", orderHandler.Get)
			orders.POST("/:id/cancel", orderHandler.Cancel)
		}
	}

	return nil
}
