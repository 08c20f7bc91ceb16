package coupon

import (
	"chara_shop/internal/domain/coupon/handler"
	"chara_shop/internal/domain/coupon/repository"
	"chara_shop/internal/domain/coupon/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/internal/pkg/registry"
)

// Module 优惠券模块
type Module struct{}

func init() {
	registry.Register(&Module{})
}

func (m *Module) Name() string {
	return "coupon"
}

func (m *Module) Priority() int {
	return 30
}

func (m *Module) Init(ctx *registry.ModuleContext) error {
	couponRepo := repository.NewCouponRepository(ctx.DB)
	couponService := service.NewCouponService(couponRepo)
	couponHandler := handler.NewCouponHandler(couponService)

	api := ctx.Router.Group("/api/v1")
	{
		coupons := api.Group("/coupons")
		coupons.Use(middleware.AuthMiddleware())
		{
			coupons.POST("/validate", couponHandler.Validate)
		}

		admin := api.Group("/admin/coupons")
		admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
		{
			admin.POST("", couponHandler.Create)
			admin.GET("", couponHandler.List)
		}
	}

	return nil
}
