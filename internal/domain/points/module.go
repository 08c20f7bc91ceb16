package points

import (
	"chara_shop/internal/domain/points/handler"
	"chara_shop/internal/domain/points/repository"
	"chara_shop/internal/domain/points/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/internal/pkg/registry"
)

// Module 积分模块
type Module struct{}

func init() {
	registry.Register(&Module{})
}

func (m *Module) Name() string {
	return "points"
}

func (m *Module) Priority() int {
	return 20
}

func (m *Module) Init(ctx *registry.ModuleContext) error {
	pointRepo := repository.NewPointRepository(ctx.DB)
	pointService := service.NewPointService(ctx.DB, pointRepo)
	pointHandler := handler.NewPointHandler(pointService)

	api := ctx.Router.Group("/api/v1")
	{
		pts := api.Group("/points")
		pts.Use(middleware.AuthMiddleware())
		{
			pts.GET("/balance", pointHandler.Balance)
			pts.GET("/history", pointHandler.History)
			pts.POST("/consume", pointHandler.Consume)
			pts.POST("/cancel", pointHandler.Cancel)
		}

		admin := api.Group("/admin/points")
		admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
		{
			admin.POST("/grant", pointHandler.Grant)
		}
	}

	return nil
}
