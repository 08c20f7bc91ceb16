package item

import (
	"chara_shop/internal/domain/item/handler"
	"chara_shop/internal/domain/item/repository"
	"chara_shop/internal/domain/item/service"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/internal/pkg/registry"

	"github.com/jmoiron/sqlx"
)

// Module 商品模块
type Module struct{}

func init() {
	registry.Register(&Module{})
}

func (m *Module) Name() string {
	return "item"
}

func (m *Module) Priority() int {
	return 10
}

func (m *Module) Init(ctx *registry.ModuleContext) error {
	// 1. 初始化仓储层（浏览历史聚合走 sqlx）
	sqlDB, err := ctx.DB.DB()
	if err != nil {
		return err
	}
	sqlxDB := sqlx.NewDb(sqlDB, "pgx")

	itemRepo := repository.NewItemRepository(ctx.DB)
	viewRepo := repository.NewViewHistoryRepository(sqlxDB)

	// 2. 初始化服务层
	itemService := service.NewItemService(itemRepo, viewRepo)
	recommendService := service.NewRecommendationService(viewRepo, itemRepo, ctx.Cache)

	// 3. 初始化处理器并注册路由
	itemHandler := handler.NewItemHandler(itemService, recommendService)

	api := ctx.Router.Group("/api/v1")
	{
		items := api.Group("/items")
		{
			items.GET("", itemHandler.List)
			items.GET("/popular", itemHandler.Popular)
			items.GET("/:id", middleware.OptionalAuthMiddleware(), itemHandler.Get)
		}

		admin := api.Group("/admin/items")
		admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
		{
			admin.POST("", itemHandler.Create)
		}
	}

	return nil
}
