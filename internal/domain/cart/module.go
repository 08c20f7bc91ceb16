package cart

import (
	"time"

	"chara_shop/internal/domain/cart/handler"
	"chara_shop/internal/domain/cart/repository"
	"chara_shop/internal/domain/cart/service"
	itemRepo "chara_shop/internal/domain/item/repository"
	"chara_shop/internal/pkg/config"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/internal/pkg/registry"
)

// Module 购物车模块
type Module struct{}

func init() {
	registry.Register(&Module{})
}

func (m *Module) Name() string {
	return "cart"
}

func (m *Module) Priority() int {
	return 40
}

func (m *Module) Init(ctx *registry.ModuleContext) error {
	cartRepo := repository.NewCartRepository(ctx.DB)
	favRepo := repository.NewFavoriteRepository(ctx.DB)
	sessionRepo := repository.NewSessionRepository(ctx.DB)
	items := itemRepo.NewItemRepository(ctx.DB)

	sessionTTL := time.Duration(config.GlobalConfig.Shop.AnonymousSessionTTLHours) * time.Hour
	cartService := service.NewCartService(ctx.DB, cartRepo, favRepo, sessionRepo, items)
	sessionService := service.NewSessionService(ctx.DB, sessionRepo, sessionTTL)
	mergeService := service.NewMergeService(ctx.DB, cartRepo, favRepo, sessionRepo)

	cartHandler := handler.NewCartHandler(cartService, sessionService)
	mergeHandler := handler.NewMergeHandler(mergeService)

	api := ctx.Router.Group("/api/v1")
	{
		sessions := api.Group("/sessions")
		{
			sessions.POST("/anonymous", cartHandler.IssueSession)
			sessions.POST("/merge", middleware.AuthMiddleware(), mergeHandler.Merge)
		}

		carts := api.Group("/cart")
		carts.Use(middleware.OptionalAuthMiddleware())
		{
			carts.GET("", cartHandler.GetCart)
			carts.POST("/items", cartHandler.AddItem)
			carts.PUT("/items/:id", cartHandler.UpdateLine)
			carts.DELETE("/items/:id", cartHandler.RemoveLine)
		}

		favorites := api.Group("/favorites")
		favorites.Use(middleware.OptionalAuthMiddleware())
		{
			favorites.GET("", cartHandler.ListFavorites)
			favorites.POST("", cartHandler.AddFavorite)
			favorites.DELETE("/:itemId", cartHandler.RemoveFavorite)
		}
	}

	return nil
}
