package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chara_shop/internal/pkg/config"
	"chara_shop/internal/pkg/middleware"
	"chara_shop/internal/pkg/registry"
	"chara_shop/internal/pkg/worker"
	"chara_shop/pkg/cache"
	"chara_shop/pkg/database"
	"chara_shop/pkg/logger"
	"chara_shop/pkg/metrics"

	// 各业务模块通过 init() 自注册
	_ "chara_shop/internal/domain/cart"
	_ "chara_shop/internal/domain/coupon"
	_ "chara_shop/internal/domain/item"
	_ "chara_shop/internal/domain/order"
	_ "chara_shop/internal/domain/points"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置并初始化日志
	config.LoadConfig()
	cfg := config.GlobalConfig
	logger.Init(cfg.App.Debug)
	defer logger.Sync()

	// 2. 初始化存储：Postgres 是唯一事实来源，Redis 只放派生缓存
	db := database.InitDatabase()
	redisClient := database.InitRedis()

	collector := metrics.NewMetricsCollector()
	remote := cache.NewRedisCache(redisClient, cfg.Cache.Prefix)
	local := cache.NewMemoryCache()
	cacheFacade := cache.NewFallbackCache(
		remote,
		local,
		collector,
		time.Duration(cfg.Cache.LocalTTLMinutes)*time.Minute,
	)

	// 3. 下单后的缓存失效走异步 worker pool
	// 失效直连两层缓存：走门面会吞掉远程错误，重试队列永远不触发
	invalidator := worker.NewInvalidationPool(remote, local, 4, 1024)
	invalidator.Start()

	// 4. 初始化 HTTP 服务
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.LoggerMiddleware(),
		middleware.TraceMiddleware(),
		middleware.RateLimitMiddleware(),
	)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Anonymous-Token"},
		ExposeHeaders:    []string{"X-Trace-ID", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 5. 按优先级初始化各业务模块
	if err := registry.InitModules(&registry.ModuleContext{
		DB:          db,
		Redis:       redisClient,
		Router:      router,
		Cache:       cacheFacade,
		Metrics:     collector,
		Invalidator: invalidator,
	}); err != nil {
		logger.Log.Fatal("failed to initialize modules", zap.Error(err))
	}

	// 6. 启动并等待退出信号
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
	}
}
