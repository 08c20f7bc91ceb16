package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chara_shop/internal/domain/item/model"
	"chara_shop/internal/domain/item/repository"
	"chara_shop/pkg/cache"
	"chara_shop/pkg/logger"

	"go.uber.org/zap"
)

const (
	popularItemsCacheKey = "recommend:popular:%d"
	popularItemsCacheTTL = time.Minute * 10
	popularWindowDays    = 30
)

// RecommendationService 浏览量排行推荐
// 排行是派生数据：集计失败时降级为空列表，不阻断商品页
type RecommendationService interface {
	PopularItems(ctx context.Context, limit int) ([]model.Item, error)
}

type recommendationService struct {
	viewRepo repository.ViewHistoryRepository
	itemRepo repository.ItemRepository
	cache    cache.CacheService
}

func NewRecommendationService(
	viewRepo repository.ViewHistoryRepository,
	itemRepo repository.ItemRepository,
	cacheService cache.CacheService,
) RecommendationService {
	return &recommendationService{
		viewRepo: viewRepo,
		itemRepo: itemRepo,
		cache:    cacheService,
	}
}

func (s *recommendationService) PopularItems(ctx context.Context, limit int) ([]model.Item, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	cacheKey := fmt.Sprintf(popularItemsCacheKey, limit)

	// 1. 先查缓存
	var cached []model.Item
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Log.Warn("popular items cache read failed", zap.Error(err))
	}

	// 2. 缓存未命中，按最近 30 天浏览量聚合
	since := time.Now().AddDate(0, 0, -popularWindowDays)
	counts, err := s.viewRepo.TopViewedItems(since, limit)
	if err != nil {
		// 排行集计挂了不应该拖垮页面，降级为空
		logger.Log.Warn("view history aggregation failed, degrading to empty list", zap.Error(err))
		return []model.Item{}, nil
	}

	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.ItemID)
	}

	items, err := s.itemRepo.GetByIDs(ids)
	if err != nil {
		logger.Log.Warn("failed to load recommended items", zap.Error(err))
		return []model.Item{}, nil
	}

	// 保持浏览量排序（GetByIDs 不保证顺序）
	byID := make(map[string]model.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	ordered := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok && it.IsActive {
			ordered = append(ordered, it)
		}
	}

	// 3. 回写缓存，失败不影响结果
	if err := s.cache.Set(ctx, cacheKey, ordered, popularItemsCacheTTL); err != nil {
		logger.Log.Warn("failed to cache popular items", zap.Error(err))
	}

	return ordered, nil
}
