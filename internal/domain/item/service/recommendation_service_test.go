package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"chara_shop/internal/domain/item/model"
	"chara_shop/internal/domain/item/repository"
	"chara_shop/pkg/cache"
	baseModel "chara_shop/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockViewHistoryRepository 浏览历史仓储 mock
type MockViewHistoryRepository struct {
	mock.Mock
}

func (m *MockViewHistoryRepository) Record(userID, itemID string) error {
	args := m.Called(userID, itemID)
	return args.Error(0)
}

func (m *MockViewHistoryRepository) TopViewedItems(since time.Time, limit int) ([]repository.ItemViewCount, error) {
	args := m.Called(since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ItemViewCount), args.Error(1)
}

// mockRecommendItemRepo 商品仓储 mock (推荐服务只用到 GetByIDs)
type mockRecommendItemRepo struct {
	mock.Mock
}

func (m *mockRecommendItemRepo) Create(item *model.Item) error {
	args := m.Called(item)
	return args.Error(0)
}

func (m *mockRecommendItemRepo) GetByID(id string) (*model.Item, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Item), args.Error(1)
}

func (m *mockRecommendItemRepo) GetByIDs(ids []string) ([]model.Item, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Item), args.Error(1)
}

func (m *mockRecommendItemRepo) List(offset, limit int) ([]model.Item, int64, error) {
	args := m.Called(offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]model.Item), args.Get(1).(int64), args.Error(2)
}

func (m *mockRecommendItemRepo) GetSize(itemID, size string) (*model.ItemSize, error) {
	args := m.Called(itemID, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ItemSize), args.Error(1)
}

func (m *mockRecommendItemRepo) DecrementItemInventoryTx(tx *gorm.DB, itemID string, quantity int) error {
	args := m.Called(tx, itemID, quantity)
	return args.Error(0)
}

func (m *mockRecommendItemRepo) DecrementSizeInventoryTx(tx *gorm.DB, itemID, size string, quantity int) error {
	args := m.Called(tx, itemID, size, quantity)
	return args.Error(0)
}

func (m *mockRecommendItemRepo) RestoreItemInventoryTx(tx *gorm.DB, itemID string, quantity int) error {
	args := m.Called(tx, itemID, quantity)
	return args.Error(0)
}

func (m *mockRecommendItemRepo) RestoreSizeInventoryTx(tx *gorm.DB, itemID, size string, quantity int) error {
	args := m.Called(tx, itemID, size, quantity)
	return args.Error(0)
}

func activeItem(id, name string) model.Item {
	return model.Item{
		BaseModel: baseModel.BaseModel{ID: id},
		Name:      name,
		Price:     1000,
		IsActive:  true,
	}
}

func TestRecommendationService_PopularItems(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates, orders by views and caches the result", func(t *testing.T) {
		viewRepo := new(MockViewHistoryRepository)
		itemRepo := new(mockRecommendItemRepo)
		memCache := cache.NewMemoryCache()

		viewRepo.On("TopViewedItems", mock.Anything, 10).Return([]repository.ItemViewCount{
			{ItemID: "item-b", ViewCount: 20},
			{ItemID: "item-a", ViewCount: 5},
		}, nil)
		// GetByIDs 故意乱序返回，服务端要按浏览量重排
		itemRepo.On("GetByIDs", []string{"item-b", "item-a"}).Return([]model.Item{
			activeItem("item-a", "缶バッジ"),
			activeItem("item-b", "ぬいぐるみ"),
		}, nil)

		svc := NewRecommendationService(viewRepo, itemRepo, memCache)

		items, err := svc.PopularItems(ctx, 10)
		assert.NoError(t, err)
		assert.Len(t, items, 2)
		assert.Equal(t, "item-b", items[0].ID)
		assert.Equal(t, "item-a", items[1].ID)

		// 第二次直接命中缓存，不再触发聚合
		items2, err := svc.PopularItems(ctx, 10)
		assert.NoError(t, err)
		assert.Len(t, items2, 2)
		viewRepo.AssertNumberOfCalls(t, "TopViewedItems", 1)
	})

	t.Run("degrades to empty list when aggregation fails", func(t *testing.T) {
		viewRepo := new(MockViewHistoryRepository)
		itemRepo := new(mockRecommendItemRepo)

		viewRepo.On("TopViewedItems", mock.Anything, 10).Return(nil, errors.New("db down"))

		svc := NewRecommendationService(viewRepo, itemRepo, cache.NewMemoryCache())

		items, err := svc.PopularItems(ctx, 10)
		assert.NoError(t, err)
		assert.Empty(t, items)
		itemRepo.AssertNotCalled(t, "GetByIDs")
	})

	t.Run("inactive items are filtered out of the ranking", func(t *testing.T) {
		viewRepo := new(MockViewHistoryRepository)
		itemRepo := new(mockRecommendItemRepo)

		viewRepo.On("TopViewedItems", mock.Anything, 10).Return([]repository.ItemViewCount{
			{ItemID: "item-a", ViewCount: 9},
			{ItemID: "item-c", ViewCount: 3},
		}, nil)
		retired := activeItem("item-c", "販売終了グッズ")
		retired.IsActive = false
		itemRepo.On("GetByIDs", []string{"item-a", "item-c"}).Return([]model.Item{
			activeItem("item-a", "キーホルダー"),
			retired,
		}, nil)

		svc := NewRecommendationService(viewRepo, itemRepo, cache.NewMemoryCache())

		items, err := svc.PopularItems(ctx, 10)
		assert.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, "item-a", items[0].ID)
	})
}
