package service

import (
	"chara_shop/internal/domain/item/model"
	"chara_shop/internal/domain/item/repository"
	"chara_shop/pkg/logger"
	"chara_shop/pkg/utils"

	"go.uber.org/zap"
)

// CreateItemRequest 创建商品请求（管理端）
type CreateItemRequest struct {
	Name        string              `json:"name" binding:"required,max=200"`
	Description string              `json:"description"`
	Price       int                 `json:"price" binding:"required,min=1"`
	CategoryIDs []string            `json:"categoryIds"`
	HasSizes    bool                `json:"hasSizes"`
	Inventory   int                 `json:"inventory" binding:"min=0"`
	Sizes       []CreateSizeRequest `json:"sizes" binding:"dive"`
}

type CreateSizeRequest struct {
	Size      string `json:"size" binding:"required,max=20"`
	Inventory int    `json:"inventory" binding:"min=0"`
}

// ItemService 商品服务接口
type ItemService interface {
	CreateItem(req *CreateItemRequest) (*model.Item, error)
	GetItem(id string) (*model.Item, error)
	ListItems(page *utils.Pagination) (*utils.PageResult, error)

	// RecordView 记录浏览历史
	// 浏览计数是软数据，失败只记日志，绝不影响商品页响应
	RecordView(userID, itemID string)
}

type itemService struct {
	itemRepo repository.ItemRepository
	viewRepo repository.ViewHistoryRepository
}

func NewItemService(itemRepo repository.ItemRepository, viewRepo repository.ViewHistoryRepository) ItemService {
	return &itemService{
		itemRepo: itemRepo,
		viewRepo: viewRepo,
	}
}

func (s *itemService) CreateItem(req *CreateItemRequest) (*model.Item, error) {
	item := &model.Item{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryIDs: req.CategoryIDs,
		HasSizes:    req.HasSizes,
		IsActive:    true,
	}
	if req.HasSizes {
		for _, sz := range req.Sizes {
			item.Sizes = append(item.Sizes, model.ItemSize{
				Size:      sz.Size,
				Inventory: sz.Inventory,
			})
		}
	} else {
		item.Inventory = req.Inventory
	}

	if err := s.itemRepo.Create(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) GetItem(id string) (*model.Item, error) {
	return s.itemRepo.GetByID(id)
}

func (s *itemService) ListItems(page *utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	items, total, err := s.itemRepo.List(offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{
		List:  items,
		Total: total,
		Page:  page.Page,
		Limit: limit,
	}, nil
}

func (s *itemService) RecordView(userID, itemID string) {
	if err := s.viewRepo.Record(userID, itemID); err != nil {
		logger.Log.Warn("failed to record view history",
			zap.String("userID", userID),
			zap.String("itemID", itemID),
			zap.Error(err))
	}
}
