package repository

import (
	"errors"

	"chara_shop/internal/domain/item/model"

	"gorm.io/gorm"
)

// ErrInsufficientInventory 库存不足（条件更新未命中任何行）
var ErrInsufficientInventory = errors.New("insufficient inventory")

// ItemRepository 商品数据访问接口
type ItemRepository interface {
	Create(item *model.Item) error
	GetByID(id string) (*model.Item, error)
	GetByIDs(ids []string) ([]model.Item, error)
	List(offset, limit int) ([]model.Item, int64, error)
	GetSize(itemID, size string) (*model.ItemSize, error)

	// DecrementItemInventoryTx 扣减无尺码商品库存
	// 采用条件更新（inventory >= quantity）保证不会超卖，
	// RowsAffected=0 视为库存不足
	DecrementItemInventoryTx(tx *gorm.DB, itemID string, quantity int) error

	// DecrementSizeInventoryTx 扣减指定尺码库存
	DecrementSizeInventoryTx(tx *gorm.DB, itemID, size string, quantity int) error

	// RestoreItemInventoryTx 取消订单时回补库存
	RestoreItemInventoryTx(tx *gorm.DB, itemID string, quantity int) error
	RestoreSizeInventoryTx(tx *gorm.DB, itemID, size string, quantity int) error
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(item *model.Item) error {
	return r.db.Create(item).Error
}

func (r *itemRepository) GetByID(id string) (*model.Item, error) {
	var item model.Item
	err := r.db.Preload("Sizes").First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepository) GetByIDs(ids []string) ([]model.Item, error) {
	var items []model.Item
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.Preload("Sizes").Where("id IN ?", ids).Find(&items).Error
	return items, err
}

func (r *itemRepository) List(offset, limit int) ([]model.Item, int64, error) {
	var items []model.Item
	var total int64

	if err := r.db.Model(&model.Item{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Preload("Sizes").
		Where("is_active = ?", true).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	return items, total, err
}

func (r *itemRepository) GetSize(itemID, size string) (*model.ItemSize, error) {
	var s model.ItemSize
	err := r.db.First(&s, "item_id = ? AND size = ?", itemID, size).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *itemRepository) DecrementItemInventoryTx(tx *gorm.DB, itemID string, quantity int) error {
	result := tx.Model(&model.Item{}).
		Where("id = ? AND has_sizes = ? AND inventory >= ?", itemID, false, quantity).
		Update("inventory", gorm.Expr("inventory - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientInventory
	}
	return nil
}

func (r *itemRepository) DecrementSizeInventoryTx(tx *gorm.DB, itemID, size string, quantity int) error {
	result := tx.Model(&model.ItemSize{}).
		Where("item_id = ? AND size = ? AND inventory >= ?", itemID, size, quantity).
		Update("inventory", gorm.Expr("inventory - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientInventory
	}
	return nil
}

func (r *itemRepository) RestoreItemInventoryTx(tx *gorm.DB, itemID string, quantity int) error {
	return tx.Model(&model.Item{}).
		Where("id = ?", itemID).
		Update("inventory", gorm.Expr("inventory + ?", quantity)).Error
}

func (r *itemRepository) RestoreSizeInventoryTx(tx *gorm.DB, itemID, size string, quantity int) error {
	return tx.Model(&model.ItemSize{}).
		Where("item_id = ? AND size = ?", itemID, size).
		Update("inventory", gorm.Expr("inventory + ?", quantity)).Error
}
