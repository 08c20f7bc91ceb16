package repository

import (
	"errors"

	"chara_shop/internal/domain/cart/model"

	"gorm.io/gorm"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByOwnerTx(tx *gorm.DB, ownerType, ownerID string) (*model.Cart, error)
	GetOrCreateByOwnerTx(tx *gorm.DB, ownerType, ownerID string) (*model.Cart, error)

	FindLineTx(tx *gorm.DB, cartID, itemID, size string) (*model.CartItem, error)
	CreateLineTx(tx *gorm.DB, line *model.CartItem) error
	AddQuantityTx(tx *gorm.DB, lineID string, delta int) error
	UpdateQuantity(lineID string, quantity int) error
	GetLine(lineID string) (*model.CartItem, error)
	DeleteLine(lineID string) error
	DeleteLinesTx(tx *gorm.DB, lineIDs []string) error

	// DeleteCartTx 删除购物车并级联删除所有行
	DeleteCartTx(tx *gorm.DB, cartID string) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetByOwnerTx(tx *gorm.DB, ownerType, ownerID string) (*model.Cart, error) {
	var cart model.Cart
	err := tx.Preload("Items").
		First(&cart, "owner_type = ? AND owner_id = ?", ownerType, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) GetOrCreateByOwnerTx(tx *gorm.DB, ownerType, ownerID string) (*model.Cart, error) {
	cart, err := r.GetByOwnerTx(tx, ownerType, ownerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &model.Cart{OwnerType: ownerType, OwnerID: ownerID}
	if err := tx.Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (r *cartRepository) FindLineTx(tx *gorm.DB, cartID, itemID, size string) (*model.CartItem, error) {
	var line model.CartItem
	err := tx.First(&line, "cart_id = ? AND item_id = ? AND size = ?", cartID, itemID, size).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepository) CreateLineTx(tx *gorm.DB, line *model.CartItem) error {
	return tx.Create(line).Error
}

func (r *cartRepository) AddQuantityTx(tx *gorm.DB, lineID string, delta int) error {
	return tx.Model(&model.CartItem{}).
		Where("id = ?", lineID).
		Update("quantity", gorm.Expr("quantity + ?", delta)).Error
}

func (r *cartRepository) UpdateQuantity(lineID string, quantity int) error {
	return r.db.Model(&model.CartItem{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

func (r *cartRepository) GetLine(lineID string) (*model.CartItem, error) {
	var line model.CartItem
	err := r.db.First(&line, "id = ?", lineID).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepository) DeleteLine(lineID string) error {
	return r.db.Unscoped().Delete(&model.CartItem{}, "id = ?", lineID).Error
}

func (r *cartRepository) DeleteLinesTx(tx *gorm.DB, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}
	return tx.Unscoped().Delete(&model.CartItem{}, "id IN ?", lineIDs).Error
}

func (r *cartRepository) DeleteCartTx(tx *gorm.DB, cartID string) error {
	if err := tx.Unscoped().Delete(&model.CartItem{}, "cart_id = ?", cartID).Error; err != nil {
		return err
	}
	return tx.Unscoped().Delete(&model.Cart{}, "id = ?", cartID).Error
}
