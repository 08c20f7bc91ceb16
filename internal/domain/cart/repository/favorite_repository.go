package repository

import (
	"chara_shop/internal/domain/cart/model"

	"gorm.io/gorm"
)

// FavoriteRepository 用户收藏数据访问接口
type FavoriteRepository interface {
	ExistsTx(tx *gorm.DB, userID, itemID string) (bool, error)
	CreateTx(tx *gorm.DB, fav *model.Favorite) error
	Remove(userID, itemID string) error
	ListByUser(userID string) ([]model.Favorite, error)
}

type favoriteRepository struct {
	db *gorm.DB
}

func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) ExistsTx(tx *gorm.DB, userID, itemID string) (bool, error) {
	var count int64
	err := tx.Model(&model.Favorite{}).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		Count(&count).Error
	return count > 0, err
}

func (r *favoriteRepository) CreateTx(tx *gorm.DB, fav *model.Favorite) error {
	return tx.Create(fav).Error
}

func (r *favoriteRepository) Remove(userID, itemID string) error {
	return r.db.Unscoped().
		Delete(&model.Favorite{}, "user_id = ? AND item_id = ?", userID, itemID).Error
}

func (r *favoriteRepository) ListByUser(userID string) ([]model.Favorite, error) {
	var favs []model.Favorite
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&favs).Error
	return favs, err
}
