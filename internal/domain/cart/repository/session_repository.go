package repository

import (
	"chara_shop/internal/domain/cart/model"

	"gorm.io/gorm"
)

// SessionRepository 匿名会话与匿名收藏数据访问接口
type SessionRepository interface {
	Create(session *model.AnonymousSession) error
	GetByTokenTx(tx *gorm.DB, token string) (*model.AnonymousSession, error)
	DeleteTx(tx *gorm.DB, sessionID string) error

	ExistsFavoriteTx(tx *gorm.DB, sessionID, itemID string) (bool, error)
	AddFavoriteTx(tx *gorm.DB, fav *model.AnonymousFavorite) error
	RemoveFavorite(sessionID, itemID string) error
	ListFavoritesTx(tx *gorm.DB, sessionID string) ([]model.AnonymousFavorite, error)
	DeleteFavoritesTx(tx *gorm.DB, sessionID string) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *model.AnonymousSession) error {
	return r.db.Create(session).Error
}

func (r *sessionRepository) GetByTokenTx(tx *gorm.DB, token string) (*model.AnonymousSession, error) {
	var session model.AnonymousSession
	err := tx.First(&session, "token = ?", token).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) DeleteTx(tx *gorm.DB, sessionID string) error {
	return tx.Unscoped().Delete(&model.AnonymousSession{}, "id = ?", sessionID).Error
}

func (r *sessionRepository) ExistsFavoriteTx(tx *gorm.DB, sessionID, itemID string) (bool, error) {
	var count int64
	err := tx.Model(&model.AnonymousFavorite{}).
		Where("session_id = ? AND item_id = ?", sessionID, itemID).
		Count(&count).Error
	return count > 0, err
}

func (r *sessionRepository) AddFavoriteTx(tx *gorm.DB, fav *model.AnonymousFavorite) error {
	return tx.Create(fav).Error
}

func (r *sessionRepository) RemoveFavorite(sessionID, itemID string) error {
	return r.db.Unscoped().
		Delete(&model.AnonymousFavorite{}, "session_id = ? AND item_id = ?", sessionID, itemID).Error
}

func (r *sessionRepository) ListFavoritesTx(tx *gorm.DB, sessionID string) ([]model.AnonymousFavorite, error) {
	var favs []model.AnonymousFavorite
	err := tx.Where("session_id = ?", sessionID).Find(&favs).Error
	return favs, err
}

func (r *sessionRepository) DeleteFavoritesTx(tx *gorm.DB, sessionID string) error {
	return tx.Unscoped().Delete(&model.AnonymousFavorite{}, "session_id = ?", sessionID).Error
}
