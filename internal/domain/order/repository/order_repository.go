package repository

import (
	"chara_shop/internal/domain/order/model"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	CreateTx(tx *gorm.DB, order *model.Order) error
	GetByID(id string) (*model.Order, error)
	GetByIDTx(tx *gorm.DB, id string) (*model.Order, error)
	GetByIdempotencyKey(key string) (*model.Order, error)
	ListByUser(userID string, offset, limit int) ([]model.Order, int64, error)
	UpdateStatusTx(tx *gorm.DB, orderID, from, to string) (bool, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateTx(tx *gorm.DB, order *model.Order) error {
	return tx.Create(order).Error
}

func (r *orderRepository) GetByID(id string) (*model.Order, error) {
	return r.GetByIDTx(r.db, id)
}

func (r *orderRepository) GetByIDTx(tx *gorm.DB, id string) (*model.Order, error) {
	var order model.Order
	err := tx.Preload("Items").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByIdempotencyKey(key string) (*model.Order, error) {
	var order model.Order
	err := r.db.Preload("Items").First(&order, "idempotency_key = ?", key).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(userID string, offset, limit int) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	if err := r.db.Model(&model.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

// UpdateStatusTx 条件状态迁移，返回是否真的改了状态
func (r *orderRepository) UpdateStatusTx(tx *gorm.DB, orderID, from, to string) (bool, error) {
	result := tx.Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
