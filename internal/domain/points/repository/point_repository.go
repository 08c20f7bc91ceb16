package repository

import (
	"errors"
	"time"

	"chara_shop/internal/domain/points/model"

	"gorm.io/gorm"
)

// ErrRecordConflict 乐观更新未命中（记录已被并发消费）
var ErrRecordConflict = errors.New("point record was modified concurrently")

// PointRepository 积分记录数据访问接口
type PointRepository interface {
	CreateTx(tx *gorm.DB, record *model.PointRecord) error

	// AvailableByUserTx 查询可用授予记录，先过期先返回（FIFO）
	AvailableByUserTx(tx *gorm.DB, userID string, now time.Time) ([]model.PointRecord, error)

	// MarkUsedTx 条件更新把授予记录标记为已用
	// 已被别的事务抢先标记时返回 ErrRecordConflict
	MarkUsedTx(tx *gorm.DB, recordID string) error

	// RestoreTx 取消订单时恢复授予记录
	RestoreTx(tx *gorm.DB, recordID string) error

	// CancelTx 作废一条记录（消费记录 / 余额拆分记录）
	CancelTx(tx *gorm.DB, recordID string) error

	FindByOrderTx(tx *gorm.DB, orderID string) ([]model.PointRecord, error)
	GetByIDTx(tx *gorm.DB, recordID string) (*model.PointRecord, error)
	ListByUser(userID string, offset, limit int) ([]model.PointRecord, int64, error)
}

type pointRepository struct {
	db *gorm.DB
}

func NewPointRepository(db *gorm.DB) PointRepository {
	return &pointRepository{db: db}
}

func (r *pointRepository) CreateTx(tx *gorm.DB, record *model.PointRecord) error {
	return tx.Create(record).Error
}

func (r *pointRepository) AvailableByUserTx(tx *gorm.DB, userID string, now time.Time) ([]model.PointRecord, error) {
	var records []model.PointRecord
	err := tx.Where("user_id = ? AND amount > 0 AND is_used = ? AND is_cancelled = ? AND expires_at > ?",
		userID, false, false, now).
		Order("expires_at ASC, created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *pointRepository) MarkUsedTx(tx *gorm.DB, recordID string) error {
	result := tx.Model(&model.PointRecord{}).
		Where("id = ? AND is_used = ? AND is_cancelled = ?", recordID, false, false).
		Update("is_used", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordConflict
	}
	return nil
}

func (r *pointRepository) RestoreTx(tx *gorm.DB, recordID string) error {
	return tx.Model(&model.PointRecord{}).
		Where("id = ?", recordID).
		Update("is_used", false).Error
}

func (r *pointRepository) CancelTx(tx *gorm.DB, recordID string) error {
	return tx.Model(&model.PointRecord{}).
		Where("id = ?", recordID).
		Update("is_cancelled", true).Error
}

func (r *pointRepository) FindByOrderTx(tx *gorm.DB, orderID string) ([]model.PointRecord, error) {
	var records []model.PointRecord
	err := tx.Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *pointRepository) GetByIDTx(tx *gorm.DB, recordID string) (*model.PointRecord, error) {
	var record model.PointRecord
	err := tx.First(&record, "id = ?", recordID).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *pointRepository) ListByUser(userID string, offset, limit int) ([]model.PointRecord, int64, error) {
	var records []model.PointRecord
	var total int64

	if err := r.db.Model(&model.PointRecord{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&records).Error
	return records, total, err
}
