package service

import (
	"encoding/json"
	"errors"
	"time"

	"chara_shop/internal/domain/points/model"
	"chara_shop/internal/domain/points/repository"
	"chara_shop/pkg/logger"
	"chara_shop/pkg/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientPoints 可用积分不足
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInvalidAmount 数量非法（<=0）
	ErrInvalidAmount = errors.New("point amount must be positive")
)

const (
	reasonOrderPayment   = "order payment"
	reasonSplitRemainder = "split remainder"
	reasonOrderCancelled = "order cancelled refund"
)

// ConsumeResult 一次消费的结果
type ConsumeResult struct {
	UsedPoints        int      `json:"usedPoints"`
	NegativeRecordIDs []string `json:"negativeRecordIds"`
}

// PointService 积分账本服务
//
// 消费策略：先过期先消费（FIFO by expiresAt）。
// 部分抽取一条授予时，整条标记已用，同时拆出一条余额授予记录，
// 余额继承原记录的过期时间，保证用户不会因为部分消费而提前损失积分。
type PointService interface {
	Grant(userID string, amount int, expiresAt time.Time, reason string) (*model.PointRecord, error)
	Balance(userID string) (int, error)
	History(userID string, page *utils.Pagination) (*utils.PageResult, error)

	Consume(userID string, amount int, orderID string) (*ConsumeResult, error)
	ConsumeTx(tx *gorm.DB, userID string, amount int, orderID string) (*ConsumeResult, error)

	Cancel(orderID string) error
	CancelTx(tx *gorm.DB, orderID string) error
}

type pointService struct {
	db   *gorm.DB
	repo repository.PointRepository
}

func NewPointService(db *gorm.DB, repo repository.PointRepository) PointService {
	return &pointService{db: db, repo: repo}
}

func (s *pointService) Grant(userID string, amount int, expiresAt time.Time, reason string) (*model.PointRecord, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	record := &model.PointRecord{
		UserID:    userID,
		Amount:    amount,
		ExpiresAt: expiresAt,
		Reason:    reason,
	}
	if err := s.repo.CreateTx(s.db, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *pointService) Balance(userID string) (int, error) {
	records, err := s.repo.AvailableByUserTx(s.db, userID, time.Now())
	if err != nil {
		return 0, err
	}
	total := 0
	for _, r := range records {
		total += r.Amount
	}
	return total, nil
}

func (s *pointService) History(userID string, page *utils.Pagination) (*utils.PageResult, error) {
	offset, limit := page.GetPageOffset()
	records, total, err := s.repo.ListByUser(userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return &utils.PageResult{
		List:  records,
		Total: total,
		Page:  page.Page,
		Limit: limit,
	}, nil
}

func (s *pointService) Consume(userID string, amount int, orderID string) (*ConsumeResult, error) {
	var result *ConsumeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.ConsumeTx(tx, userID, amount, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConsumeTx 在调用方事务里执行消费
// 并发抢同一条授予时条件更新会失败，错误原样抛出由调用方决定重试
func (s *pointService) ConsumeTx(tx *gorm.DB, userID string, amount int, orderID string) (*ConsumeResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	grants, err := s.repo.AvailableByUserTx(tx, userID, now)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, g := range grants {
		total += g.Amount
	}
	if total < amount {
		return nil, ErrInsufficientPoints
	}

	result := &ConsumeResult{UsedPoints: amount}
	remaining := amount
	for _, grant := range grants {
		if remaining == 0 {
			break
		}

		// 整条标记已用，抢不到说明被并发消费了
		if err := s.repo.MarkUsedTx(tx, grant.ID); err != nil {
			return nil, err
		}

		drawn := remaining
		if grant.Amount < drawn {
			drawn = grant.Amount
		}

		negative := &model.PointRecord{
			UserID:         userID,
			Amount:         -drawn,
			ExpiresAt:      grant.ExpiresAt,
			OrderID:        orderID,
			SourceRecordID: grant.ID,
			Reason:         reasonOrderPayment,
		}
		if err := s.repo.CreateTx(tx, negative); err != nil {
			return nil, err
		}
		result.NegativeRecordIDs = append(result.NegativeRecordIDs, negative.ID)

		// 部分抽取：余额拆成一条新授予，过期时间不变
		if drawn < grant.Amount {
			remainder := &model.PointRecord{
				UserID:         userID,
				Amount:         grant.Amount - drawn,
				ExpiresAt:      grant.ExpiresAt,
				OrderID:        orderID,
				SourceRecordID: grant.ID,
				Reason:         reasonSplitRemainder,
			}
			if err := s.repo.CreateTx(tx, remainder); err != nil {
				return nil, err
			}
		}

		remaining -= drawn
	}

	// 订单行已存在时同步积分字段（下单流程里订单还没创建，这里影响 0 行是正常的）
	if err := s.syncOrderPoints(tx, orderID, amount, result.NegativeRecordIDs); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *pointService) Cancel(orderID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.CancelTx(tx, orderID)
	})
}

// CancelTx 撤销订单的积分消费
// 没有任何消费记录时是 no-op 成功
func (s *pointService) CancelTx(tx *gorm.DB, orderID string) error {
	records, err := s.repo.FindByOrderTx(tx, orderID)
	if err != nil {
		return err
	}

	// 按来源索引本次订单拆出的余额记录
	remainders := make(map[string]*model.PointRecord)
	for i := range records {
		r := &records[i]
		if r.Amount > 0 && r.SourceRecordID != "" {
			remainders[r.SourceRecordID] = r
		}
	}

	restored := false
	for i := range records {
		rec := &records[i]
		if rec.Amount >= 0 || rec.IsCancelled {
			continue
		}

		remainder := remainders[rec.SourceRecordID]
		if remainder != nil && remainder.IsUsed {
			// 余额已被后续订单消费，恢复整条来源会重复返还，
			// 改为补发一条等额授予（过期时间继承来源）
			refund := &model.PointRecord{
				UserID:         rec.UserID,
				Amount:         -rec.Amount,
				ExpiresAt:      rec.ExpiresAt,
				SourceRecordID: rec.SourceRecordID,
				Reason:         reasonOrderCancelled,
			}
			if err := s.repo.CreateTx(tx, refund); err != nil {
				return err
			}
		} else {
			if err := s.repo.RestoreTx(tx, rec.SourceRecordID); err != nil {
				return err
			}
			if remainder != nil {
				if err := s.repo.CancelTx(tx, remainder.ID); err != nil {
					return err
				}
			}
		}

		if err := s.repo.CancelTx(tx, rec.ID); err != nil {
			return err
		}
		restored = true
	}

	if restored {
		if err := s.syncOrderPoints(tx, orderID, 0, nil); err != nil {
			return err
		}
		logger.Log.Info("points restored for cancelled order", zap.String("orderID", orderID))
	}

	return nil
}

// syncOrderPoints 把积分占用情况写回订单行
// 用表名直写避免 points 包反向依赖 order 包
func (s *pointService) syncOrderPoints(tx *gorm.DB, orderID string, used int, negativeIDs []string) error {
	if orderID == "" {
		return nil
	}
	ids, err := json.Marshal(negativeIDs)
	if err != nil {
		return err
	}
	return tx.Table("orders").Where("id = ?", orderID).Updates(map[string]interface{}{
		"points_used":     used,
		"points_used_ids": string(ids),
	}).Error
}
