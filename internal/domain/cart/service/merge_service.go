package service

import (
	"errors"
	"time"

	"chara_shop/internal/domain/cart/model"
	"chara_shop/internal/domain/cart/repository"
	"chara_shop/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MergeResult 合并结果
type MergeResult struct {
	MergedCartItems int `json:"mergedCartItems"`
	MergedFavorites int `json:"mergedFavorites"`
}

// MergeService 登录时把匿名会话的购物车和收藏并入用户名下
//
// 整个合并在一个事务里完成，最后删除匿名会话本身。
// 任何一步失败整体回滚，匿名会话保持完整可重试；
// 成功后会话已删除，重复调用是 no-op，因此天然幂等。
type MergeService interface {
	Merge(token, userID string) (*MergeResult, error)
}

type mergeService struct {
	db          *gorm.DB
	cartRepo    repository.CartRepository
	favRepo     repository.FavoriteRepository
	sessionRepo repository.SessionRepository
}

func NewMergeService(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	favRepo repository.FavoriteRepository,
	sessionRepo repository.SessionRepository,
) MergeService {
	return &mergeService{
		db:          db,
		cartRepo:    cartRepo,
		favRepo:     favRepo,
		sessionRepo: sessionRepo,
	}
}

func (s *mergeService) Merge(token, userID string) (*MergeResult, error) {
	result := &MergeResult{}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 1. 会话不存在或已过期 → no-op 成功
		session, err := s.sessionRepo.GetByTokenTx(tx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if !session.ExpiresAt.After(time.Now()) {
			return nil
		}

		// 2. 确保用户有购物车
		userCart, err := s.cartRepo.GetOrCreateByOwnerTx(tx, model.OwnerTypeUser, userID)
		if err != nil {
			return err
		}

		// 3. 合并购物车行：(itemId, size) 命中则数量累加，否则新开行
		anonCart, err := s.cartRepo.GetByOwnerTx(tx, model.OwnerTypeAnonymous, session.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if anonCart != nil {
			for _, anonLine := range anonCart.Items {
				existing, err := s.cartRepo.FindLineTx(tx, userCart.ID, anonLine.ItemID, anonLine.Size)
				if err == nil {
					if err := s.cartRepo.AddQuantityTx(tx, existing.ID, anonLine.Quantity); err != nil {
						return err
					}
				} else if errors.Is(err, gorm.ErrRecordNotFound) {
					newLine := &model.CartItem{
						CartID:   userCart.ID,
						ItemID:   anonLine.ItemID,
						Size:     anonLine.Size,
						Quantity: anonLine.Quantity,
					}
					if err := s.cartRepo.CreateLineTx(tx, newLine); err != nil {
						return err
					}
				} else {
					return err
				}
				result.MergedCartItems++
			}

			if err := s.cartRepo.DeleteCartTx(tx, anonCart.ID); err != nil {
				return err
			}
		}

		// 4. 合并收藏：存在即跳过，不累加
		anonFavs, err := s.sessionRepo.ListFavoritesTx(tx, session.ID)
		if err != nil {
			return err
		}
		for _, fav := range anonFavs {
			exists, err := s.favRepo.ExistsTx(tx, userID, fav.ItemID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := s.favRepo.CreateTx(tx, &model.Favorite{UserID: userID, ItemID: fav.ItemID}); err != nil {
				return err
			}
			result.MergedFavorites++
		}

		// 5. 清理匿名侧：收藏行和会话本身
		if err := s.sessionRepo.DeleteFavoritesTx(tx, session.ID); err != nil {
			return err
		}
		return s.sessionRepo.DeleteTx(tx, session.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("anonymous session merged",
		zap.String("userID", userID),
		zap.Int("cartItems", result.MergedCartItems),
		zap.Int("favorites", result.MergedFavorites))
	return result, nil
}
