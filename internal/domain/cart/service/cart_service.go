package service

import (
	"errors"

	"chara_shop/internal/domain/cart/model"
	"chara_shop/internal/domain/cart/repository"
	itemRepo "chara_shop/internal/domain/item/repository"

	"gorm.io/gorm"
)

var (
	// ErrItemNotFound 商品不存在或已下架
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidSize 商品不支持该尺码
	ErrInvalidSize = errors.New("invalid size for item")
	// ErrLineNotFound 购物车行不存在
	ErrLineNotFound = errors.New("cart line not found")
	// ErrInvalidQuantity 数量非法
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// CartService 购物车与收藏服务
// 同时服务登录用户和匿名会话，归属由 (ownerType, ownerID) 决定
type CartService interface {
	GetCart(ownerType, ownerID string) (*model.Cart, error)
	AddItem(ownerType, ownerID, itemID, size string, quantity int) (*model.CartItem, error)
	UpdateQuantity(ownerType, ownerID, lineID string, quantity int) error
	RemoveLine(ownerType, ownerID, lineID string) error

	AddFavorite(userID, itemID string) error
	RemoveFavorite(userID, itemID string) error
	ListFavorites(userID string) ([]model.Favorite, error)

	AddAnonymousFavorite(sessionID, itemID string) error
	RemoveAnonymousFavorite(sessionID, itemID string) error
}

type cartService struct {
	db          *gorm.DB
	cartRepo    repository.CartRepository
	favRepo     repository.FavoriteRepository
	sessionRepo repository.SessionRepository
	itemRepo    itemRepo.ItemRepository
}

func NewCartService(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	favRepo repository.FavoriteRepository,
	sessionRepo repository.SessionRepository,
	items itemRepo.ItemRepository,
) CartService {
	return &cartService{
		db:          db,
		cartRepo:    cartRepo,
		favRepo:     favRepo,
		sessionRepo: sessionRepo,
		itemRepo:    items,
	}
}

func (s *cartService) GetCart(ownerType, ownerID string) (*model.Cart, error) {
	cart, err := s.cartRepo.GetByOwnerTx(s.db, ownerType, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 没有车等价于空车
			return &model.Cart{OwnerType: ownerType, OwnerID: ownerID, Items: []model.CartItem{}}, nil
		}
		return nil, err
	}
	return cart, nil
}

// AddItem 加购
// 同一 (itemId, size) 已在车里时数量累加而不是新开一行
func (s *cartService) AddItem(ownerType, ownerID, itemID, size string, quantity int) (*model.CartItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.checkItem(itemID, size); err != nil {
		return nil, err
	}

	var line *model.CartItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cart, err := s.cartRepo.GetOrCreateByOwnerTx(tx, ownerType, ownerID)
		if err != nil {
			return err
		}

		existing, err := s.cartRepo.FindLineTx(tx, cart.ID, itemID, size)
		if err == nil {
			if err := s.cartRepo.AddQuantityTx(tx, existing.ID, quantity); err != nil {
				return err
			}
			existing.Quantity += quantity
			line = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		line = &model.CartItem{
			CartID:   cart.ID,
			ItemID:   itemID,
			Size:     size,
			Quantity: quantity,
		}
		return s.cartRepo.CreateLineTx(tx, line)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (s *cartService) UpdateQuantity(ownerType, ownerID, lineID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.checkLineOwnership(ownerType, ownerID, lineID); err != nil {
		return err
	}
	return s.cartRepo.UpdateQuantity(lineID, quantity)
}

func (s *cartService) RemoveLine(ownerType, ownerID, lineID string) error {
	if err := s.checkLineOwnership(ownerType, ownerID, lineID); err != nil {
		return err
	}
	return s.cartRepo.DeleteLine(lineID)
}

func (s *cartService) AddFavorite(userID, itemID string) error {
	if err := s.checkItem(itemID, ""); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.favRepo.ExistsTx(tx, userID, itemID)
		if err != nil || exists {
			return err
		}
		return s.favRepo.CreateTx(tx, &model.Favorite{UserID: userID, ItemID: itemID})
	})
}

func (s *cartService) RemoveFavorite(userID, itemID string) error {
	return s.favRepo.Remove(userID, itemID)
}

func (s *cartService) ListFavorites(userID string) ([]model.Favorite, error) {
	return s.favRepo.ListByUser(userID)
}

func (s *cartService) AddAnonymousFavorite(sessionID, itemID string) error {
	if err := s.checkItem(itemID, ""); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.sessionRepo.ExistsFavoriteTx(tx, sessionID, itemID)
		if err != nil || exists {
			return err
		}
		return s.sessionRepo.AddFavoriteTx(tx, &model.AnonymousFavorite{SessionID: sessionID, ItemID: itemID})
	})
}

func (s *cartService) RemoveAnonymousFavorite(sessionID, itemID string) error {
	return s.sessionRepo.RemoveFavorite(sessionID, itemID)
}

// checkItem 校验商品存在且（传了尺码时）尺码有效
func (s *cartService) checkItem(itemID, size string) error {
	item, err := s.itemRepo.GetByID(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	if !item.IsActive {
		return ErrItemNotFound
	}

	if item.HasSizes && size != "" {
		for _, sz := range item.Sizes {
			if sz.Size == size {
				return nil
			}
		}
		return ErrInvalidSize
	}
	return nil
}

func (s *cartService) checkLineOwnership(ownerType, ownerID, lineID string) error {
	line, err := s.cartRepo.GetLine(lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLineNotFound
		}
		return err
	}

	cart, err := s.cartRepo.GetByOwnerTx(s.db, ownerType, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLineNotFound
		}
		return err
	}
	if line.CartID != cart.ID {
		return ErrLineNotFound
	}
	return nil
}
