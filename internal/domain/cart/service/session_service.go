package service

import (
	"errors"
	"time"

	"chara_shop/internal/domain/cart/model"
	"chara_shop/internal/domain/cart/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("anonymous session not found or expired")

// SessionService 匿名会话管理
type SessionService interface {
	// Issue 签发一个新的匿名会话
	Issue() (*model.AnonymousSession, error)

	// Resolve 按 token 解析有效会话，过期视同不存在
	Resolve(token string) (*model.AnonymousSession, error)
}

type sessionService struct {
	db          *gorm.DB
	sessionRepo repository.SessionRepository
	ttl         time.Duration
}

func NewSessionService(db *gorm.DB, sessionRepo repository.SessionRepository, ttl time.Duration) SessionService {
	return &sessionService{
		db:          db,
		sessionRepo: sessionRepo,
		ttl:         ttl,
	}
}

func (s *sessionService) Issue() (*model.AnonymousSession, error) {
	session := &model.AnonymousSession{
		Token:     uuid.New().String(),
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionService) Resolve(token string) (*model.AnonymousSession, error) {
	session, err := s.sessionRepo.GetByTokenTx(s.db, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
