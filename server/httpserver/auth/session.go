package auth

import (
	"context"
	"time"

	pkgauth "github.com/SumantSagar73/certify/server/pkg/auth"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/SumantSagar73/certify/server/storage/models"
)

type Session struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

// Sessions turns a verified email into a signed-in user.
type Sessions struct {
	store  storage.Store
	tokens *pkgauth.TokenManager
}

func NewSessions(store storage.Store, tokens *pkgauth.TokenManager) *Sessions {
	return &Sessions{store: store, tokens: tokens}
}

func (s *Sessions) Issue(ctx context.Context, email string) (*Session, error) {
	user, err := s.store.FindOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}
	td, err := s.tokens.CreateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: td.AccessToken,
		ExpiresAt:   time.Unix(td.AtExpires, 0).UTC(),
		User:        user,
	}, nil
}

func (s *Sessions) Current(ctx context.Context, acc *pkgauth.AccessDetails) (*Session, error) {
	user, err := s.store.GetUser(ctx, acc.UserID)
	if err != nil {
		return nil, err
	}
	return &Session{ExpiresAt: acc.ExpiresAt.UTC(), User: user}, nil
}
