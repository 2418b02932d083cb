package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/SumantSagar73/certify/pkg/helper"
	"github.com/SumantSagar73/certify/pkg/kv"
)

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrLinkExpired  = errors.New("sign-in link is invalid or expired")
)

const magicPrefix = "certify:magic:"

// MagicLinks issues one-time sign-in tokens delivered by email.
type MagicLinks struct {
	kv        kv.Store
	mailer    Mailer
	ttl       time.Duration
	publicURL string
}

func NewMagicLinks(store kv.Store, mailer Mailer, ttl time.Duration, publicURL string) *MagicLinks {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MagicLinks{kv: store, mailer: mailer, ttl: ttl, publicURL: strings.TrimRight(publicURL, "/")}
}

// Send stores a fresh token for email and mails the link. The token is
// returned for callers that deliver it another way.
func (m *MagicLinks) Send(ctx context.Context, email string) (string, error) {
	email = helper.NormalizeEmail(email)
	if !helper.IsEmail(email) {
		return "", ErrInvalidEmail
	}
	token, err := helper.RandomToken(32)
	if err != nil {
		return "", err
	}
	if err := m.kv.Set(ctx, magicPrefix+token, email, m.ttl); err != nil {
		return "", fmt.Errorf("store magic link: %w", err)
	}
	link := fmt.Sprintf("%s/apis/v1/auth/verify?token=%s", m.publicURL, url.QueryEscape(token))
	if err := m.mailer.SendMagicLink(ctx, email, link); err != nil {
		_ = m.kv.Del(ctx, magicPrefix+token)
		return "", fmt.Errorf("send magic link: %w", err)
	}
	return token, nil
}

// Consume exchanges a token for its email exactly once.
func (m *MagicLinks) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrLinkExpired
	}
	email, err := m.kv.Take(ctx, magicPrefix+token)
	if errors.Is(err, kv.ErrNotFound) {
		return "", ErrLinkExpired
	}
	if err != nil {
		return "", err
	}
	return email, nil
}
