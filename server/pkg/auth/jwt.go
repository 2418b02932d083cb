package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	uuid "github.com/satori/go.uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type AccessDetails struct {
	TokenUuid string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

type TokenDetails struct {
	AccessToken string
	TokenUuid   string
	AtExpires   int64
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(hmacSecret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(hmacSecret), ttl: ttl, now: time.Now}
}

func (t *TokenManager) TTL() time.Duration {
	return t.ttl
}

func (t *TokenManager) CreateToken(userID, email string) (*TokenDetails, error) {
	now := t.now()
	td := &TokenDetails{
		TokenUuid: uuid.NewV4().String(),
		AtExpires: now.Add(t.ttl).Unix(),
	}
	claims := CustomClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        td.TokenUuid,
			ExpiresAt: jwt.NewNumericDate(time.Unix(td.AtExpires, 0)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
			Issuer:    "certify",
		},
	}

	var err error
	at := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	td.AccessToken, err = at.SignedString(t.secret)
	if err != nil {
		return nil, err
	}
	return td, nil
}

// Parse verifies signature and expiry and returns the token's claims.
func (t *TokenManager) Parse(tokenString string) (*AccessDetails, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	acc := &AccessDetails{
		TokenUuid: claims.ID,
		UserID:    claims.UserID,
		Email:     claims.Email,
	}
	if claims.ExpiresAt != nil {
		acc.ExpiresAt = claims.ExpiresAt.Time
	}
	return acc, nil
}
