package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SumantSagar73/certify/pkg/kv"
	pkgauth "github.com/SumantSagar73/certify/server/pkg/auth"
)

var ErrRevoked = errors.New("token revoked")

const revokedPrefix = "certify:revoked:"

// ExtractToken reads the bearer token from the Authorization header.
func ExtractToken(r *http.Request) string {
	bearToken := r.Header.Get("Authorization")
	strArr := strings.Split(bearToken, " ")
	if len(strArr) == 2 && strings.EqualFold(strArr[0], "Bearer") {
		return strArr[1]
	}
	return ""
}

// Verifier checks access tokens against the signing key and the
// revocation list.
type Verifier struct {
	tokens *pkgauth.TokenManager
	kv     kv.Store
	now    func() time.Time
}

func NewVerifier(tokens *pkgauth.TokenManager, store kv.Store) *Verifier {
	return &Verifier{tokens: tokens, kv: store, now: time.Now}
}

func (v *Verifier) Tokens() *pkgauth.TokenManager {
	return v.tokens
}

func (v *Verifier) Authenticate(ctx context.Context, token string) (*pkgauth.AccessDetails, error) {
	acc, err := v.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	_, err = v.kv.Get(ctx, revokedPrefix+acc.TokenUuid)
	if err == nil {
		return nil, ErrRevoked
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	return acc, nil
}

func (v *Verifier) ExtractAccess(r *http.Request) (*pkgauth.AccessDetails, error) {
	return v.Authenticate(r.Context(), ExtractToken(r))
}

// Revoke blocks acc's token until it would have expired anyway.
func (v *Verifier) Revoke(ctx context.Context, acc *pkgauth.AccessDetails) error {
	ttl := acc.ExpiresAt.Sub(v.now())
	if ttl <= 0 {
		return nil
	}
	return v.kv.Set(ctx, revokedPrefix+acc.TokenUuid, acc.UserID, ttl)
}
