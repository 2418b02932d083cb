package blob

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidSignature = errors.New("invalid or expired signature")

type objectClaims struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	jwt.RegisteredClaims
}

// Signer issues time-limited download tokens bound to one object.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

func (s *Signer) Sign(bucket, p string, ttl time.Duration) (string, time.Time, error) {
	exp := s.now().Add(ttl)
	claims := objectClaims{
		Bucket: bucket,
		Path:   p,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return tok, exp, err
}

// Verify checks that token grants access to p in bucket.
func (s *Signer) Verify(token, bucket, p string) error {
	var claims objectClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if claims.Bucket != bucket || claims.Path != p {
		return ErrInvalidSignature
	}
	return nil
}

// SignedURL returns a download URL for p valid for ttl.
func (b *Bucket) SignedURL(p string, ttl time.Duration) (string, error) {
	if b.signer == nil {
		return "", errors.New("blob: bucket has no signer")
	}
	p, err := Clean(p)
	if err != nil {
		return "", err
	}
	ok, err := b.Exists(p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	tok, _, err := b.signer.Sign(b.name, p, ttl)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/storage/v1/object/sign/%s/%s?token=%s", b.base, b.name, escapePath(p), tok), nil
}

func (b *Bucket) VerifySignedToken(token, p string) error {
	if b.signer == nil {
		return ErrInvalidSignature
	}
	p, err := Clean(p)
	if err != nil {
		return err
	}
	return b.signer.Verify(token, b.name, p)
}
