// Package kv is the small key/value surface shared by auth tokens and
// client preferences.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kv: not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// Take returns and deletes the value in one step.
	Take(ctx context.Context, key string) (string, error)
	Close() error
}
