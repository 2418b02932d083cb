package client

import (
	"context"
	"sync"
)

// TokenStore persists the access token between runs.
type TokenStore interface {
	SessionToken(ctx context.Context) (string, error)
	SetSessionToken(ctx context.Context, token string) error
}

// SessionHolder owns the current access token and tells listeners when
// it changes.
type SessionHolder struct {
	mu        sync.RWMutex
	token     string
	store     TokenStore
	listeners map[int]func(token string)
	next      int
}

func NewSessionHolder(store TokenStore) *SessionHolder {
	return &SessionHolder{store: store, listeners: make(map[int]func(string))}
}

// Load restores the persisted token.
func (h *SessionHolder) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	tok, err := h.store.SessionToken(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.token = tok
	h.mu.Unlock()
	return nil
}

func (h *SessionHolder) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *SessionHolder) SignedIn() bool {
	return h.Current() != ""
}

// Set replaces the token; "" signs out.
func (h *SessionHolder) Set(ctx context.Context, token string) error {
	h.mu.Lock()
	changed := h.token != token
	h.token = token
	listeners := make([]func(string), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	if h.store != nil {
		if err := h.store.SetSessionToken(ctx, token); err != nil {
			return err
		}
	}
	if changed {
		for _, fn := range listeners {
			fn(token)
		}
	}
	return nil
}

// OnChange registers fn and returns a func removing it.
func (h *SessionHolder) OnChange(fn func(token string)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.listeners[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}
