package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/SumantSagar73/certify/pkg/kv"
	"github.com/SumantSagar73/certify/server/storage/models"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	themeKey      = "certify:theme"
	categoriesKey = "certify:categories:"
	sessionKey    = "certify:session"
)

// Store persists local client preferences.
type Store struct {
	kv kv.Store
}

func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// Open uses a buntdb file at path.
func Open(path string) (*Store, error) {
	b, err := kv.OpenBunt(path)
	if err != nil {
		return nil, err
	}
	return New(b), nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) Theme(ctx context.Context) (Theme, error) {
	v, err := s.kv.Get(ctx, themeKey)
	if errors.Is(err, kv.ErrNotFound) {
		return ThemeLight, nil
	}
	if err != nil {
		return ThemeLight, err
	}
	if Theme(v) == ThemeDark {
		return ThemeDark, nil
	}
	return ThemeLight, nil
}

func (s *Store) SetTheme(ctx context.Context, t Theme) error {
	if t != ThemeDark {
		t = ThemeLight
	}
	return s.kv.Set(ctx, themeKey, string(t), 0)
}

func (s *Store) ToggleTheme(ctx context.Context) (Theme, error) {
	cur, err := s.Theme(ctx)
	if err != nil {
		return cur, err
	}
	next := ThemeDark
	if cur == ThemeDark {
		next = ThemeLight
	}
	return next, s.SetTheme(ctx, next)
}

// CustomCategories returns the user's own categories in insertion order.
func (s *Store) CustomCategories(ctx context.Context, userID string) ([]string, error) {
	v, err := s.kv.Get(ctx, categoriesKey+userID)
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return []string{}, nil
	}
	return out, nil
}

// AddCustomCategory ignores fixed categories and case-insensitive duplicates.
func (s *Store) AddCustomCategory(ctx context.Context, userID, category string) ([]string, error) {
	category = strings.TrimSpace(category)
	cats, err := s.CustomCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	if category == "" || models.IsFixedCategory(models.NormalizeCategory(category)) {
		return cats, nil
	}
	if err := models.ValidateCategory(category); err != nil {
		return cats, err
	}
	for _, c := range cats {
		if strings.EqualFold(c, category) {
			return cats, nil
		}
	}
	cats = append(cats, category)
	return cats, s.saveCategories(ctx, userID, cats)
}

func (s *Store) RemoveCustomCategory(ctx context.Context, userID, category string) ([]string, error) {
	cats, err := s.CustomCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := cats[:0]
	for _, c := range cats {
		if !strings.EqualFold(c, strings.TrimSpace(category)) {
			out = append(out, c)
		}
	}
	return out, s.saveCategories(ctx, userID, out)
}

func (s *Store) saveCategories(ctx context.Context, userID string, cats []string) error {
	b, err := json.Marshal(cats)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, categoriesKey+userID, string(b), 0)
}

// AllCategories is the fixed set followed by the user's custom ones.
func (s *Store) AllCategories(ctx context.Context, userID string) ([]string, error) {
	custom, err := s.CustomCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append(append([]string{}, models.Categories...), custom...), nil
}

func (s *Store) SessionToken(ctx context.Context) (string, error) {
	v, err := s.kv.Get(ctx, sessionKey)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetSessionToken(ctx context.Context, token string) error {
	if token == "" {
		return s.kv.Del(ctx, sessionKey)
	}
	return s.kv.Set(ctx, sessionKey, token, 0)
}
