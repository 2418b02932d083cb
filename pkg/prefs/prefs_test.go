package prefs

import (
	"context"
	"testing"

	"github.com/SumantSagar73/certify/server/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestThemeDefaultsToLightAndToggles(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	th, err := s.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, th)

	th, err = s.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, th)

	th, err = s.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, th)

	th, err = s.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, th)
}

func TestCustomCategories(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	cats, err := s.AddCustomCategory(ctx, "u1", "Hackathon")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hackathon"}, cats)

	cats, err = s.AddCustomCategory(ctx, "u1", "hackathon")
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	cats, err = s.AddCustomCategory(ctx, "u1", "workshop")
	require.NoError(t, err)
	assert.Len(t, cats, 1, "fixed categories are not custom")

	other, err := s.CustomCategories(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other)

	all, err := s.AllCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, models.Categories...), "Hackathon"), all)

	cats, err = s.RemoveCustomCategory(ctx, "u1", "HACKATHON")
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestSessionToken(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tok, err := s.SessionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.SetSessionToken(ctx, "abc"))
	tok, err = s.SessionToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, s.SetSessionToken(ctx, ""))
	tok, err = s.SessionToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}
