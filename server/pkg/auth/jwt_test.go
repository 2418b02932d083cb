package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndParse(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	td, err := m.CreateToken("user-1", "a@b.co")
	require.NoError(t, err)
	require.NotEmpty(t, td.AccessToken)

	acc, err := m.Parse(td.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", acc.UserID)
	assert.Equal(t, "a@b.co", acc.Email)
	assert.Equal(t, td.TokenUuid, acc.TokenUuid)
	assert.Equal(t, td.AtExpires, acc.ExpiresAt.Unix())
}

func TestParseRejectsForeignSecret(t *testing.T) {
	td, err := NewTokenManager("one", time.Hour).CreateToken("u", "e@x.io")
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).Parse(td.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	td, err := m.CreateToken("u", "e@x.io")
	require.NoError(t, err)

	_, err = m.Parse(td.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseEmpty(t *testing.T) {
	_, err := NewTokenManager("secret", 0).Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
