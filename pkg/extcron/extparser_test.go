package extcron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p := NewParser()
	base := time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC)

	s, err := p.Parse("@every 1h")
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Hour), s.Next(base))

	s, err = p.Parse("@minutely")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC), s.Next(base))

	s, err = p.Parse("0 3 * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), s.Next(base))

	_, err = p.Parse("@manually")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = p.Parse("not a schedule")
	assert.Error(t, err)
}
