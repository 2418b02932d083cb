package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%aws%`, likePattern("aws"))
	assert.Equal(t, `%100\%%`, likePattern("100%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\x%`, likePattern(`c:\x`))
}
