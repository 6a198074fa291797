package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("p1")
	require.NoError(t, err)
	assert.NotEqual(t, "p1", h)

	assert.True(t, CheckPassword(h, "p1"))
	assert.False(t, CheckPassword(h, "p2"))
	assert.False(t, CheckPassword("not-a-hash", "p1"))
}
