package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKnownDigest(t *testing.T) {
	t.Parallel()

	got, err := New().Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
}

func TestHashDistinguishesPages(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("<html>page 1</html>"))
	require.NoError(t, err)
	b, err := h.Hash([]byte("<html>page 2</html>"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	_, err := New().Hash(nil)
	require.Error(t, err)
}
