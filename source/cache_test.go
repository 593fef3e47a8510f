package source

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHandle(t *testing.T, name string) Handle {
	t.Helper()
	return Handle{
		ID:   uuid.New(),
		Name: name,
		Kind: KindFile,
		Path: writeFile(t, name+".csv", "n\n1\n"),
	}
}

func TestCacheGet(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)
	defer cache.Close()

	h := fileHandle(t, "orders")

	first, err := cache.Get(h)
	require.NoError(t, err)

	// Same handle comes back from the cache, not a fresh open.
	second, err := cache.Get(h)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// A different handle opens its own source.
	other, err := cache.Get(fileHandle(t, "events"))
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestCacheEviction(t *testing.T) {
	cache, err := NewCache(1)
	require.NoError(t, err)
	defer cache.Close()

	a := fileHandle(t, "a")
	b := fileHandle(t, "b")

	first, err := cache.Get(a)
	require.NoError(t, err)

	_, err = cache.Get(b)
	require.NoError(t, err)

	// a was evicted, so fetching it again opens a new source.
	again, err := cache.Get(a)
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}

func TestCacheRemove(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)
	defer cache.Close()

	h := fileHandle(t, "orders")
	first, err := cache.Get(h)
	require.NoError(t, err)

	cache.Remove(h)

	again, err := cache.Get(h)
	require.NoError(t, err)
	assert.NotSame(t, first, again)
}

func TestCacheOpenFailure(t *testing.T) {
	cache, err := NewCache(4)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Get(Handle{ID: uuid.New(), Kind: Kind("oracle")})
	assert.ErrorIs(t, err, ErrUnsupportedSourceType)
}
