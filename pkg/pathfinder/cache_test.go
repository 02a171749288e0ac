package pathfinder

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/pathfinder/pkg/checksum"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

func TestChecksumCacheRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/f", "content")
	info, err := fs.Stat("/f")
	require.NoError(t, err)

	cache := newChecksumCache(0)
	cache.put("/f", info, checksum.XXH3128, "xxh3-128:abc")

	sum, ok := cache.get("/f", info, checksum.XXH3128)
	assert.True(t, ok)
	assert.Equal(t, "xxh3-128:abc", sum)
}

func TestChecksumCacheMissOnDifferentAlgorithm(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/f", "content")
	info, err := fs.Stat("/f")
	require.NoError(t, err)

	cache := newChecksumCache(0)
	cache.put("/f", info, checksum.XXH3128, "xxh3-128:abc")

	_, ok := cache.get("/f", info, checksum.SHA256)
	assert.False(t, ok)
}

func TestChecksumCacheInvalidatedByModification(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/f", "content")
	info, err := fs.Stat("/f")
	require.NoError(t, err)

	cache := newChecksumCache(0)
	cache.put("/f", info, checksum.XXH3128, "xxh3-128:abc")

	// Same path, different size.
	writeFile(t, fs, "/f", "content grew")
	grown, err := fs.Stat("/f")
	require.NoError(t, err)

	_, ok := cache.get("/f", grown, checksum.XXH3128)
	assert.False(t, ok)
}

func TestChecksumCacheTTLExpiry(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/f", "content")
	info, err := fs.Stat("/f")
	require.NoError(t, err)

	cache := newChecksumCache(time.Nanosecond)
	cache.put("/f", info, checksum.XXH3128, "xxh3-128:abc")
	time.Sleep(time.Millisecond)

	_, ok := cache.get("/f", info, checksum.XXH3128)
	assert.False(t, ok)
}

func TestChecksumCacheNilSafe(t *testing.T) {
	var cache *checksumCache

	cache.put("/f", nil, checksum.XXH3128, "xxh3-128:abc")
	_, ok := cache.get("/f", nil, checksum.XXH3128)
	assert.False(t, ok)
}
