package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"
)

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func TestCalculateXXH3RoundTrip(t *testing.T) {
	content := "pathfinder checksum fixture"
	fs := newTestFs(t, map[string]string{"/data/file.txt": content})

	result := Calculate(fs, "/data/file.txt", XXH3128, EncodingHex)
	require.Empty(t, result.Err)
	assert.Equal(t, XXH3128, result.Algorithm)

	sum := xxh3.Hash128([]byte(content)).Bytes()
	expected := "xxh3-128:" + hex.EncodeToString(sum[:])
	assert.Equal(t, expected, result.Checksum)
}

func TestCalculateSHA256RoundTrip(t *testing.T) {
	content := "another fixture body"
	fs := newTestFs(t, map[string]string{"/data/file.txt": content})

	result := Calculate(fs, "/data/file.txt", SHA256, EncodingHex)
	require.Empty(t, result.Err)

	sum := sha256.Sum256([]byte(content))
	expected := "sha256:" + hex.EncodeToString(sum[:])
	assert.Equal(t, expected, result.Checksum)
}

func TestCalculateBase64Encoding(t *testing.T) {
	content := "encode me"
	fs := newTestFs(t, map[string]string{"/f": content})

	result := Calculate(fs, "/f", SHA256, EncodingBase64)
	require.Empty(t, result.Err)

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, "sha256:"+base64.StdEncoding.EncodeToString(sum[:]), result.Checksum)
}

func TestCalculateLargeFileStreams(t *testing.T) {
	// Larger than one chunk so the streaming loop runs more than once.
	content := strings.Repeat("0123456789abcdef", 4096) // 64 KiB
	fs := newTestFs(t, map[string]string{"/big": content})

	result := Calculate(fs, "/big", XXH3128, EncodingHex)
	require.Empty(t, result.Err)

	sum := xxh3.Hash128([]byte(content)).Bytes()
	assert.Equal(t, "xxh3-128:"+hex.EncodeToString(sum[:]), result.Checksum)
}

func TestCalculateCapturesFailures(t *testing.T) {
	fs := afero.NewMemMapFs()

	tests := []struct {
		name      string
		path      string
		algorithm Algorithm
		encoding  Encoding
		errPart   string
	}{
		{
			name:      "missing file",
			path:      "/missing",
			algorithm: XXH3128,
			encoding:  EncodingHex,
			errPart:   "failed to open",
		},
		{
			name:      "unknown algorithm",
			path:      "/missing",
			algorithm: Algorithm("md5"),
			encoding:  EncodingHex,
			errPart:   "unsupported checksum algorithm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Calculate(fs, tt.path, tt.algorithm, tt.encoding)
			assert.Empty(t, result.Checksum)
			assert.Contains(t, result.Err, tt.errPart)
		})
	}
}

func TestBatch(t *testing.T) {
	files := make(map[string]string)
	var paths []string
	for i := 0; i < 20; i++ {
		path := fmt.Sprintf("/data/file%02d.txt", i)
		files[path] = fmt.Sprintf("content-%d", i)
		paths = append(paths, path)
	}
	fs := newTestFs(t, files)

	results := Batch(context.Background(), fs, paths, XXH3128, EncodingHex, 4)
	require.Len(t, results, len(paths))

	for path, content := range files {
		result, ok := results[path]
		require.True(t, ok, "missing result for %s", path)
		require.Empty(t, result.Err)

		sum := xxh3.Hash128([]byte(content)).Bytes()
		assert.Equal(t, "xxh3-128:"+hex.EncodeToString(sum[:]), result.Checksum)
	}
}

func TestBatchCapturesPerFileFailures(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/ok": "fine"})

	results := Batch(context.Background(), fs, []string{"/ok", "/gone"}, SHA256, EncodingHex, 2)
	require.Len(t, results, 2)

	assert.Empty(t, results["/ok"].Err)
	assert.NotEmpty(t, results["/ok"].Checksum)
	assert.Contains(t, results["/gone"].Err, "failed to open")
	assert.Empty(t, results["/gone"].Checksum)
}

func TestBatchEmptyPaths(t *testing.T) {
	fs := afero.NewMemMapFs()

	results := Batch(context.Background(), fs, nil, XXH3128, EncodingHex, 4)
	assert.Empty(t, results)
}

func TestBatchConcurrencyCappedByPathCount(t *testing.T) {
	fs := newTestFs(t, map[string]string{"/one": "only"})

	// Concurrency far above the path count must not deadlock or race.
	results := Batch(context.Background(), fs, []string{"/one"}, SHA256, EncodingHex, 64)
	require.Len(t, results, 1)
	assert.Empty(t, results["/one"].Err)
}
