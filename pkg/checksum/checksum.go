/*
Package checksum provides streaming per-file hashing and a bounded-concurrency
batch runner.

Files are read in fixed-size chunks, so memory use is bounded by the chunk
size rather than the file size. Failures are never raised as errors; they are
captured on the Result so callers can continue with partial metadata.
*/
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/fulmenhq/pathfinder/pkg/worker"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
)

// Algorithm identifies a supported hash algorithm. Its value doubles as the
// tag prefixed to every checksum string.
type Algorithm string

const (
	// XXH3128 is the 128-bit XXH3 hash, tagged "xxh3-128"
	XXH3128 Algorithm = "xxh3-128"

	// SHA256 is the SHA-256 hash, tagged "sha256"
	SHA256 Algorithm = "sha256"
)

// Encoding identifies how the digest bytes are rendered.
type Encoding string

const (
	// EncodingHex renders the digest as lowercase hex (default)
	EncodingHex Encoding = "hex"

	// EncodingBase64 renders the digest as standard base64
	EncodingBase64 Encoding = "base64"
)

// chunkSize is the fixed read size used when streaming file contents.
const chunkSize = 32 * 1024

// Result holds the outcome of hashing a single file. Exactly one of
// Checksum and Err is set.
type Result struct {
	// Checksum is "<algorithm>:<digest>", e.g. "xxh3-128:ab12...".
	// Empty when hashing failed.
	Checksum string

	// Algorithm is the algorithm that was requested
	Algorithm Algorithm

	// Err describes why hashing failed, empty on success
	Err string
}

// digester is the update/digest contract shared by the supported hashers.
type digester interface {
	io.Writer
	digest() []byte
}

type sha256Digester struct {
	hash.Hash
}

func (d sha256Digester) digest() []byte {
	return d.Sum(nil)
}

type xxh3Digester struct {
	*xxh3.Hasher
}

func (d xxh3Digester) digest() []byte {
	sum := d.Sum128().Bytes()
	return sum[:]
}

func newDigester(algorithm Algorithm) (digester, error) {
	switch algorithm {
	case XXH3128:
		return xxh3Digester{xxh3.New()}, nil
	case SHA256:
		return sha256Digester{sha256.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %s", algorithm)
	}
}

func encode(digest []byte, encoding Encoding) (string, error) {
	switch encoding {
	case EncodingHex, "":
		return hex.EncodeToString(digest), nil
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString(digest), nil
	default:
		return "", fmt.Errorf("unsupported checksum encoding: %s", encoding)
	}
}

// Calculate streams the file at path through the requested hasher and
// returns the tagged checksum. It never returns a Go error; any failure is
// captured in Result.Err.
func Calculate(fs afero.Fs, path string, algorithm Algorithm, encoding Encoding) Result {
	result := Result{Algorithm: algorithm}

	d, err := newDigester(algorithm)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	file, err := fs.Open(path)
	if err != nil {
		result.Err = fmt.Sprintf("failed to open file: %v", err)
		return result
	}
	defer file.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			if _, werr := d.Write(buf[:n]); werr != nil {
				result.Err = fmt.Sprintf("hash update failed: %v", werr)
				return result
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Err = fmt.Sprintf("failed to read file: %v", err)
			return result
		}
	}

	encoded, err := encode(d.digest(), encoding)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	result.Checksum = fmt.Sprintf("%s:%s", algorithm, encoded)
	return result
}

// Batch hashes all paths with at most min(concurrency, len(paths)) workers
// and returns one Result per path. Each path's entry is written exactly
// once. Per-file failures land on their Result; a cancelled context fills
// the unprocessed entries with the cancellation cause.
func Batch(ctx context.Context, fs afero.Fs, paths []string, algorithm Algorithm, encoding Encoding, concurrency int) map[string]Result {
	results := make(map[string]Result, len(paths))
	if len(paths) == 0 {
		return results
	}

	workers := concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	pool, err := worker.NewPool(worker.Config{Workers: workers})
	if err != nil {
		for _, path := range paths {
			results[path] = Result{Algorithm: algorithm, Err: err.Error()}
		}
		return results
	}

	if err := pool.Start(ctx); err != nil {
		for _, path := range paths {
			results[path] = Result{Algorithm: algorithm, Err: err.Error()}
		}
		return results
	}
	defer pool.Stop()

	type pathResult struct {
		path   string
		result Result
	}

	submitted := 0
	for i, path := range paths {
		p := path
		err := pool.Submit(worker.Task{
			ID: i,
			Execute: func(ctx context.Context) (worker.Result, error) {
				return worker.Result{
					ID:   i,
					Data: pathResult{path: p, result: Calculate(fs, p, algorithm, encoding)},
				}, nil
			},
		})
		if err != nil {
			break
		}
		submitted++
	}

	workerResults, waitErr := pool.Wait()
	for _, wr := range workerResults {
		if pr, ok := wr.Data.(pathResult); ok {
			results[pr.path] = pr.result
		}
	}

	// Anything the pool never produced (cancellation, submit failure) is
	// reported on its own entry rather than raised.
	for _, path := range paths {
		if _, ok := results[path]; !ok {
			reason := "checksum task was not processed"
			if waitErr != nil {
				reason = waitErr.Error()
			} else if ctx.Err() != nil {
				reason = ctx.Err().Error()
			}
			results[path] = Result{Algorithm: algorithm, Err: reason}
		}
	}

	return results
}
