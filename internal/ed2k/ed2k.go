// Package ed2k computes the eDonkey2000 content hash used by AniDB to
// identify files independent of name or location.
//
// A file is split into fixed 9,728,000-byte chunks. Each chunk is
// hashed with MD4. A file with exactly one chunk uses that chunk's
// digest directly; a file with more than one chunk is identified by
// the MD4 of the concatenation of the per-chunk digests, in order.
package ed2k

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/md4"
	"golang.org/x/sync/errgroup"
)

// ChunkSize is the fixed ed2k chunk boundary in bytes.
const ChunkSize = 9_728_000

// sequentialChunks is the chunk count below which hashing runs on the
// calling goroutine rather than fanning out to the worker pool; below
// this the scheduling overhead of a pool dominates the MD4 cost.
const sequentialChunks = 4

// maxWorkers bounds the chunk-hashing worker pool. Chosen to match the
// rest of the engine's single-coordinator-thread model: only the
// hasher itself is allowed any concurrency, and only a little.
const maxWorkers = 2

// Sum is a decoded ed2k digest: 16 raw bytes, rendered as 32 lowercase
// hex characters by String.
type Sum [16]byte

// String returns the 32-character lowercase hex digest.
func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// HashFile returns the ed2k digest and byte size of the file at path.
// I/O errors propagate verbatim; there is no retry at this layer.
func HashFile(path string) (Sum, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Sum{}, 0, err
	}
	size := info.Size()

	sum, err := Hash(context.Background(), f, size)
	if err != nil {
		return Sum{}, 0, err
	}
	return sum, size, nil
}

// Hash computes the ed2k digest of r, which must yield exactly size
// bytes. size is used to decide how many chunks to expect and whether
// to fan the chunk hashing out across the worker pool.
func Hash(ctx context.Context, r io.Reader, size int64) (Sum, error) {
	numChunks := int(size / ChunkSize)
	if size%ChunkSize != 0 || numChunks == 0 {
		numChunks++
	}

	digests := make([][]byte, numChunks)

	if numChunks < sequentialChunks {
		for i := 0; i < numChunks; i++ {
			d, err := hashOneChunk(r)
			if err != nil {
				return Sum{}, err
			}
			digests[i] = d
		}
	} else {
		if err := hashChunksParallel(ctx, r, digests); err != nil {
			return Sum{}, err
		}
	}

	if len(digests) == 1 {
		var s Sum
		copy(s[:], digests[0])
		return s, nil
	}

	top := md4.New()
	for _, d := range digests {
		top.Write(d)
	}
	var s Sum
	copy(s[:], top.Sum(nil))
	return s, nil
}

// hashChunksParallel reads chunks sequentially off r (io.Reader has no
// concurrent-read contract) but hands each chunk's MD4 computation to
// a bounded worker pool, preserving destination order in digests
// regardless of completion order.
func hashChunksParallel(ctx context.Context, r io.Reader, digests [][]byte) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i := range digests {
		buf := make([]byte, ChunkSize)
		n, err := io.ReadFull(r, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return err
		}
		buf = buf[:n]
		idx := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			digests[idx] = md4Sum(buf)
			return nil
		})
	}
	return g.Wait()
}

// hashOneChunk reads up to ChunkSize bytes from r and returns their
// MD4 digest. A short final read (including zero bytes, for an empty
// file) is included as-is.
func hashOneChunk(r io.Reader) ([]byte, error) {
	buf := make([]byte, ChunkSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return md4Sum(buf[:n]), nil
}

func md4Sum(b []byte) []byte {
	h := md4.New()
	h.Write(b)
	return h.Sum(nil)
}

// digest implements hash.Hash over the ed2k construction so it
// composes with io.Copy and other stdlib hashing call sites, the same
// way a one-off content hash like backend/mailru/mrhash wraps its
// underlying primitive behind the standard hash.Hash shape.
type digest struct {
	buf     []byte
	digests [][]byte
}

// New returns a hash.Hash computing the ed2k digest incrementally.
// Unlike HashFile/Hash it cannot fan chunk hashing out to a worker
// pool, since Write is not told the total size up front; it is
// intended for streaming use where total size is not known in
// advance, not for bulk file hashing.
func New() hash.Hash {
	return &digest{}
}

func (d *digest) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		room := ChunkSize - len(d.buf)
		n := room
		if n > len(p) {
			n = len(p)
		}
		d.buf = append(d.buf, p[:n]...)
		p = p[n:]
		if len(d.buf) == ChunkSize {
			d.digests = append(d.digests, md4Sum(d.buf))
			d.buf = d.buf[:0]
		}
	}
	return total, nil
}

func (d *digest) Sum(b []byte) []byte {
	digests := d.digests
	if len(d.buf) > 0 || len(digests) == 0 {
		digests = append(append([][]byte{}, digests...), md4Sum(d.buf))
	}
	var sum []byte
	if len(digests) == 1 {
		sum = digests[0]
	} else {
		top := md4.New()
		for _, dg := range digests {
			top.Write(dg)
		}
		sum = top.Sum(nil)
	}
	return append(b, sum...)
}

func (d *digest) Reset() {
	d.buf = d.buf[:0]
	d.digests = nil
}

func (d *digest) Size() int      { return 16 }
func (d *digest) BlockSize() int { return ChunkSize }

// Link renders the ed2k:// link format AniDB and eDonkey clients
// accept for manual submission.
func Link(name string, size int64, sum Sum) string {
	return fmt.Sprintf("ed2k://|file|%s|%d|%s|", name, size, sum)
}
