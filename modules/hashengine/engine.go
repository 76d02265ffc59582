// Package hashengine hands out hash contexts that are owned by exactly one worker.
//
// An Engine is created once at startup. Each worker calls Acquire when it starts and keeps
// the returned Context for its lifetime. Contexts are not safe for concurrent use and
// never need to be, because they are never shared.
package hashengine

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	AlgorithmSHA1   = "sha1"
	AlgorithmBLAKE3 = "blake3"

	DefaultAlgorithm = AlgorithmSHA1
)

var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

var constructors = map[string]func() hash.Hash{
	AlgorithmSHA1:   sha1.New,
	AlgorithmBLAKE3: func() hash.Hash { return blake3.New() },
}

type Engine struct {
	algorithm string
	newHash   func() hash.Hash
	size      int
}

// New validates algorithm by building one primitive, so an unusable configuration is
// reported at startup instead of on the first digest.
func New(algorithm string) (*Engine, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	if name == "" {
		name = DefaultAlgorithm
	}

	newHash, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	return &Engine{
		algorithm: name,
		newHash:   newHash,
		size:      newHash().Size(),
	}, nil
}

func (e *Engine) Algorithm() string {
	return e.algorithm
}

// Size is the digest length in bytes.
func (e *Engine) Size() int {
	return e.size
}

// Acquire creates the context for the calling worker.
func (e *Engine) Acquire() *Context {
	return &Context{h: e.newHash()}
}

type Context struct {
	h   hash.Hash
	buf []byte
}

// Digest returns the digest of b and resets the context, so it can be reused right away.
// The returned slice is owned by the caller.
func (c *Context) Digest(b []byte) []byte {
	defer c.h.Reset()

	// hash.Hash.Write never returns an error
	_, _ = c.h.Write(b)
	c.buf = c.h.Sum(c.buf[:0])

	sum := make([]byte, len(c.buf))
	copy(sum, c.buf)
	return sum
}
