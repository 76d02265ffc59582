package hashengine

import (
	"encoding/hex"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownAlgorithm(t *testing.T) {
	_, err := New("md4")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestNewDefaultsToSHA1(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)

	assert.Equal(t, AlgorithmSHA1, e.Algorithm())
	assert.Equal(t, 20, e.Size())
}

func TestBLAKE3(t *testing.T) {
	e, err := New("BLAKE3")
	require.NoError(t, err)

	assert.Equal(t, AlgorithmBLAKE3, e.Algorithm())
	assert.Equal(t, 32, e.Size())
	assert.Len(t, e.Acquire().Digest([]byte("abc")), 32)
}

func TestDigestKnownValue(t *testing.T) {
	e, err := New(AlgorithmSHA1)
	require.NoError(t, err)

	sum := e.Acquire().Digest([]byte("abc"))
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", hex.EncodeToString(sum))
}

func TestDigestResetsState(t *testing.T) {
	e, err := New(AlgorithmSHA1)
	require.NoError(t, err)

	ctx := e.Acquire()
	first := ctx.Digest([]byte("first"))
	second := ctx.Digest([]byte("second"))
	again := ctx.Digest([]byte("first"))

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, second)
	assert.Equal(t, e.Acquire().Digest([]byte("second")), second)
}

func TestDigestResultNotAliased(t *testing.T) {
	e, err := New(AlgorithmBLAKE3)
	require.NoError(t, err)

	ctx := e.Acquire()
	first := ctx.Digest([]byte("first"))
	kept := append([]byte(nil), first...)
	ctx.Digest([]byte("second"))

	assert.Equal(t, kept, first)
}

func TestContextPerWorker(t *testing.T) {
	e, err := New(AlgorithmSHA1)
	require.NoError(t, err)

	want := e.Acquire().Digest([]byte("payload"))

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := e.Acquire()
			for j := 0; j < 100; j++ {
				results[i] = ctx.Digest([]byte("payload"))
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, want, r)
	}
}
