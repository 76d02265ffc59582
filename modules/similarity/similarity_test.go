package similarity

import (
	"math/rand"
	"testing"

	"github.com/Leantar/fdi/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPair(r *rand.Rand, n int, spread int) (models.Fingerprint, models.Fingerprint) {
	a := make(models.Fingerprint, n)
	b := make(models.Fingerprint, n)
	for i := range a {
		a[i] = byte(r.Intn(256))
		v := int(a[i]) + r.Intn(2*spread+1) - spread
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		b[i] = byte(v)
	}
	return a, b
}

func TestWorkedExample(t *testing.T) {
	a := models.Fingerprint{10, 10, 10}
	b := models.Fingerprint{12, 12, 12}

	ok, err := IsSimilar(a, b, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsSimilar(a, b, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCutoffIsStrict(t *testing.T) {
	// total error 6, cutoff 3*2 = 6
	ok, err := IsSimilar(models.Fingerprint{10, 10, 10}, models.Fingerprint{12, 12, 12}, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBytesAreUnsigned(t *testing.T) {
	// 0x7f vs 0x80 is 1 apart, not 255
	ok, err := IsSimilar(models.Fingerprint{0x7f}, models.Fingerprint{0x80}, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsSimilar(models.Fingerprint{0x00}, models.Fingerprint{0xff}, 255)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsSimilar(models.Fingerprint{0x00}, models.Fingerprint{0xff}, 256)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestZeroToleranceIsEquality(t *testing.T) {
	ok, err := IsSimilar(models.Fingerprint{1, 2, 3}, models.Fingerprint{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsSimilar(models.Fingerprint{1, 2, 3}, models.Fingerprint{1, 2, 4}, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLengthMismatch(t *testing.T) {
	ok, err := IsSimilar(models.Fingerprint{1, 2, 3}, models.Fingerprint{1, 2}, 3)
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Contains(t, err.Error(), "3 vs. 2")

	var mismatch *LengthMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.First)
	assert.Equal(t, 2, mismatch.Second)

	_, err = IsSimilar(models.Fingerprint{}, models.Fingerprint{1}, 0)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Distance(models.Fingerprint{1}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestDefaultTolerance(t *testing.T) {
	a := models.Fingerprint{10, 10, 10}

	ok, err := IsSimilarDefault(a, models.Fingerprint{12, 12, 12})
	require.NoError(t, err)
	assert.True(t, ok)

	// total error 9 equals cutoff 9
	ok, err = IsSimilarDefault(a, models.Fingerprint{13, 13, 13})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyFingerprints(t *testing.T) {
	for _, tol := range []uint{0, 1, 3} {
		ok, err := IsSimilar(models.Fingerprint{}, models.Fingerprint{}, tol)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		a, b := randomPair(r, 48, 1+r.Intn(20))
		dist, err := Distance(a, b)
		require.NoError(t, err)

		prev := false
		for tol := uint(0); tol <= 24; tol++ {
			self, err := IsSimilar(a, a, tol)
			require.NoError(t, err)
			assert.True(t, self, "reflexive at tolerance %d", tol)

			ab, err := IsSimilar(a, b, tol)
			require.NoError(t, err)
			ba, err := IsSimilar(b, a, tol)
			require.NoError(t, err)
			assert.Equal(t, ab, ba, "symmetric at tolerance %d", tol)

			if prev {
				assert.True(t, ab, "monotonic at tolerance %d", tol)
			}
			prev = ab

			if tol == 0 {
				assert.Equal(t, dist == 0, ab)
			} else {
				assert.Equal(t, dist < uint64(len(a))*uint64(tol), ab)
			}
		}
	}
}
