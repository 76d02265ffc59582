// Package similarity compares fingerprints byte by byte under a tolerance.
//
// A tolerance t allows an average drift of just under t per byte: two fingerprints of
// length n match when the sum of their absolute byte differences stays below n*t.
// Tolerance 0 requires exact equality.
package similarity

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Leantar/fdi/models"
)

// DefaultTolerance is used by IsSimilarDefault.
const DefaultTolerance uint = 3

var ErrLengthMismatch = errors.New("fingerprint lengths differ")

// LengthMismatchError is returned when two fingerprints of different lengths are compared.
// It usually means they were produced by different fingerprint algorithms.
type LengthMismatchError struct {
	First  int
	Second int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("both fingerprints must be the same size: got %d vs. %d", e.First, e.Second)
}

func (e *LengthMismatchError) Is(target error) bool {
	return target == ErrLengthMismatch
}

func IsSimilar(a, b models.Fingerprint, tolerance uint) (bool, error) {
	if len(a) != len(b) {
		return false, &LengthMismatchError{First: len(a), Second: len(b)}
	}

	// An empty cutoff would make empty fingerprints unequal to themselves
	if tolerance == 0 || len(a) == 0 {
		return bytes.Equal(a, b), nil
	}

	var sum uint64
	cutoff := uint64(len(a)) * uint64(tolerance)
	for i := 0; sum < cutoff && i < len(a); i++ {
		sum += absDiff(a[i], b[i])
	}

	return sum < cutoff, nil
}

func IsSimilarDefault(a, b models.Fingerprint) (bool, error) {
	return IsSimilar(a, b, DefaultTolerance)
}

// Distance returns the sum of absolute byte differences without stopping early.
func Distance(a, b models.Fingerprint) (uint64, error) {
	if len(a) != len(b) {
		return 0, &LengthMismatchError{First: len(a), Second: len(b)}
	}

	var sum uint64
	for i := range a {
		sum += absDiff(a[i], b[i])
	}

	return sum, nil
}

func absDiff(x, y byte) uint64 {
	if x > y {
		return uint64(x - y)
	}
	return uint64(y - x)
}
