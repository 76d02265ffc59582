// Package fingerprint extracts fixed-length content fingerprints from files.
package fingerprint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Leantar/fdi/models"
)

const (
	KindImage  = "image"
	KindDigest = "digest"
)

var ErrUnknownKind = errors.New("unknown fingerprint kind")

// Provider produces fingerprints of one fixed length. Implementations must be safe for
// concurrent use.
type Provider interface {
	Fingerprint(path string) (models.Fingerprint, error)
	// Size is the length of every fingerprint the provider returns.
	Size() int
}

func New(kind string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindImage:
		return NewImageProvider(), nil
	case KindDigest:
		return NewDigestProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
