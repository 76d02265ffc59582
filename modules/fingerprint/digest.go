package fingerprint

import (
	"fmt"
	"io"
	"os"

	"github.com/Leantar/fdi/models"
	"github.com/zeebo/blake3"
)

const digestSize = 32

// DigestProvider fingerprints the full content with BLAKE3. Only tolerance 0 is
// meaningful for it, since a digest has no notion of closeness.
type DigestProvider struct{}

func NewDigestProvider() *DigestProvider {
	return &DigestProvider{}
}

func (p *DigestProvider) Fingerprint(path string) (models.Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}

	return hasher.Sum(nil), nil
}

func (p *DigestProvider) Size() int {
	return digestSize
}
