package fingerprint

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/Leantar/fdi/models"
)

const (
	gridSize  = 4
	imageSize = gridSize * gridSize * 3
)

var ErrEmptyImage = errors.New("image has no pixels")

// ImageProvider fingerprints images as a 4x4 RGB thumbnail of the contrast stretched image.
// Small edits, re-encoding and resizing move the thumbnail only slightly.
type ImageProvider struct{}

func NewImageProvider() *ImageProvider {
	return &ImageProvider{}
}

func (p *ImageProvider) Size() int {
	return imageSize
}

func (p *ImageProvider) Fingerprint(path string) (models.Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	return FromImage(img)
}

// FromImage computes the fingerprint of an already decoded image.
func FromImage(img image.Image) (models.Fingerprint, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	lo, hi := channelRange(img)

	fp := make(models.Fingerprint, 0, imageSize)
	for cy := 0; cy < gridSize; cy++ {
		y0, y1 := cellSpan(b.Min.Y, b.Dy(), cy)
		for cx := 0; cx < gridSize; cx++ {
			x0, x1 := cellSpan(b.Min.X, b.Dx(), cx)

			var sum [3]uint64
			var n uint64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					r, g, bl, _ := img.At(x, y).RGBA()
					sum[0] += uint64(r >> 8)
					sum[1] += uint64(g >> 8)
					sum[2] += uint64(bl >> 8)
					n++
				}
			}

			for _, s := range sum {
				fp = append(fp, stretch(uint32((s+n/2)/n), lo, hi))
			}
		}
	}

	return fp, nil
}

// cellSpan returns the pixel range of cell i along an axis starting at origin with length n.
// Axes shorter than the grid reuse pixels so that no cell is empty.
func cellSpan(origin, n, i int) (int, int) {
	start := i * n / gridSize
	end := (i + 1) * n / gridSize
	if start >= n {
		start = n - 1
	}
	if end <= start {
		end = start + 1
	}
	return origin + start, origin + end
}

// channelRange returns the smallest and largest 8-bit channel value over all pixels.
func channelRange(img image.Image) (uint32, uint32) {
	b := img.Bounds()
	lo, hi := uint32(255), uint32(0)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			for _, c := range [3]uint32{r >> 8, g >> 8, bl >> 8} {
				if c < lo {
					lo = c
				}
				if c > hi {
					hi = c
				}
			}
		}
	}

	return lo, hi
}

func stretch(v, lo, hi uint32) byte {
	if hi <= lo {
		return byte(v)
	}
	if v <= lo {
		return 0
	}
	if v >= hi {
		return 255
	}
	return byte((v - lo) * 255 / (hi - lo))
}
