package guard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"github.com/xkilldash9x/cartographer/api/schemas"
)

// Comparator measures how different two captured screens are, as a
// normalized ratio in [0, 1].
type Comparator interface {
	Compare(ctx context.Context, before, after schemas.ImageRef) (float64, error)
}

// ImageLoader resolves an opaque image handle to encoded bytes. The default
// treats the handle as a file path, which matches the reference capture
// collaborator's behavior of writing screenshots under the data directory.
type ImageLoader func(ref schemas.ImageRef) ([]byte, error)

func fileLoader(ref schemas.ImageRef) ([]byte, error) {
	return os.ReadFile(string(ref))
}

// PixelComparator decodes both captures and reports the fraction of pixels
// that differ. Size mismatches count as a full change.
type PixelComparator struct {
	Load ImageLoader
}

var _ Comparator = (*PixelComparator)(nil)

// NewPixelComparator builds a comparator with the file-path loader.
func NewPixelComparator() *PixelComparator {
	return &PixelComparator{Load: fileLoader}
}

func (c *PixelComparator) Compare(ctx context.Context, before, after schemas.ImageRef) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	imgA, err := c.decode(before)
	if err != nil {
		return 0, fmt.Errorf("decoding before image: %w", err)
	}
	imgB, err := c.decode(after)
	if err != nil {
		return 0, fmt.Errorf("decoding after image: %w", err)
	}

	boundsA, boundsB := imgA.Bounds(), imgB.Bounds()
	if boundsA.Dx() != boundsB.Dx() || boundsA.Dy() != boundsB.Dy() {
		return 1.0, nil
	}

	total := boundsA.Dx() * boundsA.Dy()
	if total == 0 {
		return 0, nil
	}

	differing := 0
	for y := 0; y < boundsA.Dy(); y++ {
		for x := 0; x < boundsA.Dx(); x++ {
			ra, ga, ba, aa := imgA.At(boundsA.Min.X+x, boundsA.Min.Y+y).RGBA()
			rb, gb, bb, ab := imgB.At(boundsB.Min.X+x, boundsB.Min.Y+y).RGBA()
			if ra != rb || ga != gb || ba != bb || aa != ab {
				differing++
			}
		}
	}
	return float64(differing) / float64(total), nil
}

func (c *PixelComparator) decode(ref schemas.ImageRef) (image.Image, error) {
	load := c.Load
	if load == nil {
		load = fileLoader
	}
	data, err := load(ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}
