// Package transform defines the image stylization capability consumed by the
// pipeline and provides the built-in stylizer. The pipeline treats the
// capability as a pure bytes-to-bytes function; any other inference backend
// can be substituted behind the same interface.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
)

// ErrTransform is returned when the capability cannot produce a derived image
// (malformed input, internal fault). The pipeline maps it to the terminal
// FAILED status; it is not retried.
var ErrTransform = errors.New("transform failed")

// Capability turns a source image into a stylized derived image.
type Capability interface {
	Transform(ctx context.Context, src []byte) ([]byte, error)
}

// workingWidth is the width images are normalized to before stylization.
const workingWidth = 600

// Stylizer is the built-in Capability. It normalizes the image to the working
// width and applies a mosaic-style grade (contrast, saturation, sharpen).
type Stylizer struct {
	// Quality is the JPEG quality of the derived image, 1-100.
	Quality int
}

// NewStylizer returns a Stylizer with default encoding quality.
func NewStylizer() *Stylizer {
	return &Stylizer{Quality: 90}
}

// Transform implements Capability.
func (s *Stylizer) Transform(ctx context.Context, src []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding source image: %v", ErrTransform, err)
	}

	out := imaging.Resize(img, workingWidth, 0, imaging.Lanczos)
	out = imaging.AdjustSigmoid(out, 0.5, 6.0)
	out = imaging.AdjustSaturation(out, 30)
	out = imaging.Sharpen(out, 1.5)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(s.Quality)); err != nil {
		return nil, fmt.Errorf("%w: encoding derived image: %v", ErrTransform, err)
	}

	return buf.Bytes(), nil
}
