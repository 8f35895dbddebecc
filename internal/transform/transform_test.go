package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleJPEG renders a small gradient image and encodes it as JPEG.
func sampleJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestStylizerTransform(t *testing.T) {
	src := sampleJPEG(t, 1200, 800)

	out, err := NewStylizer().Transform(context.Background(), src)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	derived, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// Output is normalized to the working width with the aspect ratio kept.
	bounds := derived.Bounds()
	assert.Equal(t, workingWidth, bounds.Dx())
	assert.Equal(t, 400, bounds.Dy())
}

func TestStylizerTransformDeterministic(t *testing.T) {
	src := sampleJPEG(t, 640, 480)
	s := NewStylizer()

	first, err := s.Transform(context.Background(), src)
	require.NoError(t, err)
	second, err := s.Transform(context.Background(), src)
	require.NoError(t, err)

	// Concurrent transformer invocations for the same task must produce the
	// same derived bytes, so the write-once derived key never conflicts.
	assert.Equal(t, first, second)
}

func TestStylizerTransformRejectsGarbage(t *testing.T) {
	_, err := NewStylizer().Transform(context.Background(), []byte("not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransform)
}

func TestStylizerTransformCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStylizer().Transform(ctx, sampleJPEG(t, 32, 32))
	assert.ErrorIs(t, err, context.Canceled)
}
