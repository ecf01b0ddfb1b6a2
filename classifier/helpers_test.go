package classifier

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// solid returns a w x h image where every pixel is (r, g, b).
func solid(w, h int, r, g, b uint8) *Image {
	pix := make([]uint8, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		pix = append(pix, r, g, b)
	}
	img, err := NewImage(w, h, pix)
	if err != nil {
		panic(err)
	}
	return img
}

// gradient returns a w x h image with varied content, standing in for a
// photographed scene.
func gradient(w, h int) *Image {
	pix := make([]uint8, 0, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix = append(pix, uint8(x*255/w), uint8(y*255/h), uint8((x+y)%256))
		}
	}
	img, err := NewImage(w, h, pix)
	if err != nil {
		panic(err)
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// fakeCamera returns its frames in order, repeating the last one.
type fakeCamera struct {
	name string

	mu     sync.Mutex
	frames []Encoded
	calls  int
	err    error
}

func (c *fakeCamera) Name() string { return c.name }

func (c *fakeCamera) Image(ctx context.Context, mimeType MimeType) (Encoded, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return Encoded{}, c.err
	}
	if len(c.frames) == 0 {
		return Encoded{}, errors.New("no frames")
	}
	i := c.calls
	if i >= len(c.frames) {
		i = len(c.frames) - 1
	}
	c.calls++
	return c.frames[i], nil
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []ChangeEvent
	err    error
}

func (s *recordingSink) FrameChanged(ctx context.Context, ev *ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return s.err
}

func (s *recordingSink) Events() []ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChangeEvent(nil), s.events...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
