package classifier

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func TestParseMimeType(t *testing.T) {
	cases := map[string]MimeType{
		"image/jpeg":               MimeJPEG,
		"IMAGE/PNG":                MimePNG,
		"image/png; charset=utf-8": MimePNG,
		"image/jpeg+lazy":          MimeJPEG,
		" image/vnd.viam.rgba ":    MimeRGBA,
		"image/gif":                "image/gif",
	}
	for in, want := range cases {
		if got := ParseMimeType(in); got != want {
			t.Errorf("ParseMimeType(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMimeType_Supported(t *testing.T) {
	for _, m := range SupportedMimeTypes {
		if !m.Supported() {
			t.Errorf("%v should be supported", m)
		}
	}
	for _, m := range []MimeType{"image/gif", "image/webp", ""} {
		if m.Supported() {
			t.Errorf("%q should not be supported", m)
		}
	}
}

func TestDetectMimeType(t *testing.T) {
	img := solidNRGBA(4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	t.Run("png", func(t *testing.T) {
		if got := DetectMimeType(encodePNG(t, img)); got != MimePNG {
			t.Errorf("DetectMimeType() = %v, want %v", got, MimePNG)
		}
	})

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatal(err)
		}
		if got := DetectMimeType(buf.Bytes()); got != MimeJPEG {
			t.Errorf("DetectMimeType() = %v, want %v", got, MimeJPEG)
		}
	})

	t.Run("rgba", func(t *testing.T) {
		var buf bytes.Buffer
		if err := EncodeRGBA(&buf, img); err != nil {
			t.Fatal(err)
		}
		if got := DetectMimeType(buf.Bytes()); got != MimeRGBA {
			t.Errorf("DetectMimeType() = %v, want %v", got, MimeRGBA)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if got := DetectMimeType([]byte("hello")); got.Supported() {
			t.Errorf("DetectMimeType() = %v, want an unsupported type", got)
		}
	})
}

func TestNewImage(t *testing.T) {
	t.Run("copies samples", func(t *testing.T) {
		pix := []uint8{1, 2, 3, 4, 5, 6}
		img, err := NewImage(2, 1, pix)
		if err != nil {
			t.Fatalf("NewImage() error = %v", err)
		}
		pix[0] = 99
		if r, _, _ := img.At(0, 0); r != 1 {
			t.Errorf("image changed with its input slice: r = %d", r)
		}
		out := img.Pix()
		out[0] = 99
		if r, _, _ := img.At(0, 0); r != 1 {
			t.Errorf("image changed through Pix(): r = %d", r)
		}
	})

	t.Run("rejects wrong sample count", func(t *testing.T) {
		_, err := NewImage(2, 2, make([]uint8, 11))
		if !errors.Is(err, ErrMalformedImage) {
			t.Errorf("error = %v, want ErrMalformedImage", err)
		}
	})

	t.Run("rejects empty dimensions", func(t *testing.T) {
		_, err := NewImage(0, 2, nil)
		if !errors.Is(err, ErrMalformedImage) {
			t.Errorf("error = %v, want ErrMalformedImage", err)
		}
	})
}

func TestBlankImage(t *testing.T) {
	img := BlankImage(DefaultWidth, DefaultHeight)
	if img.Width() != 640 || img.Height() != 480 {
		t.Errorf("size = %dx%d, want 640x480", img.Width(), img.Height())
	}
	for _, v := range img.Pix() {
		if v != 0 {
			t.Fatal("blank image should be black")
		}
	}
}

func TestDecode(t *testing.T) {
	t.Run("canonical image is copied", func(t *testing.T) {
		src := solid(2, 2, 1, 2, 3)
		got, err := Decode(src)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !got.Equal(src) {
			t.Error("decoded image differs from source")
		}
		if got == src {
			t.Error("Decode() should return a new image")
		}
	})

	t.Run("png", func(t *testing.T) {
		data := encodePNG(t, solidNRGBA(3, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))
		got, err := Decode(Encoded{Data: data, MimeType: MimePNG})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !got.Equal(solid(3, 2, 10, 20, 30)) {
			t.Errorf("unexpected samples: %v", got.Pix())
		}
	})

	t.Run("declared type is normalized", func(t *testing.T) {
		data := encodePNG(t, solidNRGBA(1, 1, color.NRGBA{A: 255}))
		if _, err := Decode(&Encoded{Data: data, MimeType: "IMAGE/PNG+lazy"}); err != nil {
			t.Errorf("Decode() error = %v", err)
		}
	})

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		src := solidNRGBA(16, 16, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}); err != nil {
			t.Fatal(err)
		}
		got, err := Decode(Encoded{Data: buf.Bytes(), MimeType: MimeJPEG})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		diff, err := MeanAbsDifference(got, solid(16, 16, 200, 100, 50))
		if err != nil {
			t.Fatal(err)
		}
		if diff > 3 {
			t.Errorf("jpeg decode drifted by %v", diff)
		}
	})

	t.Run("rgba container", func(t *testing.T) {
		var buf bytes.Buffer
		if err := EncodeRGBA(&buf, solidNRGBA(2, 3, color.NRGBA{R: 7, G: 8, B: 9, A: 128})); err != nil {
			t.Fatal(err)
		}
		got, err := Decode(Encoded{Data: buf.Bytes(), MimeType: MimeRGBA})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !got.Equal(solid(2, 3, 7, 8, 9)) {
			t.Errorf("unexpected samples: %v", got.Pix())
		}
	})

	t.Run("gray is replicated", func(t *testing.T) {
		gray := image.NewGray(image.Rect(0, 0, 2, 2))
		for i := range gray.Pix {
			gray.Pix[i] = 77
		}
		got, err := Decode(Bitmap{Image: gray})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !got.Equal(solid(2, 2, 77, 77, 77)) {
			t.Errorf("unexpected samples: %v", got.Pix())
		}
	})

	t.Run("alpha is dropped", func(t *testing.T) {
		got, err := Decode(&Bitmap{Image: solidNRGBA(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 0})})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !got.Equal(solid(2, 2, 10, 20, 30)) {
			t.Errorf("unexpected samples: %v", got.Pix())
		}
	})

	t.Run("sub image", func(t *testing.T) {
		src := solidNRGBA(4, 4, color.NRGBA{A: 255})
		src.SetNRGBA(2, 2, color.NRGBA{R: 255, A: 255})
		sub := src.SubImage(image.Rect(2, 2, 4, 4))
		got, err := Decode(Bitmap{Image: sub})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got.Width() != 2 || got.Height() != 2 {
			t.Fatalf("size = %dx%d, want 2x2", got.Width(), got.Height())
		}
		if r, g, b := got.At(0, 0); r != 255 || g != 0 || b != 0 {
			t.Errorf("At(0, 0) = %d,%d,%d, want 255,0,0", r, g, b)
		}
	})

	t.Run("generic model", func(t *testing.T) {
		src := image.NewRGBA64(image.Rect(0, 0, 1, 1))
		src.Set(0, 0, color.RGBA64{R: 0xffff, G: 0x8080, B: 0, A: 0xffff})
		got, err := Decode(Bitmap{Image: src})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if r, g, b := got.At(0, 0); r != 255 || g != 128 || b != 0 {
			t.Errorf("At(0, 0) = %d,%d,%d, want 255,128,0", r, g, b)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := Decode(Encoded{Data: []byte("GIF89a"), MimeType: "image/gif"})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("malformed data", func(t *testing.T) {
		_, err := Decode(Encoded{Data: []byte("not a png"), MimeType: MimePNG})
		if !errors.Is(err, ErrMalformedImage) {
			t.Errorf("error = %v, want ErrMalformedImage", err)
		}
	})

	t.Run("nil inputs", func(t *testing.T) {
		var img *Image
		if _, err := Decode(img); !errors.Is(err, ErrMalformedImage) {
			t.Errorf("nil image: error = %v", err)
		}
		if _, err := Decode(Bitmap{}); !errors.Is(err, ErrMalformedImage) {
			t.Errorf("nil bitmap: error = %v", err)
		}
		if _, err := Decode(nil); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("nil raw: error = %v", err)
		}
	})
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(path, encodePNG(t, solidNRGBA(2, 2, color.NRGBA{G: 255, A: 255})), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}
	if !got.Equal(solid(2, 2, 0, 255, 0)) {
		t.Errorf("unexpected samples: %v", got.Pix())
	}

	if _, err := DecodeFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestImage_ToNRGBA(t *testing.T) {
	src := gradient(5, 3)
	back, err := FromImage(src.ToNRGBA())
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(src) {
		t.Error("ToNRGBA should be lossless")
	}
	if a := src.ToNRGBA().NRGBAAt(1, 1).A; a != 255 {
		t.Errorf("alpha = %d, want 255", a)
	}
}
