package classifier

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

// The RGBA container is a 12 byte header (magic, big endian width and
// height) followed by raw non-premultiplied RGBA samples.
var rgbaMagic = []byte("RGBA")

const rgbaHeaderSize = 12

// rgbaMaxPixels bounds the allocation a forged header can trigger.
const rgbaMaxPixels = 1 << 28

func init() {
	image.RegisterFormat("vnd.viam.rgba", "RGBA????????", DecodeRGBA, DecodeRGBAConfig)
}

func readRGBAHeader(r io.Reader) (width, height int, err error) {
	var header [rgbaHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, fmt.Errorf("while reading header: %w", err)
	}
	if string(header[:4]) != string(rgbaMagic) {
		return 0, 0, errors.New("missing RGBA magic number")
	}
	w := binary.BigEndian.Uint32(header[4:8])
	h := binary.BigEndian.Uint32(header[8:12])
	if w == 0 || h == 0 || uint64(w)*uint64(h) > rgbaMaxPixels {
		return 0, 0, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	return int(w), int(h), nil
}

// checkRGBASize verifies that data is exactly one header plus the samples
// the header announces.
func checkRGBASize(data []byte) error {
	width, height, err := readRGBAHeader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if want := rgbaHeaderSize + rgbaPayloadSize(width, height); len(data) != want {
		return fmt.Errorf("%dx%d container must be %d bytes, got %d", width, height, want, len(data))
	}
	return nil
}

// DecodeRGBAConfig reads only the header of an RGBA container.
func DecodeRGBAConfig(r io.Reader) (image.Config, error) {
	width, height, err := readRGBAHeader(r)
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.NRGBAModel, Width: width, Height: height}, nil
}

// rgbaPayloadSize returns the number of sample bytes a width x height
// container carries.
func rgbaPayloadSize(width, height int) int {
	return width * height * 4
}

// lener is implemented by in-memory readers such as *bytes.Reader.
type lener interface {
	Len() int
}

// DecodeRGBA reads an RGBA container. When r knows how many bytes are left,
// a header claiming more samples than that is rejected before allocating.
func DecodeRGBA(r io.Reader) (image.Image, error) {
	width, height, err := readRGBAHeader(r)
	if err != nil {
		return nil, err
	}
	if l, ok := r.(lener); ok && l.Len() < rgbaPayloadSize(width, height) {
		return nil, fmt.Errorf("header claims %dx%d but only %d sample bytes follow", width, height, l.Len())
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if _, err := io.ReadFull(r, img.Pix); err != nil {
		return nil, fmt.Errorf("while reading %dx%d samples: %w", width, height, err)
	}
	return img, nil
}

// EncodeRGBA writes img as an RGBA container.
func EncodeRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	var header [rgbaHeaderSize]byte
	copy(header[:4], rgbaMagic)
	binary.BigEndian.PutUint32(header[4:8], uint32(bounds.Dx()))
	binary.BigEndian.PutUint32(header[8:12], uint32(bounds.Dy()))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	row := make([]byte, bounds.Dx()*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := (x - bounds.Min.X) * 4
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
