package classifier

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MimeType identifies the container format of an encoded image.
type MimeType string

const (
	MimeJPEG MimeType = "image/jpeg"
	MimePNG  MimeType = "image/png"
	MimeRGBA MimeType = "image/vnd.viam.rgba"
)

// SupportedMimeTypes lists the containers Decode accepts for Encoded images.
var SupportedMimeTypes = []MimeType{MimeJPEG, MimePNG, MimeRGBA}

// ParseMimeType normalizes a declared mime type: case is folded, parameters
// are dropped and the "+lazy" suffix some cameras append is removed.
func ParseMimeType(s string) MimeType {
	s = strings.TrimSpace(s)
	if mediaType, _, err := mime.ParseMediaType(s); err == nil {
		s = mediaType
	}
	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, "+lazy")
	return MimeType(s)
}

// Supported reports whether m is one of SupportedMimeTypes.
func (m MimeType) Supported() bool {
	for _, supported := range SupportedMimeTypes {
		if m == supported {
			return true
		}
	}
	return false
}

// Extension returns the file extension conventionally used for m.
func (m MimeType) Extension() string {
	switch m {
	case MimeJPEG:
		return ".jpg"
	case MimePNG:
		return ".png"
	case MimeRGBA:
		return ".rgba"
	default:
		return ".bin"
	}
}

// DetectMimeType sniffs the container of data. The RGBA container isn't
// known to the generic sniffer so its magic is checked first.
func DetectMimeType(data []byte) MimeType {
	if bytes.HasPrefix(data, rgbaMagic) {
		return MimeRGBA
	}
	return ParseMimeType(mimetype.Detect(data).String())
}

// Image is a canonical RGB image: Width*Height*3 samples, 8 bits each, in
// R, G, B order. An Image is never modified after construction.
type Image struct {
	width  int
	height int
	pix    []uint8
}

// NewImage copies pix into a new Image.
func NewImage(width, height int, pix []uint8) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedImage, width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("%w: expected %d samples for %dx%d, got %d", ErrMalformedImage, width*height*3, width, height, len(pix))
	}
	owned := make([]uint8, len(pix))
	copy(owned, pix)
	return &Image{width: width, height: height, pix: owned}, nil
}

// BlankImage returns an all-black image.
func BlankImage(width, height int) *Image {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("classifier: invalid blank image size %dx%d", width, height))
	}
	return &Image{width: width, height: height, pix: make([]uint8, width*height*3)}
}

func (i *Image) Width() int  { return i.width }
func (i *Image) Height() int { return i.height }

// Pix returns a copy of the samples.
func (i *Image) Pix() []uint8 {
	out := make([]uint8, len(i.pix))
	copy(out, i.pix)
	return out
}

// At returns the RGB samples of the pixel at (x, y).
func (i *Image) At(x, y int) (r, g, b uint8) {
	off := (y*i.width + x) * 3
	return i.pix[off], i.pix[off+1], i.pix[off+2]
}

// SameShape reports whether i and o can be compared.
func (i *Image) SameShape(o *Image) bool {
	return i.width == o.width && i.height == o.height
}

// Equal reports whether i and o have the same shape and samples.
func (i *Image) Equal(o *Image) bool {
	return i.SameShape(o) && bytes.Equal(i.pix, o.pix)
}

// ToNRGBA converts i to an opaque standard library image.
func (i *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, i.width, i.height))
	for p, q := 0, 0; p < len(i.pix); p, q = p+3, q+4 {
		out.Pix[q] = i.pix[p]
		out.Pix[q+1] = i.pix[p+1]
		out.Pix[q+2] = i.pix[p+2]
		out.Pix[q+3] = 0xff
	}
	return out
}

// EncodePNG writes i as a PNG.
func (i *Image) EncodePNG(w io.Writer) error {
	return png.Encode(w, i.ToNRGBA())
}

func (*Image) rawImage() {}

// RawImage is any value Decode accepts: an *Image, a Bitmap or an Encoded blob.
type RawImage interface {
	rawImage()
}

// Bitmap wraps an already decoded standard library image.
type Bitmap struct {
	image.Image
}

func (Bitmap) rawImage() {}

// Encoded is a blob in one of the supported containers.
type Encoded struct {
	Data     []byte
	MimeType MimeType
}

func (Encoded) rawImage() {}

// Decode normalizes raw into a new canonical Image.
func Decode(raw RawImage) (*Image, error) {
	switch v := raw.(type) {
	case *Image:
		if v == nil {
			return nil, fmt.Errorf("%w: nil image", ErrMalformedImage)
		}
		return NewImage(v.width, v.height, v.pix)
	case Bitmap:
		if v.Image == nil {
			return nil, fmt.Errorf("%w: nil bitmap", ErrMalformedImage)
		}
		return FromImage(v.Image)
	case *Bitmap:
		if v == nil || v.Image == nil {
			return nil, fmt.Errorf("%w: nil bitmap", ErrMalformedImage)
		}
		return FromImage(v.Image)
	case Encoded:
		return decodeEncoded(v)
	case *Encoded:
		if v == nil {
			return nil, fmt.Errorf("%w: nil blob", ErrMalformedImage)
		}
		return decodeEncoded(*v)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedFormat, raw)
	}
}

func decodeEncoded(e Encoded) (*Image, error) {
	mimeType := ParseMimeType(string(e.MimeType))
	if !mimeType.Supported() {
		return nil, fmt.Errorf("%w: %q, supported types are %v", ErrUnsupportedFormat, e.MimeType, SupportedMimeTypes)
	}
	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(e.Data)
	switch mimeType {
	case MimeJPEG:
		img, err = jpeg.Decode(r)
	case MimePNG:
		img, err = png.Decode(r)
	case MimeRGBA:
		err = checkRGBASize(e.Data)
		if err == nil {
			img, err = DecodeRGBA(r)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: while decoding %s: %v", ErrMalformedImage, mimeType, err)
	}
	return FromImage(img)
}

// DecodeFile reads and decodes the image file at filepath, sniffing its
// container.
func DecodeFile(filepath string) (*Image, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Decode(Encoded{Data: data, MimeType: DetectMimeType(data)})
}

// FromImage converts a standard library image to RGB. Alpha is dropped
// without compositing and gray is replicated into the three channels.
func FromImage(img image.Image) (*Image, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty bitmap %v", ErrMalformedImage, bounds)
	}
	pix := make([]uint8, 0, width*height*3)
	switch src := img.(type) {
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):src.PixOffset(bounds.Max.X, y)]
			for x := 0; x < len(row); x += 4 {
				pix = append(pix, row[x], row[x+1], row[x+2])
			}
		}
	case *image.Gray:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := src.Pix[src.PixOffset(bounds.Min.X, y):src.PixOffset(bounds.Max.X, y)]
			for _, v := range row {
				pix = append(pix, v, v, v)
			}
		}
	case *image.YCbCr:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := src.YCbCrAt(x, y)
				r, g, b := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
				pix = append(pix, r, g, b)
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				pix = append(pix, c.R, c.G, c.B)
			}
		}
	}
	return &Image{width: width, height: height, pix: pix}, nil
}
