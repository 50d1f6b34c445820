// Package yuv implements planar YUV images and their row-wise I/O.
package yuv

import (
	"errors"
	"fmt"
)

// Format describes the chroma subsampling of an Image. FormatHighBitDepth
// may be or'ed into any format to use two bytes per sample.
type Format uint32

const (
	FormatI420 Format = iota + 1
	FormatI422
	FormatI440
	FormatI444

	FormatHighBitDepth Format = 0x800
)

const (
	PlaneY = iota
	PlaneU
	PlaneV
)

var (
	ErrInvalidFormat     = errors.New("yuv: invalid format")
	ErrInvalidDimensions = errors.New("yuv: invalid dimensions")
	ErrBufferTooShort    = errors.New("yuv: buffer too short")
)

// Base returns f without the high bit depth flag.
func (f Format) Base() Format {
	return f &^ FormatHighBitDepth
}

func (f Format) HighBitDepth() bool {
	return f&FormatHighBitDepth != 0
}

// ChromaShift returns the horizontal and vertical chroma subsampling shifts.
func (f Format) ChromaShift() (x, y uint) {
	switch f.Base() {
	case FormatI420:
		return 1, 1
	case FormatI422:
		return 1, 0
	case FormatI440:
		return 0, 1
	default:
		return 0, 0
	}
}

// BytesPerSample is 2 for high bit depth formats and 1 otherwise.
func (f Format) BytesPerSample() int {
	if f.HighBitDepth() {
		return 2
	}
	return 1
}

func (f Format) valid() bool {
	switch f.Base() {
	case FormatI420, FormatI422, FormatI440, FormatI444:
		return true
	}
	return false
}

func (f Format) String() string {
	var s string
	switch f.Base() {
	case FormatI420:
		s = "I420"
	case FormatI422:
		s = "I422"
	case FormatI440:
		s = "I440"
	case FormatI444:
		s = "I444"
	default:
		return fmt.Sprintf("Format(%d)", uint32(f))
	}
	if f.HighBitDepth() {
		s += "HBD"
	}
	return s
}

// Plane is one component of an Image. Row y starts at Data[y*Stride].
type Plane struct {
	Data   []byte
	Stride int
}

// Image is a planar image with one luma and two chroma planes.
type Image struct {
	Format Format
	Width  int
	Height int
	Planes [3]Plane
}

// NewImage allocates an image whose plane strides are the row sizes in
// bytes rounded up to a multiple of align. An align of 0 or 1 packs rows.
func NewImage(format Format, width, height, align int) (*Image, error) {
	if !format.valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, format)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidDimensions, width, height)
	}
	if align <= 0 {
		align = 1
	}
	img := &Image{
		Format: format,
		Width:  width,
		Height: height,
	}
	for p := range img.Planes {
		rowBytes := img.PlaneWidth(p) * format.BytesPerSample()
		stride := (rowBytes + align - 1) / align * align
		img.Planes[p] = Plane{
			Data:   make([]byte, stride*img.PlaneHeight(p)),
			Stride: stride,
		}
	}
	return img, nil
}

// PlaneWidth returns the width in samples of plane p. Subsampled chroma
// widths round up, so odd luma widths are tolerated.
func (img *Image) PlaneWidth(p int) int {
	xShift, _ := img.Format.ChromaShift()
	if p > PlaneY && xShift > 0 {
		return (img.Width + 1) >> xShift
	}
	return img.Width
}

// PlaneHeight returns the height in rows of plane p.
func (img *Image) PlaneHeight(p int) int {
	_, yShift := img.Format.ChromaShift()
	if p > PlaneY && yShift > 0 {
		return (img.Height + 1) >> yShift
	}
	return img.Height
}

// RowBytes returns the number of meaningful bytes in one row of plane p.
func (img *Image) RowBytes(p int) int {
	return img.PlaneWidth(p) * img.Format.BytesPerSample()
}

// Row returns row y of plane p without the stride padding.
func (img *Image) Row(p, y int) []byte {
	pl := img.Planes[p]
	off := y * pl.Stride
	return pl.Data[off : off+img.RowBytes(p)]
}

// FrameSize returns the number of bytes ReadImage consumes for img.
func (img *Image) FrameSize() int {
	n := 0
	for p := range img.Planes {
		n += img.RowBytes(p) * img.PlaneHeight(p)
	}
	return n
}

// Validate checks that every plane holds enough bytes for its rows.
func (img *Image) Validate() error {
	if !img.Format.valid() {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, img.Format)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: %vx%v", ErrInvalidDimensions, img.Width, img.Height)
	}
	for p, pl := range img.Planes {
		h := img.PlaneHeight(p)
		rb := img.RowBytes(p)
		if pl.Stride < rb {
			return fmt.Errorf("%w: plane %v stride %v < row size %v", ErrBufferTooShort, p, pl.Stride, rb)
		}
		if need := (h-1)*pl.Stride + rb; len(pl.Data) < need {
			return fmt.Errorf("%w: plane %v has %v bytes, need %v", ErrBufferTooShort, p, len(pl.Data), need)
		}
	}
	return nil
}

// Clone returns a deep copy of img.
func (img *Image) Clone() *Image {
	c := *img
	for p, pl := range img.Planes {
		c.Planes[p].Data = append([]byte(nil), pl.Data...)
	}
	return &c
}
