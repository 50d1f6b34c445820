package yuv

import (
	"fmt"
	"image"
	"image/color"
)

// FromYCbCr wraps the planes of src without copying.
func FromYCbCr(src *image.YCbCr) (*Image, error) {
	var format Format
	switch src.SubsampleRatio {
	case image.YCbCrSubsampleRatio420:
		format = FormatI420
	case image.YCbCrSubsampleRatio422:
		format = FormatI422
	case image.YCbCrSubsampleRatio440:
		format = FormatI440
	case image.YCbCrSubsampleRatio444:
		format = FormatI444
	default:
		return nil, fmt.Errorf("%w: unsupported subsample ratio %v", ErrInvalidFormat, src.SubsampleRatio)
	}
	b := src.Rect
	img := &Image{
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
	img.Planes[PlaneY] = Plane{Data: src.Y[src.YOffset(b.Min.X, b.Min.Y):], Stride: src.YStride}
	img.Planes[PlaneU] = Plane{Data: src.Cb[src.COffset(b.Min.X, b.Min.Y):], Stride: src.CStride}
	img.Planes[PlaneV] = Plane{Data: src.Cr[src.COffset(b.Min.X, b.Min.Y):], Stride: src.CStride}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// YCbCr wraps the planes of an 8 bit image as an *image.YCbCr without
// copying. Both chroma planes must share a stride.
func (img *Image) YCbCr() (*image.YCbCr, error) {
	if img.Format.HighBitDepth() {
		return nil, fmt.Errorf("%w: high bit depth images cannot be represented as image.YCbCr", ErrInvalidFormat)
	}
	var ratio image.YCbCrSubsampleRatio
	switch img.Format.Base() {
	case FormatI420:
		ratio = image.YCbCrSubsampleRatio420
	case FormatI422:
		ratio = image.YCbCrSubsampleRatio422
	case FormatI440:
		ratio = image.YCbCrSubsampleRatio440
	case FormatI444:
		ratio = image.YCbCrSubsampleRatio444
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, img.Format)
	}
	if img.Planes[PlaneU].Stride != img.Planes[PlaneV].Stride {
		return nil, fmt.Errorf("%w: chroma strides differ", ErrInvalidFormat)
	}
	return &image.YCbCr{
		Y:              img.Planes[PlaneY].Data,
		Cb:             img.Planes[PlaneU].Data,
		Cr:             img.Planes[PlaneV].Data,
		YStride:        img.Planes[PlaneY].Stride,
		CStride:        img.Planes[PlaneU].Stride,
		SubsampleRatio: ratio,
		Rect:           image.Rect(0, 0, img.Width, img.Height),
	}, nil
}

// RGBAToI420 converts packed RGBA pixels into the 8 bit image dst. Each
// chroma sample is the average over the luma block it covers. stride is the
// distance in bytes between rows of src.
func RGBAToI420(dst *Image, src []byte, stride int) error {
	if err := checkRGBA(dst, src, stride); err != nil {
		return err
	}
	xs, ys := dst.Format.ChromaShift()
	for cy := range dst.PlaneHeight(PlaneU) {
		for cx := range dst.PlaneWidth(PlaneU) {
			var sumCb, sumCr, n int
			for y := cy << ys; y < min((cy+1)<<ys, dst.Height); y++ {
				for x := cx << xs; x < min((cx+1)<<xs, dst.Width); x++ {
					i := y*stride + x*4
					yy, cb, cr := color.RGBToYCbCr(src[i], src[i+1], src[i+2])
					dst.Planes[PlaneY].Data[y*dst.Planes[PlaneY].Stride+x] = yy
					sumCb += int(cb)
					sumCr += int(cr)
					n++
				}
			}
			dst.Planes[PlaneU].Data[cy*dst.Planes[PlaneU].Stride+cx] = uint8((sumCb + n/2) / n)
			dst.Planes[PlaneV].Data[cy*dst.Planes[PlaneV].Stride+cx] = uint8((sumCr + n/2) / n)
		}
	}
	return nil
}

// I420ToRGBA converts the 8 bit image src to packed, opaque RGBA pixels in
// dst.
func I420ToRGBA(dst []byte, stride int, src *Image) error {
	if err := checkRGBA(src, dst, stride); err != nil {
		return err
	}
	xs, ys := src.Format.ChromaShift()
	for y := range src.Height {
		for x := range src.Width {
			yy := src.Planes[PlaneY].Data[y*src.Planes[PlaneY].Stride+x]
			cb := src.Planes[PlaneU].Data[(y>>ys)*src.Planes[PlaneU].Stride+x>>xs]
			cr := src.Planes[PlaneV].Data[(y>>ys)*src.Planes[PlaneV].Stride+x>>xs]
			r, g, b := color.YCbCrToRGB(yy, cb, cr)
			i := y*stride + x*4
			dst[i] = r
			dst[i+1] = g
			dst[i+2] = b
			dst[i+3] = 0xff
		}
	}
	return nil
}

func checkRGBA(img *Image, rgba []byte, stride int) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if img.Format.HighBitDepth() {
		return fmt.Errorf("%w: color conversion requires 8 bit samples", ErrInvalidFormat)
	}
	if stride < img.Width*4 {
		return fmt.Errorf("%w: RGBA stride %v < %v", ErrBufferTooShort, stride, img.Width*4)
	}
	if need := (img.Height-1)*stride + img.Width*4; len(rgba) < need {
		return fmt.Errorf("%w: RGBA buffer has %v bytes, need %v", ErrBufferTooShort, len(rgba), need)
	}
	return nil
}
