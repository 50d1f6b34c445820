package yuv

import (
	"bytes"
	"image"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestPlaneDimensions(t *testing.T) {
	cases := []struct {
		format        Format
		width, height int
		uw, uh        int
	}{
		{FormatI420, 64, 48, 32, 24},
		{FormatI420, 63, 47, 32, 24},
		{FormatI422, 64, 48, 32, 48},
		{FormatI440, 64, 48, 64, 24},
		{FormatI444, 64, 48, 64, 48},
		{FormatI420 | FormatHighBitDepth, 64, 48, 32, 24},
	}
	for _, tc := range cases {
		t.Run(tc.format.String(), func(t *testing.T) {
			img, err := NewImage(tc.format, tc.width, tc.height, 1)
			require.NoError(t, err)
			assert.Equal(t, tc.width, img.PlaneWidth(PlaneY))
			assert.Equal(t, tc.height, img.PlaneHeight(PlaneY))
			assert.Equal(t, tc.uw, img.PlaneWidth(PlaneU))
			assert.Equal(t, tc.uh, img.PlaneHeight(PlaneV))
			assert.Equal(t, tc.uw*tc.format.BytesPerSample(), img.Planes[PlaneU].Stride)
		})
	}
}

func TestNewImageInvalid(t *testing.T) {
	_, err := NewImage(Format(42), 16, 16, 1)
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = NewImage(FormatI420, 0, 16, 1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestReadWriteImagePaddedStride(t *testing.T) {
	img, err := NewImage(FormatI420, 64, 48, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Planes[PlaneY].Stride)
	assert.Equal(t, 64, img.Planes[PlaneU].Stride)

	// fill padding with a marker that must survive reads
	for p := range img.Planes {
		for i := range img.Planes[p].Data {
			img.Planes[p].Data[i] = 0xee
		}
	}

	raw := sequence(img.FrameSize())
	require.Equal(t, 64*48+2*32*24, len(raw))
	require.NoError(t, ReadImage(bytes.NewReader(raw), img))

	for y := range 24 {
		row := img.Planes[PlaneU].Data[y*64 : (y+1)*64]
		assert.Equal(t, bytes.Repeat([]byte{0xee}, 32), row[32:], "padding of U row %v", y)
	}

	var out bytes.Buffer
	require.NoError(t, WriteImage(&out, img))
	assert.Equal(t, raw, out.Bytes())
}

func TestReadImageHighBitDepth(t *testing.T) {
	img, err := NewImage(FormatI420|FormatHighBitDepth, 8, 4, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, img.RowBytes(PlaneY))
	assert.Equal(t, 8, img.RowBytes(PlaneU))
	assert.Equal(t, 2*(8*4+2*4*2), img.FrameSize())

	raw := sequence(img.FrameSize())
	require.NoError(t, ReadImage(bytes.NewReader(raw), img))
	var out bytes.Buffer
	require.NoError(t, WriteImage(&out, img))
	assert.Equal(t, raw, out.Bytes())
}

func TestReadImageEndOfInput(t *testing.T) {
	img, err := NewImage(FormatI420, 4, 4, 1)
	require.NoError(t, err)

	raw := sequence(img.FrameSize())
	r := bytes.NewReader(append(raw, raw[:5]...))

	require.NoError(t, ReadImage(r, img))
	err = ReadImage(r, img)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, ReadImage(r, img), io.EOF)
}

func TestYCbCrBridge(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 16, 8), image.YCbCrSubsampleRatio420)
	copy(src.Y, sequence(len(src.Y)))
	copy(src.Cb, sequence(len(src.Cb)))

	img, err := FromYCbCr(src)
	require.NoError(t, err)
	assert.Equal(t, FormatI420, img.Format)
	assert.Equal(t, 16, img.Width)
	assert.Equal(t, src.Cb[:8], img.Row(PlaneU, 0))

	back, err := img.YCbCr()
	require.NoError(t, err)
	assert.Equal(t, src.Rect, back.Rect)
	assert.Equal(t, src.SubsampleRatio, back.SubsampleRatio)
	assert.Equal(t, src.YCbCrAt(5, 3), back.YCbCrAt(5, 3))

	_, err = FromYCbCr(image.NewYCbCr(image.Rect(0, 0, 8, 8), image.YCbCrSubsampleRatio411))
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRGBAConversion(t *testing.T) {
	const w, h = 4, 2
	rgba := make([]byte, w*h*4)
	for i := 0; i < len(rgba); i += 4 {
		rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = 200, 100, 50, 255
	}
	img, err := NewImage(FormatI420, w, h, 1)
	require.NoError(t, err)
	require.NoError(t, RGBAToI420(img, rgba, w*4))

	out := make([]byte, len(rgba))
	require.NoError(t, I420ToRGBA(out, w*4, img))
	for i := 0; i < len(out); i += 4 {
		assert.InDelta(t, 200, int(out[i]), 3)
		assert.InDelta(t, 100, int(out[i+1]), 3)
		assert.InDelta(t, 50, int(out[i+2]), 3)
		assert.Equal(t, byte(255), out[i+3])
	}

	assert.ErrorIs(t, RGBAToI420(img, rgba[:10], w*4), ErrBufferTooShort)
}
