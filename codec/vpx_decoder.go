//go:build vpx

package codec

/*
#cgo pkg-config: vpx
#include <stdlib.h>
#include <vpx/vpx_decoder.h>
#include <vpx/vp8dx.h>
#include <vpx/vpx_image.h>

static vpx_codec_iface_t *ifaceVP8Decoder() {
	return vpx_codec_vp8_dx();
}

static vpx_codec_iface_t *ifaceVP9Decoder() {
	return vpx_codec_vp9_dx();
}

static vpx_codec_ctx_t *newDecoderCtx() {
	return (vpx_codec_ctx_t*)calloc(1, sizeof(vpx_codec_ctx_t));
}

static vpx_codec_err_t decoderInit(vpx_codec_ctx_t *ctx, vpx_codec_iface_t *iface) {
	return vpx_codec_dec_init(ctx, iface, NULL, 0);
}

static vpx_codec_err_t decodeFrame(vpx_codec_ctx_t *ctx, const uint8_t *data, unsigned int size) {
	return vpx_codec_decode(ctx, data, size, NULL, 0);
}

static void freeDecoderCtx(vpx_codec_ctx_t *ctx) {
	vpx_codec_destroy(ctx);
	free(ctx);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/mengelbart/vpxivf/yuv"
)

// VPXDecoder decodes VP8 or VP9 frames with libvpx. Decoded images are
// copied into Go memory and stay valid after the next Decode.
type VPXDecoder struct {
	logger *slog.Logger
	codec  CodecType

	ctx    *C.vpx_codec_ctx_t
	iter   C.vpx_codec_iter_t
	closed bool
}

func decoderInterface(codec CodecType) (*C.vpx_codec_iface_t, error) {
	switch codec {
	case VP8:
		return C.ifaceVP8Decoder(), nil
	case VP9:
		return C.ifaceVP9Decoder(), nil
	}
	return nil, fmt.Errorf("unknown codec: %v", codec)
}

func NewVPXDecoder(codec CodecType, opts ...Option) (Decoder, error) {
	o := newOptions(opts)
	iface, err := decoderInterface(codec)
	if err != nil {
		return nil, err
	}
	ctx := C.newDecoderCtx()
	if res := C.decoderInit(ctx, iface); res != C.VPX_CODEC_OK {
		C.free(unsafe.Pointer(ctx))
		return nil, &CodecError{Op: "initialize decoder", Status: Status(res)}
	}
	o.logger.Info("initialized libvpx decoder", "codec", codec)
	return &VPXDecoder{
		logger: o.logger,
		codec:  codec,
		ctx:    ctx,
	}, nil
}

// Decode submits one compressed frame. An empty frame flushes the decoder.
func (d *VPXDecoder) Decode(data []byte) error {
	if d.closed {
		return ErrClosed
	}
	var ptr *C.uint8_t
	if len(data) > 0 {
		ptr = (*C.uint8_t)(unsafe.Pointer(&data[0]))
	}
	d.iter = nil
	if res := C.decodeFrame(d.ctx, ptr, C.uint(len(data))); res != C.VPX_CODEC_OK {
		return &CodecError{Op: "decode frame", Status: Status(res)}
	}
	return nil
}

func (d *VPXDecoder) NextImage() (*yuv.Image, bool) {
	if d.closed {
		return nil, false
	}
	img := C.vpx_codec_get_frame(d.ctx, &d.iter)
	if img == nil {
		return nil, false
	}
	out, err := copyImage(img)
	if err != nil {
		d.logger.Error("dropping decoded image", "error", err)
		return nil, false
	}
	d.logger.Debug("decoded image", "format", out.Format, "width", out.Width, "height", out.Height)
	return out, true
}

func imageFormat(f C.vpx_img_fmt_t) (yuv.Format, error) {
	var format yuv.Format
	if f&C.VPX_IMG_FMT_HIGHBITDEPTH != 0 {
		format = yuv.FormatHighBitDepth
	}
	switch f &^ C.VPX_IMG_FMT_HIGHBITDEPTH {
	case C.VPX_IMG_FMT_I420:
		format |= yuv.FormatI420
	case C.VPX_IMG_FMT_I422:
		format |= yuv.FormatI422
	case C.VPX_IMG_FMT_I440:
		format |= yuv.FormatI440
	case C.VPX_IMG_FMT_I444:
		format |= yuv.FormatI444
	default:
		return 0, fmt.Errorf("%w: vpx_img_fmt_t %#x", ErrUnsupportedFormat, uint32(f))
	}
	return format, nil
}

// copyImage copies the visible area of a decoder owned frame.
func copyImage(src *C.vpx_image_t) (*yuv.Image, error) {
	format, err := imageFormat(src.fmt)
	if err != nil {
		return nil, err
	}
	out, err := yuv.NewImage(format, int(src.d_w), int(src.d_h), 0)
	if err != nil {
		return nil, err
	}
	for p := range out.Planes {
		stride := int(src.stride[p])
		h := out.PlaneHeight(p)
		plane := unsafe.Slice((*byte)(unsafe.Pointer(src.planes[p])), (h-1)*stride+out.RowBytes(p))
		for y := range h {
			copy(out.Row(p, y), plane[y*stride:])
		}
	}
	return out, nil
}

func (d *VPXDecoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	C.freeDecoderCtx(d.ctx)
	d.ctx = nil
	return nil
}
