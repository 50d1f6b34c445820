//go:build vpx

package codec

/*
#cgo pkg-config: vpx
#include <stdlib.h>
#include <vpx/vpx_encoder.h>
#include <vpx/vp8cx.h>
#include <vpx/vpx_image.h>

static vpx_codec_iface_t *ifaceVP8Encoder() {
	return vpx_codec_vp8_cx();
}

static vpx_codec_iface_t *ifaceVP9Encoder() {
	return vpx_codec_vp9_cx();
}

static vpx_codec_enc_cfg_t *newEncoderCfg() {
	return (vpx_codec_enc_cfg_t*)calloc(1, sizeof(vpx_codec_enc_cfg_t));
}

static vpx_codec_ctx_t *newEncoderCtx() {
	return (vpx_codec_ctx_t*)calloc(1, sizeof(vpx_codec_ctx_t));
}

static vpx_codec_err_t encoderInit(vpx_codec_ctx_t *ctx, vpx_codec_iface_t *iface, const vpx_codec_enc_cfg_t *cfg) {
	return vpx_codec_enc_init(ctx, iface, cfg, 0);
}

static vpx_codec_err_t encodeFrame(vpx_codec_ctx_t *ctx, const vpx_image_t *img, int64_t pts, unsigned long duration, int forceKeyframe, int realtime) {
	vpx_enc_frame_flags_t flags = forceKeyframe ? VPX_EFLAG_FORCE_KF : 0;
	return vpx_codec_encode(ctx, img, pts, duration, flags, realtime ? VPX_DL_REALTIME : VPX_DL_GOOD_QUALITY);
}

static void *encPktBuf(const vpx_codec_cx_pkt_t *pkt) {
	return pkt->data.frame.buf;
}

static size_t encPktSz(const vpx_codec_cx_pkt_t *pkt) {
	return pkt->data.frame.sz;
}

static int64_t encPktPts(const vpx_codec_cx_pkt_t *pkt) {
	return pkt->data.frame.pts;
}

static unsigned long encPktDuration(const vpx_codec_cx_pkt_t *pkt) {
	return pkt->data.frame.duration;
}

static int encPktIsKey(const vpx_codec_cx_pkt_t *pkt) {
	return (pkt->data.frame.flags & VPX_FRAME_IS_KEY) != 0;
}

static void freeEncoder(vpx_codec_ctx_t *ctx, vpx_codec_enc_cfg_t *cfg, vpx_image_t *raw) {
	if (ctx != NULL) {
		vpx_codec_destroy(ctx);
		free(ctx);
	}
	if (raw != NULL) {
		vpx_img_free(raw);
	}
	free(cfg);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/mengelbart/vpxivf/yuv"
)

// VPXEncoder encodes I420 images with libvpx. Input images are copied into
// a C allocated frame, so callers may reuse them after Encode returns.
type VPXEncoder struct {
	logger *slog.Logger
	config Config

	ctx *C.vpx_codec_ctx_t
	cfg *C.vpx_codec_enc_cfg_t
	raw *C.vpx_image_t

	iter   C.vpx_codec_iter_t
	closed bool
}

func encoderInterface(codec CodecType) (*C.vpx_codec_iface_t, error) {
	switch codec {
	case VP8:
		return C.ifaceVP8Encoder(), nil
	case VP9:
		return C.ifaceVP9Encoder(), nil
	}
	return nil, fmt.Errorf("unknown codec: %v", codec)
}

// NewVPXEncoder initializes a one pass CBR encoder for c.
func NewVPXEncoder(c Config, opts ...Option) (Encoder, error) {
	o := newOptions(opts)
	if err := c.validate(); err != nil {
		return nil, err
	}
	iface, err := encoderInterface(c.Codec)
	if err != nil {
		return nil, err
	}
	e := &VPXEncoder{
		logger: o.logger,
		config: c,
		cfg:    C.newEncoderCfg(),
	}
	if res := C.vpx_codec_enc_config_default(iface, e.cfg, 0); res != C.VPX_CODEC_OK {
		e.free()
		return nil, &CodecError{Op: "get default encoder config", Status: Status(res)}
	}
	e.cfg.g_w = C.uint(c.Width)
	e.cfg.g_h = C.uint(c.Height)
	e.cfg.g_timebase.num = C.int(c.TimebaseNum)
	e.cfg.g_timebase.den = C.int(c.TimebaseDen)
	e.cfg.rc_end_usage = C.VPX_CBR
	if c.TargetRate > 0 {
		e.cfg.rc_target_bitrate = C.uint(c.TargetRate)
	}
	e.cfg.g_pass = C.VPX_RC_ONE_PASS
	if c.Threads > 0 {
		e.cfg.g_threads = C.uint(c.Threads)
	}
	e.cfg.rc_resize_allowed = 0
	e.cfg.g_lag_in_frames = 0

	e.ctx = C.newEncoderCtx()
	if res := C.encoderInit(e.ctx, iface, e.cfg); res != C.VPX_CODEC_OK {
		C.free(unsafe.Pointer(e.ctx))
		e.ctx = nil
		e.free()
		return nil, &CodecError{Op: "initialize encoder", Status: Status(res)}
	}
	e.raw = C.vpx_img_alloc(nil, C.VPX_IMG_FMT_I420, C.uint(c.Width), C.uint(c.Height), 1)
	if e.raw == nil {
		e.free()
		return nil, &CodecError{Op: "allocate encoder image", Status: StatusMemError}
	}
	e.logger.Info("initialized libvpx encoder", "codec", c.Codec, "width", c.Width, "height", c.Height, "timebase", fmt.Sprintf("%v/%v", c.TimebaseNum, c.TimebaseDen), "target-rate", c.TargetRate)
	return e, nil
}

func (e *VPXEncoder) Encode(img *yuv.Image, pts int64, duration uint64, flags EncodeFlags) error {
	if e.closed {
		return ErrClosed
	}
	var raw *C.vpx_image_t
	if img != nil {
		if err := e.load(img); err != nil {
			return err
		}
		raw = e.raw
	}
	forceKeyframe := C.int(0)
	if flags&ForceKeyframe != 0 {
		forceKeyframe = 1
	}
	realtime := C.int(0)
	if e.config.Realtime {
		realtime = 1
	}
	e.iter = nil
	if res := C.encodeFrame(e.ctx, raw, C.int64_t(pts), C.ulong(duration), forceKeyframe, realtime); res != C.VPX_CODEC_OK {
		return &CodecError{Op: "encode frame", Status: Status(res)}
	}
	return nil
}

// load copies img row by row into the libvpx input frame.
func (e *VPXEncoder) load(img *yuv.Image) error {
	if img.Format != yuv.FormatI420 {
		return fmt.Errorf("%w: %v, encoder expects I420", ErrUnsupportedFormat, img.Format)
	}
	if img.Width != e.config.Width || img.Height != e.config.Height {
		return fmt.Errorf("%w: image is %vx%v, encoder is %vx%v", ErrUnsupportedFormat, img.Width, img.Height, e.config.Width, e.config.Height)
	}
	if err := img.Validate(); err != nil {
		return err
	}
	for p := range img.Planes {
		stride := int(e.raw.stride[p])
		h := img.PlaneHeight(p)
		dst := unsafe.Slice((*byte)(unsafe.Pointer(e.raw.planes[p])), stride*h)
		for y := range h {
			copy(dst[y*stride:], img.Row(p, y))
		}
	}
	return nil
}

func (e *VPXEncoder) NextPacket() (*Packet, bool) {
	if e.closed {
		return nil, false
	}
	pkt := C.vpx_codec_get_cx_data(e.ctx, &e.iter)
	if pkt == nil {
		return nil, false
	}
	p := &Packet{}
	switch pkt.kind {
	case C.VPX_CODEC_CX_FRAME_PKT:
		p.Kind = FramePacket
		p.Data = C.GoBytes(C.encPktBuf(pkt), C.int(C.encPktSz(pkt)))
		p.PTS = int64(C.encPktPts(pkt))
		p.Duration = uint64(C.encPktDuration(pkt))
		p.Keyframe = C.encPktIsKey(pkt) != 0
		e.logger.Debug("encoded frame", "size", len(p.Data), "pts", p.PTS, "keyframe", p.Keyframe)
	case C.VPX_CODEC_STATS_PKT:
		p.Kind = StatsPacket
	case C.VPX_CODEC_PSNR_PKT:
		p.Kind = PSNRPacket
	default:
		p.Kind = CustomPacket
	}
	return p, true
}

func (e *VPXEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.free()
	return nil
}

func (e *VPXEncoder) free() {
	C.freeEncoder(e.ctx, e.cfg, e.raw)
	e.ctx = nil
	e.cfg = nil
	e.raw = nil
}

// Version returns the libvpx version string.
func Version() string {
	return C.GoString(C.vpx_codec_version_str())
}
