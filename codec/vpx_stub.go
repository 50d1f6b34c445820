//go:build !vpx

package codec

// NewVPXEncoder returns ErrCodecUnavailable. Build with -tags vpx to link
// against libvpx.
func NewVPXEncoder(cfg Config, opts ...Option) (Encoder, error) {
	return nil, ErrCodecUnavailable
}

// NewVPXDecoder returns ErrCodecUnavailable. Build with -tags vpx to link
// against libvpx.
func NewVPXDecoder(codec CodecType, opts ...Option) (Decoder, error) {
	return nil, ErrCodecUnavailable
}

func Version() string {
	return "unavailable"
}
