// Package vpxivf encodes raw planar video into IVF containers and decodes
// IVF containers back into raw video through an external VP8 or VP9 codec.
package vpxivf

import (
	"fmt"
	"strings"

	"github.com/mengelbart/vpxivf/codec"
	"github.com/mengelbart/vpxivf/ivf"
)

type Codec int

const (
	VP8 Codec = iota
	VP9
)

func (c Codec) ClockRate() int {
	switch c {
	default:
		return 90_000
	}
}

// ParseCodec accepts "VP8" and "VP9" in any case.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToUpper(s) {
	case "VP8":
		return VP8, nil
	case "VP9":
		return VP9, nil
	}
	return VP8, fmt.Errorf("unknown codec: %s", s)
}

// CodecFromFourCC returns the codec stored under f in a container.
func CodecFromFourCC(f ivf.FourCC) (Codec, error) {
	switch f {
	case ivf.VP8FourCC:
		return VP8, nil
	case ivf.VP9FourCC:
		return VP9, nil
	}
	return VP8, fmt.Errorf("unsupported fourcc: %v", f)
}

func (c Codec) String() string {
	switch c {
	case VP8:
		return "VP8"
	case VP9:
		return "VP9"
	}
	return "unknown"
}

func (c Codec) FourCC() ivf.FourCC {
	switch c {
	case VP9:
		return ivf.VP9FourCC
	default:
		return ivf.VP8FourCC
	}
}

// Type returns the codec package identifier of c.
func (c Codec) Type() codec.CodecType {
	switch c {
	case VP9:
		return codec.VP9
	default:
		return codec.VP8
	}
}
