package codec

import (
	"fmt"

	"github.com/mengelbart/vpxivf/yuv"
)

// maxFlushRounds bounds Flush against encoders that never stop producing
// packets for a nil image.
const maxFlushRounds = 1 << 16

// PumpEncode submits img as frame frameIndex, with a duration of one
// timebase tick, and forwards every frame packet the encoder produces to w
// in order. A nil img asks the encoder to flush. It reports whether any
// packet was produced.
func PumpEncode(enc Encoder, img *yuv.Image, frameIndex int64, flags EncodeFlags, w FrameWriter) (bool, error) {
	pts := frameIndex
	if img == nil {
		pts = -1
	}
	if err := enc.Encode(img, pts, 1, flags); err != nil {
		return false, codecError("encode frame", err)
	}
	got := false
	for {
		pkt, ok := enc.NextPacket()
		if !ok {
			return got, nil
		}
		got = true
		if pkt.Kind != FramePacket {
			continue
		}
		if err := w.WriteFrame(pkt.Data, pkt.PTS); err != nil {
			return got, fmt.Errorf("failed to write encoded frame pts=%v: %w", pkt.PTS, err)
		}
	}
}

// Flush drains delayed frames from enc until an encode call yields no
// packets. It returns the number of rounds that produced packets.
func Flush(enc Encoder, w FrameWriter) (int, error) {
	rounds := 0
	for rounds < maxFlushRounds {
		got, err := PumpEncode(enc, nil, -1, 0, w)
		if err != nil {
			return rounds, err
		}
		if !got {
			return rounds, nil
		}
		rounds++
	}
	return rounds, &CodecError{Op: "flush encoder", Status: StatusError, Err: fmt.Errorf("encoder still producing packets after %v rounds", rounds)}
}

// PumpDecode decodes one compressed frame and hands every resulting image
// to sink in order. It returns the number of images delivered.
func PumpDecode(dec Decoder, data []byte, sink func(*yuv.Image) error) (int, error) {
	if err := dec.Decode(data); err != nil {
		return 0, codecError("decode frame", err)
	}
	n := 0
	for {
		img, ok := dec.NextImage()
		if !ok {
			return n, nil
		}
		if err := sink(img); err != nil {
			return n, fmt.Errorf("failed to write decoded image: %w", err)
		}
		n++
	}
}

// KeyframeInterval forces a keyframe every n frames. Values <= 0 leave
// keyframe placement to the encoder.
type KeyframeInterval int

func (k KeyframeInterval) Flags(frameIndex int64) EncodeFlags {
	if k > 0 && frameIndex%int64(k) == 0 {
		return ForceKeyframe
	}
	return 0
}
