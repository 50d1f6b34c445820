// Package rtp streams the frames of an IVF container over RTP and assembles
// received RTP packets back into container frames.
package rtp

import (
	"fmt"

	"github.com/mengelbart/vpxivf/codec"
	"github.com/mengelbart/vpxivf/ivf"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

const (
	DefaultMTU         = 1200
	DefaultPayloadType = 96
	DefaultClockRate   = 90_000
)

func payloader(c codec.CodecType) (rtp.Payloader, error) {
	switch c {
	case codec.VP8:
		return &codecs.VP8Payloader{EnablePictureID: true}, nil
	case codec.VP9:
		return &codecs.VP9Payloader{FlexibleMode: true}, nil
	}
	return nil, fmt.Errorf("unknown codec: %v", c)
}

// Packetizer splits frames into RTP packets. RTP timestamps are derived
// from the frame pts, so gaps in the pts survive the trip.
type Packetizer struct {
	packetizer rtp.Packetizer
	clockRate  uint32
	timebase   ivf.Rational

	started bool
	base    uint32
}

func NewPacketizer(c codec.CodecType, timebase ivf.Rational, mtu uint16, pt uint8, ssrc uint32, clockRate uint32) (*Packetizer, error) {
	p, err := payloader(c)
	if err != nil {
		return nil, err
	}
	if timebase.Num <= 0 || timebase.Den <= 0 {
		return nil, fmt.Errorf("invalid timebase %v", timebase)
	}
	return &Packetizer{
		packetizer: rtp.NewPacketizer(mtu, pt, ssrc, p, rtp.NewRandomSequencer(), clockRate),
		clockRate:  clockRate,
		timebase:   timebase,
	}, nil
}

// Packetize returns the RTP packets of one frame. The last packet carries
// the marker bit. Empty frames produce no packets.
func (p *Packetizer) Packetize(frame []byte, pts int64) []*rtp.Packet {
	pkts := p.packetizer.Packetize(frame, 0)
	if len(pkts) == 0 {
		return nil
	}
	if !p.started {
		p.started = true
		p.base = pkts[0].Timestamp - ptsToTimestamp(pts, p.timebase, p.clockRate)
	}
	ts := p.base + ptsToTimestamp(pts, p.timebase, p.clockRate)
	for _, pkt := range pkts {
		pkt.Timestamp = ts
	}
	return pkts
}

func ptsToTimestamp(pts int64, timebase ivf.Rational, clockRate uint32) uint32 {
	return uint32(pts * int64(clockRate) * int64(timebase.Num) / int64(timebase.Den))
}

func timestampToPTS(delta int64, timebase ivf.Rational, clockRate uint32) int64 {
	scale := int64(clockRate) * int64(timebase.Num)
	n := delta * int64(timebase.Den)
	if n < 0 {
		return (n - scale/2) / scale
	}
	return (n + scale/2) / scale
}
