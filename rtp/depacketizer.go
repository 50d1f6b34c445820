package rtp

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mengelbart/vpxivf/codec"
	"github.com/mengelbart/vpxivf/ivf"
	"github.com/mengelbart/vpxivf/logging"
	"github.com/pion/interceptor/pkg/jitterbuffer"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

var ErrMalformedPacket = errors.New("rtp: malformed packet")

// maxSkips bounds how far Flush advances the playout head over lost
// packets.
const maxSkips = 1 << 16

type DepacketizerOption func(*Depacketizer)

// WithLossTimeout sets how long the depacketizer waits for a missing packet
// before it drops the frame the packet belongs to.
func WithLossTimeout(d time.Duration) DepacketizerOption {
	return func(dp *Depacketizer) {
		dp.timeout = d
	}
}

// WithMinimumPacketCount sets how many packets are buffered before the
// first frame is assembled, which allows reordering at stream start.
func WithMinimumPacketCount(n uint16) DepacketizerOption {
	return func(dp *Depacketizer) {
		dp.minPackets = n
	}
}

func WithClockRate(rate uint32) DepacketizerOption {
	return func(dp *Depacketizer) {
		dp.clockRate = rate
	}
}

func WithDepacketizerLogger(logger *slog.Logger) DepacketizerOption {
	return func(dp *Depacketizer) {
		dp.logger = logger
	}
}

func WithDepacketizerRTPLogger(l *logging.RTPLogger) DepacketizerOption {
	return func(dp *Depacketizer) {
		dp.rtpLogger = l
	}
}

// Depacketizer reorders RTP packets in a jitter buffer, strips the VP8 or
// VP9 payload descriptors and writes every complete frame to a FrameWriter.
// Frames with lost packets are dropped. The pts of a frame is its RTP
// timestamp relative to the first packet, expressed in the container
// timebase.
type Depacketizer struct {
	logger    *slog.Logger
	rtpLogger *logging.RTPLogger

	codec     codec.CodecType
	timebase  ivf.Rational
	clockRate uint32
	writer    codec.FrameWriter

	jitterBuffer *jitterbuffer.JitterBuffer
	minPackets   uint16
	timeout      time.Duration
	missedSince  time.Time
	now          func() time.Time

	frame    []byte
	inFrame  bool
	dropping bool

	started bool
	haveSeq bool
	nextSeq uint16

	tsInit      bool
	firstTS     int64
	lastTS      uint32
	unwrappedTS int64

	frames  int
	dropped int
}

func NewDepacketizer(c codec.CodecType, timebase ivf.Rational, w codec.FrameWriter, opts ...DepacketizerOption) (*Depacketizer, error) {
	if c != codec.VP8 && c != codec.VP9 {
		return nil, fmt.Errorf("unknown codec: %v", c)
	}
	if timebase.Num <= 0 || timebase.Den <= 0 {
		return nil, fmt.Errorf("invalid timebase %v", timebase)
	}
	d := &Depacketizer{
		logger:     slog.Default(),
		codec:      c,
		timebase:   timebase,
		clockRate:  DefaultClockRate,
		writer:     w,
		minPackets: 1,
		timeout:    100 * time.Millisecond,
		now:        time.Now,
		frame:      make([]byte, 0, 2000),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.jitterBuffer = jitterbuffer.New(jitterbuffer.WithMinimumPacketCount(d.minPackets))
	return d, nil
}

// Write parses one RTP packet and assembles every frame that became
// complete. Unparseable input is reported as ErrMalformedPacket.
func (d *Depacketizer) Write(buf []byte) error {
	pkt := new(rtp.Packet)
	if err := pkt.Unmarshal(append([]byte(nil), buf...)); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	return d.Push(pkt)
}

// Push adds a parsed packet. Packets older than the playout head are
// discarded.
func (d *Depacketizer) Push(pkt *rtp.Packet) error {
	if d.rtpLogger != nil {
		d.rtpLogger.LogRTPPacket(&pkt.Header, pkt.Payload, nil)
	}
	if d.started && int16(pkt.SequenceNumber-d.jitterBuffer.PlayoutHead()) < 0 {
		d.logger.Debug("discarding late packet", "sequence-number", pkt.SequenceNumber, "playout-head", d.jitterBuffer.PlayoutHead())
		return nil
	}
	d.started = true
	d.jitterBuffer.Push(pkt)
	return d.process(false)
}

// Flush assembles what is left in the jitter buffer without waiting for
// missing packets. Call it at the end of the stream.
func (d *Depacketizer) Flush() error {
	return d.process(true)
}

func (d *Depacketizer) process(force bool) error {
	skips := 0
	for {
		if _, err := d.jitterBuffer.Peek(true); errors.Is(err, jitterbuffer.ErrBufferUnderrun) {
			return nil
		}
		pkt, err := d.jitterBuffer.Pop()
		switch {
		case errors.Is(err, jitterbuffer.ErrPopWhileBuffering):
			if force {
				d.logger.Warn("stream ended while jitter buffer was still buffering")
			}
			return nil
		case errors.Is(err, jitterbuffer.ErrNotFound):
			if !force {
				now := d.now()
				if d.missedSince.IsZero() {
					d.missedSince = now
					return nil
				}
				if now.Sub(d.missedSince) <= d.timeout {
					return nil
				}
			}
			if skips++; skips > maxSkips {
				return fmt.Errorf("jitter buffer holds no packet within %v sequence numbers of the playout head", maxSkips)
			}
			d.skip()
			continue
		case err != nil:
			return err
		}
		d.missedSince = time.Time{}
		if err := d.handle(pkt); err != nil {
			return err
		}
	}
}

// skip gives up on the packet at the playout head and drops the frame it
// belongs to.
func (d *Depacketizer) skip() {
	head := d.jitterBuffer.PlayoutHead()
	d.logger.Info("dropping frame, rtp packet lost", "sequence-number", head)
	d.jitterBuffer.SetPlayoutHead(head + 1)
	d.missedSince = time.Time{}
	d.frame = d.frame[:0]
	if !d.dropping {
		d.dropped++
	}
	d.dropping = true
}

func (d *Depacketizer) unmarshalPayload(payload []byte) ([]byte, bool, error) {
	switch d.codec {
	case codec.VP8:
		var vp8 codecs.VP8Packet
		b, err := vp8.Unmarshal(payload)
		return b, vp8.S == 1 && vp8.PID == 0, err
	default:
		var vp9 codecs.VP9Packet
		b, err := vp9.Unmarshal(payload)
		return b, vp9.B, err
	}
}

func (d *Depacketizer) handle(pkt *rtp.Packet) error {
	if d.haveSeq && pkt.SequenceNumber != d.nextSeq && d.inFrame && !d.dropping {
		d.logger.Info("dropping frame, sequence gap", "expected", d.nextSeq, "sequence-number", pkt.SequenceNumber)
		d.frame = d.frame[:0]
		d.dropping = true
		d.dropped++
	}
	d.haveSeq = true
	d.nextSeq = pkt.SequenceNumber + 1
	d.unwrapTimestamp(pkt.Timestamp)

	payload, start, err := d.unmarshalPayload(pkt.Payload)
	if err != nil {
		d.logger.Warn("dropping frame, invalid payload descriptor", "sequence-number", pkt.SequenceNumber, "error", err)
		d.frame = d.frame[:0]
		d.dropping = true
		return nil
	}
	if start {
		d.frame = d.frame[:0]
		d.inFrame = true
		d.dropping = false
	} else if !d.inFrame {
		d.dropping = true
	}
	if !d.dropping {
		d.frame = append(d.frame, payload...)
	}
	if !pkt.Marker {
		return nil
	}
	complete := d.inFrame && !d.dropping
	d.inFrame = false
	d.dropping = false
	if !complete {
		d.frame = d.frame[:0]
		return nil
	}
	pts := timestampToPTS(d.unwrappedTS-d.firstTS, d.timebase, d.clockRate)
	if err := d.writer.WriteFrame(d.frame, pts); err != nil {
		return err
	}
	d.frames++
	d.logger.Debug("assembled frame", "size", len(d.frame), "pts", pts, "rtp-timestamp", pkt.Timestamp)
	d.frame = d.frame[:0]
	return nil
}

// unwrapTimestamp tracks the RTP timestamp across 32 bit wraps relative to
// the first packet handled.
func (d *Depacketizer) unwrapTimestamp(ts uint32) {
	if !d.tsInit {
		d.tsInit = true
		d.firstTS = int64(ts)
		d.unwrappedTS = int64(ts)
	} else {
		d.unwrappedTS += int64(int32(ts - d.lastTS))
	}
	d.lastTS = ts
}

// Frames returns the number of frames written.
func (d *Depacketizer) Frames() int {
	return d.frames
}

// Dropped returns the number of frames dropped because of packet loss.
func (d *Depacketizer) Dropped() int {
	return d.dropped
}
