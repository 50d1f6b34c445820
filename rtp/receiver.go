package rtp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/mengelbart/vpxivf/logging"
	"github.com/pion/rtcp"
)

const receiveMTU = 1500

type ReceiverOption func(*Receiver)

func WithReceiverLogger(logger *slog.Logger) ReceiverOption {
	return func(r *Receiver) {
		r.logger = logger
	}
}

// WithReceiverRTPLogger traces received RTCP packets. RTP packets are
// traced by the depacketizer.
func WithReceiverRTPLogger(l *logging.RTPLogger) ReceiverOption {
	return func(r *Receiver) {
		r.rtpLogger = l
	}
}

// Receiver reads packets from a packet oriented reader, such as a UDP
// connection, and feeds RTP packets to a Depacketizer. RTCP packets
// multiplexed on the same reader are parsed and logged.
type Receiver struct {
	logger    *slog.Logger
	rtpLogger *logging.RTPLogger

	reader       io.Reader
	depacketizer *Depacketizer

	lastSenderReport *rtcp.SenderReport
}

func NewReceiver(reader io.Reader, depacketizer *Depacketizer, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		logger:       slog.Default(),
		reader:       reader,
		depacketizer: depacketizer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads until the reader returns io.EOF or ctx is done and then
// flushes the depacketizer. If the reader has a SetReadDeadline method, a
// blocked read is interrupted when ctx is done.
func (r *Receiver) Run(ctx context.Context) error {
	if dl, ok := r.reader.(interface{ SetReadDeadline(time.Time) error }); ok {
		stop := context.AfterFunc(ctx, func() {
			if err := dl.SetReadDeadline(time.Unix(1, 0)); err != nil {
				r.logger.Warn("failed to interrupt read", "error", err)
			}
		})
		defer stop()
	}
	buf := make([]byte, receiveMTU)
	for {
		n, err := r.reader.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := r.handle(buf[:n]); err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	r.logger.Info("rtp receiver done", "frames", r.depacketizer.Frames(), "dropped", r.depacketizer.Dropped())
	return r.depacketizer.Flush()
}

func (r *Receiver) handle(buf []byte) error {
	if isRTCP(buf) {
		pkts, err := rtcp.Unmarshal(buf)
		if err != nil {
			r.logger.Warn("dropping malformed rtcp packet", "error", err)
			return nil
		}
		if r.rtpLogger != nil {
			r.rtpLogger.LogRTCPPackets(pkts, nil)
		}
		for _, pkt := range pkts {
			if sr, ok := pkt.(*rtcp.SenderReport); ok {
				r.lastSenderReport = sr
			}
		}
		return nil
	}
	err := r.depacketizer.Write(buf)
	if errors.Is(err, ErrMalformedPacket) {
		r.logger.Warn("dropping malformed rtp packet", "error", err)
		return nil
	}
	return err
}

// LastSenderReport returns the most recent RTCP sender report, or nil.
func (r *Receiver) LastSenderReport() *rtcp.SenderReport {
	return r.lastSenderReport
}

// isRTCP demultiplexes RTP and RTCP on one transport as in RFC 5761.
func isRTCP(buf []byte) bool {
	return len(buf) >= 2 && buf[1] >= 192 && buf[1] <= 223
}
