package rtp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mengelbart/vpxivf"
	"github.com/mengelbart/vpxivf/ivf"
	"github.com/mengelbart/vpxivf/logging"
	"github.com/pion/rtcp"
	"golang.org/x/time/rate"
)

type SenderOption func(*Sender) error

func WithMTU(mtu uint16) SenderOption {
	return func(s *Sender) error {
		if mtu < 64 {
			return fmt.Errorf("mtu %v too small", mtu)
		}
		s.mtu = mtu
		return nil
	}
}

func WithPayloadType(pt uint8) SenderOption {
	return func(s *Sender) error {
		if pt > 127 {
			return fmt.Errorf("invalid payload type %v", pt)
		}
		s.payloadType = pt
		return nil
	}
}

func WithSSRC(ssrc uint32) SenderOption {
	return func(s *Sender) error {
		s.ssrc = ssrc
		return nil
	}
}

// WithoutPacing sends frames as fast as the writer accepts them.
func WithoutPacing() SenderOption {
	return func(s *Sender) error {
		s.pacing = false
		return nil
	}
}

// WithSenderReportInterval sends an RTCP sender report every n frames. Zero
// disables sender reports.
func WithSenderReportInterval(n int) SenderOption {
	return func(s *Sender) error {
		s.srInterval = n
		return nil
	}
}

func WithSenderLogger(logger *slog.Logger) SenderOption {
	return func(s *Sender) error {
		s.logger = logger
		return nil
	}
}

// WithSenderRTPLogger traces every packet sent.
func WithSenderRTPLogger(l *logging.RTPLogger) SenderOption {
	return func(s *Sender) error {
		s.rtpLogger = l
		return nil
	}
}

// Sender reads frames from an IVF container and writes them as RTP packets,
// one packet per Write, paced at the container frame rate. RTCP sender
// reports are multiplexed on the same writer.
type Sender struct {
	logger    *slog.Logger
	rtpLogger *logging.RTPLogger

	reader     *ivf.Reader
	writer     io.Writer
	packetizer *Packetizer
	limiter    *rate.Limiter

	mtu         uint16
	payloadType uint8
	ssrc        uint32
	pacing      bool
	srInterval  int

	lastTimestamp uint32
	packetCount   uint32
	octetCount    uint32
	frameCount    int
}

func NewSender(reader *ivf.Reader, writer io.Writer, opts ...SenderOption) (*Sender, error) {
	s := &Sender{
		logger:      slog.Default(),
		reader:      reader,
		writer:      writer,
		mtu:         DefaultMTU,
		payloadType: DefaultPayloadType,
		ssrc:        rand.Uint32(),
		pacing:      true,
		srInterval:  30,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	info := reader.Info()
	c, err := vpxivf.CodecFromFourCC(info.FourCC)
	if err != nil {
		return nil, err
	}
	s.packetizer, err = NewPacketizer(c.Type(), info.Timebase, s.mtu, s.payloadType, s.ssrc, DefaultClockRate)
	if err != nil {
		return nil, err
	}
	s.limiter = rate.NewLimiter(rate.Inf, 1)
	if s.pacing {
		frameDuration := time.Second * time.Duration(info.Timebase.Num) / time.Duration(info.Timebase.Den)
		s.limiter = rate.NewLimiter(rate.Every(frameDuration), 1)
	}
	return s, nil
}

// Run sends all remaining frames. It returns nil at the end of the
// container and the context error if ctx is done first.
func (s *Sender) Run(ctx context.Context) error {
	s.logger.Info("starting rtp sender", "ssrc", s.ssrc, "payload-type", s.payloadType, "mtu", s.mtu, "pacing", s.pacing)
	for {
		ok, err := s.reader.ReadFrame()
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Info("rtp sender done", "frames", s.frameCount, "packets", s.packetCount)
			if s.srInterval > 0 && s.packetCount > 0 {
				return s.sendSenderReport()
			}
			return nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.sendFrame(s.reader.Frame(), s.reader.PTS()); err != nil {
			return err
		}
	}
}

func (s *Sender) sendFrame(frame []byte, pts int64) error {
	pkts := s.packetizer.Packetize(frame, pts)
	if len(pkts) == 0 {
		s.logger.Debug("skipping empty frame", "pts", pts)
		return nil
	}
	for _, pkt := range pkts {
		buf, err := pkt.Marshal()
		if err != nil {
			return err
		}
		if _, err := s.writer.Write(buf); err != nil {
			return fmt.Errorf("failed to send rtp packet: %w", err)
		}
		if s.rtpLogger != nil {
			s.rtpLogger.LogRTPPacket(&pkt.Header, pkt.Payload, nil)
		}
		s.lastTimestamp = pkt.Timestamp
		s.packetCount++
		s.octetCount += uint32(len(pkt.Payload))
	}
	s.frameCount++
	s.logger.Debug("sent frame", "pts", pts, "size", len(frame), "packets", len(pkts), "rtp-timestamp", s.lastTimestamp)
	if s.srInterval > 0 && s.frameCount%s.srInterval == 0 {
		return s.sendSenderReport()
	}
	return nil
}

func (s *Sender) sendSenderReport() error {
	sr := &rtcp.SenderReport{
		SSRC:        s.ssrc,
		NTPTime:     ntpTime(time.Now()),
		RTPTime:     s.lastTimestamp,
		PacketCount: s.packetCount,
		OctetCount:  s.octetCount,
	}
	buf, err := sr.Marshal()
	if err != nil {
		return err
	}
	if _, err := s.writer.Write(buf); err != nil {
		return fmt.Errorf("failed to send rtcp sender report: %w", err)
	}
	if s.rtpLogger != nil {
		s.rtpLogger.LogRTCPPackets([]rtcp.Packet{sr}, nil)
	}
	return nil
}

func (s *Sender) SSRC() uint32 {
	return s.ssrc
}

func (s *Sender) PacketCount() uint32 {
	return s.packetCount
}

func (s *Sender) FrameCount() int {
	return s.frameCount
}

// ntpTime converts t to the 64 bit NTP format used in sender reports.
func ntpTime(t time.Time) uint64 {
	const ntpEpochOffset = 2_208_988_800
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / 1e9
	return secs<<32 | frac
}
