// Package logging configures the process wide slog logger and provides
// structured loggers for RTP traffic.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

type Format string

const (
	TextFormat Format = "text"
	JSONFormat Format = "json"
)

// ParseFormat accepts "text" and "json".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case TextFormat, JSONFormat:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown log format %q, use text or json", s)
}

// Configure installs a text or JSON handler writing to writer as the default
// slog logger. A nil writer logs to stderr.
func Configure(format Format, level slog.Level, writer io.Writer) error {
	if writer == nil {
		writer = os.Stderr
	}
	ho := &slog.HandlerOptions{
		Level: level,
	}
	switch format {
	case JSONFormat:
		slog.SetDefault(slog.New(slog.NewJSONHandler(writer, ho)))
	case TextFormat:
		slog.SetDefault(slog.New(slog.NewTextHandler(writer, ho)))
	default:
		return fmt.Errorf("unexpected log format: %#v", format)
	}
	return nil
}

// RTPLogger logs RTP headers and RTCP packets. Sequence numbers are logged
// both raw and unwrapped so that plots do not jump at the 16 bit wrap.
type RTPLogger struct {
	logger *slog.Logger
	seq    *Unwrapper
}

func NewRTPLogger(vantagePoint string, logger *slog.Logger) *RTPLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RTPLogger{
		logger: logger.With("vantage-point", vantagePoint),
		seq:    &Unwrapper{},
	}
}

func (l *RTPLogger) LogRTPPacket(header *rtp.Header, payload []byte, _ interceptor.Attributes) {
	l.logger.Debug(
		"rtp packet",
		"version", header.Version,
		"padding", header.Padding,
		"marker", header.Marker,
		"payload-type", header.PayloadType,
		"sequence-number", header.SequenceNumber,
		"unwrapped-sequence-number", l.seq.Unwrap(header.SequenceNumber),
		"timestamp", header.Timestamp,
		"ssrc", header.SSRC,
		"payload-length", header.MarshalSize()+len(payload),
	)
}

func (l *RTPLogger) LogRTPPacketBuf(rtpBuf []byte, ia interceptor.Attributes) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(rtpBuf); err != nil {
		return
	}
	l.LogRTPPacket(&pkt.Header, pkt.Payload, ia)
}

func (l *RTPLogger) LogRTCPPackets(pkts []rtcp.Packet, _ interceptor.Attributes) {
	for _, pkt := range pkts {
		switch p := pkt.(type) {
		case *rtcp.SenderReport:
			l.logger.Debug(
				"rtcp sender report",
				"ssrc", p.SSRC,
				"ntp-time", p.NTPTime,
				"rtp-time", p.RTPTime,
				"packet-count", p.PacketCount,
				"octet-count", p.OctetCount,
			)
		default:
			l.logger.Debug("rtcp packet", "type", fmt.Sprintf("%T", pkt), "ssrc", pkt.DestinationSSRC())
		}
	}
}
