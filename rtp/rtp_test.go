package rtp

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mengelbart/vpxivf"
	"github.com/mengelbart/vpxivf/bytestream"
	"github.com/mengelbart/vpxivf/codec"
	"github.com/mengelbart/vpxivf/ivf"
	"github.com/pion/rtp"
	"github.com/pion/transport/v4/packetio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	data []byte
	pts  int64
}

func makeFrame(size int, seed byte) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func container(t *testing.T, fourcc ivf.FourCC, frames []frame) *ivf.Reader {
	t.Helper()
	sink := bytestream.NewBufferSink(1 << 20)
	w, err := ivf.NewWriter(sink, ivf.Info{
		FourCC:   fourcc,
		Width:    64,
		Height:   48,
		Timebase: ivf.Rational{Num: 1, Den: 30},
	})
	require.NoError(t, err)
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f.data, f.pts))
	}
	require.NoError(t, w.Close())
	r, err := ivf.NewReader(bytestream.NewBufferSource(sink.Bytes()))
	require.NoError(t, err)
	return r
}

type recorder struct {
	frames []frame
}

func (r *recorder) WriteFrame(data []byte, pts int64) error {
	r.frames = append(r.frames, frame{data: append([]byte{}, data...), pts: pts})
	return nil
}

func assertFrames(t *testing.T, want, got []frame) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].pts, got[i].pts, "frame %v", i)
		assert.True(t, bytes.Equal(want[i].data, got[i].data), "frame %v", i)
	}
}

func runLoopback(t *testing.T, fourcc ivf.FourCC) {
	frames := []frame{
		{makeFrame(100, 1), 0},
		{makeFrame(3000, 2), 1},
		{makeFrame(50, 3), 2},
		{makeFrame(2500, 4), 4},
		{makeFrame(10, 5), 5},
	}
	reader := container(t, fourcc, frames)

	buf := packetio.NewBuffer()
	sender, err := NewSender(reader, buf, WithoutPacing(), WithSenderReportInterval(2), WithSSRC(42))
	require.NoError(t, err)
	require.NoError(t, sender.Run(context.Background()))
	assert.Equal(t, 5, sender.FrameCount())
	require.NoError(t, buf.Close())

	c, err := vpxivf.CodecFromFourCC(fourcc)
	require.NoError(t, err)
	sink := bytestream.NewBufferSink(1 << 20)
	w, err := ivf.NewWriter(sink, reader.Info())
	require.NoError(t, err)
	d, err := NewDepacketizer(c.Type(), reader.Info().Timebase, w)
	require.NoError(t, err)
	receiver := NewReceiver(buf, d)
	require.NoError(t, receiver.Run(context.Background()))
	require.NoError(t, w.Close())

	sr := receiver.LastSenderReport()
	require.NotNil(t, sr)
	assert.Equal(t, uint32(42), sr.SSRC)
	assert.Equal(t, sender.PacketCount(), sr.PacketCount)

	r, err := ivf.NewReader(bytestream.NewBufferSource(sink.Bytes()))
	require.NoError(t, err)
	var got []frame
	for {
		ok, err := r.ReadFrame()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, frame{data: append([]byte{}, r.Frame()...), pts: r.PTS()})
	}
	assertFrames(t, frames, got)
	assert.Equal(t, uint32(len(frames)), r.Header().FrameCount)
}

func TestLoopbackVP8(t *testing.T) {
	runLoopback(t, ivf.VP8FourCC)
}

func TestLoopbackVP9(t *testing.T) {
	runLoopback(t, ivf.VP9FourCC)
}

func packetize(t *testing.T, frames []frame) []*rtp.Packet {
	t.Helper()
	p, err := NewPacketizer(codec.VP8, ivf.Rational{Num: 1, Den: 30}, 1200, 96, 1, DefaultClockRate)
	require.NoError(t, err)
	var pkts []*rtp.Packet
	for _, f := range frames {
		pkts = append(pkts, p.Packetize(f.data, f.pts)...)
	}
	return pkts
}

func TestPacketizerTimestamps(t *testing.T) {
	pkts := packetize(t, []frame{
		{makeFrame(3000, 0), 0},
		{makeFrame(10, 0), 1},
		{makeFrame(10, 0), 3},
	})
	require.Len(t, pkts, 5)
	base := pkts[0].Timestamp
	for i, want := range []uint32{0, 0, 0, 3000, 9000} {
		assert.Equal(t, base+want, pkts[i].Timestamp, "packet %v", i)
	}
	for i, marker := range []bool{false, false, true, true, true} {
		assert.Equal(t, marker, pkts[i].Marker, "packet %v", i)
	}
	for i := 1; i < len(pkts); i++ {
		assert.Equal(t, pkts[i-1].SequenceNumber+1, pkts[i].SequenceNumber)
	}
}

func TestTimestampConversion(t *testing.T) {
	tb := ivf.Rational{Num: 1, Den: 30}
	for _, pts := range []int64{0, 1, 29, 30, 1000} {
		ts := ptsToTimestamp(pts, tb, DefaultClockRate)
		assert.Equal(t, pts, timestampToPTS(int64(ts), tb, DefaultClockRate))
	}
	assert.Equal(t, int64(-1), timestampToPTS(-3000, tb, DefaultClockRate))
	assert.Equal(t, int64(1), timestampToPTS(2999, tb, DefaultClockRate))
}

func TestDepacketizerReorder(t *testing.T) {
	frames := []frame{
		{makeFrame(3000, 1), 0},
		{makeFrame(100, 2), 1},
	}
	pkts := packetize(t, frames)
	require.Len(t, pkts, 4)
	pkts[1], pkts[2] = pkts[2], pkts[1]

	var rec recorder
	d, err := NewDepacketizer(codec.VP8, ivf.Rational{Num: 1, Den: 30}, &rec)
	require.NoError(t, err)
	for _, pkt := range pkts {
		require.NoError(t, d.Push(pkt))
	}
	require.NoError(t, d.Flush())
	assertFrames(t, frames, rec.frames)
	assert.Equal(t, 0, d.Dropped())

	// duplicates of played out packets are ignored
	require.NoError(t, d.Push(pkts[0]))
	require.NoError(t, d.Flush())
	assert.Len(t, rec.frames, 2)
}

func TestDepacketizerLoss(t *testing.T) {
	frames := []frame{
		{makeFrame(3000, 1), 0},
		{makeFrame(3000, 2), 1},
		{makeFrame(100, 3), 2},
	}
	pkts := packetize(t, frames)
	require.Len(t, pkts, 7)
	lost := append(append([]*rtp.Packet{}, pkts[:4]...), pkts[5:]...)

	var rec recorder
	d, err := NewDepacketizer(codec.VP8, ivf.Rational{Num: 1, Den: 30}, &rec)
	require.NoError(t, err)
	now := time.Unix(100, 0)
	d.now = func() time.Time { return now }
	for _, pkt := range lost {
		require.NoError(t, d.Push(pkt))
	}
	assert.Len(t, rec.frames, 1)

	require.NoError(t, d.Flush())
	assertFrames(t, []frame{frames[0], frames[2]}, rec.frames)
	assert.Equal(t, 1, d.Dropped())
}

func TestDepacketizerLossTimeout(t *testing.T) {
	frames := []frame{
		{makeFrame(3000, 1), 0},
		{makeFrame(100, 2), 1},
		{makeFrame(100, 3), 2},
	}
	pkts := packetize(t, frames)
	require.Len(t, pkts, 5)

	var rec recorder
	d, err := NewDepacketizer(codec.VP8, ivf.Rational{Num: 1, Den: 30}, &rec, WithLossTimeout(50*time.Millisecond))
	require.NoError(t, err)
	now := time.Unix(100, 0)
	d.now = func() time.Time { return now }

	require.NoError(t, d.Push(pkts[0]))
	// pkts[1] is lost
	require.NoError(t, d.Push(pkts[2]))
	require.NoError(t, d.Push(pkts[3]))
	assert.Empty(t, rec.frames)

	now = now.Add(time.Second)
	require.NoError(t, d.Push(pkts[4]))
	assertFrames(t, frames[1:], rec.frames)
	assert.Equal(t, 1, d.Dropped())
}

func TestReceiverDropsGarbage(t *testing.T) {
	buf := packetio.NewBuffer()
	pkts := packetize(t, []frame{{makeFrame(10, 1), 7}})
	_, err := buf.Write([]byte{0x80, 0x60})
	require.NoError(t, err)
	b, err := pkts[0].Marshal()
	require.NoError(t, err)
	_, err = buf.Write(b)
	require.NoError(t, err)
	require.NoError(t, buf.Close())

	var rec recorder
	d, err := NewDepacketizer(codec.VP8, ivf.Rational{Num: 1, Den: 30}, &rec)
	require.NoError(t, err)
	require.NoError(t, NewReceiver(buf, d).Run(context.Background()))
	require.Len(t, rec.frames, 1)
	assert.Equal(t, int64(0), rec.frames[0].pts)
}

func TestReceiverContextCancel(t *testing.T) {
	buf := packetio.NewBuffer()
	var rec recorder
	d, err := NewDepacketizer(codec.VP8, ivf.Rational{Num: 1, Den: 30}, &rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewReceiver(buf, d).Run(ctx)
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not stop")
	}
}

func TestSenderPacingHonorsContext(t *testing.T) {
	reader := container(t, ivf.VP8FourCC, []frame{{makeFrame(10, 0), 0}, {makeFrame(10, 0), 1}})
	sender, err := NewSender(reader, packetio.NewBuffer())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.Run(ctx), context.Canceled)
	assert.Equal(t, 0, sender.FrameCount())
}

func TestSenderRejectsUnknownFourCC(t *testing.T) {
	reader := container(t, ivf.AV1FourCC, nil)
	_, err := NewSender(reader, packetio.NewBuffer())
	assert.Error(t, err)
}

func TestIsRTCP(t *testing.T) {
	assert.True(t, isRTCP([]byte{0x80, 200}))
	assert.False(t, isRTCP([]byte{0x80, 96}))
	assert.False(t, isRTCP([]byte{0x80, 0x80 | 96}))
	assert.False(t, isRTCP([]byte{0x80}))
}
