package ivf

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/mengelbart/vpxivf/bytestream"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testInfo = Info{
	FourCC:   VP8FourCC,
	Width:    64,
	Height:   48,
	Timebase: Rational{Num: 1, Den: 30},
}

type frame struct {
	data []byte
	pts  int64
}

func testFrames(sizes ...int) []frame {
	frames := make([]frame, 0, len(sizes))
	for i, size := range sizes {
		data := make([]byte, size)
		for j := range data {
			data[j] = byte(i + j)
		}
		frames = append(frames, frame{data: data, pts: int64(i)})
	}
	return frames
}

func writeAll(t *testing.T, sink bytestream.Sink, info Info, frames []frame, opts ...WriterOption) {
	t.Helper()
	w, err := NewWriter(sink, info, opts...)
	require.NoError(t, err)
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f.data, f.pts))
	}
	assert.Equal(t, uint32(len(frames)), w.FrameCount())
	require.NoError(t, w.Close())
}

func readAll(t *testing.T, src bytestream.Source) (FileHeader, []frame) {
	t.Helper()
	r, err := NewReader(src)
	require.NoError(t, err)
	defer r.Close()
	var frames []frame
	for {
		ok, err := r.ReadFrame()
		require.NoError(t, err)
		if !ok {
			break
		}
		frames = append(frames, frame{data: append([]byte{}, r.Frame()...), pts: r.PTS()})
	}
	assert.Equal(t, uint32(len(frames)), r.FramesRead())
	return r.Header(), frames
}

func TestFileHeaderLayout(t *testing.T) {
	b := EncodeFileHeader(testInfo, 3)
	assert.Equal(t, []byte{
		'D', 'K', 'I', 'F',
		0, 0, // version
		32, 0, // header size
		'V', 'P', '8', '0',
		64, 0, // width
		48, 0, // height
		30, 0, 0, 0, // rate
		1, 0, 0, 0, // scale
		3, 0, 0, 0, // frame count
		0, 0, 0, 0,
	}, b[:])

	h, err := DecodeFileHeader(b[:])
	require.NoError(t, err)
	assert.Equal(t, testInfo, h.Info)
	assert.Equal(t, uint32(3), h.FrameCount)
	assert.Equal(t, uint16(FileHeaderSize), h.HeaderSize)
	assert.Equal(t, uint16(0), h.Version)
}

func TestDecodeFileHeaderErrors(t *testing.T) {
	valid := EncodeFileHeader(testInfo, 0)

	badSig := valid
	copy(badSig[:4], "RIFF")
	_, err := DecodeFileHeader(badSig[:])
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.ErrorIs(t, err, ErrFormat)

	badVersion := valid
	badVersion[4] = 1
	_, err = DecodeFileHeader(badVersion[:])
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = DecodeFileHeader(valid[:31])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestFrameHeader(t *testing.T) {
	cases := []struct {
		pts  int64
		size uint32
	}{
		{0, 0},
		{1, 100},
		{1<<32 + 5, 250},
		{-1, 1},
	}
	for _, tc := range cases {
		b := EncodeFrameHeader(tc.pts, tc.size)
		pts, size := DecodeFrameHeader(b)
		assert.Equal(t, tc.pts, pts)
		assert.Equal(t, tc.size, size)
	}

	b := EncodeFrameHeader(1<<32+5, 7)
	assert.Equal(t, []byte{7, 0, 0, 0, 5, 0, 0, 0, 1, 0, 0, 0}, b[:])
}

func TestFourCC(t *testing.T) {
	assert.Equal(t, "VP80", VP8FourCC.String())
	assert.Equal(t, "VP90", VP9FourCC.String())
	f, err := ParseFourCC("VP90")
	require.NoError(t, err)
	assert.Equal(t, VP9FourCC, f)
	_, err = ParseFourCC("VP9")
	assert.Error(t, err)
}

func TestInfoValidate(t *testing.T) {
	assert.NoError(t, testInfo.Validate())
	for _, info := range []Info{
		{FourCC: VP8FourCC, Width: 63, Height: 48, Timebase: Rational{1, 30}},
		{FourCC: VP8FourCC, Width: 64, Height: 0, Timebase: Rational{1, 30}},
		{FourCC: VP8FourCC, Width: 70000, Height: 48, Timebase: Rational{1, 30}},
		{FourCC: VP8FourCC, Width: 64, Height: 48, Timebase: Rational{0, 30}},
	} {
		assert.ErrorIs(t, info.Validate(), ErrInvalidInfo, "%+v", info)
	}
}

func TestRoundTrip(t *testing.T) {
	frames := testFrames(100, 0, 250, 1, 4096)
	sink := bytestream.NewBufferSink(1 << 16)
	writeAll(t, sink, testInfo, frames)

	header, got := readAll(t, bytestream.NewBufferSource(sink.Bytes()))
	assert.Equal(t, testInfo, header.Info)
	assert.Equal(t, uint32(len(frames)), header.FrameCount)
	require.Len(t, got, len(frames))
	for i := range frames {
		assert.Equal(t, frames[i].pts, got[i].pts)
		assert.Equal(t, len(frames[i].data), len(got[i].data))
		assert.True(t, bytes.Equal(frames[i].data, got[i].data))
	}
}

func TestEndToEndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ivf")
	w, err := Create(path, testInfo)
	require.NoError(t, err)
	frames := testFrames(100, 0, 250)
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f.data, f.pts))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, uint32(3), r.Header().FrameCount)
	assert.Equal(t, testInfo, r.Info())
	for i, f := range frames {
		ok, err := r.ReadFrame()
		require.NoError(t, err)
		require.True(t, ok, "frame %v", i)
		assert.Len(t, r.Frame(), len(f.data))
		assert.Equal(t, f.pts, r.PTS())
	}
	ok, err := r.ReadFrame()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateHeaderIdempotent(t *testing.T) {
	sink := bytestream.NewBufferSink(1024)
	w, err := NewWriter(sink, testInfo)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame([]byte{1, 2, 3}, 0))

	require.NoError(t, w.UpdateHeader())
	first := append([]byte{}, sink.Bytes()...)
	require.NoError(t, w.UpdateHeader())
	assert.Equal(t, first, sink.Bytes())
	assert.Equal(t, int64(FileHeaderSize+FrameHeaderSize+3), sink.Position())

	h, err := DecodeFileHeader(first)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h.FrameCount)

	// writes continue after the rewritten header
	require.NoError(t, w.WriteFrame([]byte{4}, 1))
	require.NoError(t, w.Close())
	_, frames := readAll(t, bytestream.NewBufferSource(sink.Bytes()))
	assert.Len(t, frames, 2)
}

func TestProvisionalHeader(t *testing.T) {
	sink := bytestream.NewBufferSink(1024)
	w, err := NewWriter(sink, testInfo)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame([]byte{1}, 0))

	h, err := DecodeFileHeader(sink.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h.FrameCount)
	require.NoError(t, w.Close())

	h, err = DecodeFileHeader(sink.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), h.FrameCount)
}

func TestWriteFrameBufferTooSmall(t *testing.T) {
	sink := bytestream.NewBufferSink(FileHeaderSize + FrameHeaderSize + 10)
	w, err := NewWriter(sink, testInfo)
	require.NoError(t, err)

	require.NoError(t, w.WriteFrame(make([]byte, 4), 0))
	err = w.WriteFrame(make([]byte, 4), 1)
	assert.ErrorIs(t, err, bytestream.ErrBufferTooSmall)
	assert.Equal(t, uint32(1), w.FrameCount())
	assert.Equal(t, FileHeaderSize+FrameHeaderSize+4, sink.Len())

	require.NoError(t, w.Close())
	header, frames := readAll(t, bytestream.NewBufferSource(sink.Bytes()))
	assert.Equal(t, uint32(1), header.FrameCount)
	assert.Len(t, frames, 1)
}

type pipe struct {
	bytes.Buffer
}

func TestNonSeekableSink(t *testing.T) {
	var out pipe
	frames := testFrames(10, 20)
	writeAll(t, bytestream.NewStreamSink(&out), testInfo, frames, WithFrameCount(2))

	header, got := readAll(t, bytestream.NewStreamSource(bytes.NewReader(out.Bytes())))
	assert.Equal(t, uint32(2), header.FrameCount)
	assert.Len(t, got, 2)

	var undeclared pipe
	w, err := NewWriter(bytestream.NewStreamSink(&undeclared), testInfo)
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame([]byte{1}, 0))
	assert.ErrorIs(t, w.UpdateHeader(), bytestream.ErrNotSeekable)

	var mismatch pipe
	w, err = NewWriter(bytestream.NewStreamSink(&mismatch), testInfo, WithFrameCount(5))
	require.NoError(t, err)
	require.NoError(t, w.WriteFrame([]byte{1}, 0))
	assert.ErrorIs(t, w.Close(), ErrFrameCountMismatch)
}

func TestWriterClosed(t *testing.T) {
	w, err := NewWriter(bytestream.NewBufferSink(64), testInfo)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteFrame([]byte{1}, 0), ErrClosed)
}

func TestNewWriterInvalidInfo(t *testing.T) {
	info := testInfo
	info.Width = 65
	_, err := NewWriter(bytestream.NewBufferSink(64), info)
	assert.ErrorIs(t, err, ErrInvalidInfo)
}

func TestReaderRejectsCorruptHeader(t *testing.T) {
	valid := EncodeFileHeader(testInfo, 0)

	badSig := valid
	copy(badSig[:4], "DKIX")
	_, err := NewReader(bytestream.NewBufferSource(badSig[:]))
	assert.ErrorIs(t, err, ErrBadSignature)

	badVersion := valid
	badVersion[5] = 2
	_, err = NewReader(bytestream.NewBufferSource(badVersion[:]))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = NewReader(bytestream.NewBufferSource(valid[:12]))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = NewReader(bytestream.NewStreamSource(bytes.NewReader(nil)))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReaderOversizedFrame(t *testing.T) {
	header := EncodeFileHeader(testInfo, 1)
	frameHeader := EncodeFrameHeader(0, 300*1024*1024)
	data := append(header[:], frameHeader[:]...)

	r, err := NewReader(bytestream.NewBufferSource(data))
	require.NoError(t, err)
	ok, err := r.ReadFrame()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Nil(t, r.scratch)
}

func TestReaderTruncatedFrame(t *testing.T) {
	sink := bytestream.NewBufferSink(1024)
	writeAll(t, sink, testInfo, testFrames(16, 16))
	data := sink.Bytes()

	for _, cut := range []int{
		FileHeaderSize + FrameHeaderSize + 16 + 5,                   // inside the second frame header
		FileHeaderSize + FrameHeaderSize + 16 + FrameHeaderSize + 3, // inside the second payload
	} {
		for name, src := range map[string]bytestream.Source{
			"buffer": bytestream.NewBufferSource(data[:cut]),
			"stream": bytestream.NewStreamSource(bytes.NewReader(data[:cut])),
		} {
			r, err := NewReader(src)
			require.NoError(t, err)
			ok, err := r.ReadFrame()
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = r.ReadFrame()
			assert.False(t, ok)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "%v cut at %v", name, cut)
		}
	}
}

func TestReaderScratchGrowth(t *testing.T) {
	sink := bytestream.NewBufferSink(4096)
	writeAll(t, sink, testInfo, testFrames(100, 150, 250, 10))

	r, err := NewReader(bytestream.NewBufferSource(sink.Bytes()))
	require.NoError(t, err)
	var caps []int
	for {
		ok, err := r.ReadFrame()
		require.NoError(t, err)
		if !ok {
			break
		}
		caps = append(caps, len(r.scratch))
	}
	assert.Equal(t, []int{200, 200, 500, 500}, caps)
	require.NoError(t, r.Close())
	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.ivf"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestInteropWithPionReader(t *testing.T) {
	frames := testFrames(100, 0, 250)
	sink := bytestream.NewBufferSink(4096)
	writeAll(t, sink, testInfo, frames)

	reader, header, err := ivfreader.NewWith(bytes.NewReader(sink.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "VP80", header.FourCC)
	assert.Equal(t, uint16(64), header.Width)
	assert.Equal(t, uint16(48), header.Height)
	assert.Equal(t, uint32(30), header.TimebaseDenominator)
	assert.Equal(t, uint32(1), header.TimebaseNumerator)
	assert.Equal(t, uint32(3), header.NumFrames)

	for _, f := range frames {
		payload, frameHeader, err := reader.ParseNextFrame()
		require.NoError(t, err)
		assert.Equal(t, uint32(len(f.data)), frameHeader.FrameSize)
		assert.Equal(t, uint64(f.pts), frameHeader.Timestamp)
		assert.True(t, bytes.Equal(f.data, payload))
	}
}
