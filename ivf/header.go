// Package ivf reads and writes IVF containers.
//
// An IVF file is a 32 byte file header followed by frames, each prefixed by
// a 12 byte frame header. All fields are little-endian.
// See https://wiki.multimedia.cx/index.php/IVF
package ivf

import (
	"encoding/binary"
	"fmt"
)

const (
	Signature       = "DKIF"
	FileHeaderSize  = 32
	FrameHeaderSize = 12

	// MaxFrameSize bounds the declared size of a single frame. Larger sizes
	// are treated as stream corruption.
	MaxFrameSize = 256 << 20
)

const (
	VP8FourCC FourCC = 0x30385056
	VP9FourCC FourCC = 0x30395056
	AV1FourCC FourCC = 0x31305641
)

// FourCC identifies the codec of the frames stored in a container.
type FourCC uint32

// ParseFourCC converts a four character code such as "VP80".
func ParseFourCC(s string) (FourCC, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid fourcc %q: need 4 characters", s)
	}
	return FourCC(binary.LittleEndian.Uint32([]byte(s))), nil
}

func (f FourCC) String() string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(f))
	return string(b[:])
}

// Rational is a timebase, the duration of one pts tick in seconds.
type Rational struct {
	Num int
	Den int
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Info describes the video stored in a container.
type Info struct {
	FourCC   FourCC
	Width    int
	Height   int
	Timebase Rational
}

// Validate checks the constraints a writer needs: positive, even
// dimensions that fit the 16 bit header fields and a positive timebase.
func (i Info) Validate() error {
	if i.Width <= 0 || i.Height <= 0 || i.Width%2 != 0 || i.Height%2 != 0 {
		return fmt.Errorf("%w: %vx%v, width and height must be positive and even", ErrInvalidInfo, i.Width, i.Height)
	}
	if i.Width > 0xffff || i.Height > 0xffff {
		return fmt.Errorf("%w: %vx%v exceeds 65535", ErrInvalidInfo, i.Width, i.Height)
	}
	if i.Timebase.Num <= 0 || i.Timebase.Den <= 0 {
		return fmt.Errorf("%w: timebase %v", ErrInvalidInfo, i.Timebase)
	}
	return nil
}

// FileHeader is the decoded 32 byte container header.
type FileHeader struct {
	Info
	Version    uint16
	HeaderSize uint16
	FrameCount uint32
}

// EncodeFileHeader serializes info and frameCount.
func EncodeFileHeader(info Info, frameCount uint32) [FileHeaderSize]byte {
	var b [FileHeaderSize]byte
	copy(b[0:4], Signature)
	binary.LittleEndian.PutUint16(b[4:6], 0)
	binary.LittleEndian.PutUint16(b[6:8], FileHeaderSize)
	binary.LittleEndian.PutUint32(b[8:12], uint32(info.FourCC))
	binary.LittleEndian.PutUint16(b[12:14], uint16(info.Width))
	binary.LittleEndian.PutUint16(b[14:16], uint16(info.Height))
	binary.LittleEndian.PutUint32(b[16:20], uint32(info.Timebase.Den)) // rate
	binary.LittleEndian.PutUint32(b[20:24], uint32(info.Timebase.Num)) // scale
	binary.LittleEndian.PutUint32(b[24:28], frameCount)
	binary.LittleEndian.PutUint32(b[28:32], 0)
	return b
}

// DecodeFileHeader parses the first 32 bytes of b.
func DecodeFileHeader(b []byte) (FileHeader, error) {
	if len(b) < FileHeaderSize {
		return FileHeader{}, fmt.Errorf("%w: got %v of %v bytes", ErrTruncated, len(b), FileHeaderSize)
	}
	if string(b[0:4]) != Signature {
		return FileHeader{}, fmt.Errorf("%w: %q", ErrBadSignature, b[0:4])
	}
	h := FileHeader{
		Info: Info{
			FourCC: FourCC(binary.LittleEndian.Uint32(b[8:12])),
			Width:  int(binary.LittleEndian.Uint16(b[12:14])),
			Height: int(binary.LittleEndian.Uint16(b[14:16])),
			Timebase: Rational{
				Num: int(binary.LittleEndian.Uint32(b[20:24])),
				Den: int(binary.LittleEndian.Uint32(b[16:20])),
			},
		},
		Version:    binary.LittleEndian.Uint16(b[4:6]),
		HeaderSize: binary.LittleEndian.Uint16(b[6:8]),
		FrameCount: binary.LittleEndian.Uint32(b[24:28]),
	}
	if h.Version != 0 {
		return FileHeader{}, fmt.Errorf("%w: %v", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

// EncodeFrameHeader serializes a frame header. The pts is stored as its low
// 32 bits followed by its high 32 bits.
func EncodeFrameHeader(pts int64, size uint32) [FrameHeaderSize]byte {
	var b [FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(b[0:4], size)
	binary.LittleEndian.PutUint32(b[4:8], uint32(pts&0xffffffff))
	binary.LittleEndian.PutUint32(b[8:12], uint32(pts>>32))
	return b
}

// DecodeFrameHeader is the inverse of EncodeFrameHeader.
func DecodeFrameHeader(b [FrameHeaderSize]byte) (pts int64, size uint32) {
	size = binary.LittleEndian.Uint32(b[0:4])
	lo := binary.LittleEndian.Uint32(b[4:8])
	hi := binary.LittleEndian.Uint32(b[8:12])
	pts = int64(uint64(hi)<<32 | uint64(lo))
	return pts, size
}
