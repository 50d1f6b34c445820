package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrCodecUnavailable is returned by the libvpx constructors when the
	// binary was built without the vpx build tag.
	ErrCodecUnavailable = errors.New("codec: libvpx support not compiled in, build with -tags vpx")

	ErrClosed            = errors.New("codec: closed")
	ErrUnsupportedFormat = errors.New("codec: unsupported image format")
)

// Status is a vpx_codec_err_t.
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusMemError
	StatusABIMismatch
	StatusIncapable
	StatusUnsupBitstream
	StatusUnsupFeature
	StatusCorruptFrame
	StatusInvalidParam
	StatusListEnd
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "Success"
	case StatusError:
		return "Unspecified internal error"
	case StatusMemError:
		return "Memory allocation error"
	case StatusABIMismatch:
		return "ABI version mismatch"
	case StatusIncapable:
		return "Codec does not implement requested capability"
	case StatusUnsupBitstream:
		return "Bitstream not supported by this decoder"
	case StatusUnsupFeature:
		return "Bitstream required feature not supported by this decoder"
	case StatusCorruptFrame:
		return "Corrupt frame detected"
	case StatusInvalidParam:
		return "Invalid parameter"
	case StatusListEnd:
		return "End of iterated list"
	default:
		return fmt.Sprintf("codec error: %d", int(s))
	}
}

// CodecError reports a failed encoder or decoder call. Op names the call,
// Status is the code the codec returned and Err an optional cause for
// codecs that do not report numeric codes.
type CodecError struct {
	Op     string
	Status Status
	Err    error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to %v: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %v: %v", e.Op, e.Status)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// codecError wraps err in a CodecError unless it already is one.
func codecError(op string, err error) error {
	var ce *CodecError
	if errors.As(err, &ce) {
		return err
	}
	return &CodecError{Op: op, Status: StatusError, Err: err}
}
