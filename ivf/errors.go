package ivf

import (
	"errors"
	"fmt"
)

// Format errors. All of them match ErrFormat.
var (
	ErrFormat = errors.New("ivf: invalid format")

	ErrBadSignature       = fmt.Errorf("%w: bad signature", ErrFormat)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrFormat)
	ErrTruncated          = fmt.Errorf("%w: truncated header", ErrFormat)
)

var (
	// ErrFrameTooLarge is returned when a frame header declares more than
	// MaxFrameSize bytes.
	ErrFrameTooLarge = errors.New("ivf: frame size exceeds sanity limit")

	// ErrInvalidInfo is returned when opening a writer with unusable video
	// parameters.
	ErrInvalidInfo = errors.New("ivf: invalid video info")

	// ErrFrameCountMismatch is returned when a writer on a non-seekable sink
	// is closed with a different number of frames than it declared.
	ErrFrameCountMismatch = errors.New("ivf: frame count differs from declared count")

	ErrClosed = errors.New("ivf: closed")
)
