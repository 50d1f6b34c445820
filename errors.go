package vpxivf

import "errors"

var (
	ErrInvalidConfig = errors.New("vpxivf: invalid encoder config")
	ErrSessionClosed = errors.New("vpxivf: session closed")

	// ErrFrameLimit is returned when submitting more images than
	// EncoderConfig.MaxFrames allows.
	ErrFrameLimit = errors.New("vpxivf: frame limit reached")
)
