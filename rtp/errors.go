package rtp

import "errors"

var (
	// ErrShortBuffer indicates the input is shorter than the structure being decoded.
	ErrShortBuffer = errors.New("rtp: buffer shorter than header")

	// ErrTooManyMessages indicates a forward frame with more than MaxControlMessages records.
	ErrTooManyMessages = errors.New("rtp: too many control messages for one frame")
)
