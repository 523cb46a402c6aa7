package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrTimeout is returned when no packet arrives within the wait timeout.
	ErrTimeout = errors.New("transport: timed out waiting for packet")

	// ErrDisconnected is returned when the underlying link drops.
	ErrDisconnected = errors.New("transport: disconnected")

	// ErrInvalidChannel is returned for a channel outside the defined set.
	ErrInvalidChannel = errors.New("transport: invalid channel")

	// ErrFrameTooLarge is returned when a packet does not fit a bridge frame.
	ErrFrameTooLarge = errors.New("transport: frame too large")

	// ErrInvalidFrame is returned for a malformed frame from the link.
	ErrInvalidFrame = errors.New("transport: invalid frame")
)
