package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed component.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when starting an advertisement twice.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrNotStarted is returned when stopping an advertisement that was not started.
	ErrNotStarted = errors.New("discovery: not started")

	// ErrInvalidPort is returned when the port number is out of range.
	ErrInvalidPort = errors.New("discovery: invalid port (must be 1-65535)")

	// ErrBridgeNotFound is returned when no matching bridge answers in time.
	ErrBridgeNotFound = errors.New("discovery: bridge not found")

	// ErrTimeout is returned when a lookup times out.
	ErrTimeout = errors.New("discovery: operation timed out")

	// ErrInvalidTXTRecord is returned when a TXT record is missing or malformed.
	ErrInvalidTXTRecord = errors.New("discovery: invalid TXT record")

	// ErrNoAddress is returned when a bridge advertises no usable address.
	ErrNoAddress = errors.New("discovery: bridge has no address")
)
