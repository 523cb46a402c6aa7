package pump

import "errors"

// Package-level errors.
var (
	// ErrTransportRequired is returned when Transport is nil.
	ErrTransportRequired = errors.New("pump: transport is required")

	// ErrSerialRequired is returned when Serial is empty.
	ErrSerialRequired = errors.New("pump: serial number is required")

	// ErrNotAuthenticated is returned when a request is made before Pair or Resume.
	ErrNotAuthenticated = errors.New("pump: client not authenticated")

	// ErrBusy is returned when Pair or Resume is called while a handshake is running.
	ErrBusy = errors.New("pump: handshake in progress")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pump: client closed")
)
