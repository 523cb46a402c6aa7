package exchange

import "errors"

// Errors returned by the exchange package.
var (
	// ErrUnexpectedResponse is returned when a response decodes to a type the
	// caller did not ask for.
	ErrUnexpectedResponse = errors.New("exchange: unexpected response type")

	// ErrDeviceFault is the sentinel wrapped by every DeviceFault.
	ErrDeviceFault = errors.New("exchange: device reported a fault")

	// ErrNotAuthenticated is returned for a signed request before a handshake
	// installed a key.
	ErrNotAuthenticated = errors.New("exchange: session not authenticated")

	// ErrNoTransport is returned when an Exchange is built without a transport.
	ErrNoTransport = errors.New("exchange: transport is required")

	// ErrNoSession is returned when an Exchange is built without a session.
	ErrNoSession = errors.New("exchange: session is required")
)
