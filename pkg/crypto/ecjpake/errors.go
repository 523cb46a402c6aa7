package ecjpake

import "errors"

// Errors returned by the engine.
var (
	// ErrInvalidPassword is returned when the password is empty or reduces to zero.
	ErrInvalidPassword = errors.New("ecjpake: invalid password")

	// ErrInvalidRole is returned for an unknown role value.
	ErrInvalidRole = errors.New("ecjpake: invalid role")

	// ErrInvalidState is returned when an operation is called out of order.
	ErrInvalidState = errors.New("ecjpake: invalid protocol state for this operation")

	// ErrInvalidEncoding is returned when a peer payload cannot be parsed.
	ErrInvalidEncoding = errors.New("ecjpake: invalid payload encoding")

	// ErrInvalidPoint is returned when a peer point is not on the curve.
	ErrInvalidPoint = errors.New("ecjpake: point is not on the curve")

	// ErrUnsupportedCurve is returned when the responder announces a curve other than P-256.
	ErrUnsupportedCurve = errors.New("ecjpake: unsupported curve")

	// ErrProofRejected is returned when a peer zero-knowledge proof fails to verify.
	// It is fatal: the engine refuses all further operations.
	ErrProofRejected = errors.New("ecjpake: zero-knowledge proof rejected")
)
