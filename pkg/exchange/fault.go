package exchange

import (
	"fmt"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/messages"
)

// FaultClass groups device fault codes by how a caller should react.
type FaultClass int

const (
	// FaultUnknown is an undefined or unrecognized code.
	FaultUnknown FaultClass = iota

	// FaultTransient may succeed if the request is sent again.
	FaultTransient

	// FaultAuthentication means the signature or counter was rejected. The
	// session must refresh its counter or pair again.
	FaultAuthentication

	// FaultPermanent means the request itself is wrong.
	FaultPermanent
)

// String returns a human-readable name for the class.
func (c FaultClass) String() string {
	switch c {
	case FaultTransient:
		return "transient"
	case FaultAuthentication:
		return "authentication"
	case FaultPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Classify maps a device fault code to its class.
func Classify(code messages.ErrorCode) FaultClass {
	switch code {
	case messages.ErrorCodeBusy, messages.ErrorCodeNotReady:
		return FaultTransient
	case messages.ErrorCodeInvalidSignature, messages.ErrorCodeStaleCounter:
		return FaultAuthentication
	case messages.ErrorCodeInvalidLength, messages.ErrorCodeInvalidParameter, messages.ErrorCodeUnknownOpcode:
		return FaultPermanent
	default:
		return FaultUnknown
	}
}

// DeviceFault is a fault reported by the pump and surfaced to the caller.
type DeviceFault struct {
	// Request describes the request that failed.
	Request message.Props

	Code     messages.ErrorCode
	Class    FaultClass
	Attempts int
	Decision Decision
}

func (e *DeviceFault) Error() string {
	return fmt.Sprintf("exchange: %s failed with %s (%s) after %d attempt(s): %s",
		e.Request, e.Code, e.Class, e.Attempts, e.Decision)
}

// Unwrap returns ErrDeviceFault.
func (e *DeviceFault) Unwrap() error {
	return ErrDeviceFault
}
