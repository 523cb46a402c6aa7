// Package handshake authenticates the application to the pump.
//
// Six-digit pairing codes run EC-JPAKE through the JPAKE state machine; the
// sixteen-character codes of older firmware run the Legacy challenge
// exchange. Both install the resulting authentication key on the session.
package handshake

import (
	"context"
	"io"

	"github.com/backkem/pumpx2/pkg/message"
	"github.com/backkem/pumpx2/pkg/session"
	"github.com/pion/logging"
)

// Requester sends one request and returns the pump's response.
// *exchange.Exchange satisfies it.
type Requester interface {
	Request(ctx context.Context, req message.Request) (message.Message, error)
}

// Config configures a handshake.
type Config struct {
	// Requester carries handshake messages. Required.
	Requester Requester

	// Session receives the authentication key. Required.
	Session *session.Session

	// Rand is the source for nonces and EC-JPAKE scalars.
	// If nil, crypto/rand is used.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Run authenticates cfg.Session with the handshake its pairing code selects.
// A JPAKE session holding a derived secret resumes from it instead of running
// the full exchange.
func Run(ctx context.Context, cfg Config) error {
	switch cfg.Session.Kind() {
	case session.HandshakeJPAKE:
		var (
			j   *JPAKE
			err error
		)
		if secret, _ := cfg.Session.DerivedSecret(); len(secret) > 0 {
			j, err = ResumeJPAKE(cfg)
		} else {
			j, err = NewJPAKE(cfg)
		}
		if err != nil {
			return err
		}
		return j.Run(ctx)
	case session.HandshakeLegacy:
		l, err := NewLegacy(cfg)
		if err != nil {
			return err
		}
		return l.Run(ctx)
	default:
		return ErrWrongKind
	}
}
