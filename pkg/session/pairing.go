package session

import "strings"

// Pairing code lengths.
const (
	JPAKECodeLength  = 6
	LegacyCodeLength = 16
)

// ParsePairingCode strips separators from code and decides the handshake kind
// from what remains: 6 digits select JPAKE, 16 alphanumerics select Legacy.
func ParsePairingCode(code string) (string, HandshakeKind, error) {
	normalized := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, code)

	switch len(normalized) {
	case JPAKECodeLength:
		for _, r := range normalized {
			if r < '0' || r > '9' {
				return "", HandshakeUnknown, ErrInvalidPairingCode
			}
		}
		return normalized, HandshakeJPAKE, nil
	case LegacyCodeLength:
		for _, r := range normalized {
			if !isAlphanumeric(r) {
				return "", HandshakeUnknown, ErrInvalidPairingCode
			}
		}
		return normalized, HandshakeLegacy, nil
	default:
		return "", HandshakeUnknown, ErrInvalidPairingCode
	}
}

func isAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
