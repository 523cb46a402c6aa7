package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// RFC 2202 test cases 1 and 2.
func TestHMACSHA1(t *testing.T) {
	tests := []struct {
		name     string
		key      []byte
		data     []byte
		expected string
	}{
		{
			name:     "RFC2202_TC1",
			key:      bytes.Repeat([]byte{0x0b}, 20),
			data:     []byte("Hi There"),
			expected: "b617318655057264e28bc0b6fb378c8ef146be00",
		},
		{
			name:     "RFC2202_TC2",
			key:      []byte("Jefe"),
			data:     []byte("what do ya want for nothing?"),
			expected: "effcdf6ae5eb2fa2d27416d5f184df9c259a7c79",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HMACSHA1(tc.key, tc.data)
			if !bytes.Equal(got[:], mustHex(t, tc.expected)) {
				t.Errorf("HMACSHA1 = %x, want %s", got, tc.expected)
			}

			h := NewHMACSHA1(tc.key)
			h.Write(tc.data[:2])
			h.Write(tc.data[2:])
			if !bytes.Equal(h.Sum(nil), got[:]) {
				t.Error("incremental HMACSHA1 mismatch")
			}
		})
	}
}

// RFC 4231 test cases 1 and 2.
func TestHMACSHA256(t *testing.T) {
	tests := []struct {
		name     string
		key      []byte
		data     []byte
		expected string
	}{
		{
			name:     "RFC4231_TC1",
			key:      bytes.Repeat([]byte{0x0b}, 20),
			data:     []byte("Hi There"),
			expected: "b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7",
		},
		{
			name:     "RFC4231_TC2",
			key:      []byte("Jefe"),
			data:     []byte("what do ya want for nothing?"),
			expected: "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HMACSHA256Slice(tc.key, tc.data)
			if !bytes.Equal(got, mustHex(t, tc.expected)) {
				t.Errorf("HMACSHA256 = %x, want %s", got, tc.expected)
			}
		})
	}
}

func TestHMACEqual(t *testing.T) {
	a := []byte{1, 2, 3}
	if !HMACEqual(a, []byte{1, 2, 3}) {
		t.Error("equal MACs reported unequal")
	}
	if HMACEqual(a, []byte{1, 2, 4}) {
		t.Error("different MACs reported equal")
	}
	if HMACEqual(a, []byte{1, 2}) {
		t.Error("different lengths reported equal")
	}
}
