package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestSHA1(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{"empty", "", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"abc", "abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SHA1([]byte(tc.message))
			want, _ := hex.DecodeString(tc.expected)
			if !bytes.Equal(got[:], want) {
				t.Errorf("SHA1(%q) = %x, want %s", tc.message, got, tc.expected)
			}
		})
	}
}

func TestSHA256(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := SHA256([]byte(tc.message))
			want, _ := hex.DecodeString(tc.expected)
			if !bytes.Equal(got[:], want) {
				t.Errorf("SHA256(%q) = %x, want %s", tc.message, got, tc.expected)
			}
			if !bytes.Equal(SHA256Slice([]byte(tc.message)), want) {
				t.Errorf("SHA256Slice(%q) mismatch", tc.message)
			}

			h := NewSHA256()
			h.Write([]byte(tc.message))
			if !bytes.Equal(h.Sum(nil), want) {
				t.Errorf("NewSHA256(%q) mismatch", tc.message)
			}
		})
	}
}
