package ecjpake

import (
	"bytes"
	"errors"
	"testing"
)

// runExchange drives both engines through rounds 1 and 2.
func runExchange(t *testing.T, client, server *Engine) {
	t.Helper()

	c1, err := client.Round1()
	if err != nil {
		t.Fatalf("client Round1() error = %v", err)
	}
	s1, err := server.Round1()
	if err != nil {
		t.Fatalf("server Round1() error = %v", err)
	}
	if len(c1) != Round1Size || len(s1) != Round1Size {
		t.Fatalf("round-1 sizes = %d/%d, want %d", len(c1), len(s1), Round1Size)
	}

	if err := server.ConsumeRound1(c1); err != nil {
		t.Fatalf("server ConsumeRound1() error = %v", err)
	}
	if err := client.ConsumeRound1(s1); err != nil {
		t.Fatalf("client ConsumeRound1() error = %v", err)
	}

	c2, err := client.Round2()
	if err != nil {
		t.Fatalf("client Round2() error = %v", err)
	}
	s2, err := server.Round2()
	if err != nil {
		t.Fatalf("server Round2() error = %v", err)
	}
	if len(c2) != Round2Size {
		t.Errorf("client round-2 size = %d, want %d", len(c2), Round2Size)
	}
	if len(s2) != ServerRound2Size {
		t.Errorf("server round-2 size = %d, want %d", len(s2), ServerRound2Size)
	}
	if !bytes.Equal(s2[:3], []byte{0x03, 0x00, 0x17}) {
		t.Errorf("server round-2 prefix = %x", s2[:3])
	}

	if err := server.ConsumeRound2(c2); err != nil {
		t.Fatalf("server ConsumeRound2() error = %v", err)
	}
	if err := client.ConsumeRound2(s2); err != nil {
		t.Fatalf("client ConsumeRound2() error = %v", err)
	}
}

func newPair(t *testing.T, clientPw, serverPw string) (*Engine, *Engine) {
	t.Helper()
	client, err := NewEngine(RoleClient, []byte(clientPw), nil)
	if err != nil {
		t.Fatalf("NewEngine(client) error = %v", err)
	}
	server, err := NewEngine(RoleServer, []byte(serverPw), nil)
	if err != nil {
		t.Fatalf("NewEngine(server) error = %v", err)
	}
	return client, server
}

func TestAgreement(t *testing.T) {
	client, server := newPair(t, "123456", "123456")
	runExchange(t, client, server)

	ks, err := client.DeriveSecret()
	if err != nil {
		t.Fatalf("client DeriveSecret() error = %v", err)
	}
	kv, err := server.DeriveSecret()
	if err != nil {
		t.Fatalf("server DeriveSecret() error = %v", err)
	}
	if len(ks) != SecretSize {
		t.Errorf("secret length = %d, want %d", len(ks), SecretSize)
	}
	if !bytes.Equal(ks, kv) {
		t.Errorf("secrets differ:\nclient %x\nserver %x", ks, kv)
	}

	again, _ := client.DeriveSecret()
	if !bytes.Equal(again, ks) {
		t.Error("DeriveSecret() not stable across calls")
	}
}

func TestPasswordMismatch(t *testing.T) {
	client, server := newPair(t, "123456", "654321")
	// Proofs are valid regardless of the password; only the secrets differ.
	runExchange(t, client, server)

	ks, _ := client.DeriveSecret()
	kv, _ := server.DeriveSecret()
	if bytes.Equal(ks, kv) {
		t.Fatal("different passwords produced the same secret")
	}
}

func TestTamperedRound1Proof(t *testing.T) {
	client, server := newPair(t, "123456", "123456")

	c1, err := client.Round1()
	if err != nil {
		t.Fatalf("Round1() error = %v", err)
	}

	// Flip a byte inside r of the first proof: 66 (X) + 66 (V) + 1 (len).
	tampered := append([]byte(nil), c1...)
	tampered[66+66+1+10] ^= 0x01

	if err := server.ConsumeRound1(tampered); !errors.Is(err, ErrProofRejected) {
		t.Fatalf("ConsumeRound1(tampered) error = %v, want ErrProofRejected", err)
	}

	// Fatal: the engine refuses to continue.
	if _, err := server.Round1(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Round1() after rejection error = %v, want ErrInvalidState", err)
	}
}

func TestTamperedRound2Proof(t *testing.T) {
	client, server := newPair(t, "123456", "123456")

	c1, _ := client.Round1()
	s1, _ := server.Round1()
	if err := server.ConsumeRound1(c1); err != nil {
		t.Fatal(err)
	}
	if err := client.ConsumeRound1(s1); err != nil {
		t.Fatal(err)
	}

	c2, err := client.Round2()
	if err != nil {
		t.Fatal(err)
	}
	c2[len(c2)-1] ^= 0x80

	if err := server.ConsumeRound2(c2); !errors.Is(err, ErrProofRejected) {
		t.Fatalf("ConsumeRound2(tampered) error = %v, want ErrProofRejected", err)
	}
	if _, err := server.DeriveSecret(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("DeriveSecret() after rejection error = %v, want ErrInvalidState", err)
	}
}

func TestRound2UnsupportedCurve(t *testing.T) {
	client, server := newPair(t, "123456", "123456")

	c1, _ := client.Round1()
	s1, _ := server.Round1()
	_ = server.ConsumeRound1(c1)
	_ = client.ConsumeRound1(s1)

	s2, err := server.Round2()
	if err != nil {
		t.Fatal(err)
	}
	s2[2] = 0x18

	if err := client.ConsumeRound2(s2); !errors.Is(err, ErrUnsupportedCurve) {
		t.Errorf("ConsumeRound2() error = %v, want ErrUnsupportedCurve", err)
	}
}

func TestInvalidEncoding(t *testing.T) {
	client, server := newPair(t, "123456", "123456")
	c1, _ := client.Round1()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrInvalidEncoding},
		{"truncated", c1[:Round1Size-1], ErrInvalidEncoding},
		{"trailing", append(append([]byte(nil), c1...), 0x00), ErrInvalidEncoding},
		{"bad point length", append([]byte{64}, c1[1:]...), ErrInvalidEncoding},
		{"compressed point", append([]byte{65, 0x02}, c1[2:]...), ErrInvalidPoint},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := server.ConsumeRound1(tc.data); !errors.Is(err, tc.want) {
				t.Errorf("ConsumeRound1() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOutOfOrder(t *testing.T) {
	client, _ := newPair(t, "123456", "123456")

	if _, err := client.Round2(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Round2() before round 1 error = %v", err)
	}
	if _, err := client.DeriveSecret(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("DeriveSecret() before round 2 error = %v", err)
	}
	if _, err := client.Round1(); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Round1(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Round1() error = %v", err)
	}
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(RoleClient, nil, nil); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("empty password error = %v", err)
	}
	if _, err := NewEngine(RoleClient, []byte{0, 0}, nil); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("zero password error = %v", err)
	}
	if _, err := NewEngine(Role(7), []byte("1"), nil); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("bad role error = %v", err)
	}
}
