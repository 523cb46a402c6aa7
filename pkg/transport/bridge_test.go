package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
)

func TestBridgeFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	packet := []byte{0x01, 0x09, 0x26, 0x09, 0xA5}

	if err := WriteBridgeFrame(&buf, message.ChannelAuthorization, packet); err != nil {
		t.Fatalf("WriteBridgeFrame() error = %v", err)
	}
	want := []byte{0x06, 0x00, byte(message.ChannelAuthorization), 0x01, 0x09, 0x26, 0x09, 0xA5}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("frame = %x, want %x", buf.Bytes(), want)
	}

	ch, got, err := ReadBridgeFrame(&buf)
	if err != nil {
		t.Fatalf("ReadBridgeFrame() error = %v", err)
	}
	if ch != message.ChannelAuthorization || !bytes.Equal(got, packet) {
		t.Errorf("ReadBridgeFrame() = %v %x", ch, got)
	}
}

func TestBridgeFrame_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zero length", []byte{0x00, 0x00}},
		{"oversized", []byte{0xFF, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadBridgeFrame(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("ReadBridgeFrame() error = %v, want ErrInvalidFrame", err)
			}
		})
	}

	if err := WriteBridgeFrame(&bytes.Buffer{}, message.ChannelControl, make([]byte, 64)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("WriteBridgeFrame() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestBridge_TransmitAndReceive(t *testing.T) {
	local, relay := net.Pipe()
	br := NewBridgeConn(local, BridgeConfig{})
	defer br.Close()
	defer relay.Close()

	ctx := context.Background()
	packet := []byte{0x00, 0x03, 0x36, 0x03, 0x00, 0x12, 0x34}

	type frame struct {
		ch     message.Channel
		packet []byte
		err    error
	}
	got := make(chan frame, 1)
	go func() {
		ch, p, err := ReadBridgeFrame(relay)
		got <- frame{ch, p, err}
	}()

	if err := br.Transmit(ctx, message.ChannelCurrentStatus, packet); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	f := <-got
	if f.err != nil {
		t.Fatalf("relay read error = %v", f.err)
	}
	if f.ch != message.ChannelCurrentStatus || !bytes.Equal(f.packet, packet) {
		t.Errorf("relay got %v %x", f.ch, f.packet)
	}

	go WriteBridgeFrame(relay, message.ChannelCurrentStatus, []byte{0x00, 0x03, 0x37})

	in, err := br.AwaitPacket(ctx, message.ChannelCurrentStatus, time.Second)
	if err != nil {
		t.Fatalf("AwaitPacket() error = %v", err)
	}
	if !bytes.Equal(in, []byte{0x00, 0x03, 0x37}) {
		t.Errorf("AwaitPacket() = %x", in)
	}
}

func TestBridge_LinkDrop(t *testing.T) {
	local, relay := net.Pipe()
	br := NewBridgeConn(local, BridgeConfig{})
	defer br.Close()

	relay.Close()

	_, err := br.AwaitPacket(context.Background(), message.ChannelControl, time.Second)
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("AwaitPacket() error = %v, want ErrDisconnected", err)
	}
	if err := br.Transmit(context.Background(), message.ChannelControl, []byte{0, 1}); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Transmit() error = %v, want ErrDisconnected", err)
	}
}

func TestBridge_Close(t *testing.T) {
	local, relay := net.Pipe()
	defer relay.Close()
	br := NewBridgeConn(local, BridgeConfig{})

	if err := br.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_, err := br.AwaitPacket(context.Background(), message.ChannelControl, time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("AwaitPacket() error = %v, want ErrClosed", err)
	}
}

// flakyDialer fails a fixed number of times before dialing for real.
type flakyDialer struct {
	failures int32
	attempts int32
}

func (d *flakyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	n := atomic.AddInt32(&d.attempts, 1)
	if n <= d.failures {
		return nil, errors.New("relay not ready")
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, address)
}

func TestDialBridge_RetriesUntilConnected(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	dialer := &flakyDialer{failures: 2}
	br, err := DialBridge(context.Background(), BridgeConfig{
		Address:        ln.Addr().String(),
		Dialer:         dialer,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("DialBridge() error = %v", err)
	}
	defer br.Close()

	if got := atomic.LoadInt32(&dialer.attempts); got != 3 {
		t.Errorf("dial attempts = %d, want 3", got)
	}

	relay := <-accepted
	defer relay.Close()
	if err := WriteBridgeFrame(relay, message.ChannelQualifyingEvents, []byte{0x00, 0x00, 0x01}); err != nil {
		t.Fatalf("WriteBridgeFrame() error = %v", err)
	}
	if _, err := br.AwaitPacket(context.Background(), message.ChannelQualifyingEvents, time.Second); err != nil {
		t.Errorf("AwaitPacket() error = %v", err)
	}
}

func TestDialBridge_GivesUp(t *testing.T) {
	dialer := &flakyDialer{failures: 100}
	_, err := DialBridge(context.Background(), BridgeConfig{
		Address:         "127.0.0.1:1",
		Dialer:          dialer,
		MaxDialAttempts: 3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      2 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("DialBridge() succeeded, want error")
	}
	if got := atomic.LoadInt32(&dialer.attempts); got != 3 {
		t.Errorf("dial attempts = %d, want 3", got)
	}
}
