package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/backkem/pumpx2/pkg/message"
)

func TestPipe_AutoProcess(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	ctx := context.Background()
	packet := []byte{0x00, 0x05, 0x20, 0x05, 0x00}

	if err := p.Central().Transmit(ctx, message.ChannelCurrentStatus, packet); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	got, err := p.Peripheral().AwaitPacket(ctx, message.ChannelCurrentStatus, time.Second)
	if err != nil {
		t.Fatalf("AwaitPacket() error = %v", err)
	}
	if !bytes.Equal(got, packet) {
		t.Errorf("AwaitPacket() = %x, want %x", got, packet)
	}
}

func TestPipe_ChannelsAreIndependent(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	ctx := context.Background()
	if err := p.Peripheral().Transmit(ctx, message.ChannelAuthorization, []byte{0, 1, 0xAA}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	if err := p.Peripheral().Transmit(ctx, message.ChannelControl, []byte{0, 2, 0xBB}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	got, err := p.Central().AwaitPacket(ctx, message.ChannelControl, time.Second)
	if err != nil {
		t.Fatalf("AwaitPacket(Control) error = %v", err)
	}
	if got[2] != 0xBB {
		t.Errorf("Control packet = %x", got)
	}

	got, err = p.Central().AwaitPacket(ctx, message.ChannelAuthorization, time.Second)
	if err != nil {
		t.Fatalf("AwaitPacket(Authorization) error = %v", err)
	}
	if got[2] != 0xAA {
		t.Errorf("Authorization packet = %x", got)
	}

	if _, err := p.Central().AwaitPacket(ctx, message.ChannelHistoryLog, 10*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("AwaitPacket(HistoryLog) error = %v, want ErrTimeout", err)
	}
}

func TestPipe_ManualProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	ctx := context.Background()
	if err := p.Central().Transmit(ctx, message.ChannelControl, []byte{0, 7, 1}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}

	if _, err := p.Peripheral().AwaitPacket(ctx, message.ChannelControl, 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("AwaitPacket() before Process error = %v, want ErrTimeout", err)
	}

	delivered := 0
	for i := 0; i < 100 && delivered == 0; i++ {
		delivered = p.Process()
		if delivered == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if delivered == 0 {
		t.Fatal("Process() delivered nothing")
	}

	if _, err := p.Peripheral().AwaitPacket(ctx, message.ChannelControl, time.Second); err != nil {
		t.Fatalf("AwaitPacket() after Process error = %v", err)
	}
}

func TestPipe_DropAll(t *testing.T) {
	p := NewPipe()
	defer p.Close()
	p.SetCondition(NetworkCondition{DropRate: 1.0})

	ctx := context.Background()
	if err := p.Central().Transmit(ctx, message.ChannelCurrentStatus, []byte{0, 1, 2}); err != nil {
		t.Fatalf("Transmit() error = %v", err)
	}
	if _, err := p.Peripheral().AwaitPacket(ctx, message.ChannelCurrentStatus, 30*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("AwaitPacket() error = %v, want ErrTimeout", err)
	}
}

func TestPipe_InvalidChannel(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	ctx := context.Background()
	if err := p.Central().Transmit(ctx, message.Channel(42), []byte{0, 1}); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Transmit() error = %v, want ErrInvalidChannel", err)
	}
	if _, err := p.Central().AwaitPacket(ctx, message.Channel(42), time.Millisecond); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("AwaitPacket() error = %v, want ErrInvalidChannel", err)
	}
}

func TestPipe_CloseWakesWaiters(t *testing.T) {
	p := NewPipe()

	var wg sync.WaitGroup
	wg.Add(1)
	var awaitErr error
	go func() {
		defer wg.Done()
		_, awaitErr = p.Central().AwaitPacket(context.Background(), message.ChannelControl, 0)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	wg.Wait()

	if !errors.Is(awaitErr, ErrClosed) {
		t.Errorf("AwaitPacket() error = %v, want ErrClosed", awaitErr)
	}
	if err := p.Central().Transmit(context.Background(), message.ChannelControl, []byte{0, 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Transmit() after close error = %v, want ErrClosed", err)
	}
}

func TestPipe_ContextCancel(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Central().AwaitPacket(ctx, message.ChannelCurrentStatus, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AwaitPacket() error = %v, want DeadlineExceeded", err)
	}
}
