// x2sim runs a simulated pump behind a TCP relay, so x2ctl and other clients
// can be exercised without hardware.
//
// Usage:
//
//	x2sim [options]
//
// Example:
//
//	x2sim -port 7811 -serial 11223344 -code 123456 -log debug
package main

import (
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/backkem/pumpx2/examples/common"
	"github.com/backkem/pumpx2/pkg/discovery"
	"github.com/backkem/pumpx2/pkg/pumpsim"
	"github.com/backkem/pumpx2/pkg/transport"
)

func main() {
	opts, _ := common.ParseFlags()
	if err := run(opts); err != nil {
		log.Fatalf("Simulator error: %v", err)
	}
}

func run(opts common.Options) error {
	ctx, stop := common.SignalContext()
	defer stop()

	lf := common.NewLoggerFactory(opts)
	code := opts.Code
	if code == "" {
		code = common.DefaultSimulatedCode
	}
	pump, err := pumpsim.New(pumpsim.Config{
		PairingCode:   code,
		Serial:        opts.Serial,
		LoggerFactory: lf,
	})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return err
	}
	defer ln.Close()

	if opts.Advertise {
		adv, err := pump.Advertise(discovery.AdvertiserConfig{
			Port:          opts.Port,
			LoggerFactory: lf,
		})
		if err != nil {
			return fmt.Errorf("advertise: %w", err)
		}
		defer adv.Close()
	}

	fmt.Println("========================================")
	fmt.Println("        Simulated Pump Ready")
	fmt.Println("========================================")
	fmt.Printf("Serial:       %s\n", pump.Serial())
	fmt.Printf("Pairing code: %s\n", code)
	fmt.Printf("Relay:        %s\n", ln.Addr())
	fmt.Println("========================================")

	err = pump.ServeListener(ctx, ln, transport.BridgeConfig{LoggerFactory: lf})
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	log.Println("Shutting down...")
	return nil
}
