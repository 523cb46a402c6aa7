// x2ctl pairs with a pump and sends it simple commands.
//
// Usage:
//
//	x2ctl [options] command
//
// Commands:
//
//	pair     pair with -code and store the result
//	status   print the API version and time since reset
//	suspend  suspend insulin delivery (needs -allow-insulin-actions)
//	resume   resume insulin delivery (needs -allow-insulin-actions)
//	unpair   forget the stored pairing
//
// Without -code, commands other than pair resume the stored pairing.
//
// Example:
//
//	x2ctl -simulate -code 123456 status
//	x2ctl -discover -serial 11223344 -store pairings.json -code 123-456 pair
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/backkem/pumpx2/examples/common"
	"github.com/backkem/pumpx2/pkg/pump"
)

func main() {
	opts, args := common.ParseFlags()
	if len(args) != 1 {
		common.PrintUsage()
		os.Exit(2)
	}

	if err := run(opts, args[0]); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

var commands = map[string]bool{
	"pair":    true,
	"status":  true,
	"suspend": true,
	"resume":  true,
	"unpair":  true,
}

func checkCommand(command string) error {
	if !commands[command] {
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func run(opts common.Options, command string) error {
	if err := checkCommand(command); err != nil {
		return err
	}

	ctx, stop := common.SignalContext()
	defer stop()

	lf := common.NewLoggerFactory(opts)
	t, release, err := common.Connect(ctx, opts, lf)
	if err != nil {
		return err
	}
	defer release()

	client, err := pump.NewClient(pump.ClientConfig{
		Transport:           t,
		Serial:              opts.Serial,
		Store:               common.OpenStore(opts),
		AllowInsulinActions: opts.AllowInsulinActions,
		LoggerFactory:       lf,
		OnStateChanged: func(s pump.ClientState) {
			log.Printf("State changed: %s", s)
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if command == "unpair" {
		return client.Unpair()
	}
	if err := connect(ctx, client, opts, command); err != nil {
		return err
	}

	switch command {
	case "pair":
		fmt.Printf("Paired with pump %s (%s)\n", opts.Serial, client.Session().Kind())
		return nil
	case "status":
		return status(ctx, client)
	case "suspend":
		if err := client.SuspendPumping(ctx); err != nil {
			return err
		}
		fmt.Println("Insulin delivery suspended")
		return nil
	case "resume":
		if err := client.ResumePumping(ctx); err != nil {
			return err
		}
		fmt.Println("Insulin delivery resumed")
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// connect pairs when a code is given and resumes the stored pairing otherwise.
func connect(ctx context.Context, client *pump.Client, opts common.Options, command string) error {
	code := opts.Code
	if code == "" && opts.Simulate {
		code = common.DefaultSimulatedCode
	}
	if code != "" {
		return client.Pair(ctx, code)
	}
	if command == "pair" {
		return fmt.Errorf("-code is required")
	}
	return client.Resume(ctx)
}

func status(ctx context.Context, client *pump.Client) error {
	major, minor, err := client.APIVersion(ctx)
	if err != nil {
		return err
	}
	tsr, err := client.TimeSinceReset(ctx)
	if err != nil {
		return err
	}
	fmt.Println("========================================")
	fmt.Printf("API version:      %d.%d\n", major, minor)
	fmt.Printf("Time since reset: %ds\n", tsr)
	fmt.Println("========================================")
	return nil
}
