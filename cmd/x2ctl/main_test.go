package main

import (
	"strings"
	"testing"

	"github.com/backkem/pumpx2/examples/common"
)

func TestCheckCommand(t *testing.T) {
	for _, cmd := range []string{"pair", "status", "suspend", "resume", "unpair"} {
		if err := checkCommand(cmd); err != nil {
			t.Errorf("checkCommand(%q) error = %v", cmd, err)
		}
	}
	if err := checkCommand("reboot"); err == nil {
		t.Error("checkCommand(reboot) succeeded")
	}
}

func TestRun_UnknownCommandBeforeConnect(t *testing.T) {
	// No transport is selected, so reaching Connect would fail differently.
	err := run(common.DefaultOptions(), "reboot")
	if err == nil || !strings.Contains(err.Error(), `unknown command "reboot"`) {
		t.Errorf("run() error = %v, want unknown command", err)
	}
}
