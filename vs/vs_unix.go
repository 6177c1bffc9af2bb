// +build !windows

package main

import (
	"os"
	"os/exec"
	"time"

	"github.com/urfave/cli"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

func initTerminal() {}

func startVsd() (err error) {
	err = exec.Command("nohup", "vsd").Start()
	return
}

func restartCommandOptions(c *cli.Context, isUserInitiated bool) (err error) {
	verashield.KillVsd()
	err = startVsd()
	if err != nil {
		PrintErr(os.Stderr, verashield.Red("VeraShield ▶ Error starting vsd: "+err.Error()))
		return
	}
	<-time.After(250 * time.Millisecond)
	if isUserInitiated {
		PrintErr(os.Stderr, "Restarted VeraShield daemon.")
	}
	return
}
