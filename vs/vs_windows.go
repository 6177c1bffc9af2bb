// +build windows

package main

import (
	"os"
	"os/exec"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/sys/windows"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

func initTerminal() {
	var m uint32
	windows.GetConsoleMode(windows.Stdout, &m)
	windows.SetConsoleMode(windows.Stdout, m|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
}

func startVsd() (err error) {
	err = exec.Command("cmd.exe", "/C", "start", "/b", `vsd.exe`).Start()
	return
}

func restartCommandOptions(c *cli.Context, isUserInitiated bool) (err error) {
	verashield.KillVsd()
	err = startVsd()
	if err != nil {
		PrintErr(os.Stderr, verashield.Red("VeraShield ▶ Error starting vsd: "+err.Error()))
		return
	}
	<-time.After(time.Second)
	if isUserInitiated {
		PrintErr(os.Stderr, "Restarted VeraShield daemon.")
	}
	return
}
