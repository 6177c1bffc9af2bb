package main

/*
* CLI to control vsd
 */

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
	"github.com/Kushal-Chandar/VeraShield-App/vsdclient"
)

func PrintFatal(stderr io.ReadWriter, msg string, args ...interface{}) {
	if len(args) == 0 {
		PrintErr(stderr, msg)
	} else {
		PrintErr(stderr, msg, args...)
	}
	os.Exit(1)
}

func PrintErr(stderr io.ReadWriter, msg string, args ...interface{}) {
	stderr.Write([]byte(fmt.Sprintf(msg, args...) + "\n"))
}

func confirmOrFatal(stderr io.ReadWriter, message string) {
	if !confirm(stderr, message) {
		PrintFatal(stderr, "Aborting.")
	}
}

func confirm(stderr io.ReadWriter, message string) bool {
	stderr.Write([]byte(message + " [y/N] "))
	in := []byte{0, 0}
	os.Stdin.Read(in)
	return in[0] == 'y'
}

func deviceLabel(device verashield.DeviceHandle) string {
	if device.DisplayName != "" {
		return device.DisplayName
	}
	return string(device.ID)
}

func signalString(rssi int16) string {
	if rssi == 0 {
		return "     --"
	}
	return fmt.Sprintf("%d dBm", rssi)
}

func scanCommand(c *cli.Context) (err error) {
	PrintErr(os.Stderr, "Scanning for dispensers...")
	devices, err := vsdclient.RequestScan()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	if len(devices) == 0 {
		PrintFatal(os.Stderr, "No dispensers found. Wake your VeraShield by pressing its button, then scan again.")
	}
	for i, device := range devices {
		fmt.Printf("%d. %s  %s  %s\n", i+1, deviceLabel(device), signalString(device.RSSI), device.ID)
	}
	return
}

func connectCommand(c *cli.Context) (err error) {
	var device verashield.DeviceHandle
	if id := c.String("id"); id != "" {
		device = verashield.DeviceHandle{ID: verashield.DeviceID(id)}
	} else if c.Bool("last") {
		registry, registryErr := verashield.NewDeviceRegistry()
		if registryErr != nil {
			PrintFatal(os.Stderr, registryErr.Error())
		}
		remembered, loadErr := registry.LoadLastDevice()
		if loadErr != nil {
			PrintFatal(os.Stderr, "No remembered dispenser. Connect once with "+verashield.Cyan("vs connect")+" first.")
		}
		device = remembered.Device
	} else {
		PrintErr(os.Stderr, "Scanning for dispensers...")
		devices, scanErr := vsdclient.RequestScan()
		if scanErr != nil {
			PrintFatal(os.Stderr, scanErr.Error())
		}
		if len(devices) == 0 {
			PrintFatal(os.Stderr, "No dispensers found. "+verashield.Magenta("Wake your VeraShield by pressing its button, then try again."))
		}
		//	scan results arrive strongest first
		device = devices[0]
	}

	PrintErr(os.Stderr, "Connecting to "+deviceLabel(device)+"...")
	connected, err := vsdclient.RequestConnect(device)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Println(verashield.Green("Connected to " + deviceLabel(connected.Device) + "."))
	fmt.Printf("MTU %d, schedule capacity %d entries per write.\n",
		connected.MTU.NegotiatedMTU, connected.MTU.MaxScheduleEntries())
	return
}

func disconnectCommand(c *cli.Context) (err error) {
	err = vsdclient.RequestDisconnect()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Println("Disconnected.")
	return
}

func statusCommand(c *cli.Context) (err error) {
	status, err := vsdclient.RequestStatus()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	switch status.State {
	case verashield.StateReady:
		label := ""
		if status.Device != nil {
			label = deviceLabel(*status.Device)
		}
		fmt.Println(verashield.Green("Connected to " + label + "."))
		if status.MTU != nil {
			fmt.Printf("MTU %d, schedule capacity %d entries per write.\n",
				status.MTU.NegotiatedMTU, status.MTU.MaxScheduleEntries())
		}
	case verashield.StateConnecting:
		fmt.Println(verashield.Yellow("Connecting..."))
	default:
		fmt.Println(verashield.Red("Not connected."))
	}
	fmt.Println("vsd version " + status.Version.String())
	return
}

func syncTimeCommand(c *cli.Context) (err error) {
	var unixSeconds *int64
	if at := c.String("at"); at != "" {
		parsed, parseErr := time.Parse(time.RFC3339, at)
		if parseErr != nil {
			PrintFatal(os.Stderr, "Could not parse %q, expected RFC3339 like 2026-08-26T07:30:00Z", at)
		}
		seconds := parsed.Unix()
		unixSeconds = &seconds
	}
	deviceTime, err := vsdclient.RequestSyncTime(unixSeconds)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Println("Dispenser clock set to " + deviceTime + ".")
	return
}

func scheduleCommand(c *cli.Context) (err error) {
	entries, err := vsdclient.RequestSchedule()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	if len(entries) == 0 {
		fmt.Println("No schedule entries on the dispenser.")
		return
	}
	for i, entry := range entries {
		fmt.Printf("%d. %s  %s\n", i+1, entry.Time.String(), entry.Intensity.String())
	}
	return
}

func scheduleSetCommand(c *cli.Context) (err error) {
	path := c.String("file")
	if path == "" {
		PrintFatal(os.Stderr, "Specify a schedule YAML file with --file.")
	}
	entries, err := verashield.ReadScheduleFile(path)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	count, err := vsdclient.RequestScheduleWrite(entries)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Printf("Wrote %d schedule entries.\n", count)
	return
}

func scheduleExportCommand(c *cli.Context) (err error) {
	path := c.String("file")
	if path == "" {
		PrintFatal(os.Stderr, "Specify an output YAML file with --file.")
	}
	entries, err := vsdclient.RequestSchedule()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	err = verashield.WriteScheduleFile(path, entries)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Printf("Exported %d schedule entries to %s.\n", len(entries), path)
	return
}

func scheduleClearCommand(c *cli.Context) (err error) {
	if !c.Bool("force") {
		confirmOrFatal(os.Stderr, "Erase every schedule entry on the dispenser?")
	}
	_, err = vsdclient.RequestScheduleWrite(nil)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Println("Schedule cleared.")
	return
}

func statsCommand(c *cli.Context) (err error) {
	var stats verashield.StatisticsResponse
	if c.IsSet("start") || c.IsSet("window") {
		stats, err = vsdclient.RequestStatisticsPage(c.Int("start"), c.Int("window"))
	} else {
		stats, err = vsdclient.RequestAllStatistics()
	}
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	if stats.Total == 0 {
		fmt.Println("No sprays recorded yet.")
		return
	}
	fmt.Printf("%d sprays recorded, showing %d:\n", stats.Total, len(stats.Entries))
	for _, record := range stats.Entries {
		fmt.Printf("%s  %s\n", record.Time.String(), record.Intensity.String())
	}
	return
}

func sprayCommand(c *cli.Context) (err error) {
	arg := c.Args().First()
	if arg == "" {
		arg = "medium"
	}
	level, err := verashield.ParseIntensity(arg)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	err = vsdclient.RequestSpray(level)
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Println("Spray triggered (" + level.String() + ").")
	return
}

func batteryCommand(c *cli.Context) (err error) {
	percent, err := vsdclient.RequestBattery()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	reading := fmt.Sprintf("Battery %d%%", percent)
	switch {
	case percent >= 50:
		fmt.Println(verashield.Green(reading))
	case percent >= 20:
		fmt.Println(verashield.Yellow(reading))
	default:
		fmt.Println(verashield.Red(reading + ", recharge soon"))
	}
	return
}

func infoCommand(c *cli.Context) (err error) {
	info, err := vsdclient.RequestDeviceInfo("unknown")
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Println("Model:        " + info.ModelNumber)
	fmt.Println("Serial:       " + info.SerialNumber)
	fmt.Println("Firmware:     " + info.FirmwareRevision)
	fmt.Println("Hardware:     " + info.HardwareRevision)
	fmt.Println("Software:     " + info.SoftwareRevision)
	fmt.Println("Manufacturer: " + info.ManufacturerName)
	if info.FirmwareOutdated() {
		PrintErr(os.Stderr, verashield.Yellow("Firmware "+info.FirmwareRevision+" predates "+
			verashield.MinimumFirmwareVersion.String()+", an update is recommended."))
	}
	return
}

func watchCommand(c *cli.Context) (err error) {
	PrintErr(os.Stderr, "Watching connection events, press CTRL-C to stop.")
	err = vsdclient.WatchEvents(func(event verashield.ConnectionEvent) bool {
		stamp := time.Unix(event.UnixSeconds, 0).Format("15:04:05")
		label := ""
		if event.Device != nil {
			label = " " + deviceLabel(*event.Device)
		}
		switch {
		case event.Connected:
			fmt.Println(stamp + " " + verashield.Green("connected") + label)
		case event.State == verashield.StateConnecting:
			fmt.Println(stamp + " " + verashield.Yellow("connecting") + label)
		default:
			fmt.Println(stamp + " " + verashield.Red("disconnected") + label)
		}
		return true
	})
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	return
}

func forgetCommand(c *cli.Context) (err error) {
	registry, err := verashield.NewDeviceRegistry()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	err = registry.DeleteLastDevice()
	if err != nil {
		PrintFatal(os.Stderr, err.Error())
	}
	fmt.Println("Forgot the remembered dispenser.")
	return
}

func envCommand(c *cli.Context) (err error) {
	const ENV_VAR_USAGE = `Useful environment variables:
	VERASHIELD_LOG_LEVEL=<log level>	Set log level of vsd (DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL)
	VERASHIELD_LOG_SYSLOG=false		Log vsd to stderr instead of the system log`
	os.Stderr.WriteString(ENV_VAR_USAGE + "\n")
	return
}

func restartCommand(c *cli.Context) (err error) {
	return restartCommandOptions(c, true)
}

func main() {
	initTerminal()
	app := cli.NewApp()
	app.Name = "vs"
	app.Usage = "communicate with a VeraShield dispenser through vsd - the VeraShield daemon"
	app.Version = verashield.CURRENT_VERSION.String()
	app.Flags = []cli.Flag{}
	app.Commands = []cli.Command{
		cli.Command{
			Name:   "scan",
			Usage:  "Scan for nearby VeraShield dispensers",
			Action: scanCommand,
		},
		cli.Command{
			Name:  "connect",
			Usage: "Connect to a dispenser (strongest scan result unless told otherwise)",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "id, i",
					Usage: "Connect to the dispenser with this id from a previous scan",
				},
				cli.BoolFlag{
					Name:  "last, l",
					Usage: "Reconnect to the last remembered dispenser without scanning",
				},
			},
			Action: connectCommand,
		},
		cli.Command{
			Name:   "disconnect",
			Usage:  "Disconnect from the current dispenser",
			Action: disconnectCommand,
		},
		cli.Command{
			Name:   "status",
			Usage:  "Show the daemon's connection state",
			Action: statusCommand,
		},
		cli.Command{
			Name:  "sync-time",
			Usage: "Set the dispenser clock",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "at",
					Usage: "RFC3339 time to set instead of the current time",
				},
			},
			Action: syncTimeCommand,
		},
		cli.Command{
			Name:   "schedule",
			Usage:  "Print the spray schedule stored on the dispenser",
			Action: scheduleCommand,
			Subcommands: []cli.Command{
				cli.Command{
					Name:  "set",
					Usage: "Replace the dispenser schedule from a YAML file",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "file, f",
							Usage: "Schedule YAML file to upload",
						},
					},
					Action: scheduleSetCommand,
				},
				cli.Command{
					Name:  "export",
					Usage: "Write the dispenser schedule to a YAML file",
					Flags: []cli.Flag{
						cli.StringFlag{
							Name:  "file, f",
							Usage: "Output YAML file",
						},
					},
					Action: scheduleExportCommand,
				},
				cli.Command{
					Name:  "clear",
					Usage: "Erase every schedule entry on the dispenser",
					Flags: []cli.Flag{
						cli.BoolFlag{
							Name:  "force",
							Usage: "Do not ask for confirmation",
						},
					},
					Action: scheduleClearCommand,
				},
			},
		},
		cli.Command{
			Name:  "stats",
			Usage: "Print the dispenser's spray history",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "start, s",
					Usage: "Record offset to start from",
				},
				cli.IntFlag{
					Name:  "window, w",
					Usage: "Number of records to fetch, 0 lets the dispenser decide",
				},
			},
			Action: statsCommand,
		},
		cli.Command{
			Name:      "spray",
			Usage:     "Trigger a spray now",
			ArgsUsage: "[eco|low|medium|high]",
			Action:    sprayCommand,
		},
		cli.Command{
			Name:   "battery",
			Usage:  "Print the dispenser's battery level",
			Action: batteryCommand,
		},
		cli.Command{
			Name:   "info",
			Usage:  "Print dispenser model, serial, and firmware details",
			Action: infoCommand,
		},
		cli.Command{
			Name:   "watch",
			Usage:  "Stream connection events until interrupted",
			Action: watchCommand,
		},
		cli.Command{
			Name:   "forget",
			Usage:  "Forget the remembered dispenser",
			Action: forgetCommand,
		},
		cli.Command{
			Name:   "env",
			Usage:  "Print useful environment variables for configuring vs/vsd",
			Action: envCommand,
		},
		cli.Command{
			Name:   "restart",
			Usage:  "Restart the VeraShield daemon",
			Action: restartCommand,
		},
	}
	app.Run(os.Args)
}
