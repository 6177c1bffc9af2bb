package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/op/go-logging"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
	"github.com/Kushal-Chandar/VeraShield-App/vsd"
)

func useSyslog() bool {
	env := os.Getenv("VERASHIELD_LOG_SYSLOG")
	if env != "" {
		return env == "true"
	}
	return true
}

var log *logging.Logger = verashield.SetupLogging("vsd", logging.INFO, useSyslog())

func main() {
	configPath := flag.String("config", "", "daemon config file, defaults to ~/.verashield/vsd.toml")
	flag.Parse()

	defer func() {
		if x := recover(); x != nil {
			log.Error(fmt.Sprintf("run time panic: %v", x))
			log.Error(string(debug.Stack()))
			panic(x)
		}
	}()

	config, err := verashield.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logging.SetLevel(config.LogLevelValue(), "vsd")

	radio, err := vsd.NewPlatformRadio(config.Adapter, log)
	if err != nil {
		log.Fatal(err)
	}

	timeouts := config.BuildTimeouts()
	deviceClient := vsd.NewDeviceClient(radio, &timeouts, config.ProductToken, log)

	registry, err := verashield.NewDeviceRegistry()
	if err != nil {
		log.Fatal(err)
	}
	if remembered, loadErr := registry.LoadLastDevice(); loadErr == nil {
		log.Notice("last connected dispenser:", remembered.Device.DisplayName, string(remembered.Device.ID))
	}

	daemonSocket, err := verashield.DaemonListen()
	if err != nil {
		log.Fatal(err)
	}
	defer daemonSocket.Close()

	controlServer := vsd.NewControlServer(deviceClient, &registry, log)
	go func() {
		controlServer.Start()
		err := controlServer.HandleControlHTTP(daemonSocket)
		if err != nil {
			log.Error("controlServer return:", err)
		}
	}()

	log.Notice("vsd launched and listening on UNIX socket")

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, os.Kill, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
	sig, ok := <-stopSignal
	controlServer.Stop()
	if ok {
		log.Notice("stopping with signal", sig)
	}
}
