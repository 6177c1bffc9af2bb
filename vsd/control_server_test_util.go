package vsd

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/op/go-logging"
	"github.com/satori/go.uuid"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

//	Control server on a throwaway unix socket, for tests that speak the
//	daemon protocol the way the CLI does. The mock radio simulates one
//	healthy dispenser.
func NewLocalUnixServer(t *testing.T) (cs *ControlServer, radio *verashield.MockRadio, unixFile string) {
	radio = verashield.NewMockRadio()
	deviceClient := NewTestDeviceClientShortTimeouts(radio)
	cs = NewControlServer(deviceClient, nil, verashield.SetupLogging("test", logging.INFO, false))

	unixFile = filepath.Join(os.TempDir(), "vsd-test-"+uuid.NewV4().String()+".sock")
	listener, err := net.Listen("unix", unixFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	go cs.HandleControlHTTP(listener)
	return
}
