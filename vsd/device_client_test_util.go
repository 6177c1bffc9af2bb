package vsd

import (
	"testing"
	"time"

	"github.com/op/go-logging"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

func NewTestDeviceClient(radio verashield.RadioI) DeviceClientI {
	return NewDeviceClient(radio, nil, "", verashield.SetupLogging("test", logging.INFO, false))
}

func NewTestDeviceClientShortTimeouts(radio verashield.RadioI) DeviceClientI {
	shortTimeouts := verashield.Timeouts{
		Connect:          200 * time.Millisecond,
		ScanWindow:       50 * time.Millisecond,
		Settle:           time.Millisecond,
		OperationGap:     time.Millisecond,
		RetryBackoffUnit: time.Millisecond,
	}
	return NewDeviceClient(radio, &shortTimeouts, "", verashield.SetupLogging("test", logging.INFO, false))
}

func ConnectClient(t *testing.T, client DeviceClientI) (device verashield.DeviceHandle) {
	err := client.Start()
	if err != nil {
		t.Fatal(err)
	}
	devices, err := client.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) == 0 {
		t.Fatal("scan found no dispensers")
	}
	device = devices[0]
	err = client.Connect(device)
	if err != nil {
		t.Fatal(err)
	}
	verashield.TrueBefore(t, client.IsConnected, time.Now().Add(time.Second))
	return
}
