package verashield

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/youtube/vitess/go/ioutil2"
)

const DEVICE_REGISTRY_FILENAME = "last_device.json"

//	Remembers the dispenser the daemon last held a connection to, so the
//	CLI can reconnect without a fresh scan. Not a pairing store: holding a
//	record grants nothing, it only targets the next connect.
type DeviceRegistry struct {
	Dir string
}

type RememberedDevice struct {
	Device           DeviceHandle `json:"device"`
	LastConnectedAt  int64        `json:"last_connected_at"`
	FirmwareRevision string       `json:"firmware_revision,omitempty"`
}

func NewDeviceRegistry() (registry DeviceRegistry, err error) {
	dir, err := VeraShieldDir()
	if err != nil {
		return
	}
	registry = DeviceRegistry{Dir: dir}
	return
}

func (registry DeviceRegistry) SaveLastDevice(device DeviceHandle, firmwareRevision string) (err error) {
	remembered := RememberedDevice{
		Device:           device,
		LastConnectedAt:  time.Now().Unix(),
		FirmwareRevision: firmwareRevision,
	}
	rememberedJson, err := json.Marshal(remembered)
	if err != nil {
		return
	}
	//	atomic so a crash mid-write never leaves a torn registry
	err = ioutil2.WriteFileAtomic(registry.path(), rememberedJson, 0600)
	return
}

func (registry DeviceRegistry) LoadLastDevice() (remembered RememberedDevice, err error) {
	rememberedJson, err := ioutil.ReadFile(registry.path())
	if err != nil {
		return
	}
	err = json.Unmarshal(rememberedJson, &remembered)
	if err != nil {
		return
	}
	if remembered.Device.ID == "" {
		err = fmt.Errorf("registry holds no device id")
		return
	}
	return
}

func (registry DeviceRegistry) DeleteLastDevice() (err error) {
	err = os.Remove(registry.path())
	if os.IsNotExist(err) {
		err = nil
	}
	return
}

func (registry DeviceRegistry) path() string {
	return filepath.Join(registry.Dir, DEVICE_REGISTRY_FILENAME)
}
