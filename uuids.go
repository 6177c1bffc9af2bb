package verashield

import (
	"github.com/satori/go.uuid"
)

//	Token the dispenser advertises as part of its name. Scan filtering
//	matches it case-insensitively.
const ProductNameToken = "VeraShield"

//	Vendor service exposed by the dispenser firmware.
var DispenserServiceUUID = uuid.Must(uuid.FromString("3d5a0001-2f6e-4bda-a2e5-9b1c6d8f4a37"))
var TimeSyncCharacteristicUUID = uuid.Must(uuid.FromString("3d5a0002-2f6e-4bda-a2e5-9b1c6d8f4a37"))
var ScheduleCharacteristicUUID = uuid.Must(uuid.FromString("3d5a0003-2f6e-4bda-a2e5-9b1c6d8f4a37"))
var StatisticsCharacteristicUUID = uuid.Must(uuid.FromString("3d5a0004-2f6e-4bda-a2e5-9b1c6d8f4a37"))
var TriggerCharacteristicUUID = uuid.Must(uuid.FromString("3d5a0005-2f6e-4bda-a2e5-9b1c6d8f4a37"))

//	Bluetooth SIG assigned services and characteristics.
var BatteryServiceUUID = uuid.Must(uuid.FromString("0000180f-0000-1000-8000-00805f9b34fb"))
var BatteryLevelCharacteristicUUID = uuid.Must(uuid.FromString("00002a19-0000-1000-8000-00805f9b34fb"))

var DeviceInformationServiceUUID = uuid.Must(uuid.FromString("0000180a-0000-1000-8000-00805f9b34fb"))
var ModelNumberCharacteristicUUID = uuid.Must(uuid.FromString("00002a24-0000-1000-8000-00805f9b34fb"))
var SerialNumberCharacteristicUUID = uuid.Must(uuid.FromString("00002a25-0000-1000-8000-00805f9b34fb"))
var FirmwareRevisionCharacteristicUUID = uuid.Must(uuid.FromString("00002a26-0000-1000-8000-00805f9b34fb"))
var HardwareRevisionCharacteristicUUID = uuid.Must(uuid.FromString("00002a27-0000-1000-8000-00805f9b34fb"))
var SoftwareRevisionCharacteristicUUID = uuid.Must(uuid.FromString("00002a28-0000-1000-8000-00805f9b34fb"))
var ManufacturerNameCharacteristicUUID = uuid.Must(uuid.FromString("00002a29-0000-1000-8000-00805f9b34fb"))
