package verashield

import (
	"time"

	"github.com/satori/go.uuid"
)

//	Platform-opaque identifier for a peripheral. BlueZ uses a D-Bus object
//	path, other stacks use an address string.
type DeviceID string

//	One advertisement as the radio reported it. RSSI 0 means the platform
//	did not report a strength.
type Advertisement struct {
	ID   DeviceID
	Name string
	RSSI int16
}

//	What the scanner hands to the connection manager: just enough to target
//	a connect and label it in the UI. No ownership beyond the attempt.
type DeviceHandle struct {
	ID          DeviceID `json:"id"`
	DisplayName string   `json:"display_name,omitempty"`
	RSSI        int16    `json:"rssi,omitempty"`
}

//	The session's externally visible lifecycle. Service verification
//	happens inside the connect call, between the radio reporting a link and
//	the call returning.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateReady        ConnectionState = "ready"
)

//	Host radio primitives the session layer is built on. Implementations:
//	the BlueZ D-Bus driver on Linux and the in-package mock for tests. The
//	core owns no radio state beyond what these calls return.
type RadioI interface {
	//	bring the adapter up, idempotent
	Initialize() (err error)
	//	run one discovery window, reporting every matching advertisement
	//	seen (duplicates included) until the window elapses; the scan is
	//	always stopped before returning
	Scan(window time.Duration, accept func(Advertisement) bool) (results []Advertisement, err error)
	//	blocks until the link is up; onDisconnect fires exactly once when
	//	the link later drops, whichever side drops it
	Connect(id DeviceID, onDisconnect func()) (err error)
	Disconnect(id DeviceID) (err error)
	ReadValue(id DeviceID, service, characteristic uuid.UUID) (value []byte, err error)
	WriteValue(id DeviceID, service, characteristic uuid.UUID, value []byte) (err error)
	ListServices(id DeviceID) (services []uuid.UUID, err error)
	Stop() (err error)
}

//	Optional capability: not every platform exposes MTU negotiation. The
//	session asserts for it and falls back to the 23-byte default when the
//	radio does not provide it.
type MTURequesterI interface {
	RequestMTU(id DeviceID, desired int) (granted int, err error)
}
