package verashield

import (
	"fmt"
	"sync"
	"time"

	"github.com/satori/go.uuid"
)

//	In-memory radio that simulates one VeraShield dispenser, used by the
//	session and control-server tests. Scripted failures are queued on the
//	exported fields; everything else behaves like a healthy device.
type MockRadio struct {
	sync.Mutex
	//	replayed through the accept filter on every Scan call
	Advertisements []Advertisement
	//	services the simulated device exposes
	Services []uuid.UUID
	//	largest MTU the simulated platform grants, 0 fails negotiation
	MTU int
	//	added latency before Connect returns
	ConnectDelay time.Duration
	ConnectErr   error
	//	consumed one per ReadValue/WriteValue call before normal dispatch
	ReadErrs  []error
	WriteErrs []error
	//	device caps each statistics answer at this many records, 0 means
	//	the protocol cap of 63
	AnswerCap int

	Battery byte
	Info    map[uuid.UUID]string
	Records []UsageRecord

	connected     bool
	connectedID   DeviceID
	onDisconnect  func()
	schedule      []byte
	clock         []byte
	sprays        []Intensity
	statsStart    int
	statsWindow   int
	statsControls [][2]byte
	initialized   bool
	stopped       bool
}

func NewMockRadio() *MockRadio {
	return &MockRadio{
		Advertisements: []Advertisement{
			{ID: "dev-1", Name: "VeraShield Mini", RSSI: -52},
		},
		Services: []uuid.UUID{
			DispenserServiceUUID,
			BatteryServiceUUID,
			DeviceInformationServiceUUID,
		},
		MTU:     185,
		Battery: 88,
		Info: map[uuid.UUID]string{
			ModelNumberCharacteristicUUID:      "VS-100",
			SerialNumberCharacteristicUUID:     "VS100-0042",
			FirmwareRevisionCharacteristicUUID: "2.1.0",
			HardwareRevisionCharacteristicUUID: "rev C",
			SoftwareRevisionCharacteristicUUID: "2.1.0",
			ManufacturerNameCharacteristicUUID: "VeraShield",
		},
	}
}

func (m *MockRadio) Initialize() (err error) {
	m.Lock()
	defer m.Unlock()
	m.initialized = true
	return
}

func (m *MockRadio) Scan(window time.Duration, accept func(Advertisement) bool) (results []Advertisement, err error) {
	m.Lock()
	defer m.Unlock()
	for _, ad := range m.Advertisements {
		if accept == nil || accept(ad) {
			results = append(results, ad)
		}
	}
	return
}

func (m *MockRadio) Connect(id DeviceID, onDisconnect func()) (err error) {
	m.Lock()
	delay := m.ConnectDelay
	m.Unlock()
	if delay > 0 {
		<-time.After(delay)
	}
	m.Lock()
	defer m.Unlock()
	if m.ConnectErr != nil {
		err = m.ConnectErr
		return
	}
	m.connected = true
	m.connectedID = id
	m.onDisconnect = onDisconnect
	return
}

func (m *MockRadio) Disconnect(id DeviceID) (err error) {
	m.Lock()
	cb := m.onDisconnect
	m.connected = false
	m.onDisconnect = nil
	m.Unlock()
	//	real stacks report local disconnects through the same event path
	if cb != nil {
		cb()
	}
	return
}

//	Device-side link drop.
func (m *MockRadio) SimulateDisconnect() {
	m.Lock()
	cb := m.onDisconnect
	m.connected = false
	m.onDisconnect = nil
	m.Unlock()
	if cb != nil {
		cb()
	}
}

func (m *MockRadio) ListServices(id DeviceID) (services []uuid.UUID, err error) {
	m.Lock()
	defer m.Unlock()
	if !m.connected {
		err = fmt.Errorf("not connected")
		return
	}
	services = append(services, m.Services...)
	return
}

func (m *MockRadio) RequestMTU(id DeviceID, desired int) (granted int, err error) {
	m.Lock()
	defer m.Unlock()
	if m.MTU == 0 {
		err = fmt.Errorf("mtu exchange not supported")
		return
	}
	granted = desired
	if m.MTU < granted {
		granted = m.MTU
	}
	return
}

func (m *MockRadio) ReadValue(id DeviceID, service, characteristic uuid.UUID) (value []byte, err error) {
	m.Lock()
	defer m.Unlock()
	if len(m.ReadErrs) > 0 {
		err = m.ReadErrs[0]
		m.ReadErrs = m.ReadErrs[1:]
		return
	}
	if !m.connected {
		err = fmt.Errorf("not connected")
		return
	}
	switch characteristic {
	case BatteryLevelCharacteristicUUID:
		value = []byte{m.Battery}
	case ScheduleCharacteristicUUID:
		if len(m.schedule) == 0 {
			//	factory state, empty table
			value = []byte{0}
			return
		}
		value = append(value, m.schedule...)
	case StatisticsCharacteristicUUID:
		value = m.statisticsAnswer()
	default:
		if text, ok := m.Info[characteristic]; ok {
			value = []byte(text)
			return
		}
		err = fmt.Errorf("no such characteristic %s", characteristic)
	}
	return
}

func (m *MockRadio) WriteValue(id DeviceID, service, characteristic uuid.UUID, value []byte) (err error) {
	m.Lock()
	defer m.Unlock()
	if len(m.WriteErrs) > 0 {
		err = m.WriteErrs[0]
		m.WriteErrs = m.WriteErrs[1:]
		return
	}
	if !m.connected {
		err = fmt.Errorf("not connected")
		return
	}
	switch characteristic {
	case TimeSyncCharacteristicUUID:
		m.clock = append([]byte{}, value...)
	case ScheduleCharacteristicUUID:
		m.schedule = append([]byte{}, value...)
	case StatisticsCharacteristicUUID:
		if len(value) < 2 {
			err = fmt.Errorf("statistics control pair must be 2 bytes")
			return
		}
		m.statsStart = int(value[0])
		m.statsWindow = int(value[1])
		m.statsControls = append(m.statsControls, [2]byte{value[0], value[1]})
	case TriggerCharacteristicUUID:
		if len(value) < 1 {
			err = fmt.Errorf("empty trigger command")
			return
		}
		m.sprays = append(m.sprays, Intensity(value[0])&intensityMask)
	default:
		err = fmt.Errorf("no such characteristic %s", characteristic)
	}
	return
}

func (m *MockRadio) Stop() (err error) {
	m.Lock()
	defer m.Unlock()
	m.stopped = true
	return
}

func (m *MockRadio) statisticsAnswer() []byte {
	limit := m.AnswerCap
	if limit <= 0 || limit > StatisticsWindowCap {
		limit = StatisticsWindowCap
	}
	total := len(m.Records)
	window := m.statsWindow
	if window == 0 || window > limit {
		window = limit
	}
	remaining := total - m.statsStart
	if remaining < 0 {
		remaining = 0
	}
	if window > remaining {
		window = remaining
	}
	answer := []byte{byte(total), byte(window)}
	for i := 0; i < window; i++ {
		record := m.Records[m.statsStart+i]
		answer = append(answer, record.Time[:]...)
		answer = append(answer, byte(record.Intensity)&intensityMask)
	}
	return answer
}

//	Assertion helpers for tests.

func (m *MockRadio) Sprays() []Intensity {
	m.Lock()
	defer m.Unlock()
	return append([]Intensity{}, m.sprays...)
}

func (m *MockRadio) Clock() []byte {
	m.Lock()
	defer m.Unlock()
	return append([]byte{}, m.clock...)
}

func (m *MockRadio) StoredSchedule() []ScheduleEntry {
	m.Lock()
	defer m.Unlock()
	return DecodeScheduleTable(m.schedule)
}

//	Every [start, window] pair written to the statistics characteristic.
func (m *MockRadio) StatsControls() [][2]byte {
	m.Lock()
	defer m.Unlock()
	return append([][2]byte{}, m.statsControls...)
}

func (m *MockRadio) IsConnected() bool {
	m.Lock()
	defer m.Unlock()
	return m.connected
}
