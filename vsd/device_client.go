package vsd

/*
*	Owns the daemon's single dispenser session: connect, verify, negotiate
*	MTU, and serialize every characteristic operation on top of a RadioI.
 */

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/op/go-logging"
	"github.com/satori/go.uuid"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

//	Attempts per characteristic operation before a transient failure
//	surfaces. Backoff between attempts is linear in the attempt number.
const ioAttempts = 4

//	Static device-info answers cached per device id.
const deviceInfoCacheSize = 16

type DeviceClientI interface {
	Start() (err error)
	Stop() (err error)
	Scan() (devices []verashield.DeviceHandle, err error)
	Connect(device verashield.DeviceHandle) (err error)
	Disconnect() (err error)
	IsConnected() bool
	ConnectedDevice() (device verashield.DeviceHandle, connected bool)
	State() verashield.ConnectionState
	MTU() verashield.MTUState
	Subscribe(onChange func(connected bool)) (unsubscribe func())
	SyncTime(at time.Time) (vector verashield.TimeVector, err error)
	ReadSchedule() (entries []verashield.ScheduleEntry, err error)
	WriteSchedule(entries []verashield.ScheduleEntry) (err error)
	ReadStatisticsPage(start, window int) (page verashield.StatisticsPage, err error)
	ReadAllStatistics() (records []verashield.UsageRecord, err error)
	Spray(level verashield.Intensity) (err error)
	ReadBattery() (percent int, err error)
	ReadDeviceInfo(fallback string) (info verashield.DeviceInfo, err error)
}

type DeviceClient struct {
	sync.Mutex
	verashield.Timeouts
	radio        verashield.RadioI
	productToken string
	log          *logging.Logger

	//	guarded by the embedded mutex
	state     verashield.ConnectionState
	device    verashield.DeviceHandle
	mtu       verashield.MTUState
	sessionID uint64

	subscribers       map[uint64]func(connected bool)
	subscriberCounter uint64
	infoCache         *lru.Cache

	//	serializes connect attempts against each other
	connectMutex sync.Mutex
	//	serializes characteristic I/O; held through the post-op gap
	ioMutex sync.Mutex
}

func NewDeviceClient(radio verashield.RadioI, timeoutsOverride *verashield.Timeouts, productToken string, log *logging.Logger) DeviceClientI {
	timeouts := verashield.DefaultTimeouts()
	if timeoutsOverride != nil {
		timeouts = *timeoutsOverride
	}
	if productToken == "" {
		productToken = verashield.ProductNameToken
	}
	return &DeviceClient{
		Timeouts:     timeouts,
		radio:        radio,
		productToken: productToken,
		log:          log,
		state:        verashield.StateDisconnected,
		mtu:          verashield.DefaultMTUState(),
		subscribers:  map[uint64]func(connected bool){},
		infoCache:    lru.New(deviceInfoCacheSize),
	}
}

func (client *DeviceClient) Start() (err error) {
	err = client.radio.Initialize()
	if err != nil {
		client.log.Error("error initializing radio:", err.Error())
		return
	}
	return
}

func (client *DeviceClient) Stop() (err error) {
	client.Disconnect()
	err = client.radio.Stop()
	return
}

func (client *DeviceClient) Scan() (devices []verashield.DeviceHandle, err error) {
	//	idempotent, recovers an adapter that was down when the daemon started
	if err = client.radio.Initialize(); err != nil {
		client.log.Error("error initializing radio:", err.Error())
		return
	}
	devices, err = verashield.ScanForDispensers(client.radio, client.productToken, client.Timeouts.ScanWindow)
	if err != nil {
		client.log.Error("scan failed:", err.Error())
		return
	}
	client.log.Notice("scan found", len(devices), "dispensers")
	return
}

//	Connecting to the already-connected device is a no-op. Connecting to a
//	different device disconnects the current one first; there is never more
//	than one session.
func (client *DeviceClient) Connect(device verashield.DeviceHandle) (err error) {
	client.connectMutex.Lock()
	defer client.connectMutex.Unlock()

	client.Lock()
	if client.state == verashield.StateReady {
		if client.device.ID == device.ID {
			client.Unlock()
			return
		}
		client.Unlock()
		client.Disconnect()
		client.Lock()
	}
	client.sessionID++
	session := client.sessionID
	client.state = verashield.StateConnecting
	client.device = device
	client.mtu = verashield.DefaultMTUState()
	client.Unlock()

	client.log.Notice("connecting to", device.DisplayName, string(device.ID))

	connectResult := make(chan error, 1)
	go verashield.RecoverToLog(func() {
		connectResult <- client.radio.Connect(device.ID, func() {
			client.onRadioDisconnect(session)
		})
	}, client.log)

	select {
	case err = <-connectResult:
	case <-time.After(client.Timeouts.Connect):
		err = verashield.ErrConnectTimeout
	}
	if err != nil {
		client.clearSession(session)
		//	a late radio success after the timeout arrives on a dead session
		//	and hangs up below in onRadioDisconnect
		if err == verashield.ErrConnectTimeout {
			go client.radio.Disconnect(device.ID)
		}
		client.log.Error("connect failed:", err.Error())
		return
	}

	client.Lock()
	if client.sessionID != session {
		client.Unlock()
		err = verashield.ErrNotConnected
		return
	}
	client.state = verashield.StateReady
	client.Unlock()
	client.notifySubscribers(true)

	//	some stacks resolve services shortly after the link event
	<-time.After(client.Timeouts.Settle)

	if verifyErr := client.verifyDispenserService(device.ID); verifyErr != nil {
		client.log.Error("service verification failed:", verifyErr.Error())
		client.Disconnect()
		err = verashield.ErrServiceNotFound
		return
	}

	mtu := client.negotiateMTU(device.ID)
	client.Lock()
	if client.sessionID != session {
		client.Unlock()
		err = verashield.ErrNotConnected
		return
	}
	client.mtu = mtu
	client.Unlock()

	client.log.Notice("connected, mtu", mtu.NegotiatedMTU,
		"write budget", mtu.WritePayloadLimit,
		"read budget", mtu.ReadPayloadLimit)
	return
}

//	Idempotent. Local state always clears, even when the radio hangup errs;
//	queued operations fail with ErrNotConnected the moment state flips.
func (client *DeviceClient) Disconnect() (err error) {
	client.Lock()
	session := client.sessionID
	device := client.device
	state := client.state
	client.Unlock()
	if state == verashield.StateDisconnected {
		return
	}

	if client.clearSession(session) && state == verashield.StateReady {
		client.notifySubscribers(false)
	}

	err = client.radio.Disconnect(device.ID)
	if err != nil {
		client.log.Notice("radio disconnect:", err.Error())
		err = nil
	}
	return
}

//	Fires on the radio's link-drop event, whichever side dropped it. Stale
//	events from sessions already torn down are ignored.
func (client *DeviceClient) onRadioDisconnect(session uint64) {
	if client.clearSession(session) {
		client.log.Notice("dispenser link dropped")
		client.notifySubscribers(false)
	}
}

//	Resets to Disconnected if the session is still current. Bumping the
//	session id invalidates any operation result still in flight.
func (client *DeviceClient) clearSession(session uint64) (cleared bool) {
	client.Lock()
	defer client.Unlock()
	if client.sessionID != session || client.state == verashield.StateDisconnected {
		return
	}
	client.sessionID++
	client.state = verashield.StateDisconnected
	client.device = verashield.DeviceHandle{}
	client.mtu = verashield.DefaultMTUState()
	cleared = true
	return
}

func (client *DeviceClient) verifyDispenserService(id verashield.DeviceID) (err error) {
	services, err := client.radio.ListServices(id)
	if err != nil {
		return
	}
	for _, service := range services {
		if uuid.Equal(service, verashield.DispenserServiceUUID) {
			return
		}
	}
	err = verashield.ErrServiceNotFound
	return
}

//	Requests the ATT maximum, then the common data-length-extension ceiling,
//	keeping the first grant. Radios without the capability, and radios that
//	refuse both, leave the 23-byte default in place.
func (client *DeviceClient) negotiateMTU(id verashield.DeviceID) verashield.MTUState {
	requester, ok := client.radio.(verashield.MTURequesterI)
	if !ok {
		client.log.Notice("radio has no mtu exchange, keeping default")
		return verashield.DefaultMTUState()
	}
	for _, desired := range []int{verashield.PreferredMTU, verashield.FallbackMTU} {
		granted, err := requester.RequestMTU(id, desired)
		if err != nil {
			client.log.Notice("mtu request", desired, "failed:", err.Error())
			continue
		}
		return verashield.NewMTUState(granted)
	}
	return verashield.DefaultMTUState()
}

func (client *DeviceClient) IsConnected() bool {
	client.Lock()
	defer client.Unlock()
	return client.state == verashield.StateReady
}

func (client *DeviceClient) ConnectedDevice() (device verashield.DeviceHandle, connected bool) {
	client.Lock()
	defer client.Unlock()
	device = client.device
	connected = client.state == verashield.StateReady
	return
}

func (client *DeviceClient) State() verashield.ConnectionState {
	client.Lock()
	defer client.Unlock()
	return client.state
}

func (client *DeviceClient) MTU() verashield.MTUState {
	client.Lock()
	defer client.Unlock()
	return client.mtu
}

//	Subscribers run synchronously on every connection-state change. A
//	panicking subscriber is recovered to the log and never stops the rest.
func (client *DeviceClient) Subscribe(onChange func(connected bool)) (unsubscribe func()) {
	client.Lock()
	defer client.Unlock()
	client.subscriberCounter++
	token := client.subscriberCounter
	client.subscribers[token] = onChange
	return func() {
		client.Lock()
		defer client.Unlock()
		delete(client.subscribers, token)
	}
}

func (client *DeviceClient) notifySubscribers(connected bool) {
	client.Lock()
	callbacks := make([]func(bool), 0, len(client.subscribers))
	for _, onChange := range client.subscribers {
		callbacks = append(callbacks, onChange)
	}
	client.Unlock()
	for _, onChange := range callbacks {
		onChange := onChange
		verashield.RecoverToLog(func() { onChange(connected) }, client.log)
	}
}

func (client *DeviceClient) SyncTime(at time.Time) (vector verashield.TimeVector, err error) {
	vector = verashield.TimeVectorOf(at)
	err = client.writeCharacteristic("sync time",
		verashield.DispenserServiceUUID, verashield.TimeSyncCharacteristicUUID, vector.Bytes())
	if err != nil {
		return
	}
	client.log.Notice("dispenser clock set to", vector.String())
	return
}

func (client *DeviceClient) ReadSchedule() (entries []verashield.ScheduleEntry, err error) {
	raw, err := client.readCharacteristic("read schedule",
		verashield.DispenserServiceUUID, verashield.ScheduleCharacteristicUUID)
	if err != nil {
		return
	}
	entries = verashield.DecodeScheduleTable(raw)
	return
}

//	The firmware replaces the whole table from one atomic write, so a table
//	that cannot fit the connection's write budget fails before any radio
//	traffic. Nothing is ever truncated or split.
func (client *DeviceClient) WriteSchedule(entries []verashield.ScheduleEntry) (err error) {
	client.ioMutex.Lock()
	defer client.ioMutex.Unlock()

	device, session, err := client.readySession()
	if err != nil {
		return
	}
	maxEntries := client.MTU().MaxScheduleEntries()
	if len(entries) > maxEntries {
		err = &verashield.PayloadTooLargeError{
			MaxEntries:       maxEntries,
			AttemptedEntries: len(entries),
		}
		return
	}
	payload, err := verashield.EncodeScheduleTable(entries)
	if err != nil {
		return
	}
	err = client.performWrite("write schedule", device, session,
		verashield.DispenserServiceUUID, verashield.ScheduleCharacteristicUUID, payload)
	if err != nil {
		return
	}
	client.log.Notice("schedule table replaced,", len(entries), "entries")
	return
}

//	Two radio operations under one hold of the I/O lock: write the
//	[start, window] control pair, then read the answer. The window request
//	is sized so the full answer always lands in a single PDU.
func (client *DeviceClient) ReadStatisticsPage(start, window int) (page verashield.StatisticsPage, err error) {
	client.ioMutex.Lock()
	defer client.ioMutex.Unlock()

	device, session, err := client.readySession()
	if err != nil {
		return
	}
	window = verashield.ClampStatisticsWindow(window, client.MTU())
	err = client.performWrite("statistics control", device, session,
		verashield.DispenserServiceUUID, verashield.StatisticsCharacteristicUUID,
		verashield.EncodeStatisticsControl(start, window))
	if err != nil {
		return
	}
	raw, err := client.performRead("statistics page", device, session,
		verashield.DispenserServiceUUID, verashield.StatisticsCharacteristicUUID)
	if err != nil {
		return
	}
	page = verashield.DecodeStatisticsPage(raw)
	return
}

//	Pages by the device's effective answers until the reported total is
//	covered. An empty page before that point means the device shrank its
//	history mid-walk; stop rather than loop.
func (client *DeviceClient) ReadAllStatistics() (records []verashield.UsageRecord, err error) {
	start := 0
	for {
		page, pageErr := client.ReadStatisticsPage(start, 0)
		if pageErr != nil {
			err = pageErr
			return
		}
		records = append(records, page.Entries...)
		if len(page.Entries) == 0 || start+len(page.Entries) >= page.Total {
			return
		}
		start += len(page.Entries)
	}
}

func (client *DeviceClient) Spray(level verashield.Intensity) (err error) {
	err = client.writeCharacteristic("spray",
		verashield.DispenserServiceUUID, verashield.TriggerCharacteristicUUID,
		verashield.EncodeTriggerCommand(level))
	if err != nil {
		return
	}
	client.log.Notice("manual spray triggered at", level.String())
	return
}

func (client *DeviceClient) ReadBattery() (percent int, err error) {
	raw, err := client.readCharacteristic("read battery",
		verashield.BatteryServiceUUID, verashield.BatteryLevelCharacteristicUUID)
	if err != nil {
		return
	}
	percent = verashield.DecodeBatteryLevel(raw)
	return
}

//	Info fields are immutable per device, so answers cache by device id. A
//	field that fails to read or decode resolves to the fallback; only the
//	link dying aborts the call.
func (client *DeviceClient) ReadDeviceInfo(fallback string) (info verashield.DeviceInfo, err error) {
	device, _, err := client.readySession()
	if err != nil {
		return
	}
	client.Lock()
	if cached, hit := client.infoCache.Get(device.ID); hit {
		client.Unlock()
		info = cached.(verashield.DeviceInfo)
		return
	}
	client.Unlock()

	complete := true
	readField := func(characteristic uuid.UUID) string {
		raw, readErr := client.readCharacteristic("read device info",
			verashield.DeviceInformationServiceUUID, characteristic)
		if readErr != nil {
			if err == nil && (readErr == verashield.ErrNotConnected || verashield.IsDisconnectError(readErr)) {
				err = readErr
			}
			complete = false
			return fallback
		}
		return verashield.DecodeTextField(raw, fallback)
	}

	info.ModelNumber = readField(verashield.ModelNumberCharacteristicUUID)
	info.SerialNumber = readField(verashield.SerialNumberCharacteristicUUID)
	info.FirmwareRevision = readField(verashield.FirmwareRevisionCharacteristicUUID)
	info.HardwareRevision = readField(verashield.HardwareRevisionCharacteristicUUID)
	info.SoftwareRevision = readField(verashield.SoftwareRevisionCharacteristicUUID)
	info.ManufacturerName = readField(verashield.ManufacturerNameCharacteristicUUID)
	if err != nil {
		return
	}

	//	fallback-substituted answers are not worth remembering
	if complete {
		client.Lock()
		client.infoCache.Add(device.ID, info)
		client.Unlock()
	}
	return
}

func (client *DeviceClient) readCharacteristic(op string, service, characteristic uuid.UUID) (value []byte, err error) {
	client.ioMutex.Lock()
	defer client.ioMutex.Unlock()
	device, session, err := client.readySession()
	if err != nil {
		return
	}
	value, err = client.performRead(op, device, session, service, characteristic)
	return
}

func (client *DeviceClient) writeCharacteristic(op string, service, characteristic uuid.UUID, value []byte) (err error) {
	client.ioMutex.Lock()
	defer client.ioMutex.Unlock()
	device, session, err := client.readySession()
	if err != nil {
		return
	}
	err = client.performWrite(op, device, session, service, characteristic, value)
	return
}

func (client *DeviceClient) performRead(op string, device verashield.DeviceHandle, session uint64, service, characteristic uuid.UUID) (value []byte, err error) {
	defer client.operationGap()
	value, err = client.withRetry(op, session, func() ([]byte, error) {
		return client.radio.ReadValue(device.ID, service, characteristic)
	})
	return
}

func (client *DeviceClient) performWrite(op string, device verashield.DeviceHandle, session uint64, service, characteristic uuid.UUID, value []byte) (err error) {
	defer client.operationGap()
	_, err = client.withRetry(op, session, func() ([]byte, error) {
		return nil, client.radio.WriteValue(device.ID, service, characteristic, value)
	})
	return
}

//	Retry policy for one characteristic operation. Disconnect-shaped
//	failures clear the session and propagate immediately; everything else
//	retries with linear backoff until the attempt budget runs out.
func (client *DeviceClient) withRetry(op string, session uint64, call func() ([]byte, error)) (value []byte, err error) {
	for attempt := 1; ; attempt++ {
		value, err = call()
		if client.sessionStale(session) {
			//	the session died while this attempt was in flight, its
			//	result no longer means anything
			value, err = nil, verashield.ErrNotConnected
			return
		}
		if err == nil {
			return
		}
		if verashield.IsDisconnectError(err) {
			if client.clearSession(session) {
				client.log.Error(op, "lost the dispenser link:", err.Error())
				client.notifySubscribers(false)
			}
			err = &verashield.HardDisconnectError{Op: op, Err: err}
			return
		}
		if attempt >= ioAttempts {
			err = &verashield.TransientIOError{Op: op, Attempts: attempt, Err: err}
			return
		}
		client.log.Notice(op, "attempt", attempt, "failed, retrying:", err.Error())
		<-time.After(client.Timeouts.RetryBackoffUnit * time.Duration(attempt))
	}
}

func (client *DeviceClient) readySession() (device verashield.DeviceHandle, session uint64, err error) {
	client.Lock()
	defer client.Unlock()
	if client.state != verashield.StateReady {
		err = verashield.ErrNotConnected
		return
	}
	device = client.device
	session = client.sessionID
	return
}

func (client *DeviceClient) sessionStale(session uint64) bool {
	client.Lock()
	defer client.Unlock()
	return client.sessionID != session
}

//	Radio stacks misbehave when operations arrive back to back; every
//	operation is followed by a short pause while the I/O lock is still held.
func (client *DeviceClient) operationGap() {
	<-time.After(client.Timeouts.OperationGap)
}
