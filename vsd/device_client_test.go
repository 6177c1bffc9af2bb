package vsd

import (
	"fmt"
	"testing"
	"time"

	"github.com/satori/go.uuid"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

func TestConnectNegotiatesSession(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	device := ConnectClient(t, client)
	if device.DisplayName != "VeraShield Mini" {
		t.Fatal("unexpected device:", device.DisplayName)
	}
	if client.State() != verashield.StateReady {
		t.Fatal("expected ready state, got", client.State())
	}

	mtu := client.MTU()
	if mtu.NegotiatedMTU != 185 || mtu.WritePayloadLimit != 182 || mtu.ReadPayloadLimit != 184 {
		t.Fatal("bad mtu state:", mtu)
	}
}

func TestConnectSameDeviceIsNoOp(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	notifications := 0
	client.Subscribe(func(connected bool) { notifications++ })

	device := ConnectClient(t, client)
	if err := client.Connect(device); err != nil {
		t.Fatal(err)
	}
	if notifications != 1 {
		t.Fatal("reconnecting to the same device should not renegotiate, got", notifications, "notifications")
	}
}

func TestConnectReplacesOtherDevice(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	var changes []bool
	client.Subscribe(func(connected bool) { changes = append(changes, connected) })

	ConnectClient(t, client)
	other := verashield.DeviceHandle{ID: "dev-2", DisplayName: "VeraShield Pro"}
	if err := client.Connect(other); err != nil {
		t.Fatal(err)
	}

	device, connected := client.ConnectedDevice()
	if !connected || device.ID != other.ID {
		t.Fatal("expected session on dev-2, got", device.ID)
	}
	expected := []bool{true, false, true}
	if len(changes) != len(expected) {
		t.Fatal("expected", expected, "got", changes)
	}
	for i := range expected {
		if changes[i] != expected[i] {
			t.Fatal("expected", expected, "got", changes)
		}
	}
}

func TestConnectTimeout(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.ConnectDelay = 500 * time.Millisecond
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	err := client.Connect(verashield.DeviceHandle{ID: "dev-1"})
	if err != verashield.ErrConnectTimeout {
		t.Fatal("expected ErrConnectTimeout, got", err)
	}
	if client.State() != verashield.StateDisconnected {
		t.Fatal("timeout must leave the session disconnected")
	}
}

func TestConnectRejectsDeviceWithoutDispenserService(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.Services = []uuid.UUID{verashield.BatteryServiceUUID}
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	err := client.Connect(verashield.DeviceHandle{ID: "dev-1"})
	if err != verashield.ErrServiceNotFound {
		t.Fatal("expected ErrServiceNotFound, got", err)
	}
	if client.IsConnected() {
		t.Fatal("verification failure must tear the session down")
	}
	if radio.IsConnected() {
		t.Fatal("the radio link must be hung up")
	}
}

func TestMTUFallsBackToDefault(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.MTU = 0
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	if mtu := client.MTU(); mtu != verashield.DefaultMTUState() {
		t.Fatal("expected the 23-byte default, got", mtu)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	if err := client.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := client.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if _, err := client.ReadBattery(); err != verashield.ErrNotConnected {
		t.Fatal("expected ErrNotConnected, got", err)
	}
}

func TestRemoteDisconnectNotifiesAndFailsFast(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	var changes []bool
	client.Subscribe(func(connected bool) { changes = append(changes, connected) })

	ConnectClient(t, client)
	radio.SimulateDisconnect()

	verashield.TrueBefore(t, func() bool { return !client.IsConnected() }, time.Now().Add(time.Second))
	if len(changes) != 2 || changes[1] {
		t.Fatal("expected a disconnected notification, got", changes)
	}
	if _, err := client.ReadBattery(); err != verashield.ErrNotConnected {
		t.Fatal("expected ErrNotConnected, got", err)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	notifications := 0
	unsubscribe := client.Subscribe(func(connected bool) { notifications++ })

	ConnectClient(t, client)
	unsubscribe()
	radio.SimulateDisconnect()

	if notifications != 1 {
		t.Fatal("expected one notification before unsubscribe, got", notifications)
	}
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	survivorNotified := false
	client.Subscribe(func(connected bool) { panic("subscriber bug") })
	client.Subscribe(func(connected bool) { survivorNotified = true })

	ConnectClient(t, client)
	if !survivorNotified {
		t.Fatal("panic in one subscriber starved the rest")
	}
}

func TestConcurrentConnectsCoalesce(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.ConnectDelay = 20 * time.Millisecond
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	if err := client.Start(); err != nil {
		t.Fatal(err)
	}
	device := verashield.DeviceHandle{ID: "dev-1", DisplayName: "VeraShield Mini"}
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- client.Connect(device)
		}()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
	if !client.IsConnected() {
		t.Fatal("expected a single live session")
	}
}

func TestTransientErrorsRetryThenSucceed(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.ReadErrs = []error{fmt.Errorf("le busy"), fmt.Errorf("le busy"), fmt.Errorf("le busy")}
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	//	three transients, the fourth and final attempt answers
	percent, err := client.ReadBattery()
	if err != nil {
		t.Fatal("transients within the attempt budget must not surface:", err)
	}
	if percent != 88 {
		t.Fatal("expected 88, got", percent)
	}
}

func TestTransientExhaustionSurfacesFinalError(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.ReadErrs = []error{
		fmt.Errorf("le busy"),
		fmt.Errorf("le busy"),
		fmt.Errorf("le busy"),
		fmt.Errorf("le busy"),
	}
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	_, err := client.ReadBattery()
	transient, ok := err.(*verashield.TransientIOError)
	if !ok {
		t.Fatalf("expected TransientIOError, got %T: %v", err, err)
	}
	if transient.Attempts != 4 {
		t.Fatal("expected 4 attempts, got", transient.Attempts)
	}
	if !client.IsConnected() {
		t.Fatal("transient exhaustion must not tear the session down")
	}
}

func TestHardDisconnectNeverRetries(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.WriteErrs = []error{fmt.Errorf("org.bluez.Error.NotConnected")}
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	var changes []bool
	client.Subscribe(func(connected bool) { changes = append(changes, connected) })

	ConnectClient(t, client)
	err := client.Spray(verashield.IntensityLow)
	if _, ok := err.(*verashield.HardDisconnectError); !ok {
		t.Fatalf("expected HardDisconnectError, got %T: %v", err, err)
	}
	if client.IsConnected() {
		t.Fatal("state must clear before the error propagates")
	}
	if len(changes) != 2 || changes[1] {
		t.Fatal("expected a disconnected notification, got", changes)
	}
	if sprays := radio.Sprays(); len(sprays) != 0 {
		t.Fatal("the failed write must not repeat:", sprays)
	}
}

func TestSyncTimeWritesCalendarVector(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	at := time.Date(2026, time.August, 26, 7, 30, 15, 0, time.Local)
	vector, err := client.SyncTime(at)
	if err != nil {
		t.Fatal(err)
	}
	clock := radio.Clock()
	if len(clock) != verashield.TimeVectorSize {
		t.Fatal("expected a 7-byte vector, got", len(clock))
	}
	for i := range clock {
		if clock[i] != vector[i] {
			t.Fatal("wire vector mismatch:", clock, vector)
		}
	}
	if vector.Month() != 7 || vector.Year() != 2026 {
		t.Fatal("expected month 7 (August) and year 2026, got", vector.Month(), vector.Year())
	}
}

func TestScheduleRoundTripThroughSession(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	entries := []verashield.ScheduleEntry{
		{Time: verashield.MakeTimeVector(0, 0, 7, 26, 3, 7, 126), Intensity: verashield.IntensityMedium},
		{Time: verashield.MakeTimeVector(0, 30, 12, 26, 3, 7, 126), Intensity: verashield.IntensityEco},
		{Time: verashield.MakeTimeVector(0, 0, 21, 26, 3, 7, 126), Intensity: verashield.IntensityHigh},
	}
	if err := client.WriteSchedule(entries); err != nil {
		t.Fatal(err)
	}

	stored := radio.StoredSchedule()
	if len(stored) != len(entries) {
		t.Fatal("device stored", len(stored), "entries")
	}

	readBack, err := client.ReadSchedule()
	if err != nil {
		t.Fatal(err)
	}
	if len(readBack) != len(entries) {
		t.Fatal("read back", len(readBack), "entries")
	}
	for i := range entries {
		if readBack[i] != entries[i] {
			t.Fatal("entry", i, "mismatch:", readBack[i], entries[i])
		}
	}
}

func TestWriteScheduleOverBudgetFailsFast(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.MTU = 0
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	entries := make([]verashield.ScheduleEntry, 5)
	err := client.WriteSchedule(entries)
	tooLarge, ok := err.(*verashield.PayloadTooLargeError)
	if !ok {
		t.Fatalf("expected PayloadTooLargeError, got %T: %v", err, err)
	}
	if tooLarge.MaxEntries != 2 || tooLarge.AttemptedEntries != 5 {
		t.Fatal("bad budget report:", tooLarge.MaxEntries, tooLarge.AttemptedEntries)
	}
	if stored := radio.StoredSchedule(); len(stored) != 0 {
		t.Fatal("an oversized table must never reach the radio")
	}
	if !client.IsConnected() {
		t.Fatal("budget failures are local, the session must survive")
	}
}

func TestStatisticsPageHonorsReadBudget(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.MTU = 0
	radio.Records = sampleUsageRecords(140)
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	//	at the default MTU one answer fits 2 records
	page, err := client.ReadStatisticsPage(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 140 {
		t.Fatal("expected total 140, got", page.Total)
	}
	if len(page.Entries) != 2 {
		t.Fatal("expected a 2-record page, got", len(page.Entries))
	}
}

func TestReadAllStatisticsPagesThroughHistory(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.Records = sampleUsageRecords(140)
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	records, err := client.ReadAllStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 140 {
		t.Fatal("expected 140 records, got", len(records))
	}
	for i, record := range records {
		if record != radio.Records[i] {
			t.Fatal("record", i, "out of order")
		}
	}
}

func TestReadAllStatisticsPagesAtProtocolCap(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.MTU = 517
	radio.Records = sampleUsageRecords(140)
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	records, err := client.ReadAllStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 140 {
		t.Fatal("expected 140 records, got", len(records))
	}
	//	63-record answers walk the history at 0, 63, 126
	controls := radio.StatsControls()
	if len(controls) != 3 {
		t.Fatal("expected 3 pages, got", len(controls))
	}
	for i, start := range []byte{0, 63, 126} {
		if controls[i][0] != start {
			t.Fatal("page", i, "started at", controls[i][0], "want", start)
		}
	}
}

func TestReadAllStatisticsEmptyHistory(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	records, err := client.ReadAllStatistics()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatal("expected no records, got", len(records))
	}
}

func TestSprayReachesTrigger(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	if err := client.Spray(verashield.IntensityHigh); err != nil {
		t.Fatal(err)
	}
	sprays := radio.Sprays()
	if len(sprays) != 1 || sprays[0] != verashield.IntensityHigh {
		t.Fatal("expected one high spray, got", sprays)
	}
}

func TestDeviceInfoCachedPerDevice(t *testing.T) {
	radio := verashield.NewMockRadio()
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	info, err := client.ReadDeviceInfo("unknown")
	if err != nil {
		t.Fatal(err)
	}
	if info.ModelNumber != "VS-100" || info.FirmwareRevision != "2.1.0" {
		t.Fatal("unexpected info:", info)
	}

	//	a second read answers from the cache, not the device
	radio.Info[verashield.ModelNumberCharacteristicUUID] = "changed"
	cached, err := client.ReadDeviceInfo("unknown")
	if err != nil {
		t.Fatal(err)
	}
	if cached.ModelNumber != "VS-100" {
		t.Fatal("expected the cached model number, got", cached.ModelNumber)
	}
}

func TestDeviceInfoFieldFallback(t *testing.T) {
	radio := verashield.NewMockRadio()
	delete(radio.Info, verashield.SerialNumberCharacteristicUUID)
	client := NewTestDeviceClientShortTimeouts(radio)
	defer client.Stop()

	ConnectClient(t, client)
	info, err := client.ReadDeviceInfo("unknown")
	if err != nil {
		t.Fatal("a missing field must never fail the call:", err)
	}
	if info.SerialNumber != "unknown" {
		t.Fatal("expected the fallback serial, got", info.SerialNumber)
	}
	if info.ModelNumber != "VS-100" {
		t.Fatal("other fields must still read:", info.ModelNumber)
	}
}

func sampleUsageRecords(n int) (records []verashield.UsageRecord) {
	for i := 0; i < n; i++ {
		records = append(records, verashield.UsageRecord{
			Time:      verashield.MakeTimeVector(i%60, (i/60)%60, 8, 26, 3, 7, 126),
			Intensity: verashield.Intensity(i % 4),
		})
	}
	return
}
