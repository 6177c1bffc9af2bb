package vsd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/op/go-logging"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

func newTestControlServer(radio verashield.RadioI, registry *verashield.DeviceRegistry) *ControlServer {
	client := NewTestDeviceClientShortTimeouts(radio)
	return NewControlServer(client, registry, verashield.SetupLogging("test", logging.INFO, false))
}

func deviceRequest(t *testing.T, request verashield.Request) *http.Request {
	httpRequest, err := request.HTTPRequest()
	if err != nil {
		t.Fatal(err)
	}
	return httpRequest
}

func dispatchRequest(t *testing.T, cs *ControlServer, request verashield.Request) (response verashield.Response) {
	recorder := httptest.NewRecorder()
	cs.handleDevice(recorder, deviceRequest(t, request))
	result := recorder.Result()
	if result.StatusCode != http.StatusOK {
		t.Fatal("non-200 status:", result.StatusCode)
	}
	if err := json.NewDecoder(result.Body).Decode(&response); err != nil {
		t.Fatal(err)
	}
	return
}

func TestControlServerPing(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)
	pingRequest, err := http.NewRequest("GET", "/ping", nil)
	if err != nil {
		t.Fatal(err)
	}
	recorder := httptest.NewRecorder()
	cs.handlePing(recorder, pingRequest)
	if recorder.Result().StatusCode != http.StatusOK {
		t.Fatal("non-200 status")
	}
}

func TestControlServerVersion(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)
	recorder := httptest.NewRecorder()
	versionRequest, err := http.NewRequest("GET", "/version", nil)
	if err != nil {
		t.Fatal(err)
	}
	cs.handleVersion(recorder, versionRequest)
	if recorder.Body.String() != verashield.CURRENT_VERSION.String() {
		t.Fatal("unexpected version:", recorder.Body.String())
	}
}

func TestControlServerStatusBeforeConnect(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)
	recorder := httptest.NewRecorder()
	statusRequest, err := http.NewRequest("GET", "/status", nil)
	if err != nil {
		t.Fatal(err)
	}
	cs.handleStatus(recorder, statusRequest)

	var status verashield.StatusResponse
	if err := json.NewDecoder(recorder.Result().Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.State != verashield.StateDisconnected || status.Device != nil || status.MTU != nil {
		t.Fatal("unexpected idle status:", status)
	}
}

func TestControlServerScanConnectStatus(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	defer cs.Stop()

	scan := verashield.NewRequest()
	scan.ScanRequest = &verashield.ScanRequest{}
	scanResponse := dispatchRequest(t, cs, scan)
	if scanResponse.Err() != nil {
		t.Fatal(scanResponse.Err())
	}
	if scanResponse.ScanResponse == nil || len(scanResponse.ScanResponse.Devices) != 1 {
		t.Fatal("expected one discovered dispenser")
	}
	if scanResponse.RequestID != scan.RequestID {
		t.Fatal("response must echo the request id")
	}

	connect := verashield.NewRequest()
	connect.ConnectRequest = &verashield.ConnectRequest{Device: scanResponse.ScanResponse.Devices[0]}
	connectResponse := dispatchRequest(t, cs, connect)
	if connectResponse.Err() != nil {
		t.Fatal(connectResponse.Err())
	}
	if connectResponse.ConnectResponse == nil || connectResponse.ConnectResponse.MTU.NegotiatedMTU != 185 {
		t.Fatal("expected a negotiated 185-byte session")
	}

	recorder := httptest.NewRecorder()
	statusRequest, _ := http.NewRequest("GET", "/status", nil)
	cs.handleStatus(recorder, statusRequest)
	var status verashield.StatusResponse
	if err := json.NewDecoder(recorder.Result().Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.State != verashield.StateReady || status.Device == nil || status.MTU == nil {
		t.Fatal("status must reflect the live session:", status)
	}
}

func TestControlServerErrorsCarryKind(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)

	battery := verashield.NewRequest()
	battery.BatteryRequest = &verashield.BatteryRequest{}
	response := dispatchRequest(t, cs, battery)
	if response.ErrorKind != verashield.ErrorKindNotConnected {
		t.Fatal("expected not_connected kind, got", response.ErrorKind)
	}
	if response.Err() != verashield.ErrNotConnected {
		t.Fatal("client-side rehydration must restore the sentinel, got", response.Err())
	}
}

func TestControlServerDeviceOperations(t *testing.T) {
	radio := verashield.NewMockRadio()
	radio.Records = sampleUsageRecords(5)
	cs := newTestControlServer(radio, nil)
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	defer cs.Stop()

	connect := verashield.NewRequest()
	connect.ConnectRequest = &verashield.ConnectRequest{Device: verashield.DeviceHandle{ID: "dev-1"}}
	if response := dispatchRequest(t, cs, connect); response.Err() != nil {
		t.Fatal(response.Err())
	}

	spray := verashield.NewRequest()
	spray.SprayRequest = &verashield.SprayRequest{Intensity: verashield.IntensityMedium}
	if response := dispatchRequest(t, cs, spray); response.SprayResponse == nil {
		t.Fatal("expected a spray response")
	}
	if sprays := radio.Sprays(); len(sprays) != 1 || sprays[0] != verashield.IntensityMedium {
		t.Fatal("spray did not reach the device:", sprays)
	}

	battery := verashield.NewRequest()
	battery.BatteryRequest = &verashield.BatteryRequest{}
	batteryResponse := dispatchRequest(t, cs, battery)
	if batteryResponse.BatteryResponse == nil || batteryResponse.BatteryResponse.Percent != 88 {
		t.Fatal("expected 88 percent")
	}

	stats := verashield.NewRequest()
	stats.StatisticsRequest = &verashield.StatisticsRequest{All: true}
	statsResponse := dispatchRequest(t, cs, stats)
	if statsResponse.StatisticsResponse == nil || len(statsResponse.StatisticsResponse.Entries) != 5 {
		t.Fatal("expected the full 5-record history")
	}

	syncTime := verashield.NewRequest()
	at := time.Date(2026, time.August, 26, 7, 30, 0, 0, time.Local).Unix()
	syncTime.SyncTimeRequest = &verashield.SyncTimeRequest{UnixSeconds: &at}
	syncResponse := dispatchRequest(t, cs, syncTime)
	if syncResponse.SyncTimeResponse == nil || !strings.HasPrefix(syncResponse.SyncTimeResponse.Time, "2026-08-26") {
		t.Fatal("unexpected sync answer:", syncResponse.SyncTimeResponse)
	}

	entries := []verashield.ScheduleEntry{
		{Time: verashield.MakeTimeVector(0, 30, 7, 26, 3, 7, 126), Intensity: verashield.IntensityMedium},
	}
	scheduleWrite := verashield.NewRequest()
	scheduleWrite.ScheduleWriteRequest = &verashield.ScheduleWriteRequest{Entries: entries}
	writeResponse := dispatchRequest(t, cs, scheduleWrite)
	if writeResponse.ScheduleWriteResponse == nil || writeResponse.ScheduleWriteResponse.Count != 1 {
		t.Fatal("expected one written entry")
	}

	scheduleRead := verashield.NewRequest()
	scheduleRead.ScheduleReadRequest = &verashield.ScheduleReadRequest{}
	readResponse := dispatchRequest(t, cs, scheduleRead)
	if readResponse.ScheduleReadResponse == nil || len(readResponse.ScheduleReadResponse.Entries) != 1 {
		t.Fatal("expected the written schedule back")
	}
	if readResponse.ScheduleReadResponse.Entries[0] != entries[0] {
		t.Fatal("schedule mismatch:", readResponse.ScheduleReadResponse.Entries[0])
	}

	info := verashield.NewRequest()
	info.DeviceInfoRequest = &verashield.DeviceInfoRequest{Fallback: "unknown"}
	infoResponse := dispatchRequest(t, cs, info)
	if infoResponse.DeviceInfoResponse == nil || infoResponse.DeviceInfoResponse.Info.ModelNumber != "VS-100" {
		t.Fatal("expected the dispenser model")
	}
}

func TestControlServerRemembersConnectedDevice(t *testing.T) {
	registry := verashield.DeviceRegistry{Dir: t.TempDir()}
	cs := newTestControlServer(verashield.NewMockRadio(), &registry)
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	defer cs.Stop()

	connect := verashield.NewRequest()
	connect.ConnectRequest = &verashield.ConnectRequest{Device: verashield.DeviceHandle{ID: "dev-1", DisplayName: "VeraShield Mini"}}
	if response := dispatchRequest(t, cs, connect); response.Err() != nil {
		t.Fatal(response.Err())
	}

	verashield.TrueBefore(t, func() bool {
		remembered, err := registry.LoadLastDevice()
		return err == nil && remembered.Device.ID == "dev-1" && remembered.FirmwareRevision == "2.1.0"
	}, time.Now().Add(2*time.Second))
}

func TestControlServerRejectsNonPutDevice(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)
	getRequest, err := http.NewRequest("GET", "/device", nil)
	if err != nil {
		t.Fatal(err)
	}
	recorder := httptest.NewRecorder()
	cs.handleDevice(recorder, getRequest)
	if recorder.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Fatal("expected 405")
	}
}

func TestControlServerRejectsMalformedEnvelope(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)
	badRequest, err := http.NewRequest("PUT", "/device", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	recorder := httptest.NewRecorder()
	cs.handleDevice(recorder, badRequest)
	if recorder.Result().StatusCode != http.StatusBadRequest {
		t.Fatal("expected 400")
	}
}

func TestControlServerRejectsEmptyEnvelope(t *testing.T) {
	cs := newTestControlServer(verashield.NewMockRadio(), nil)
	//	valid JSON that requests no operation
	recorder := httptest.NewRecorder()
	cs.handleDevice(recorder, deviceRequest(t, verashield.NewRequest()))
	if recorder.Result().StatusCode != http.StatusBadRequest {
		t.Fatal("expected 400")
	}
}

func TestControlServerEventsStream(t *testing.T) {
	radio := verashield.NewMockRadio()
	cs := newTestControlServer(radio, nil)
	if err := cs.Start(); err != nil {
		t.Fatal(err)
	}
	defer cs.Stop()

	server := httptest.NewServer(cs.mux())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var snapshot verashield.ConnectionEvent
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.Connected || snapshot.State != verashield.StateDisconnected {
		t.Fatal("expected a disconnected snapshot:", snapshot)
	}

	//	the watcher attaches right after the snapshot write
	verashield.TrueBefore(t, func() bool { return cs.eventHub.WatcherCount() == 1 }, time.Now().Add(time.Second))

	if err := cs.DeviceClient().Connect(verashield.DeviceHandle{ID: "dev-1", DisplayName: "VeraShield Mini"}); err != nil {
		t.Fatal(err)
	}
	var connectedEvent verashield.ConnectionEvent
	if err := conn.ReadJSON(&connectedEvent); err != nil {
		t.Fatal(err)
	}
	if !connectedEvent.Connected || connectedEvent.Device == nil || connectedEvent.Device.ID != "dev-1" {
		t.Fatal("expected a connected event for dev-1:", connectedEvent)
	}

	radio.SimulateDisconnect()
	var droppedEvent verashield.ConnectionEvent
	if err := conn.ReadJSON(&droppedEvent); err != nil {
		t.Fatal(err)
	}
	if droppedEvent.Connected {
		t.Fatal("expected a disconnected event")
	}
}
