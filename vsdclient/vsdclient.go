package vsdclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/blang/semver"
	"github.com/gorilla/websocket"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

var ErrOldVsdRunning = fmt.Errorf(verashield.Red("An old version of vsd is still running. Please run " + verashield.Cyan("vs restart") + verashield.Red(" and try again.")))

func IsLatestVsdRunning() (isRunning bool, err error) {
	version, err := RequestVsdVersion()
	if err != nil {
		return
	}
	isRunning = version.Compare(verashield.CURRENT_VERSION) == 0
	return
}

func RequestVsdVersionOver(conn net.Conn) (version semver.Version, err error) {
	httpRequest, err := http.NewRequest("GET", "/version", nil)
	if err != nil {
		return
	}
	err = httpRequest.Write(conn)
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}

	responseReader := bufio.NewReader(conn)
	httpResponse, err := http.ReadResponse(responseReader, httpRequest)
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer httpResponse.Body.Close()
	if httpResponse.StatusCode != http.StatusOK {
		err = verashield.ErrConnectingToDaemon
		return
	}

	versionBytes, err := ioutil.ReadAll(httpResponse.Body)
	if err != nil {
		return
	}
	version, err = semver.Make(string(versionBytes))
	return
}

func RequestVsdVersion() (version semver.Version, err error) {
	daemonConn, err := verashield.DaemonDialWithTimeout()
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer daemonConn.Close()
	version, err = RequestVsdVersionOver(daemonConn)
	return
}

func RequestStatusOver(conn net.Conn) (status verashield.StatusResponse, err error) {
	httpRequest, err := http.NewRequest("GET", "/status", nil)
	if err != nil {
		return
	}
	err = httpRequest.Write(conn)
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}

	responseReader := bufio.NewReader(conn)
	httpResponse, err := http.ReadResponse(responseReader, httpRequest)
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer httpResponse.Body.Close()
	if httpResponse.StatusCode != http.StatusOK {
		err = verashield.ErrConnectingToDaemon
		return
	}
	err = json.NewDecoder(httpResponse.Body).Decode(&status)
	return
}

func RequestStatus() (status verashield.StatusResponse, err error) {
	daemonConn, err := verashield.DaemonDialWithTimeout()
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer daemonConn.Close()
	status, err = RequestStatusOver(daemonConn)
	return
}

//	Sends one envelope and decodes the daemon's answer. A version mismatch
//	fails before dialing the device endpoint so stale daemons get restarted
//	instead of half-working.
func MakeRequest(request verashield.Request) (response verashield.Response, err error) {
	latestRunning, err := IsLatestVsdRunning()
	if err != nil {
		return
	}
	if !latestRunning {
		err = ErrOldVsdRunning
		return
	}
	daemonConn, err := verashield.DaemonDialWithTimeout()
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer daemonConn.Close()
	response, err = makeRequestWithJsonResponse(daemonConn, request)
	return
}

func makeRequestWithJsonResponse(conn net.Conn, request verashield.Request) (response verashield.Response, err error) {
	httpRequest, err := request.HTTPRequest()
	if err != nil {
		return
	}
	defer httpRequest.Body.Close()
	err = httpRequest.Write(conn)
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}

	responseReader := bufio.NewReader(conn)
	httpResponse, err := http.ReadResponse(responseReader, httpRequest)
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer httpResponse.Body.Close()
	if httpResponse.StatusCode != http.StatusOK {
		err = fmt.Errorf("Error %d", httpResponse.StatusCode)
		return
	}

	err = json.NewDecoder(httpResponse.Body).Decode(&response)
	return
}

func RequestScanOver(conn net.Conn) (devices []verashield.DeviceHandle, err error) {
	request := verashield.NewRequest()
	request.ScanRequest = &verashield.ScanRequest{}
	response, err := makeRequestWithJsonResponse(conn, request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.ScanResponse == nil {
		err = fmt.Errorf("Response missing ScanResponse")
		return
	}
	devices = response.ScanResponse.Devices
	return
}

func RequestScan() (devices []verashield.DeviceHandle, err error) {
	request := verashield.NewRequest()
	request.ScanRequest = &verashield.ScanRequest{}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.ScanResponse == nil {
		err = fmt.Errorf("Response missing ScanResponse")
		return
	}
	devices = response.ScanResponse.Devices
	return
}

func RequestConnectOver(conn net.Conn, device verashield.DeviceHandle) (connected verashield.ConnectResponse, err error) {
	request := verashield.NewRequest()
	request.ConnectRequest = &verashield.ConnectRequest{Device: device}
	response, err := makeRequestWithJsonResponse(conn, request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.ConnectResponse == nil {
		err = fmt.Errorf("Response missing ConnectResponse")
		return
	}
	connected = *response.ConnectResponse
	return
}

func RequestConnect(device verashield.DeviceHandle) (connected verashield.ConnectResponse, err error) {
	request := verashield.NewRequest()
	request.ConnectRequest = &verashield.ConnectRequest{Device: device}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.ConnectResponse == nil {
		err = fmt.Errorf("Response missing ConnectResponse")
		return
	}
	connected = *response.ConnectResponse
	return
}

func RequestDisconnect() (err error) {
	request := verashield.NewRequest()
	request.DisconnectRequest = &verashield.DisconnectRequest{}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	err = response.Err()
	return
}

//	unixSeconds nil means sync the dispenser to the daemon's clock.
func RequestSyncTime(unixSeconds *int64) (deviceTime string, err error) {
	request := verashield.NewRequest()
	request.SyncTimeRequest = &verashield.SyncTimeRequest{UnixSeconds: unixSeconds}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.SyncTimeResponse == nil {
		err = fmt.Errorf("Response missing SyncTimeResponse")
		return
	}
	deviceTime = response.SyncTimeResponse.Time
	return
}

func RequestSchedule() (entries []verashield.ScheduleEntry, err error) {
	request := verashield.NewRequest()
	request.ScheduleReadRequest = &verashield.ScheduleReadRequest{}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.ScheduleReadResponse == nil {
		err = fmt.Errorf("Response missing ScheduleReadResponse")
		return
	}
	entries = response.ScheduleReadResponse.Entries
	return
}

func RequestScheduleWrite(entries []verashield.ScheduleEntry) (count int, err error) {
	request := verashield.NewRequest()
	request.ScheduleWriteRequest = &verashield.ScheduleWriteRequest{Entries: entries}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.ScheduleWriteResponse == nil {
		err = fmt.Errorf("Response missing ScheduleWriteResponse")
		return
	}
	count = response.ScheduleWriteResponse.Count
	return
}

func RequestStatisticsPage(start, window int) (stats verashield.StatisticsResponse, err error) {
	request := verashield.NewRequest()
	request.StatisticsRequest = &verashield.StatisticsRequest{Start: start, Window: window}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.StatisticsResponse == nil {
		err = fmt.Errorf("Response missing StatisticsResponse")
		return
	}
	stats = *response.StatisticsResponse
	return
}

func RequestAllStatistics() (stats verashield.StatisticsResponse, err error) {
	request := verashield.NewRequest()
	request.StatisticsRequest = &verashield.StatisticsRequest{All: true}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.StatisticsResponse == nil {
		err = fmt.Errorf("Response missing StatisticsResponse")
		return
	}
	stats = *response.StatisticsResponse
	return
}

func RequestSpray(intensity verashield.Intensity) (err error) {
	request := verashield.NewRequest()
	request.SprayRequest = &verashield.SprayRequest{Intensity: intensity}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	err = response.Err()
	return
}

func RequestBatteryOver(conn net.Conn) (percent int, err error) {
	request := verashield.NewRequest()
	request.BatteryRequest = &verashield.BatteryRequest{}
	response, err := makeRequestWithJsonResponse(conn, request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.BatteryResponse == nil {
		err = fmt.Errorf("Response missing BatteryResponse")
		return
	}
	percent = response.BatteryResponse.Percent
	return
}

func RequestBattery() (percent int, err error) {
	daemonConn, err := verashield.DaemonDialWithTimeout()
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer daemonConn.Close()
	percent, err = RequestBatteryOver(daemonConn)
	return
}

func RequestDeviceInfo(fallback string) (info verashield.DeviceInfo, err error) {
	request := verashield.NewRequest()
	request.DeviceInfoRequest = &verashield.DeviceInfoRequest{Fallback: fallback}
	response, err := MakeRequest(request)
	if err != nil {
		return
	}
	if err = response.Err(); err != nil {
		return
	}
	if response.DeviceInfoResponse == nil {
		err = fmt.Errorf("Response missing DeviceInfoResponse")
		return
	}
	info = response.DeviceInfoResponse.Info
	return
}

//	Streams connection events until the daemon goes away or handleEvent
//	returns false. The first event is always the snapshot of the state the
//	watcher attached into.
func WatchEvents(handleEvent func(verashield.ConnectionEvent) (keepWatching bool)) (err error) {
	dialer := websocket.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			return verashield.DaemonDial()
		},
		HandshakeTimeout: 5 * time.Second,
	}
	//	the host is a placeholder, NetDial ignores it
	wsConn, _, err := dialer.Dial("ws://vsd/events", nil)
	if err != nil {
		err = verashield.ErrConnectingToDaemon
		return
	}
	defer wsConn.Close()

	for {
		var event verashield.ConnectionEvent
		if err = wsConn.ReadJSON(&event); err != nil {
			return
		}
		if !handleEvent(event) {
			return
		}
	}
}
