package verashield

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/blang/semver"
	"github.com/satori/go.uuid"
)

//	Control-socket envelope. Exactly one sub-request pointer is set; the
//	daemon dispatches on whichever is non-nil.
type Request struct {
	RequestID   string         `json:"request_id"`
	UnixSeconds int64          `json:"unix_seconds"`
	Version     semver.Version `json:"v"`

	ScanRequest          *ScanRequest          `json:"scan_request"`
	ConnectRequest       *ConnectRequest       `json:"connect_request"`
	DisconnectRequest    *DisconnectRequest    `json:"disconnect_request"`
	SyncTimeRequest      *SyncTimeRequest      `json:"sync_time_request"`
	ScheduleReadRequest  *ScheduleReadRequest  `json:"schedule_read_request"`
	ScheduleWriteRequest *ScheduleWriteRequest `json:"schedule_write_request"`
	StatisticsRequest    *StatisticsRequest    `json:"statistics_request"`
	SprayRequest         *SprayRequest         `json:"spray_request"`
	BatteryRequest       *BatteryRequest       `json:"battery_request"`
	DeviceInfoRequest    *DeviceInfoRequest    `json:"device_info_request"`
}

func NewRequest() (request Request) {
	request = Request{
		RequestID:   uuid.NewV4().String(),
		UnixSeconds: time.Now().Unix(),
		Version:     CURRENT_VERSION,
	}
	return
}

func (request Request) HTTPRequest() (httpRequest *http.Request, err error) {
	requestJson, err := json.Marshal(request)
	if err != nil {
		return
	}
	httpRequest, err = http.NewRequest("PUT", "/device", bytes.NewReader(requestJson))
	if err != nil {
		return
	}
	return
}

func (request Request) IsNoOp() bool {
	return request.ScanRequest == nil &&
		request.ConnectRequest == nil &&
		request.DisconnectRequest == nil &&
		request.SyncTimeRequest == nil &&
		request.ScheduleReadRequest == nil &&
		request.ScheduleWriteRequest == nil &&
		request.StatisticsRequest == nil &&
		request.SprayRequest == nil &&
		request.BatteryRequest == nil &&
		request.DeviceInfoRequest == nil
}

type Response struct {
	RequestID string         `json:"request_id"`
	Version   semver.Version `json:"v"`

	ScanResponse          *ScanResponse          `json:"scan_response"`
	ConnectResponse       *ConnectResponse       `json:"connect_response"`
	DisconnectResponse    *DisconnectResponse    `json:"disconnect_response"`
	SyncTimeResponse      *SyncTimeResponse      `json:"sync_time_response"`
	ScheduleReadResponse  *ScheduleReadResponse  `json:"schedule_read_response"`
	ScheduleWriteResponse *ScheduleWriteResponse `json:"schedule_write_response"`
	StatisticsResponse    *StatisticsResponse    `json:"statistics_response"`
	SprayResponse         *SprayResponse         `json:"spray_response"`
	BatteryResponse       *BatteryResponse       `json:"battery_response"`
	DeviceInfoResponse    *DeviceInfoResponse    `json:"device_info_response"`

	Error     *string `json:"error"`
	ErrorKind string  `json:"error_kind"`
}

func NewResponse(requestID string) Response {
	return Response{
		RequestID: requestID,
		Version:   CURRENT_VERSION,
	}
}

func (response *Response) SetError(err error) {
	if err == nil {
		return
	}
	message := err.Error()
	response.Error = &message
	response.ErrorKind = ErrorKindOf(err)
}

//	Rehydrates the daemon-side error on the client side.
func (response Response) Err() error {
	if response.Error == nil {
		return nil
	}
	return ErrorFromKind(response.ErrorKind, *response.Error)
}

type ScanRequest struct{}

type ScanResponse struct {
	Devices []DeviceHandle `json:"devices"`
}

type ConnectRequest struct {
	Device DeviceHandle `json:"device"`
}

type ConnectResponse struct {
	Device DeviceHandle `json:"device"`
	MTU    MTUState     `json:"mtu"`
}

type DisconnectRequest struct{}

type DisconnectResponse struct{}

type SyncTimeRequest struct {
	//	nil means sync to the daemon's clock
	UnixSeconds *int64 `json:"unix_seconds"`
}

type SyncTimeResponse struct {
	Time string `json:"time"`
}

type ScheduleReadRequest struct{}

type ScheduleReadResponse struct {
	Entries []ScheduleEntry `json:"entries"`
}

type ScheduleWriteRequest struct {
	Entries []ScheduleEntry `json:"entries"`
}

type ScheduleWriteResponse struct {
	Count int `json:"count"`
}

type StatisticsRequest struct {
	Start  int `json:"start"`
	Window int `json:"window"`
	//	page through the whole history server-side
	All bool `json:"all"`
}

type StatisticsResponse struct {
	Total   int           `json:"total"`
	Entries []UsageRecord `json:"entries"`
}

type SprayRequest struct {
	Intensity Intensity `json:"intensity"`
}

type SprayResponse struct{}

type BatteryRequest struct{}

type BatteryResponse struct {
	Percent int `json:"percent"`
}

type DeviceInfoRequest struct {
	Fallback string `json:"fallback"`
}

type DeviceInfoResponse struct {
	Info DeviceInfo `json:"info"`
}

//	Answer to GET /status.
type StatusResponse struct {
	State   ConnectionState `json:"state"`
	Device  *DeviceHandle   `json:"device"`
	MTU     *MTUState       `json:"mtu"`
	Version semver.Version  `json:"version"`
}

//	One websocket frame on /events, sent on every connection-state change
//	and once as a snapshot when a watcher attaches.
type ConnectionEvent struct {
	Connected   bool            `json:"connected"`
	State       ConnectionState `json:"state"`
	Device      *DeviceHandle   `json:"device"`
	UnixSeconds int64           `json:"unix_seconds"`
}
