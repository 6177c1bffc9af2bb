package vsd

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/op/go-logging"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

//	HTTP surface served on the daemon socket. Every device operation rides
//	the PUT /device envelope; errors travel inside the response envelope so
//	clients can rehydrate the exact error value.
type ControlServer struct {
	deviceClient DeviceClientI
	eventHub     *EventHub
	registry     *verashield.DeviceRegistry
	log          *logging.Logger
}

var upgrader = websocket.Upgrader{
	//	the daemon socket is a local unix socket or pipe, origin is meaningless
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewControlServer(deviceClient DeviceClientI, registry *verashield.DeviceRegistry, log *logging.Logger) (cs *ControlServer) {
	cs = &ControlServer{
		deviceClient: deviceClient,
		eventHub:     NewEventHub(log),
		registry:     registry,
		log:          log,
	}
	deviceClient.Subscribe(func(connected bool) {
		cs.eventHub.Broadcast(cs.connectionEvent(connected))
	})
	return
}

func (cs *ControlServer) HandleControlHTTP(listener net.Listener) (err error) {
	err = http.Serve(listener, cs.mux())
	return
}

func (cs *ControlServer) mux() *http.ServeMux {
	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/ping", cs.handlePing)
	httpMux.HandleFunc("/version", cs.handleVersion)
	httpMux.HandleFunc("/status", cs.handleStatus)
	httpMux.HandleFunc("/device", cs.handleDevice)
	httpMux.HandleFunc("/events", cs.handleEvents)
	return httpMux
}

func (cs *ControlServer) Start() (err error) {
	return cs.deviceClient.Start()
}

func (cs *ControlServer) Stop() (err error) {
	err = cs.deviceClient.Stop()
	cs.eventHub.CloseAll()
	return
}

func (cs *ControlServer) DeviceClient() DeviceClientI {
	return cs.deviceClient
}

func (cs *ControlServer) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (cs *ControlServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(verashield.CURRENT_VERSION.String()))
}

func (cs *ControlServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := verashield.StatusResponse{
		State:   cs.deviceClient.State(),
		Version: verashield.CURRENT_VERSION,
	}
	if device, connected := cs.deviceClient.ConnectedDevice(); connected {
		status.Device = &device
		mtu := cs.deviceClient.MTU()
		status.MTU = &mtu
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		cs.log.Error(err)
	}
}

//	route request to the dispenser session
func (cs *ControlServer) handleDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var deviceRequest verashield.Request
	err := json.NewDecoder(r.Body).Decode(&deviceRequest)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if deviceRequest.IsNoOp() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	response := cs.dispatch(deviceRequest)
	if response.Error != nil {
		cs.log.Error("device request error:", *response.Error)
	}
	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		cs.log.Error(err)
		return
	}
}

func (cs *ControlServer) dispatch(deviceRequest verashield.Request) (response verashield.Response) {
	response = verashield.NewResponse(deviceRequest.RequestID)

	if deviceRequest.ScanRequest != nil {
		devices, err := cs.deviceClient.Scan()
		if err != nil {
			response.SetError(err)
			return
		}
		response.ScanResponse = &verashield.ScanResponse{Devices: devices}
		return
	}

	if deviceRequest.ConnectRequest != nil {
		err := cs.deviceClient.Connect(deviceRequest.ConnectRequest.Device)
		if err != nil {
			response.SetError(err)
			return
		}
		device, _ := cs.deviceClient.ConnectedDevice()
		response.ConnectResponse = &verashield.ConnectResponse{
			Device: device,
			MTU:    cs.deviceClient.MTU(),
		}
		go verashield.RecoverToLog(cs.afterConnect, cs.log)
		return
	}

	if deviceRequest.DisconnectRequest != nil {
		if err := cs.deviceClient.Disconnect(); err != nil {
			response.SetError(err)
			return
		}
		response.DisconnectResponse = &verashield.DisconnectResponse{}
		return
	}

	if deviceRequest.SyncTimeRequest != nil {
		at := time.Now()
		if deviceRequest.SyncTimeRequest.UnixSeconds != nil {
			at = time.Unix(*deviceRequest.SyncTimeRequest.UnixSeconds, 0)
		}
		vector, err := cs.deviceClient.SyncTime(at)
		if err != nil {
			response.SetError(err)
			return
		}
		response.SyncTimeResponse = &verashield.SyncTimeResponse{Time: vector.String()}
		return
	}

	if deviceRequest.ScheduleReadRequest != nil {
		entries, err := cs.deviceClient.ReadSchedule()
		if err != nil {
			response.SetError(err)
			return
		}
		response.ScheduleReadResponse = &verashield.ScheduleReadResponse{Entries: entries}
		return
	}

	if deviceRequest.ScheduleWriteRequest != nil {
		entries := deviceRequest.ScheduleWriteRequest.Entries
		if err := cs.deviceClient.WriteSchedule(entries); err != nil {
			response.SetError(err)
			return
		}
		response.ScheduleWriteResponse = &verashield.ScheduleWriteResponse{Count: len(entries)}
		return
	}

	if deviceRequest.StatisticsRequest != nil {
		if deviceRequest.StatisticsRequest.All {
			records, err := cs.deviceClient.ReadAllStatistics()
			if err != nil {
				response.SetError(err)
				return
			}
			response.StatisticsResponse = &verashield.StatisticsResponse{
				Total:   len(records),
				Entries: records,
			}
			return
		}
		page, err := cs.deviceClient.ReadStatisticsPage(
			deviceRequest.StatisticsRequest.Start, deviceRequest.StatisticsRequest.Window)
		if err != nil {
			response.SetError(err)
			return
		}
		response.StatisticsResponse = &verashield.StatisticsResponse{
			Total:   page.Total,
			Entries: page.Entries,
		}
		return
	}

	if deviceRequest.SprayRequest != nil {
		if err := cs.deviceClient.Spray(deviceRequest.SprayRequest.Intensity); err != nil {
			response.SetError(err)
			return
		}
		response.SprayResponse = &verashield.SprayResponse{}
		return
	}

	if deviceRequest.BatteryRequest != nil {
		percent, err := cs.deviceClient.ReadBattery()
		if err != nil {
			response.SetError(err)
			return
		}
		response.BatteryResponse = &verashield.BatteryResponse{Percent: percent}
		return
	}

	if deviceRequest.DeviceInfoRequest != nil {
		info, err := cs.deviceClient.ReadDeviceInfo(deviceRequest.DeviceInfoRequest.Fallback)
		if err != nil {
			response.SetError(err)
			return
		}
		response.DeviceInfoResponse = &verashield.DeviceInfoResponse{Info: info}
		return
	}

	return
}

//	Post-connect bookkeeping off the request path: remember the device for
//	next time and warn when the firmware predates the known-good minimum.
func (cs *ControlServer) afterConnect() {
	device, connected := cs.deviceClient.ConnectedDevice()
	if !connected {
		return
	}
	info, err := cs.deviceClient.ReadDeviceInfo("")
	if err != nil {
		cs.log.Notice("device info unavailable:", err.Error())
		return
	}
	if info.FirmwareOutdated() {
		cs.log.Warning("dispenser firmware", info.FirmwareRevision,
			"is older than", verashield.MinimumFirmwareVersion.String()+", update recommended")
	}
	if cs.registry != nil {
		if saveErr := cs.registry.SaveLastDevice(device, info.FirmwareRevision); saveErr != nil {
			cs.log.Error("error remembering device:", saveErr.Error())
		}
	}
}

func (cs *ControlServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cs.log.Error("events upgrade failed:", err.Error())
		return
	}
	//	snapshot first so a watcher knows the state it attached into
	conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	if err := conn.WriteJSON(cs.connectionEvent(cs.deviceClient.IsConnected())); err != nil {
		conn.Close()
		return
	}
	cs.eventHub.Attach(conn)

	//	watchers only listen; the read pump just notices the hangup
	go verashield.RecoverToLog(func() {
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				cs.eventHub.Detach(conn)
				return
			}
		}
	}, cs.log)
}

func (cs *ControlServer) connectionEvent(connected bool) (event verashield.ConnectionEvent) {
	event = verashield.ConnectionEvent{
		Connected:   connected,
		State:       cs.deviceClient.State(),
		UnixSeconds: time.Now().Unix(),
	}
	if device, ok := cs.deviceClient.ConnectedDevice(); ok {
		event.Device = &device
	}
	return
}
