package vsd

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/op/go-logging"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

//	Slow watchers are dropped rather than allowed to stall a broadcast.
const eventWriteTimeout = time.Second

//	Fans connection events out to every attached /events websocket.
type EventHub struct {
	sync.Mutex
	watchers map[*websocket.Conn]bool
	log      *logging.Logger
}

func NewEventHub(log *logging.Logger) *EventHub {
	return &EventHub{
		watchers: map[*websocket.Conn]bool{},
		log:      log,
	}
}

func (hub *EventHub) Attach(conn *websocket.Conn) {
	hub.Lock()
	defer hub.Unlock()
	hub.watchers[conn] = true
}

func (hub *EventHub) Detach(conn *websocket.Conn) {
	hub.Lock()
	defer hub.Unlock()
	if _, attached := hub.watchers[conn]; attached {
		delete(hub.watchers, conn)
		conn.Close()
	}
}

//	Writes happen under the hub lock: a connection only ever has one writer,
//	and concurrent state changes cannot interleave frames.
func (hub *EventHub) Broadcast(event verashield.ConnectionEvent) {
	hub.Lock()
	defer hub.Unlock()
	for conn := range hub.watchers {
		conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := conn.WriteJSON(event); err != nil {
			hub.log.Notice("dropping events watcher:", err.Error())
			delete(hub.watchers, conn)
			conn.Close()
		}
	}
}

func (hub *EventHub) CloseAll() {
	hub.Lock()
	defer hub.Unlock()
	for conn := range hub.watchers {
		conn.Close()
		delete(hub.watchers, conn)
	}
}

func (hub *EventHub) WatcherCount() int {
	hub.Lock()
	defer hub.Unlock()
	return len(hub.watchers)
}
