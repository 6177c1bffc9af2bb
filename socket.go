package verashield

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"
)

func pingDaemon() (err error) {
	conn, err := DaemonDial()
	if err != nil {
		return
	}
	defer conn.Close()

	pingRequest, err := http.NewRequest("GET", "/ping", nil)
	if err != nil {
		return
	}
	err = pingRequest.Write(conn)
	if err != nil {
		return
	}
	responseReader := bufio.NewReader(conn)
	httpResponse, err := http.ReadResponse(responseReader, pingRequest)
	if err != nil {
		err = fmt.Errorf("Daemon read error: %s", err.Error())
		return
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode != http.StatusOK {
		err = fmt.Errorf("ping error: non-200 status code from daemon")
		return
	}
	return
}

func DaemonDialWithTimeout() (conn net.Conn, err error) {
	done := make(chan error, 1)
	go func() {
		done <- pingDaemon()
	}()

	select {
	case <-time.After(time.Second):
		err = fmt.Errorf("ping timed out")
		return
	case err = <-done:
	}
	if err != nil {
		return
	}

	conn, err = DaemonDial()
	return
}
