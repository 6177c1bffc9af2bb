// +build windows

package verashield

import (
	"bytes"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/Microsoft/go-winio"
)

const DAEMON_PIPE_NAME = `\\.\pipe\vsd`

func DaemonSocketPath() (socketPath string, err error) {
	socketPath = DAEMON_PIPE_NAME
	return
}

func Listen(socketPath string) (listener net.Listener, err error) {
	listener, err = winio.ListenPipe(socketPath, nil)
	return
}

func DaemonListen() (listener net.Listener, err error) {
	return Listen(DAEMON_PIPE_NAME)
}

func DaemonDial() (conn net.Conn, err error) {
	if !IsVsdRunning() {
		os.Stderr.WriteString(Yellow("VeraShield ▶ Restarting vsd...\r\n"))
		_ = exec.Command("cmd.exe", "/C", "start", "/b", `vsd.exe`).Start()
		<-time.After(time.Second)
	}
	conn, err = winio.DialPipe(DAEMON_PIPE_NAME, nil)
	if err != nil {
		err = ErrConnectingToDaemon
	}
	return
}

func IsVsdRunning() bool {
	cmd := exec.Command("tasklist", "/FI", `IMAGENAME eq vsd.exe`)
	if ret, err := cmd.CombinedOutput(); err == nil {
		return bytes.Contains(ret, []byte("vsd.exe"))
	}
	return false
}

func KillVsd() {
	_ = exec.Command("taskkill", "/F", "/IM", "vsd.exe").Run()
	<-time.After(time.Second)
}
