// +build !windows

package verashield

import (
	"net"
	"os"
	"os/exec"
	"time"
)

const DAEMON_SOCKET_FILENAME = "vsd.sock"

func DaemonSocketPath() (socketPath string, err error) {
	return VeraShieldDirFile(DAEMON_SOCKET_FILENAME)
}

func Listen(socketPath string) (listener net.Listener, err error) {
	//	delete UNIX socket in case daemon was not killed cleanly
	_ = os.Remove(socketPath)
	listener, err = net.Listen("unix", socketPath)
	return
}

func DaemonListen() (listener net.Listener, err error) {
	socketPath, err := DaemonSocketPath()
	if err != nil {
		return
	}
	return Listen(socketPath)
}

func DaemonDial() (conn net.Conn, err error) {
	socketPath, err := DaemonSocketPath()
	if err != nil {
		return
	}

	if !IsVsdRunning() {
		os.Stderr.WriteString(Yellow("VeraShield ▶ Restarting vsd...\r\n"))
		exec.Command("nohup", "vsd").Start()
		<-time.After(250 * time.Millisecond)
	}
	conn, err = net.Dial("unix", socketPath)
	if err != nil {
		//	restart then try again
		os.Stderr.WriteString(Yellow("VeraShield ▶ Restarting vsd...\r\n"))
		KillVsd()
		exec.Command("nohup", "vsd").Start()
		<-time.After(250 * time.Millisecond)
		conn, err = net.Dial("unix", socketPath)
	}
	if err != nil {
		err = ErrConnectingToDaemon
	}
	return
}

func IsVsdRunning() bool {
	return exec.Command("pgrep", "vsd").Run() == nil
}

func KillVsd() {
	exec.Command("killall", "-u", os.Getenv("USER"), "vsd").Run()
	<-time.After(250 * time.Millisecond)
}
