package verashield

import (
	"fmt"
	"strings"
)

var ErrNotConnected = fmt.Errorf("No dispenser connected. Scan for your VeraShield and connect before retrying.")
var ErrConnectTimeout = fmt.Errorf("Timed out connecting to the dispenser. Make sure it is awake and in range, then try again.")
var ErrServiceNotFound = fmt.Errorf("Connected device does not expose the VeraShield service. Is this the right device?")
var ErrConnectingToDaemon = fmt.Errorf("Could not connect to the VeraShield daemon. Make sure it is running by typing \"vs restart\".")

//	Assembled write exceeds the MTU-derived payload budget. Never truncated or
//	split: the firmware requires the table in one atomic write.
type PayloadTooLargeError struct {
	MaxEntries       int
	AttemptedEntries int
}

func (err *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("PayloadTooLarge: %d entries requested, connection fits %d. Reduce entries or reconnect for a larger MTU.", err.AttemptedEntries, err.MaxEntries)
}

//	Radio-level failure that survived every retry attempt
type TransientIOError struct {
	Op       string
	Attempts int
	Err      error
}

func (err *TransientIOError) Error() string {
	return fmt.Sprintf("TransientIO: %s failed after %d attempts: %s", err.Op, err.Attempts, err.Err.Error())
}

//	Link lost mid-operation. Connection state is always cleared before this
//	propagates.
type HardDisconnectError struct {
	Op  string
	Err error
}

func (err *HardDisconnectError) Error() string {
	return fmt.Sprintf("HardDisconnect: %s: %s", err.Op, err.Err.Error())
}

//	Substrings the platform stacks use for failures that mean the physical
//	link is gone. Everything else counts as transient.
var disconnectMarkers = []string{
	"not connected",
	"disconnected",
	"connection abort",
	"connection canceled",
	"org.bluez.error.notconnected",
	"org.bluez.error.failed: not connected",
	"device removed",
	"link supervision timeout",
}

func IsDisconnectError(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case *HardDisconnectError:
		return true
	}
	if err == ErrNotConnected {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range disconnectMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

//	Machine-readable kinds carried over the control socket so clients can
//	rehydrate the right error value on their side.
const (
	ErrorKindNone            = ""
	ErrorKindNotConnected    = "not_connected"
	ErrorKindConnectTimeout  = "connect_timeout"
	ErrorKindServiceNotFound = "service_not_found"
	ErrorKindPayloadTooLarge = "payload_too_large"
	ErrorKindTransientIO     = "transient_io"
	ErrorKindHardDisconnect  = "hard_disconnect"
	ErrorKindOther           = "other"
)

func ErrorKindOf(err error) string {
	switch err {
	case nil:
		return ErrorKindNone
	case ErrNotConnected:
		return ErrorKindNotConnected
	case ErrConnectTimeout:
		return ErrorKindConnectTimeout
	case ErrServiceNotFound:
		return ErrorKindServiceNotFound
	}
	switch err.(type) {
	case *PayloadTooLargeError:
		return ErrorKindPayloadTooLarge
	case *TransientIOError:
		return ErrorKindTransientIO
	case *HardDisconnectError:
		return ErrorKindHardDisconnect
	}
	return ErrorKindOther
}

func ErrorFromKind(kind string, message string) error {
	switch kind {
	case ErrorKindNone:
		return nil
	case ErrorKindNotConnected:
		return ErrNotConnected
	case ErrorKindConnectTimeout:
		return ErrConnectTimeout
	case ErrorKindServiceNotFound:
		return ErrServiceNotFound
	}
	return fmt.Errorf("%s", message)
}
