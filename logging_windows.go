// +build windows

package verashield

import (
	"github.com/op/go-logging"
)

func GetSyslogBackend(prefix string) logging.Backend {
	return nil
}
