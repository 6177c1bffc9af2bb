// +build !linux

package vsd

import (
	"fmt"
	"runtime"

	"github.com/op/go-logging"

	verashield "github.com/Kushal-Chandar/VeraShield-App"
)

//	Only the BlueZ backend exists today. The daemon still builds elsewhere
//	so the client and protocol packages stay testable on any platform.
func NewPlatformRadio(adapter string, log *logging.Logger) (verashield.RadioI, error) {
	return nil, fmt.Errorf("no bluetooth backend on %s", runtime.GOOS)
}
