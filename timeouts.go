package verashield

import (
	"time"
)

type Timeouts struct {
	//	hard ceiling on one radio connect attempt
	Connect time.Duration
	//	discovery window for one scan
	ScanWindow time.Duration
	//	delay between radio connect and service verification
	Settle time.Duration
	//	pause after every characteristic operation, a scheduling throttle
	//	for the radio stack rather than error recovery
	OperationGap time.Duration
	//	backoff unit for transient retries, multiplied by the attempt number
	RetryBackoffUnit time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:          15 * time.Second,
		ScanWindow:       10 * time.Second,
		Settle:           500 * time.Millisecond,
		OperationGap:     30 * time.Millisecond,
		RetryBackoffUnit: 40 * time.Millisecond,
	}
}
