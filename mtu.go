package verashield

//	BLE defaults and the staged negotiation targets. 517 is the ATT maximum,
//	247 the usual data-length-extension ceiling.
const (
	DefaultMTU        = 23
	PreferredMTU      = 517
	FallbackMTU       = 247
	writePayloadFloor = 20
	readPayloadFloor  = 1
)

//	Payload budgets derived once per connection from the negotiated MTU.
//	Read-only afterward; discarded on disconnect.
type MTUState struct {
	NegotiatedMTU     int `json:"negotiated_mtu"`
	WritePayloadLimit int `json:"write_payload_limit"`
	ReadPayloadLimit  int `json:"read_payload_limit"`
}

func NewMTUState(negotiated int) MTUState {
	if negotiated < DefaultMTU {
		negotiated = DefaultMTU
	}
	write := negotiated - 3
	if write < writePayloadFloor {
		write = writePayloadFloor
	}
	read := negotiated - 1
	if read < readPayloadFloor {
		read = readPayloadFloor
	}
	return MTUState{
		NegotiatedMTU:     negotiated,
		WritePayloadLimit: write,
		ReadPayloadLimit:  read,
	}
}

func DefaultMTUState() MTUState {
	return NewMTUState(DefaultMTU)
}

//	Largest schedule table that fits one atomic write at this MTU.
func (m MTUState) MaxScheduleEntries() int {
	return (m.WritePayloadLimit - 1) / scheduleEntrySize
}

//	Largest statistics window one read can answer at this MTU, before the
//	protocol's own 63-entry cap.
func (m MTUState) MaxStatisticsWindow() int {
	return (m.ReadPayloadLimit - statisticsHeaderSize) / scheduleEntrySize
}
