package verashield

import (
	"fmt"
	"strings"
)

//	Spray strength. Two bits on the wire, both in schedule entries and in
//	the remote trigger command.
type Intensity byte

const (
	IntensityEco Intensity = iota
	IntensityLow
	IntensityMedium
	IntensityHigh

	intensityMask = 0x03
)

func (i Intensity) String() string {
	switch i & intensityMask {
	case IntensityEco:
		return "eco"
	case IntensityLow:
		return "low"
	case IntensityMedium:
		return "medium"
	case IntensityHigh:
		return "high"
	}
	return "eco"
}

func ParseIntensity(s string) (level Intensity, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eco", "0":
		level = IntensityEco
	case "low", "1":
		level = IntensityLow
	case "medium", "med", "2":
		level = IntensityMedium
	case "high", "3":
		level = IntensityHigh
	default:
		err = fmt.Errorf("unknown intensity %q, expected eco, low, medium, or high", s)
	}
	return
}

//	One byte, low two bits carry the level. Higher bits of the input are
//	discarded rather than rejected.
func EncodeTriggerCommand(level Intensity) []byte {
	return []byte{byte(level) & intensityMask}
}
