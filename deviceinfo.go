package verashield

import (
	"strings"
	"unicode/utf8"

	"github.com/blang/semver"
)

//	Static metadata from the standard Device Information service. Each field
//	is read and substituted independently: a missing or garbled field must
//	never fail the connection, the app just shows the fallback.
type DeviceInfo struct {
	ModelNumber      string `json:"model_number"`
	SerialNumber     string `json:"serial_number"`
	FirmwareRevision string `json:"firmware_revision"`
	HardwareRevision string `json:"hardware_revision"`
	SoftwareRevision string `json:"software_revision"`
	ManufacturerName string `json:"manufacturer_name"`
}

//	Decodes a characteristic value as text, trimming the NUL and space
//	padding some firmware builds append. Invalid UTF-8 or an empty result
//	resolves to the caller's fallback.
func DecodeTextField(raw []byte, fallback string) string {
	text := strings.TrimRight(string(raw), "\x00 \t")
	if text == "" || !utf8.ValidString(text) {
		return fallback
	}
	return text
}

//	Single byte, clamped to a percentage.
func DecodeBatteryLevel(raw []byte) (percent int) {
	if len(raw) < 1 {
		return 0
	}
	percent = int(raw[0])
	if percent > 100 {
		percent = 100
	}
	return
}

//	Oldest firmware whose statistics paging is trusted. Older dispensers
//	work but the daemon logs an advisory after connecting.
var MinimumFirmwareVersion = semver.MustParse("1.4.0")

//	Parses the firmware revision, tolerating a leading "v" and builds that
//	report only major.minor.
func (info DeviceInfo) FirmwareVersion() (version semver.Version, err error) {
	raw := strings.TrimPrefix(strings.TrimSpace(info.FirmwareRevision), "v")
	version, err = semver.Parse(raw)
	if err == nil {
		return
	}
	version, err = semver.ParseTolerant(raw)
	return
}

func (info DeviceInfo) FirmwareOutdated() bool {
	version, err := info.FirmwareVersion()
	if err != nil {
		return false
	}
	return version.LT(MinimumFirmwareVersion)
}
