package verashield

import (
	"sort"
	"strings"
	"time"
)

//	One-shot discovery: runs a single time-boxed window against the radio,
//	keeps only named advertisements matching the product token, merges
//	duplicates by device id keeping the strongest signal, and ranks the
//	result by signal strength. A new call starts a new window.
func ScanForDispensers(radio RadioI, token string, window time.Duration) (devices []DeviceHandle, err error) {
	if token == "" {
		token = ProductNameToken
	}
	needle := strings.ToLower(token)
	seen, err := radio.Scan(window, func(ad Advertisement) bool {
		if ad.Name == "" {
			return false
		}
		return strings.Contains(strings.ToLower(ad.Name), needle)
	})
	if err != nil {
		return
	}

	strongest := map[DeviceID]Advertisement{}
	order := []DeviceID{}
	for _, ad := range seen {
		existing, ok := strongest[ad.ID]
		if !ok {
			strongest[ad.ID] = ad
			order = append(order, ad.ID)
			continue
		}
		if strongerSignal(ad.RSSI, existing.RSSI) {
			strongest[ad.ID] = ad
		}
	}

	devices = make([]DeviceHandle, 0, len(order))
	for _, id := range order {
		ad := strongest[id]
		devices = append(devices, DeviceHandle{
			ID:          ad.ID,
			DisplayName: ad.Name,
			RSSI:        ad.RSSI,
		})
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return strongerSignal(devices[i].RSSI, devices[j].RSSI)
	})
	return
}

//	RSSI is negative dBm, closer to zero is stronger. 0 means the platform
//	reported no strength and always loses.
func strongerSignal(a, b int16) bool {
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a > b
}
