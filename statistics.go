package verashield

//	Usage history is paged: the app writes a [start, window] control pair to
//	the statistics characteristic, then reads back
//	[total, windowEffective] + windowEffective records. windowEffective is
//	the device's actual answer and may be smaller than requested.
const (
	statisticsHeaderSize = 2
	//	firmware never answers more than 63 records regardless of MTU
	StatisticsWindowCap = 63
)

//	One recorded spray event, same 8-byte shape as a schedule record.
type UsageRecord struct {
	Time      TimeVector `json:"time"`
	Intensity Intensity  `json:"intensity"`
}

type StatisticsPage struct {
	//	records the device holds in total, not just in this page
	Total   int           `json:"total"`
	Entries []UsageRecord `json:"entries"`
}

//	Control pair for the two-step read. window 0 means the device decides.
func EncodeStatisticsControl(start, window int) []byte {
	return []byte{clampField(start, 0, 255), clampField(window, 0, StatisticsWindowCap)}
}

//	Sizes a window request so the full answer always lands in a single PDU.
//	A zero request stays zero (device decides) only when the device's own
//	63-record cap already fits this connection's read budget; on small MTUs
//	the device must be told an explicit smaller window.
func ClampStatisticsWindow(requested int, m MTUState) int {
	max := m.MaxStatisticsWindow()
	if max > StatisticsWindowCap {
		max = StatisticsWindowCap
	}
	if max < 1 {
		max = 1
	}
	if requested == 0 {
		if max < StatisticsWindowCap {
			return max
		}
		return 0
	}
	if requested < 1 {
		requested = 1
	}
	if requested > max {
		requested = max
	}
	return requested
}

//	Trusts only records that fully arrived: the effective count is
//	min(header windowEffective, floor((len-2)/8)). Never reads past the
//	buffer and never fails.
func DecodeStatisticsPage(raw []byte) (page StatisticsPage) {
	if len(raw) < statisticsHeaderSize {
		return
	}
	page.Total = int(raw[0])
	window := int(raw[1])
	arrived := (len(raw) - statisticsHeaderSize) / scheduleEntrySize
	if arrived < window {
		window = arrived
	}
	page.Entries = make([]UsageRecord, 0, window)
	for i := 0; i < window; i++ {
		record := raw[statisticsHeaderSize+i*scheduleEntrySize:]
		var entry UsageRecord
		copy(entry.Time[:], record[:TimeVectorSize])
		entry.Intensity = Intensity(record[TimeVectorSize]) & intensityMask
		page.Entries = append(page.Entries, entry)
	}
	return
}
