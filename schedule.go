package verashield

import (
	"fmt"
)

//	8 bytes on the wire: 7 time bytes then 1 intensity byte.
const scheduleEntrySize = TimeVectorSize + 1

//	Header byte bounds the declared count.
const MaxScheduleTableEntries = 255

//	One slot of the dispenser's spray schedule.
type ScheduleEntry struct {
	Time      TimeVector `json:"time"`
	Intensity Intensity  `json:"intensity"`
}

//	Wire layout: [count] followed by count 8-byte records. The intensity
//	byte is masked to its low two bits on write; the firmware ignores the
//	rest anyway.
func EncodeScheduleTable(entries []ScheduleEntry) (table []byte, err error) {
	if len(entries) > MaxScheduleTableEntries {
		err = fmt.Errorf("schedule table cannot exceed %d entries, got %d", MaxScheduleTableEntries, len(entries))
		return
	}
	table = make([]byte, 1, 1+len(entries)*scheduleEntrySize)
	table[0] = byte(len(entries))
	for _, entry := range entries {
		table = append(table, entry.Time[:]...)
		table = append(table, byte(entry.Intensity)&intensityMask)
	}
	return
}

//	Truncation-safe: when the declared count promises more records than the
//	buffer holds, only the records that fully arrived are decoded. The
//	authoritative count is the smaller of declared and arrived. Never reads
//	past the buffer and never fails.
func DecodeScheduleTable(raw []byte) (entries []ScheduleEntry) {
	if len(raw) < 1 {
		return
	}
	declared := int(raw[0])
	arrived := (len(raw) - 1) / scheduleEntrySize
	count := declared
	if arrived < count {
		count = arrived
	}
	entries = make([]ScheduleEntry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, decodeScheduleRecord(raw[1+i*scheduleEntrySize:]))
	}
	return
}

func decodeScheduleRecord(record []byte) (entry ScheduleEntry) {
	copy(entry.Time[:], record[:TimeVectorSize])
	entry.Intensity = Intensity(record[TimeVectorSize]) & intensityMask
	return
}
