package verashield

import (
	"fmt"
	"time"
)

const TimeVectorSize = 7

//	On-wire calendar timestamp used by the time-sync characteristic and by
//	every schedule and statistics record:
//
//		[sec, min, hour, mday, wday, month, year]
//
//	month is 0-11 and year counts from 1900, firmware convention. Older
//	firmware revisions used a reversed byte order with a 2000 epoch; this
//	layout matches the current revision and is the only one the codec
//	speaks. Conversion to and from time.Time happens here and nowhere else.
type TimeVector [TimeVectorSize]byte

//	Builds a vector from wire-semantics fields, clamping each to its valid
//	range. Out-of-range input is clamped, never rejected: the firmware
//	treats every byte as authoritative and feeding it garbage desyncs the
//	dispenser clock.
func MakeTimeVector(sec, min, hour, mday, wday, month, year int) TimeVector {
	return TimeVector{
		clampField(sec, 0, 59),
		clampField(min, 0, 59),
		clampField(hour, 0, 23),
		clampField(mday, 1, 31),
		clampField(wday, 0, 6),
		clampField(month, 0, 11),
		clampField(year, 0, 255),
	}
}

func TimeVectorOf(t time.Time) TimeVector {
	return MakeTimeVector(
		t.Second(),
		t.Minute(),
		t.Hour(),
		t.Day(),
		int(t.Weekday()),
		int(t.Month())-1,
		t.Year()-1900,
	)
}

func DecodeTimeVector(raw []byte) (v TimeVector, err error) {
	if len(raw) < TimeVectorSize {
		err = fmt.Errorf("time vector too short: %d bytes", len(raw))
		return
	}
	copy(v[:], raw[:TimeVectorSize])
	return
}

func (v TimeVector) Bytes() []byte {
	out := make([]byte, TimeVectorSize)
	copy(out, v[:])
	return out
}

func (v TimeVector) Second() int { return int(v[0]) }
func (v TimeVector) Minute() int { return int(v[1]) }
func (v TimeVector) Hour() int   { return int(v[2]) }
func (v TimeVector) Day() int    { return int(v[3]) }
func (v TimeVector) Month() int  { return int(v[5]) }
func (v TimeVector) Year() int   { return int(v[6]) + 1900 }

func (v TimeVector) Weekday() time.Weekday {
	return time.Weekday(v[4] % 7)
}

//	The stored weekday byte is ignored here: time.Date derives it from the
//	date, which also normalizes vectors written by firmware with a stale
//	weekday field.
func (v TimeVector) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(v.Year(), time.Month(v.Month()+1), v.Day(), v.Hour(), v.Minute(), v.Second(), 0, loc)
}

func (v TimeVector) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", v.Year(), v.Month()+1, v.Day(), v.Hour(), v.Minute(), v.Second())
}

func clampField(value, floor, ceil int) byte {
	if value < floor {
		value = floor
	}
	if value > ceil {
		value = ceil
	}
	return byte(value)
}
