package verashield

import (
	"fmt"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v3"
)

//	Human-editable schedule format for vs schedule import/export:
//
//		entries:
//		  - at: 2026-08-26 07:30:00
//		    intensity: medium
type ScheduleFile struct {
	Entries []ScheduleFileEntry `yaml:"entries"`
}

type ScheduleFileEntry struct {
	At        string `yaml:"at"`
	Intensity string `yaml:"intensity"`
}

const scheduleFileTimeLayout = "2006-01-02 15:04:05"

func ReadScheduleFile(path string) (entries []ScheduleEntry, err error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return
	}
	var file ScheduleFile
	err = yaml.Unmarshal(raw, &file)
	if err != nil {
		return
	}
	for i, item := range file.Entries {
		at, parseErr := parseScheduleTime(item.At)
		if parseErr != nil {
			err = fmt.Errorf("entry %d: %s", i+1, parseErr.Error())
			return
		}
		level, parseErr := ParseIntensity(item.Intensity)
		if parseErr != nil {
			err = fmt.Errorf("entry %d: %s", i+1, parseErr.Error())
			return
		}
		entries = append(entries, ScheduleEntry{
			Time:      TimeVectorOf(at),
			Intensity: level,
		})
	}
	return
}

func WriteScheduleFile(path string, entries []ScheduleEntry) (err error) {
	file := ScheduleFile{}
	for _, entry := range entries {
		file.Entries = append(file.Entries, ScheduleFileEntry{
			At:        entry.Time.Time(time.Local).Format(scheduleFileTimeLayout),
			Intensity: entry.Intensity.String(),
		})
	}
	raw, err := yaml.Marshal(file)
	if err != nil {
		return
	}
	err = ioutil.WriteFile(path, raw, 0644)
	return
}

func parseScheduleTime(value string) (at time.Time, err error) {
	for _, layout := range []string{scheduleFileTimeLayout, time.RFC3339} {
		at, err = time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return
		}
	}
	err = fmt.Errorf("cannot parse time %q, expected %q", value, scheduleFileTimeLayout)
	return
}
