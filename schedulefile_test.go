package verashield

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadScheduleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	text := `entries:
  - at: 2026-08-26 07:30:00
    intensity: medium
  - at: "2026-08-26T21:00:00Z"
    intensity: eco
`
	require.NoError(t, ioutil.WriteFile(path, []byte(text), 0644))

	entries, err := ReadScheduleFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 7, entries[0].Time.Hour())
	assert.Equal(t, 30, entries[0].Time.Minute())
	assert.Equal(t, IntensityMedium, entries[0].Intensity)
	assert.Equal(t, IntensityEco, entries[1].Intensity)
}

func TestReadScheduleFileRejectsBadEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	text := `entries:
  - at: 2026-08-26 07:30:00
    intensity: medium
  - at: yesterday
    intensity: low
`
	require.NoError(t, ioutil.WriteFile(path, []byte(text), 0644))

	_, err := ReadScheduleFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry 2")
}

func TestScheduleFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	entries := []ScheduleEntry{
		{Time: MakeTimeVector(0, 30, 7, 26, 3, 7, 126), Intensity: IntensityHigh},
		{Time: MakeTimeVector(0, 0, 21, 26, 3, 7, 126), Intensity: IntensityEco},
	}

	require.NoError(t, WriteScheduleFile(path, entries))

	parsed, err := ReadScheduleFile(path)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, entries[0].Time, parsed[0].Time)
	assert.Equal(t, entries[0].Intensity, parsed[0].Intensity)
	assert.Equal(t, entries[1].Intensity, parsed[1].Intensity)
}
