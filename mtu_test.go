package verashield

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMTUStateDerivation(t *testing.T) {
	for mtu := DefaultMTU; mtu <= PreferredMTU; mtu++ {
		state := NewMTUState(mtu)
		wantWrite := mtu - 3
		if wantWrite < 20 {
			wantWrite = 20
		}
		wantRead := mtu - 1
		if wantRead < 1 {
			wantRead = 1
		}
		if state.WritePayloadLimit != wantWrite || state.ReadPayloadLimit != wantRead {
			t.Fatalf("mtu %d: got write %d read %d, want write %d read %d",
				mtu, state.WritePayloadLimit, state.ReadPayloadLimit, wantWrite, wantRead)
		}
	}
}

func TestMTUStateClampsBelowDefault(t *testing.T) {
	for _, mtu := range []int{-10, 0, 5, 22} {
		assert.Equal(t, DefaultMTUState(), NewMTUState(mtu), "mtu %d", mtu)
	}
}

func TestDefaultMTUState(t *testing.T) {
	state := DefaultMTUState()
	assert.Equal(t, 23, state.NegotiatedMTU)
	assert.Equal(t, 20, state.WritePayloadLimit)
	assert.Equal(t, 22, state.ReadPayloadLimit)
}

func TestMaxScheduleEntries(t *testing.T) {
	//	floor((20-1)/8) = 2 at the default MTU
	assert.Equal(t, 2, DefaultMTUState().MaxScheduleEntries())
	//	floor((182-1)/8) = 22 at a negotiated 185
	assert.Equal(t, 22, NewMTUState(185).MaxScheduleEntries())
}

func TestMaxStatisticsWindow(t *testing.T) {
	//	floor((22-2)/8) = 2 at the default MTU
	assert.Equal(t, 2, DefaultMTUState().MaxStatisticsWindow())
	//	64 records would fit at 517, the protocol caps the request at 63
	assert.Equal(t, 64, NewMTUState(517).MaxStatisticsWindow())
}
