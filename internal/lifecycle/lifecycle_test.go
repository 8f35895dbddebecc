package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := []struct {
		from, to Status
	}{
		{StatusNew, StatusProcessing},
		{StatusNew, StatusInvalid},
		{StatusProcessing, StatusDone},
		{StatusProcessing, StatusFailed},
	}
	for _, tc := range legal {
		assert.True(t, CanTransition(tc.from, tc.to),
			"expected %s -> %s to be legal", tc.from, tc.to)
	}

	all := []Status{StatusNew, StatusProcessing, StatusDone, StatusInvalid, StatusFailed}

	// No edge may skip a state, move backward, or leave a terminal status.
	for _, from := range all {
		for _, to := range all {
			if CanTransition(from, to) {
				assert.Greater(t, to.Rank(), from.Rank(),
					"transition %s -> %s is not monotonic", from, to)
				assert.False(t, from.Terminal(),
					"terminal status %s has outgoing edge to %s", from, to)
			}
		}
	}

	assert.False(t, CanTransition(StatusNew, StatusDone), "NEW must not skip PROCESSING")
	assert.False(t, CanTransition(StatusDone, StatusProcessing), "no backward transition")
	assert.False(t, CanTransition(StatusNew, StatusNew), "self edge is not a transition")
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusNew.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusInvalid.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, Status("").Terminal())
}

func TestRank(t *testing.T) {
	assert.Equal(t, 0, StatusNew.Rank())
	assert.Equal(t, 1, StatusProcessing.Rank())
	assert.Equal(t, 2, StatusDone.Rank())
	assert.Equal(t, 2, StatusInvalid.Rank())
	assert.Equal(t, 2, StatusFailed.Rank())
	assert.Equal(t, -1, Status("bogus").Rank())
}
