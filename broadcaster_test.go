package studio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	s1 := b.Subscribe("ui", 4)
	s2 := b.Subscribe("log", 1)

	b.Broadcast(LoudnessEvent{ConnectionID: "c1", RMS: 0.1})
	b.Broadcast(LoudnessEvent{ConnectionID: "c2", RMS: 0.2})

	assert.Equal(t, "c1", (<-s1).ConnectionID)
	assert.Equal(t, "c2", (<-s1).ConnectionID)
	assert.Equal(t, "c1", (<-s2).ConnectionID)
	assert.Equal(t, uint64(1), b.Dropped("log"), "a full subscriber misses events")
	assert.Equal(t, uint64(0), b.Dropped("ui"))

	latest := b.Latest()
	require.Len(t, latest, 2)
	assert.Equal(t, 0.2, latest["c2"].RMS)

	b.Forget("c1")
	assert.NotContains(t, b.Latest(), "c1")
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("ui", 1)
	b.Unsubscribe("ui")
	b.Unsubscribe("ui")

	_, ok := <-ch
	assert.False(t, ok)

	again := b.Subscribe("ui", 1)
	replaced := b.Subscribe("ui", 1)
	_, ok = <-again
	assert.False(t, ok, "resubscribing closes the previous channel")

	b.Close()
	b.Close()
	_, ok = <-replaced
	assert.False(t, ok)

	late := b.Subscribe("late", 1)
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
	b.Broadcast(LoudnessEvent{ConnectionID: "c"})
}
