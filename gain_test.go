package studio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constBlock(channels, frames int, v float32) *AudioBlock {
	b := NewAudioBlock(channels, frames, 48000)
	for _, ch := range b.Channels {
		for i := range ch {
			ch[i] = v
		}
	}
	return b
}

func newManualContext(t *testing.T) *AudioContext {
	t.Helper()
	actx := NewAudioContext(AudioContextConfig{ManualClock: true})
	t.Cleanup(func() { actx.Close() })
	return actx
}

func TestGainNodeToMixBus(t *testing.T) {
	actx := newManualContext(t)
	a, err := actx.NewGainNode("a")
	require.NoError(t, err)
	require.NoError(t, a.Connect(actx.MixBus()))

	a.SetGain(0.5)
	a.Process(constBlock(2, 128, 0.8))

	out := actx.MixBus().Flush()
	require.NotNil(t, out)
	assert.Len(t, out.Channels, 2)
	assert.InDelta(t, 0.4, out.Channels[1][10], 1e-6)
	assert.Nil(t, actx.MixBus().Flush(), "nothing pending after a flush")

	a.SetGain(-3)
	assert.Equal(t, 0.0, a.Gain())
}

func TestMixBusSumsAndClips(t *testing.T) {
	actx := newManualContext(t)
	a, _ := actx.NewGainNode("a")
	b, _ := actx.NewGainNode("b")
	require.NoError(t, a.Connect(actx.MixBus()))
	require.NoError(t, b.Connect(actx.MixBus()))

	a.Process(constBlock(1, 64, 0.25))
	b.Process(constBlock(2, 128, 0.25))
	out := actx.MixBus().Flush()
	require.NotNil(t, out)
	require.Len(t, out.Channels, 2)
	assert.Equal(t, 128, out.Frames())
	assert.InDelta(t, 0.5, out.Channels[0][0], 1e-6)
	assert.InDelta(t, 0.25, out.Channels[0][100], 1e-6)
	assert.InDelta(t, 0.25, out.Channels[1][0], 1e-6)

	a.Process(constBlock(1, 64, 0.75))
	b.Process(constBlock(1, 64, 0.75))
	out = actx.MixBus().Flush()
	assert.Equal(t, float32(1), out.Channels[0][0])
	assert.Equal(t, int64(128*time.Second/48000), out.Timestamp, "timestamps follow mixed frames")
}

func TestMixBusTrack(t *testing.T) {
	actx := newManualContext(t)
	a, _ := actx.NewGainNode("a")
	require.NoError(t, a.Connect(actx.MixBus()))
	track := actx.MixBus().Track()

	a.Process(constBlock(2, 128, 0.5))
	actx.MixBus().Flush()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s, err := track.ReadSamples(ctx)
	require.NoError(t, err)
	assert.Equal(t, AudioFormatS16, s.Format)
	assert.Equal(t, 2, s.Channels)
	assert.Equal(t, 128, s.SampleCount)
	assert.InDelta(t, 0.5, s.Block().Channels[0][0], 0.001)

	require.NoError(t, actx.Close())
	_, err = track.ReadSamples(ctx)
	assert.Error(t, err, "closing the context ends its tracks")
}

func TestGainNodeCycleTerminates(t *testing.T) {
	actx := newManualContext(t)
	a, _ := actx.NewGainNode("a")
	b, _ := actx.NewGainNode("b")
	require.NoError(t, a.Connect(b))
	require.NoError(t, b.Connect(a))
	require.NoError(t, a.Connect(actx.MixBus()))

	a.Process(constBlock(1, 16, 0.3))
	out := actx.MixBus().Flush()
	require.NotNil(t, out)
	assert.InDelta(t, 0.3, out.Channels[0][0], 1e-6)
}

func TestGainNodeSuspended(t *testing.T) {
	actx := newManualContext(t)
	a, _ := actx.NewGainNode("a")
	require.NoError(t, a.Connect(actx.MixBus()))
	ctx := context.Background()

	require.NoError(t, actx.Suspend(ctx))
	assert.Equal(t, ContextSuspended, actx.State())
	a.Process(constBlock(1, 16, 0.3))
	assert.Nil(t, actx.MixBus().Flush())

	require.NoError(t, actx.Resume(ctx))
	a.Process(constBlock(1, 16, 0.3))
	assert.NotNil(t, actx.MixBus().Flush())
}

func TestGainNodeConnectRefCount(t *testing.T) {
	actx := newManualContext(t)
	a, _ := actx.NewGainNode("a")
	b, _ := actx.NewGainNode("b")

	require.NoError(t, a.Connect(b))
	require.NoError(t, a.Connect(b))
	assert.Equal(t, []string{"b"}, a.Outputs())

	require.NoError(t, a.Disconnect(b))
	assert.Equal(t, []string{"b"}, a.Outputs(), "one wire remains")
	require.NoError(t, a.Disconnect(b))
	assert.Empty(t, a.Outputs())

	assert.ErrorIs(t, a.Disconnect(b), ErrTeardownFault)
	assert.ErrorIs(t, a.Connect(nil), ErrUnknownEndpoint)
}

func TestGainNodeTap(t *testing.T) {
	actx := newManualContext(t)
	a, _ := actx.NewGainNode("a")
	tap, err := a.Tap(1)
	require.NoError(t, err)

	a.SetGain(2)
	a.Process(constBlock(1, 8, 0.25))
	a.Process(constBlock(1, 8, 0.25))
	assert.Equal(t, uint64(1), tap.Dropped())

	b := <-tap.C()
	assert.InDelta(t, 0.5, b.Channels[0][0], 1e-6)

	require.NoError(t, a.Release())
	require.NoError(t, a.Release())
	assert.True(t, a.Released())
	_, ok := <-tap.C()
	assert.False(t, ok, "release closes taps")
	tap.Close()

	_, err = a.Tap(1)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
	assert.ErrorIs(t, a.Connect(actx.MixBus()), ErrResourceUnavailable)
}

func TestAudioContextLifecycle(t *testing.T) {
	actx := newManualContext(t)
	ctx := context.Background()
	assert.Equal(t, 48000, actx.SampleRate())
	assert.Equal(t, 128, actx.BlockSize())
	assert.True(t, actx.Running())

	calls := 0
	failing := func(context.Context) error {
		calls++
		return errors.New("no worklet")
	}
	err := actx.AddModule(ctx, "m", failing)
	assert.ErrorIs(t, err, ErrResourceUnavailable)
	assert.False(t, actx.HasModule("m"))

	require.NoError(t, actx.AddModule(ctx, "m", nil))
	assert.True(t, actx.HasModule("m"))
	assert.Equal(t, 1, calls)

	require.NoError(t, actx.Close())
	require.NoError(t, actx.Close())
	assert.Equal(t, ContextClosed, actx.State())
	assert.ErrorIs(t, actx.Resume(ctx), ErrResourceUnavailable)
	assert.ErrorIs(t, actx.Suspend(ctx), ErrResourceUnavailable)
	assert.ErrorIs(t, actx.AddModule(ctx, "x", nil), ErrResourceUnavailable)
	_, err = actx.NewGainNode("late")
	assert.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestAudioContextClock(t *testing.T) {
	actx := NewAudioContext(AudioContextConfig{SampleRate: 48000, BlockSize: 480})
	defer actx.Close()

	a, _ := actx.NewGainNode("a")
	require.NoError(t, a.Connect(actx.MixBus()))
	track := actx.MixBus().Track()
	a.Process(constBlock(1, 480, 0.5))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := track.ReadSamples(ctx)
	require.NoError(t, err)
	assert.Equal(t, 480, s.SampleCount)
}
