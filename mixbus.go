package studio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MixBusID is the sink id of every context's mix bus.
const MixBusID = "mix"

// MixBus sums the blocks delivered to it during each render quantum, clips
// the sum to [-1, 1] and publishes it to its tracks.
type MixBus struct {
	ctx *AudioContext

	mu      sync.Mutex
	pending *AudioBlock
	frames  uint64

	tracks   map[string]*MixTrack
	tracksMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

func newMixBus(ctx *AudioContext) *MixBus {
	return &MixBus{
		ctx:    ctx,
		tracks: make(map[string]*MixTrack),
	}
}

func (m *MixBus) ID() string { return MixBusID }

func (m *MixBus) receive(b *AudioBlock, _ []string) {
	if len(b.Channels) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		m.pending = b.Clone()
		return
	}
	m.pending = addBlocks(m.pending, b)
}

// addBlocks sums b into acc, growing acc to b's channel count and length.
func addBlocks(acc, b *AudioBlock) *AudioBlock {
	channels := max(len(acc.Channels), len(b.Channels))
	frames := max(acc.Frames(), b.Frames())
	if channels > len(acc.Channels) || frames > acc.Frames() {
		grown := NewAudioBlock(channels, frames, acc.SampleRate)
		grown.Timestamp = acc.Timestamp
		for ch, samples := range acc.Channels {
			copy(grown.Channels[ch], samples)
		}
		acc = grown
	}
	for ch, samples := range b.Channels {
		dst := acc.Channels[ch]
		for i, v := range samples {
			dst[i] += v
		}
	}
	return acc
}

// Flush returns the mix of everything received since the last flush, or nil
// when nothing arrived, and publishes it to every track.
func (m *MixBus) Flush() *AudioBlock {
	m.mu.Lock()
	b := m.pending
	m.pending = nil
	if b != nil {
		b.Timestamp = int64(m.frames) * int64(time.Second) / int64(m.ctx.SampleRate())
		m.frames += uint64(b.Frames())
	}
	m.mu.Unlock()

	if b == nil {
		return nil
	}
	for _, ch := range b.Channels {
		for i, v := range ch {
			ch[i] = float32(clamp(float64(v), -1, 1))
		}
	}

	m.tracksMu.Lock()
	tracks := make([]*MixTrack, 0, len(m.tracks))
	for _, t := range m.tracks {
		tracks = append(tracks, t)
	}
	m.tracksMu.Unlock()

	if len(tracks) > 0 {
		samples := b.Samples()
		for _, t := range tracks {
			t.push(samples)
		}
	}
	return b
}

// Track returns a new audio track of the mixed output.
func (m *MixBus) Track() *MixTrack {
	t := newMixTrack(uuid.NewString())
	t.detach = func() {
		m.tracksMu.Lock()
		delete(m.tracks, t.ID())
		m.tracksMu.Unlock()
	}

	m.tracksMu.Lock()
	m.tracks[t.ID()] = t
	m.tracksMu.Unlock()
	return t
}

func (m *MixBus) start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	period := time.Duration(m.ctx.BlockSize()) * time.Second / time.Duration(m.ctx.SampleRate())
	go m.loop(ctx, period)
}

func (m *MixBus) stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}

	m.tracksMu.Lock()
	tracks := m.tracks
	m.tracks = make(map[string]*MixTrack)
	m.tracksMu.Unlock()
	for _, t := range tracks {
		t.Close()
	}
}

func (m *MixBus) loop(ctx context.Context, period time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.ctx.Running() {
				m.Flush()
			}
		}
	}
}
