package studio

import (
	"math"
	"slices"
	"sync"
	"sync/atomic"
)

// AudioSink receives processed blocks from a GainNode.
type AudioSink interface {
	// ID identifies the sink.
	ID() string

	// receive accepts a block; path holds the ids already visited so cycles
	// in the graph terminate.
	receive(b *AudioBlock, path []string)
}

// GainNode scales its input and forwards it to its outputs and taps.
type GainNode struct {
	id   string
	ctx  *AudioContext
	gain atomic.Uint64 // math.Float64bits

	mu       sync.RWMutex
	outputs  []*edge
	taps     []*Tap
	released bool
}

// edge is a reference-counted output; repeated connects to the same sink
// forward the signal once.
type edge struct {
	sink  AudioSink
	count int
}

func newGainNode(ctx *AudioContext, id string) *GainNode {
	n := &GainNode{id: id, ctx: ctx}
	n.gain.Store(math.Float64bits(1))
	return n
}

func (n *GainNode) ID() string { return n.id }

// Gain returns the current gain factor.
func (n *GainNode) Gain() float64 {
	return math.Float64frombits(n.gain.Load())
}

// SetGain sets the gain factor; negative values are clamped to zero.
func (n *GainNode) SetGain(g float64) {
	n.gain.Store(math.Float64bits(math.Max(0, g)))
}

// Connect adds an output to dst.
func (n *GainNode) Connect(dst AudioSink) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.released {
		return NewError(ErrCodeResourceUnavailable, "node %q is released", n.id)
	}
	if dst == nil {
		return NewError(ErrCodeUnknownEndpoint, "nil destination")
	}
	for _, e := range n.outputs {
		if e.sink == dst {
			e.count++
			return nil
		}
	}
	n.outputs = append(n.outputs, &edge{sink: dst, count: 1})
	return nil
}

// Disconnect removes one connection to dst.
func (n *GainNode) Disconnect(dst AudioSink) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, e := range n.outputs {
		if e.sink != dst {
			continue
		}
		e.count--
		if e.count == 0 {
			n.outputs = slices.Delete(n.outputs, i, i+1)
		}
		return nil
	}
	return NewError(ErrCodeTeardownFault, "node %q is not connected to %q", n.id, dst.ID())
}

// Outputs returns the ids of connected sinks.
func (n *GainNode) Outputs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]string, len(n.outputs))
	for i, e := range n.outputs {
		ids[i] = e.sink.ID()
	}
	return ids
}

// Tap attaches a buffered observer of the node's output.
func (n *GainNode) Tap(buffer int) (*Tap, error) {
	if buffer <= 0 {
		buffer = 8
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.released {
		return nil, NewError(ErrCodeResourceUnavailable, "node %q is released", n.id)
	}
	t := &Tap{node: n, ch: make(chan *AudioBlock, buffer)}
	n.taps = append(n.taps, t)
	return t, nil
}

// Release disconnects all outputs and taps. Releasing twice is a no-op.
func (n *GainNode) Release() error {
	n.mu.Lock()
	if n.released {
		n.mu.Unlock()
		return nil
	}
	n.released = true
	n.outputs = nil
	taps := n.taps
	n.taps = nil
	n.mu.Unlock()

	for _, t := range taps {
		t.close()
	}
	return nil
}

// Released reports whether Release was called.
func (n *GainNode) Released() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.released
}

// Process feeds a source block into the node.
func (n *GainNode) Process(b *AudioBlock) {
	n.receive(b, nil)
}

func (n *GainNode) receive(b *AudioBlock, path []string) {
	if !n.ctx.Running() || slices.Contains(path, n.id) {
		return
	}

	n.mu.RLock()
	if n.released {
		n.mu.RUnlock()
		return
	}
	outputs := make([]AudioSink, len(n.outputs))
	for i, e := range n.outputs {
		outputs[i] = e.sink
	}
	taps := slices.Clone(n.taps)
	n.mu.RUnlock()

	out := b.Clone()
	if g := float32(n.Gain()); g != 1 {
		for _, ch := range out.Channels {
			for i := range ch {
				ch[i] *= g
			}
		}
	}

	for _, t := range taps {
		t.offer(out)
	}
	path = append(path, n.id)
	for _, sink := range outputs {
		sink.receive(out, path)
	}
}

// Tap is a non-blocking observer of a node's output. Blocks are dropped when
// the buffer is full.
type Tap struct {
	node    *GainNode
	ch      chan *AudioBlock
	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// C returns the block channel; it is closed when the tap is closed.
func (t *Tap) C() <-chan *AudioBlock { return t.ch }

// Dropped returns the number of blocks dropped because the buffer was full.
func (t *Tap) Dropped() uint64 { return t.dropped.Load() }

func (t *Tap) offer(b *AudioBlock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.ch <- b:
	default:
		t.dropped.Add(1)
	}
}

// Close detaches the tap from its node. Closing twice is a no-op.
func (t *Tap) Close() {
	t.node.mu.Lock()
	if i := slices.Index(t.node.taps, t); i >= 0 {
		t.node.taps = slices.Delete(t.node.taps, i, i+1)
	}
	t.node.mu.Unlock()
	t.close()
}

func (t *Tap) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.ch)
	}
}
