package studio

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// ContextState is the lifecycle state of an AudioContext.
type ContextState int32

const (
	ContextRunning ContextState = iota
	ContextSuspended
	ContextClosed
)

func (s ContextState) String() string {
	switch s {
	case ContextRunning:
		return "running"
	case ContextSuspended:
		return "suspended"
	case ContextClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ModuleLoader loads processing code into a context. It may block and may fail.
type ModuleLoader func(ctx context.Context) error

// AudioContextConfig configures an AudioContext.
type AudioContextConfig struct {
	SampleRate int // Sample rate (default: 48000)
	BlockSize  int // Samples per render quantum (default: 128)
	Logger     *log.Logger

	// ManualClock disables the render clock; the mix bus only mixes on
	// explicit MixBus.Flush calls.
	ManualClock bool
}

// AudioContext is the processing context that owns gain nodes and the mix
// bus. Processing only happens while it is running.
type AudioContext struct {
	config AudioContextConfig

	state atomic.Int32

	modules   map[string]struct{}
	modulesMu sync.RWMutex

	mix *MixBus
	log *log.Logger
}

// NewAudioContext creates a running context and starts its mix bus.
func NewAudioContext(config AudioContextConfig) *AudioContext {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.BlockSize <= 0 {
		config.BlockSize = 128
	}
	c := &AudioContext{
		config:  config,
		modules: make(map[string]struct{}),
		log:     componentLogger(config.Logger, "audio"),
	}
	c.state.Store(int32(ContextRunning))
	c.mix = newMixBus(c)
	if !config.ManualClock {
		c.mix.start()
	}
	return c
}

// SampleRate returns the context sample rate.
func (c *AudioContext) SampleRate() int { return c.config.SampleRate }

// BlockSize returns the render quantum size in samples.
func (c *AudioContext) BlockSize() int { return c.config.BlockSize }

// State returns the current state.
func (c *AudioContext) State() ContextState {
	return ContextState(c.state.Load())
}

// Running reports whether the context processes audio.
func (c *AudioContext) Running() bool {
	return c.State() == ContextRunning
}

// Resume moves a suspended context back to running.
func (c *AudioContext) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.state.CompareAndSwap(int32(ContextSuspended), int32(ContextRunning)) {
		if c.State() == ContextClosed {
			return NewError(ErrCodeResourceUnavailable, "audio context is closed")
		}
		return nil
	}
	c.log.Debug("context resumed")
	return nil
}

// Suspend pauses processing.
func (c *AudioContext) Suspend(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.state.CompareAndSwap(int32(ContextRunning), int32(ContextSuspended)) {
		if c.State() == ContextClosed {
			return NewError(ErrCodeResourceUnavailable, "audio context is closed")
		}
		return nil
	}
	c.log.Debug("context suspended")
	return nil
}

// Close releases the context. Closing twice is a no-op.
func (c *AudioContext) Close() error {
	if ContextState(c.state.Swap(int32(ContextClosed))) == ContextClosed {
		return nil
	}
	c.mix.stop()
	c.log.Debug("context closed")
	return nil
}

// AddModule loads a named processing module once it succeeds. A failed load
// leaves the module absent so a later call can retry.
func (c *AudioContext) AddModule(ctx context.Context, name string, load ModuleLoader) error {
	if c.State() == ContextClosed {
		return NewError(ErrCodeResourceUnavailable, "audio context is closed")
	}
	if load != nil {
		if err := load(ctx); err != nil {
			return WrapError(ErrCodeResourceUnavailable, err, "load module %s", name)
		}
	}
	c.modulesMu.Lock()
	c.modules[name] = struct{}{}
	c.modulesMu.Unlock()
	c.log.Debug("module loaded", "name", name)
	return nil
}

// HasModule reports whether name has been loaded.
func (c *AudioContext) HasModule(name string) bool {
	c.modulesMu.RLock()
	defer c.modulesMu.RUnlock()
	_, ok := c.modules[name]
	return ok
}

// NewGainNode creates a unity-gain node.
func (c *AudioContext) NewGainNode(id string) (*GainNode, error) {
	if c.State() == ContextClosed {
		return nil, NewError(ErrCodeResourceUnavailable, "audio context is closed")
	}
	return newGainNode(c, id), nil
}

// MixBus returns the context's mix destination.
func (c *AudioContext) MixBus() *MixBus {
	return c.mix
}
