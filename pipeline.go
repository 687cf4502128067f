package studio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
)

// PipelineState represents the state of a source pipeline.
type PipelineState int

const (
	PipelineStateIdle    PipelineState = iota // Not started
	PipelineStateRunning                      // Delivering media
	PipelineStateStopped                      // Stopped, sources closed
)

func (s PipelineState) String() string {
	switch s {
	case PipelineStateIdle:
		return "idle"
	case PipelineStateRunning:
		return "running"
	case PipelineStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SourcePipeline handles: VideoSource -> drawable, AudioSource -> endpoint.
// It owns the captured streams of one source.
type SourcePipeline struct {
	id       string
	video    VideoSource
	audio    AudioSource
	drawable *VideoSourceDrawable
	onBlock  func(*AudioBlock) error
	onError  func(error)

	state atomic.Int32
	stats SourcePipelineStats
	mu    sync.Mutex
}

// SourcePipelineStats provides pipeline statistics.
type SourcePipelineStats struct {
	FramesCaptured uint64
	BlocksCaptured uint64
	BlocksRejected uint64 // Blocks the audio sink refused
}

// SourcePipelineConfig configures a source pipeline.
type SourcePipelineConfig struct {
	ID       string
	Video    VideoSource             // Optional video stream
	Audio    AudioSource             // Optional audio stream
	Drawable *VideoSourceDrawable    // Receives video frames; required with Video
	OnBlock  func(*AudioBlock) error // Receives audio blocks; required with Audio
	OnError  func(error)             // Error callback
}

// NewSourcePipeline creates a new source pipeline.
func NewSourcePipeline(config SourcePipelineConfig) (*SourcePipeline, error) {
	if config.Video == nil && config.Audio == nil {
		return nil, fmt.Errorf("either video or audio must be provided")
	}
	if config.Video != nil && config.Drawable == nil {
		return nil, fmt.Errorf("drawable is required with video")
	}
	if config.Audio != nil && config.OnBlock == nil {
		return nil, fmt.Errorf("block handler is required with audio")
	}

	p := &SourcePipeline{
		id:       config.ID,
		video:    config.Video,
		audio:    config.Audio,
		drawable: config.Drawable,
		onBlock:  config.OnBlock,
		onError:  config.OnError,
	}
	p.state.Store(int32(PipelineStateIdle))
	return p, nil
}

// Start installs the delivery callbacks and starts the sources.
func (p *SourcePipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if PipelineState(p.state.Load()) != PipelineStateIdle {
		return fmt.Errorf("pipeline %s already started", p.id)
	}

	if p.video != nil {
		p.video.SetCallback(p.handleFrame)
		if err := p.video.Start(ctx); err != nil {
			return fmt.Errorf("failed to start video source: %w", err)
		}
	}
	if p.audio != nil {
		p.audio.SetCallback(p.handleSamples)
		if err := p.audio.Start(ctx); err != nil {
			if p.video != nil {
				p.video.Stop()
			}
			return fmt.Errorf("failed to start audio source: %w", err)
		}
	}

	p.state.Store(int32(PipelineStateRunning))
	return nil
}

func (p *SourcePipeline) handleFrame(f *VideoFrame) {
	p.drawable.Update(f)
	atomic.AddUint64(&p.stats.FramesCaptured, 1)
}

func (p *SourcePipeline) handleSamples(s *AudioSamples) {
	atomic.AddUint64(&p.stats.BlocksCaptured, 1)
	if err := p.onBlock(s.Block()); err != nil {
		atomic.AddUint64(&p.stats.BlocksRejected, 1)
		p.handleError(err)
	}
}

// Stop stops and closes both sources. Every step runs even when an earlier
// one fails. Stopping twice is a no-op.
func (p *SourcePipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if PipelineState(p.state.Load()) == PipelineStateStopped {
		return nil
	}
	p.state.Store(int32(PipelineStateStopped))

	var result *multierror.Error
	if p.video != nil {
		p.video.SetCallback(nil)
		if err := p.video.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close video: %w", err))
		}
	}
	if p.audio != nil {
		p.audio.SetCallback(nil)
		if err := p.audio.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close audio: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// State returns the current pipeline state.
func (p *SourcePipeline) State() PipelineState {
	return PipelineState(p.state.Load())
}

// Stats returns pipeline statistics.
func (p *SourcePipeline) Stats() SourcePipelineStats {
	return SourcePipelineStats{
		FramesCaptured: atomic.LoadUint64(&p.stats.FramesCaptured),
		BlocksCaptured: atomic.LoadUint64(&p.stats.BlocksCaptured),
		BlocksRejected: atomic.LoadUint64(&p.stats.BlocksRejected),
	}
}

func (p *SourcePipeline) handleError(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}
