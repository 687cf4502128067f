package studio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

// Re-export pion's RTPCodecType so composed tracks can be handed to a
// WebRTC sender without conversion.
type RTPCodecType = webrtc.RTPCodecType

const (
	RTPCodecTypeUnknown = webrtc.RTPCodecTypeUnknown
	RTPCodecTypeAudio   = webrtc.RTPCodecTypeAudio
	RTPCodecTypeVideo   = webrtc.RTPCodecTypeVideo
)

// TrackState represents the state of a track.
type TrackState int

const (
	TrackStateLive  TrackState = iota // Track is active and producing media
	TrackStateEnded                   // Track has ended
	TrackStateMuted                   // Track is muted (still active but not producing)
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateEnded:
		return "ended"
	case TrackStateMuted:
		return "muted"
	default:
		return "unknown"
	}
}

// MediaStreamTrack represents a single audio or video track.
type MediaStreamTrack interface {
	io.Closer

	// ID returns the unique identifier for this track.
	ID() string

	// Kind returns the track kind (audio or video).
	Kind() RTPCodecType

	// Label returns a human-readable label for the track source.
	Label() string

	// State returns the current track state.
	State() TrackState

	// Muted returns whether the track is muted.
	Muted() bool

	// SetMuted sets the muted state.
	SetMuted(muted bool)

	// OnEnded sets a callback for when the track ends.
	OnEnded(callback func())
}

// VideoTrack is a MediaStreamTrack that produces video frames.
type VideoTrack interface {
	MediaStreamTrack

	// ReadFrame reads the next video frame.
	ReadFrame(ctx context.Context) (*VideoFrame, error)

	// OnFrame sets a callback for when a frame is available.
	OnFrame(callback VideoFrameCallback)
}

// AudioTrack is a MediaStreamTrack that produces audio samples.
type AudioTrack interface {
	MediaStreamTrack

	// ReadSamples reads the next audio samples.
	ReadSamples(ctx context.Context) (*AudioSamples, error)

	// OnSamples sets a callback for when samples are available.
	OnSamples(callback AudioSamplesCallback)
}

// MediaStream is a collection of tracks.
type MediaStream interface {
	io.Closer

	// ID returns the unique identifier for this stream.
	ID() string

	// Active returns whether any track in the stream is active.
	Active() bool

	// GetTracks returns all tracks in the stream.
	GetTracks() []MediaStreamTrack

	// GetVideoTracks returns all video tracks.
	GetVideoTracks() []VideoTrack

	// GetAudioTracks returns all audio tracks.
	GetAudioTracks() []AudioTrack

	// AddTrack adds a track to the stream.
	AddTrack(track MediaStreamTrack)

	// RemoveTrack removes a track from the stream.
	RemoveTrack(track MediaStreamTrack)
}

// BaseTrack provides common functionality for tracks.
type BaseTrack struct {
	id      string
	label   string
	kind    RTPCodecType
	state   atomic.Int32
	muted   atomic.Bool
	endedCb func()
	mu      sync.RWMutex
}

// NewBaseTrack creates a new live base track.
func NewBaseTrack(id, label string, kind RTPCodecType) *BaseTrack {
	t := &BaseTrack{
		id:    id,
		label: label,
		kind:  kind,
	}
	t.state.Store(int32(TrackStateLive))
	return t
}

func (t *BaseTrack) ID() string         { return t.id }
func (t *BaseTrack) Kind() RTPCodecType { return t.kind }
func (t *BaseTrack) Label() string      { return t.label }

func (t *BaseTrack) State() TrackState {
	return TrackState(t.state.Load())
}

// SetState changes the state and fires the ended callback once.
func (t *BaseTrack) SetState(state TrackState) {
	old := TrackState(t.state.Swap(int32(state)))
	if state == TrackStateEnded && old != TrackStateEnded {
		t.mu.RLock()
		cb := t.endedCb
		t.mu.RUnlock()
		if cb != nil {
			go cb()
		}
	}
}

func (t *BaseTrack) Muted() bool     { return t.muted.Load() }
func (t *BaseTrack) SetMuted(m bool) { t.muted.Store(m) }

func (t *BaseTrack) OnEnded(callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endedCb = callback
}

// outputTrack buffers items pushed by a producer for ReadX or a callback.
type outputTrack[T any] struct {
	*BaseTrack
	ch       chan T
	callback func(T)
	detach   func()
	closed   bool
	mu       sync.Mutex
}

func newOutputTrack[T any](id, label string, kind RTPCodecType, buffer int) *outputTrack[T] {
	if buffer <= 0 {
		buffer = 3
	}
	return &outputTrack[T]{
		BaseTrack: NewBaseTrack(id, label, kind),
		ch:        make(chan T, buffer),
	}
}

// push delivers v without blocking; the oldest buffered item is dropped when full.
func (t *outputTrack[T]) push(v T) {
	if t.Muted() {
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if cb := t.callback; cb != nil {
		t.mu.Unlock()
		cb(v)
		return
	}
	defer t.mu.Unlock()
	select {
	case t.ch <- v:
	default:
		select {
		case <-t.ch:
		default:
		}
		select {
		case t.ch <- v:
		default:
		}
	}
}

func (t *outputTrack[T]) read(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case v, ok := <-t.ch:
		if !ok {
			return zero, fmt.Errorf("track %s ended", t.ID())
		}
		return v, nil
	}
}

func (t *outputTrack[T]) setCallback(cb func(T)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callback = cb
}

// Close ends the track and detaches it from its producer.
func (t *outputTrack[T]) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.ch)
	detach := t.detach
	t.mu.Unlock()

	if detach != nil {
		detach()
	}
	t.SetState(TrackStateEnded)
	return nil
}

// SurfaceTrack is a VideoTrack of output surface snapshots.
type SurfaceTrack struct {
	*outputTrack[*VideoFrame]
}

func newSurfaceTrack(id string) *SurfaceTrack {
	return &SurfaceTrack{newOutputTrack[*VideoFrame](id, "composed video", RTPCodecTypeVideo, 3)}
}

func (t *SurfaceTrack) ReadFrame(ctx context.Context) (*VideoFrame, error) { return t.read(ctx) }
func (t *SurfaceTrack) OnFrame(cb VideoFrameCallback)                      { t.setCallback(cb) }

// MixTrack is an AudioTrack of mixed recorder output.
type MixTrack struct {
	*outputTrack[*AudioSamples]
}

func newMixTrack(id string) *MixTrack {
	return &MixTrack{newOutputTrack[*AudioSamples](id, "mixed audio", RTPCodecTypeAudio, 16)}
}

func (t *MixTrack) ReadSamples(ctx context.Context) (*AudioSamples, error) { return t.read(ctx) }
func (t *MixTrack) OnSamples(cb AudioSamplesCallback)                      { t.setCallback(cb) }

// SimpleMediaStream is a basic MediaStream implementation.
type SimpleMediaStream struct {
	id     string
	tracks []MediaStreamTrack
	mu     sync.RWMutex
}

// NewMediaStream creates a new media stream.
func NewMediaStream(id string, tracks ...MediaStreamTrack) *SimpleMediaStream {
	return &SimpleMediaStream{
		id:     id,
		tracks: append([]MediaStreamTrack(nil), tracks...),
	}
}

func (s *SimpleMediaStream) ID() string { return s.id }

func (s *SimpleMediaStream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.State() == TrackStateLive {
			return true
		}
	}
	return false
}

func (s *SimpleMediaStream) GetTracks() []MediaStreamTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]MediaStreamTrack, len(s.tracks))
	copy(result, s.tracks)
	return result
}

func (s *SimpleMediaStream) GetVideoTracks() []VideoTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []VideoTrack
	for _, t := range s.tracks {
		if vt, ok := t.(VideoTrack); ok {
			result = append(result, vt)
		}
	}
	return result
}

func (s *SimpleMediaStream) GetAudioTracks() []AudioTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []AudioTrack
	for _, t := range s.tracks {
		if at, ok := t.(AudioTrack); ok {
			result = append(result, at)
		}
	}
	return result
}

func (s *SimpleMediaStream) AddTrack(track MediaStreamTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, track)
}

func (s *SimpleMediaStream) RemoveTrack(track MediaStreamTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tracks {
		if t.ID() == track.ID() {
			s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
			return
		}
	}
}

// Close closes every track, returning the last error.
func (s *SimpleMediaStream) Close() error {
	s.mu.Lock()
	tracks := s.tracks
	s.tracks = nil
	s.mu.Unlock()

	var lastErr error
	for _, t := range tracks {
		if err := t.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
