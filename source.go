package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotSupported is returned when an optional operation is not supported.
var ErrNotSupported = errors.New("operation not supported")

// SourceKind identifies the origin of a media source.
type SourceKind int

const (
	SourceKindUnknown      SourceKind = iota
	SourceKindCamera                  // Camera capture
	SourceKindMicrophone              // Microphone capture
	SourceKindFile                    // File-backed video, image or audio
	SourceKindScreen                  // Screen share (video, optional audio)
	SourceKindOutputDevice            // Speaker/headphones endpoint
	SourceKindTestPattern             // Synthetic generator
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindCamera:
		return "camera"
	case SourceKindMicrophone:
		return "microphone"
	case SourceKindFile:
		return "file"
	case SourceKindScreen:
		return "screen"
	case SourceKindOutputDevice:
		return "output-device"
	case SourceKindTestPattern:
		return "test-pattern"
	default:
		return "unknown"
	}
}

// ParseSourceKind is the inverse of SourceKind.String.
func ParseSourceKind(s string) (SourceKind, error) {
	for k := SourceKindCamera; k <= SourceKindTestPattern; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return SourceKindUnknown, NewError(ErrCodeInvalidConfig, "unknown source kind %q", s)
}

// Capabilities are the bounds a discovered source reports, when known.
type Capabilities struct {
	MaxWidth  int // 0 = unknown
	MaxHeight int // 0 = unknown
	FrameRate int // 0 = unknown
}

// SourceInfo is the payload of a source-available event.
type SourceInfo struct {
	ID           string
	Kind         SourceKind
	Label        string
	Capabilities Capabilities
}

// SourceConfig describes a video source's configuration.
type SourceConfig struct {
	Width  int         // Frame width in pixels
	Height int         // Frame height in pixels
	FPS    int         // Frames per second
	Format PixelFormat // Pixel format
	Kind   SourceKind  // Kind of source
}

// VideoFrameCallback is called when a frame is available (push mode).
type VideoFrameCallback func(frame *VideoFrame)

// VideoSource produces raw video frames.
type VideoSource interface {
	io.Closer

	// Start begins capture/generation.
	Start(ctx context.Context) error

	// Stop halts capture/generation.
	Stop() error

	// ReadFrame reads the next frame (blocking).
	ReadFrame(ctx context.Context) (*VideoFrame, error)

	// SetCallback sets push-mode callback for frame delivery.
	// When set, frames are pushed to the callback instead of being buffered.
	SetCallback(cb VideoFrameCallback)

	// Config returns the source configuration.
	Config() SourceConfig
}

// AudioSamplesCallback is called when audio samples are available (push mode).
type AudioSamplesCallback func(samples *AudioSamples)

// AudioSource produces raw audio samples.
type AudioSource interface {
	io.Closer

	// Start begins capture/generation.
	Start(ctx context.Context) error

	// Stop halts capture/generation.
	Stop() error

	// ReadSamples reads the next audio samples (blocking).
	ReadSamples(ctx context.Context) (*AudioSamples, error)

	// SetCallback sets push-mode callback for sample delivery.
	SetCallback(cb AudioSamplesCallback)

	// SampleRate returns the audio sample rate.
	SampleRate() int

	// Channels returns the number of audio channels.
	Channels() int
}

// VideoSourceFactory creates a video source with the given configuration.
type VideoSourceFactory func(config map[string]any) (VideoSource, error)

// AudioSourceFactory creates an audio source with the given configuration.
type AudioSourceFactory func(config map[string]any) (AudioSource, error)

// sourceRegistry holds registered source factories.
type sourceRegistry struct {
	videoFactories map[SourceKind]VideoSourceFactory
	audioFactories map[SourceKind]AudioSourceFactory
	mu             sync.RWMutex
}

var globalSourceRegistry = &sourceRegistry{
	videoFactories: make(map[SourceKind]VideoSourceFactory),
	audioFactories: make(map[SourceKind]AudioSourceFactory),
}

// RegisterVideoSource registers a video source factory for a source kind.
func RegisterVideoSource(kind SourceKind, factory VideoSourceFactory) {
	globalSourceRegistry.mu.Lock()
	defer globalSourceRegistry.mu.Unlock()
	globalSourceRegistry.videoFactories[kind] = factory
}

// RegisterAudioSource registers an audio source factory for a source kind.
func RegisterAudioSource(kind SourceKind, factory AudioSourceFactory) {
	globalSourceRegistry.mu.Lock()
	defer globalSourceRegistry.mu.Unlock()
	globalSourceRegistry.audioFactories[kind] = factory
}

// CreateVideoSource creates a video source of the specified kind.
func CreateVideoSource(kind SourceKind, config map[string]any) (VideoSource, error) {
	globalSourceRegistry.mu.RLock()
	factory, ok := globalSourceRegistry.videoFactories[kind]
	globalSourceRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("video source kind not available: %v", kind)
	}

	return factory(config)
}

// CreateAudioSource creates an audio source of the specified kind.
func CreateAudioSource(kind SourceKind, config map[string]any) (AudioSource, error) {
	globalSourceRegistry.mu.RLock()
	factory, ok := globalSourceRegistry.audioFactories[kind]
	globalSourceRegistry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("audio source kind not available: %v", kind)
	}

	return factory(config)
}

// IsVideoSourceAvailable checks if a video source kind is available.
func IsVideoSourceAvailable(kind SourceKind) bool {
	globalSourceRegistry.mu.RLock()
	defer globalSourceRegistry.mu.RUnlock()
	_, ok := globalSourceRegistry.videoFactories[kind]
	return ok
}

// IsAudioSourceAvailable checks if an audio source kind is available.
func IsAudioSourceAvailable(kind SourceKind) bool {
	globalSourceRegistry.mu.RLock()
	defer globalSourceRegistry.mu.RUnlock()
	_, ok := globalSourceRegistry.audioFactories[kind]
	return ok
}

// Info returns the source-available payload for the spec.
func (s SourceSpec) Info() (SourceInfo, error) {
	if err := s.Validate(); err != nil {
		return SourceInfo{}, err
	}
	kind, _ := ParseSourceKind(s.Kind)
	label := s.Label
	if label == "" {
		label = s.ID
	}
	return SourceInfo{ID: s.ID, Kind: kind, Label: label}, nil
}

// OpenStreams creates the streams the spec declares through the registered
// factories. Nothing stays open when it fails.
func (s SourceSpec) OpenStreams() (SourceStreams, error) {
	var streams SourceStreams
	if err := s.Validate(); err != nil {
		return streams, err
	}
	if s.Video != nil {
		kind, _ := s.Video.driver()
		video, err := CreateVideoSource(kind, s.Video.Options)
		if err != nil {
			return streams, WrapError(ErrCodeInvalidConfig, err, "source %q video", s.ID)
		}
		streams.Video = video
	}
	if s.Audio != nil {
		kind, _ := s.Audio.driver()
		audio, err := CreateAudioSource(kind, s.Audio.Options)
		if err != nil {
			if streams.Video != nil {
				streams.Video.Close()
			}
			return SourceStreams{}, WrapError(ErrCodeInvalidConfig, err, "source %q audio", s.ID)
		}
		streams.Audio = audio
	}
	return streams, nil
}

// configInt reads an integer option from a factory config map.
func configInt(config map[string]any, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// configFloat reads a float option from a factory config map.
func configFloat(config map[string]any, key string, def float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// configString reads a string option from a factory config map.
func configString(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return def
}
