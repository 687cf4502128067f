package studio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TonePattern defines the waveform a ToneSource generates.
type TonePattern int

const (
	ToneSilence TonePattern = iota // Silence
	ToneSine                       // Sine wave tone
	ToneSquare                     // Square wave tone
	ToneSweep                      // Logarithmic frequency sweep
)

func (p TonePattern) String() string {
	switch p {
	case ToneSilence:
		return "Silence"
	case ToneSine:
		return "Sine"
	case ToneSquare:
		return "Square"
	case ToneSweep:
		return "Sweep"
	default:
		return "Unknown"
	}
}

// ParseTonePattern is the inverse of TonePattern.String.
func ParseTonePattern(s string) (TonePattern, error) {
	for p := ToneSilence; p <= ToneSweep; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return ToneSilence, NewError(ErrCodeInvalidConfig, "unknown tone pattern %q", s)
}

// ToneConfig configures a tone source.
type ToneConfig struct {
	SampleRate int         // Sample rate (default: 48000)
	Channels   int         // Number of channels (default: 2)
	FrameSize  int         // Samples per block (default: 960 = 20ms at 48kHz)
	Pattern    TonePattern // Waveform
	Frequency  float64     // Tone frequency in Hz (default: 440)
	Amplitude  float64     // Amplitude 0.0-1.0 (default: 0.5)

	// For sweep pattern
	SweepStartHz  float64
	SweepEndHz    float64
	SweepDuration time.Duration
}

// DefaultToneConfig returns a 440 Hz stereo sine at half amplitude.
func DefaultToneConfig() ToneConfig {
	return ToneConfig{
		SampleRate:    48000,
		Channels:      2,
		FrameSize:     960,
		Pattern:       ToneSine,
		Frequency:     440.0,
		Amplitude:     0.5,
		SweepStartHz:  200,
		SweepEndHz:    2000,
		SweepDuration: 2 * time.Second,
	}
}

// ToneSource generates synthetic S16 audio. It stands in for a microphone
// when no capture device is available.
type ToneSource struct {
	config ToneConfig

	phase       float64
	sampleCount uint64
	genMu       sync.Mutex

	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	doneCh    chan struct{}
	samplesCh chan *AudioSamples
	callback  AudioSamplesCallback

	mu sync.RWMutex
}

// NewToneSource creates a new tone source.
func NewToneSource(config ToneConfig) *ToneSource {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Channels <= 0 {
		config.Channels = 2
	}
	if config.FrameSize <= 0 {
		config.FrameSize = 960
	}
	if config.Frequency <= 0 {
		config.Frequency = 440.0
	}
	if config.Amplitude < 0 {
		config.Amplitude = 0
	}
	if config.Amplitude > 1.0 {
		config.Amplitude = 1.0
	}
	if config.SweepStartHz <= 0 {
		config.SweepStartHz = 200
	}
	if config.SweepEndHz <= 0 {
		config.SweepEndHz = 2000
	}
	if config.SweepDuration <= 0 {
		config.SweepDuration = 2 * time.Second
	}

	return &ToneSource{
		config:    config,
		samplesCh: make(chan *AudioSamples, 2),
	}
}

// Start begins generating samples.
func (s *ToneSource) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("source already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.running.Store(true)

	go s.generateLoop()

	return nil
}

// Stop stops generating samples and waits for the goroutine to exit.
func (s *ToneSource) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	if s.doneCh != nil {
		<-s.doneCh
	}

	return nil
}

// Close closes the source.
func (s *ToneSource) Close() error {
	s.Stop()
	s.mu.Lock()
	if s.samplesCh != nil {
		close(s.samplesCh)
		s.samplesCh = nil
	}
	s.mu.Unlock()
	return nil
}

// ReadSamples reads the next block (blocking).
func (s *ToneSource) ReadSamples(ctx context.Context) (*AudioSamples, error) {
	s.mu.RLock()
	ch := s.samplesCh
	s.mu.RUnlock()
	if ch == nil {
		return nil, fmt.Errorf("source closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case samples, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("source closed")
		}
		return samples, nil
	}
}

// SetCallback sets the push-mode callback.
func (s *ToneSource) SetCallback(cb AudioSamplesCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// SampleRate returns the audio sample rate.
func (s *ToneSource) SampleRate() int {
	return s.config.SampleRate
}

// Channels returns the number of audio channels.
func (s *ToneSource) Channels() int {
	return s.config.Channels
}

// Next generates the next block synchronously. Phase continues across calls.
func (s *ToneSource) Next() *AudioSamples {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	data := make([]byte, s.config.FrameSize*s.config.Channels*2)
	switch s.config.Pattern {
	case ToneSine:
		s.fill(data, s.config.Frequency, math.Sin)
	case ToneSquare:
		s.fill(data, s.config.Frequency, square)
	case ToneSweep:
		s.fill(data, s.sweepFrequency(), math.Sin)
	}

	samples := &AudioSamples{
		Data:        data,
		SampleRate:  s.config.SampleRate,
		Channels:    s.config.Channels,
		SampleCount: s.config.FrameSize,
		Format:      AudioFormatS16,
		Timestamp:   int64(s.sampleCount) * int64(time.Second) / int64(s.config.SampleRate),
	}
	s.sampleCount += uint64(s.config.FrameSize)
	return samples
}

func (s *ToneSource) generateLoop() {
	defer close(s.doneCh)

	frameDuration := time.Duration(float64(s.config.FrameSize) / float64(s.config.SampleRate) * float64(time.Second))
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			samples := s.Next()

			s.mu.RLock()
			cb := s.callback
			ch := s.samplesCh
			s.mu.RUnlock()

			if cb != nil {
				cb(samples)
				continue
			}
			if ch == nil {
				continue
			}
			select {
			case ch <- samples:
			default:
				// Drop if channel full
			}
		}
	}
}

// fill writes one block of wave(phase) at freq into data, all channels equal.
func (s *ToneSource) fill(data []byte, freq float64, wave func(float64) float64) {
	phaseIncrement := 2.0 * math.Pi * freq / float64(s.config.SampleRate)
	amplitude := s.config.Amplitude * 32767.0

	idx := 0
	for i := 0; i < s.config.FrameSize; i++ {
		sample := int16(amplitude * wave(s.phase))
		s.phase += phaseIncrement
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
		for c := 0; c < s.config.Channels; c++ {
			binary.LittleEndian.PutUint16(data[idx:], uint16(sample))
			idx += 2
		}
	}
}

func (s *ToneSource) sweepFrequency() float64 {
	sweepSamples := float64(s.config.SampleRate) * s.config.SweepDuration.Seconds()
	progress := math.Mod(float64(s.sampleCount), sweepSamples) / sweepSamples

	logStart := math.Log(s.config.SweepStartHz)
	logEnd := math.Log(s.config.SweepEndHz)
	return math.Exp(logStart + progress*(logEnd-logStart))
}

func square(phase float64) float64 {
	if math.Sin(phase) >= 0 {
		return 1
	}
	return -1
}

// Register tone source factories for synthetic and microphone-less setups.
func init() {
	RegisterAudioSource(SourceKindTestPattern, func(config map[string]any) (AudioSource, error) {
		cfg := DefaultToneConfig()
		cfg.SampleRate = configInt(config, "sample_rate", cfg.SampleRate)
		cfg.Channels = configInt(config, "channels", cfg.Channels)
		cfg.FrameSize = configInt(config, "frame_size", cfg.FrameSize)
		cfg.Frequency = configFloat(config, "frequency", cfg.Frequency)
		cfg.Amplitude = configFloat(config, "amplitude", cfg.Amplitude)
		if name := configString(config, "tone", ""); name != "" {
			p, err := ParseTonePattern(name)
			if err != nil {
				return nil, err
			}
			cfg.Pattern = p
		}
		return NewToneSource(cfg), nil
	})
}
