package studio

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// StudioConfig configures a Studio.
type StudioConfig struct {
	Width      int          `toml:"width"`      // Output surface width
	Height     int          `toml:"height"`     // Output surface height
	FPS        int          `toml:"fps"`        // Output frame rate
	Background string       `toml:"background"` // Surface background, "#rrggbb"
	Audio      AudioConfig  `toml:"audio"`
	LogLevel   string       `toml:"log_level"` // debug, info, warn, error
	Sources    []SourceSpec `toml:"sources,omitempty"`
}

// SourceSpec declares a source to open at startup.
type SourceSpec struct {
	ID    string      `toml:"id"`
	Kind  string      `toml:"kind"` // camera, microphone, file, screen, output-device, test-pattern
	Label string      `toml:"label,omitempty"`
	Video *StreamSpec `toml:"video,omitempty"`
	Audio *StreamSpec `toml:"audio,omitempty"`
}

// StreamSpec picks a registered source factory and the options passed to it.
type StreamSpec struct {
	Driver  string         `toml:"driver,omitempty"` // registered source kind, default test-pattern
	Options map[string]any `toml:"options,omitempty"`
}

func (s *StreamSpec) driver() (SourceKind, error) {
	if s.Driver == "" {
		return SourceKindTestPattern, nil
	}
	return ParseSourceKind(s.Driver)
}

// Validate checks the id, the kind and every stream driver.
func (s SourceSpec) Validate() error {
	if s.ID == "" {
		return NewError(ErrCodeInvalidConfig, "source id is empty")
	}
	if s.ID == RecorderID {
		return NewError(ErrCodeInvalidConfig, "source id %q is reserved", s.ID)
	}
	if _, err := ParseSourceKind(s.Kind); err != nil {
		return WrapError(ErrCodeInvalidConfig, err, "source %q", s.ID)
	}
	for _, stream := range []*StreamSpec{s.Video, s.Audio} {
		if stream == nil {
			continue
		}
		if _, err := stream.driver(); err != nil {
			return WrapError(ErrCodeInvalidConfig, err, "source %q", s.ID)
		}
	}
	return nil
}

// AudioConfig configures the processing context and metering.
type AudioConfig struct {
	SampleRate    int      `toml:"sample_rate"`     // Context sample rate
	BlockSize     int      `toml:"block_size"`      // Samples per render quantum
	MeterBuffer   int      `toml:"meter_buffer"`    // Blocks buffered per analysis tap
	WireByDefault bool     `toml:"wire_by_default"` // Connect new inputs to the recorder
	MeterInterval Duration `toml:"meter_interval"`  // Minimum spacing of meter events, 0 = every block
}

// Duration is a time.Duration that decodes from TOML strings like "50ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultStudioConfig returns a default studio configuration.
func DefaultStudioConfig() StudioConfig {
	return StudioConfig{
		Width:      1280,
		Height:     720,
		FPS:        30,
		Background: "#000000",
		Audio: AudioConfig{
			SampleRate:    48000,
			BlockSize:     128,
			MeterBuffer:   8,
			WireByDefault: true,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a TOML file on top of DefaultStudioConfig and validates it.
func LoadConfig(path string) (StudioConfig, error) {
	cfg := DefaultStudioConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return StudioConfig{}, WrapError(ErrCodeInvalidConfig, err, "decode %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return StudioConfig{}, err
	}
	return cfg, nil
}

// Validate checks that all values are usable.
func (c StudioConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return NewError(ErrCodeInvalidConfig, "resolution must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return NewError(ErrCodeInvalidConfig, "fps must be positive, got %d", c.FPS)
	}
	if _, err := ParseColor(c.Background); err != nil {
		return err
	}
	if c.Audio.SampleRate <= 0 || c.Audio.BlockSize <= 0 {
		return NewError(ErrCodeInvalidConfig, "audio sample rate and block size must be positive")
	}
	if c.Audio.MeterBuffer < 0 || c.Audio.MeterInterval.Duration < 0 {
		return NewError(ErrCodeInvalidConfig, "meter settings must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, spec := range c.Sources {
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.ID] {
			return NewError(ErrCodeInvalidConfig, "source %q declared twice", spec.ID)
		}
		seen[spec.ID] = true
	}
	return nil
}

// BackgroundColor returns the parsed background, black when unparsable.
func (c StudioConfig) BackgroundColor() color.RGBA {
	bg, err := ParseColor(c.Background)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return bg
}

// ParseResolution parses "WIDTHxHEIGHT", for example "1280x720".
func ParseResolution(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, NewError(ErrCodeInvalidConfig, "resolution %q is not WIDTHxHEIGHT", s)
	}
	width, err = strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, NewError(ErrCodeInvalidConfig, "invalid width in %q", s)
	}
	height, err = strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, NewError(ErrCodeInvalidConfig, "invalid height in %q", s)
	}
	return width, height, nil
}

// ParseColor parses "#rrggbb" into an opaque color. An empty string is black.
func ParseColor(s string) (color.RGBA, error) {
	if s == "" {
		return color.RGBA{A: 255}, nil
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil || len(s) != 7 {
		return color.RGBA{}, NewError(ErrCodeInvalidConfig, "color %q is not #rrggbb", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
