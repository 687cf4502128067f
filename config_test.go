package studio

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStudioConfigValid(t *testing.T) {
	require.NoError(t, DefaultStudioConfig().Validate())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.toml")
	data := `
width = 1920
height = 1080
fps = 60
background = "#102030"
log_level = "debug"

[audio]
sample_rate = 44100
meter_interval = "100ms"
wire_by_default = false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 1080, cfg.Height)
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, color.RGBA{0x10, 0x20, 0x30, 255}, cfg.BackgroundColor())
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 128, cfg.Audio.BlockSize, "unset keys keep defaults")
	assert.Equal(t, 100*time.Millisecond, cfg.Audio.MeterInterval.Duration)
	assert.False(t, cfg.Audio.WireByDefault)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.toml")
	data := `
[[sources]]
id = "cam"
kind = "camera"
label = "Front camera"

[sources.video]
options = { width = 640, height = 360, pattern = "MovingBox" }

[[sources]]
id = "mic"
kind = "microphone"

[sources.audio]
driver = "test-pattern"
options = { tone = "Square", amplitude = 0.25 }
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)

	cam := cfg.Sources[0]
	assert.Equal(t, "cam", cam.ID)
	assert.Equal(t, "Front camera", cam.Label)
	require.NotNil(t, cam.Video)
	assert.Nil(t, cam.Audio)
	assert.Equal(t, int64(640), cam.Video.Options["width"])
	assert.Equal(t, "MovingBox", cam.Video.Options["pattern"])

	mic := cfg.Sources[1]
	require.NotNil(t, mic.Audio)
	assert.Equal(t, "test-pattern", mic.Audio.Driver)
	assert.Equal(t, 0.25, mic.Audio.Options["amplitude"])

	info, err := mic.Info()
	require.NoError(t, err)
	assert.Equal(t, SourceInfo{ID: "mic", Kind: SourceKindMicrophone, Label: "mic"}, info)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("fps = 0\n"), 0o644))
	_, err := LoadConfig(bad)
	assert.True(t, IsCode(err, ErrCodeInvalidConfig))

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("width = \n"), 0o644))
	_, err = LoadConfig(broken)
	assert.True(t, IsCode(err, ErrCodeInvalidConfig))

	_, err = LoadConfig(filepath.Join(dir, "missing.toml"))
	assert.True(t, IsCode(err, ErrCodeInvalidConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StudioConfig)
	}{
		{"zero width", func(c *StudioConfig) { c.Width = 0 }},
		{"negative fps", func(c *StudioConfig) { c.FPS = -1 }},
		{"bad color", func(c *StudioConfig) { c.Background = "red" }},
		{"zero sample rate", func(c *StudioConfig) { c.Audio.SampleRate = 0 }},
		{"negative interval", func(c *StudioConfig) { c.Audio.MeterInterval.Duration = -time.Second }},
		{"bad level", func(c *StudioConfig) { c.LogLevel = "loud" }},
		{"source without id", func(c *StudioConfig) { c.Sources = []SourceSpec{{Kind: "camera"}} }},
		{"recorder id", func(c *StudioConfig) { c.Sources = []SourceSpec{{ID: RecorderID, Kind: "microphone"}} }},
		{"unknown source kind", func(c *StudioConfig) { c.Sources = []SourceSpec{{ID: "a", Kind: "webcam"}} }},
		{"unknown driver", func(c *StudioConfig) {
			c.Sources = []SourceSpec{{ID: "a", Kind: "camera", Video: &StreamSpec{Driver: "v4l2"}}}
		}},
		{"duplicate source", func(c *StudioConfig) {
			c.Sources = []SourceSpec{{ID: "a", Kind: "camera"}, {ID: "a", Kind: "screen"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStudioConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseResolution(t *testing.T) {
	w, h, err := ParseResolution("1280x720")
	require.NoError(t, err)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	w, h, err = ParseResolution(" 640X480 ")
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	for _, s := range []string{"", "1280", "0x720", "ax720", "1280x-1"} {
		_, _, err := ParseResolution(s)
		assert.Error(t, err, s)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 128, 0, 255}, c)

	c, err = ParseColor("")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{A: 255}, c)

	_, err = ParseColor("#ff80")
	assert.Error(t, err)
}
