package studio

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// PatternType defines the type of test pattern to generate.
type PatternType int

const (
	PatternColorBars    PatternType = iota // SMPTE color bars
	PatternCheckerboard                    // Checkerboard pattern
	PatternSolidColor                      // Solid color
	PatternMovingBox                       // Moving box (animated)
)

func (p PatternType) String() string {
	switch p {
	case PatternColorBars:
		return "ColorBars"
	case PatternCheckerboard:
		return "Checkerboard"
	case PatternSolidColor:
		return "SolidColor"
	case PatternMovingBox:
		return "MovingBox"
	default:
		return "Unknown"
	}
}

// ParsePatternType is the inverse of PatternType.String.
func ParsePatternType(s string) (PatternType, error) {
	for p := PatternColorBars; p <= PatternMovingBox; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return PatternColorBars, NewError(ErrCodeInvalidConfig, "unknown pattern %q", s)
}

// TestPatternConfig configures a test pattern source.
type TestPatternConfig struct {
	Width   int         // Frame width (default: 1280)
	Height  int         // Frame height (default: 720)
	FPS     int         // Frames per second (default: 30)
	Pattern PatternType // Pattern type (default: ColorBars)

	// For SolidColor pattern
	Solid color.RGBA

	// For Checkerboard pattern
	CheckerSize int // Size of each checker square (default: 32)
}

// DefaultTestPatternConfig returns a default test pattern configuration.
func DefaultTestPatternConfig() TestPatternConfig {
	return TestPatternConfig{
		Width:       1280,
		Height:      720,
		FPS:         30,
		Pattern:     PatternColorBars,
		CheckerSize: 32,
	}
}

// TestPatternSource generates synthetic RGBA video frames. It stands in for a
// camera or screen share when no device is available.
type TestPatternSource struct {
	config TestPatternConfig

	frameDuration time.Duration
	frameCount    uint64
	startTime     time.Time
	static        *image.RGBA

	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	frameCh  chan *VideoFrame
	doneCh   chan struct{}
	callback VideoFrameCallback

	mu sync.RWMutex
}

// NewTestPatternSource creates a new test pattern video source.
func NewTestPatternSource(config TestPatternConfig) *TestPatternSource {
	if config.Width <= 0 {
		config.Width = 1280
	}
	if config.Height <= 0 {
		config.Height = 720
	}
	if config.FPS <= 0 {
		config.FPS = 30
	}
	if config.CheckerSize <= 0 {
		config.CheckerSize = 32
	}

	s := &TestPatternSource{
		config:        config,
		frameDuration: time.Second / time.Duration(config.FPS),
		frameCh:       make(chan *VideoFrame, 2),
	}
	if config.Pattern != PatternMovingBox {
		s.static = s.render(0)
	}
	return s
}

// Start begins generating frames.
func (s *TestPatternSource) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("source already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.running.Store(true)
	s.startTime = time.Now()
	s.frameCount = 0

	go s.generateLoop()

	return nil
}

// Stop stops generating frames and waits for the goroutine to exit.
func (s *TestPatternSource) Stop() error {
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
func (s *TestPatternSource) Close() error {
	s.Stop()
	s.mu.Lock()
	if s.frameCh != nil {
		close(s.frameCh)
		s.frameCh = nil
	}
	s.mu.Unlock()
	return nil
}

// ReadFrame reads the next frame (blocking).
func (s *TestPatternSource) ReadFrame(ctx context.Context) (*VideoFrame, error) {
	s.mu.RLock()
	ch := s.frameCh
	s.mu.RUnlock()
	if ch == nil {
		return nil, fmt.Errorf("source closed")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("source closed")
		}
		return frame, nil
	}
}

// SetCallback sets the push-mode callback.
func (s *TestPatternSource) SetCallback(cb VideoFrameCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// Config returns the source configuration.
func (s *TestPatternSource) Config() SourceConfig {
	return SourceConfig{
		Width:  s.config.Width,
		Height: s.config.Height,
		FPS:    s.config.FPS,
		Format: PixelFormatRGBA32,
		Kind:   SourceKindTestPattern,
	}
}

// Frame renders the frame for the given frame number without starting the source.
func (s *TestPatternSource) Frame(frameNum uint64) *VideoFrame {
	img := s.static
	if img == nil {
		img = s.render(frameNum)
	}
	f := FrameFromImage(img, int64(frameNum)*s.frameDuration.Nanoseconds())
	f.Duration = s.frameDuration.Nanoseconds()
	return f
}

func (s *TestPatternSource) generateLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.frameCount++
			frame := s.Frame(s.frameCount)
			frame.Timestamp = time.Since(s.startTime).Nanoseconds()

			s.mu.RLock()
			cb := s.callback
			ch := s.frameCh
			s.mu.RUnlock()

			if cb != nil {
				cb(frame)
				continue
			}
			if ch == nil {
				continue
			}
			select {
			case <-s.ctx.Done():
				return
			case ch <- frame:
			default:
				// Drop frame if channel full
			}
		}
	}
}

func (s *TestPatternSource) render(frameNum uint64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.config.Width, s.config.Height))
	switch s.config.Pattern {
	case PatternCheckerboard:
		s.drawCheckerboard(img)
	case PatternSolidColor:
		fill(img, img.Bounds(), s.config.Solid)
	case PatternMovingBox:
		s.drawMovingBox(img, frameNum)
	default:
		drawColorBars(img)
	}
	return img
}

// SMPTE color bars (simplified 8-bar pattern)
var colorBarsRGB = []color.RGBA{
	{192, 192, 192, 255}, // White (75%)
	{192, 192, 0, 255},   // Yellow
	{0, 192, 192, 255},   // Cyan
	{0, 192, 0, 255},     // Green
	{192, 0, 192, 255},   // Magenta
	{192, 0, 0, 255},     // Red
	{0, 0, 192, 255},     // Blue
	{16, 16, 16, 255},    // Black
}

func drawColorBars(img *image.RGBA) {
	b := img.Bounds()
	barWidth := b.Dx() / len(colorBarsRGB)
	if barWidth == 0 {
		barWidth = 1
	}
	for i, c := range colorBarsRGB {
		x0 := i * barWidth
		x1 := x0 + barWidth
		if i == len(colorBarsRGB)-1 {
			x1 = b.Dx()
		}
		fill(img, image.Rect(x0, 0, x1, b.Dy()), c)
	}
}

func (s *TestPatternSource) drawCheckerboard(img *image.RGBA) {
	size := s.config.CheckerSize
	white := color.RGBA{235, 235, 235, 255}
	black := color.RGBA{16, 16, 16, 255}
	for y := 0; y < s.config.Height; y++ {
		for x := 0; x < s.config.Width; x++ {
			if ((x/size)+(y/size))%2 == 0 {
				img.SetRGBA(x, y, white)
			} else {
				img.SetRGBA(x, y, black)
			}
		}
	}
}

func (s *TestPatternSource) drawMovingBox(img *image.RGBA, frameNum uint64) {
	w, h := s.config.Width, s.config.Height
	fill(img, img.Bounds(), color.RGBA{16, 16, 16, 255})

	// The box moves in a circle around the frame center.
	boxSize := 100
	radius := float64(minInt(w, h)) / 4
	angle := float64(frameNum) * 0.05
	boxX := w/2 + int(radius*math.Cos(angle)) - boxSize/2
	boxY := h/2 + int(radius*math.Sin(angle)) - boxSize/2

	fill(img, image.Rect(boxX, boxY, boxX+boxSize, boxY+boxSize), color.RGBA{235, 235, 235, 255})
}

// fill paints r (clipped to the image) with c.
func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Register test pattern source factory
func init() {
	RegisterVideoSource(SourceKindTestPattern, func(config map[string]any) (VideoSource, error) {
		cfg := DefaultTestPatternConfig()
		cfg.Width = configInt(config, "width", cfg.Width)
		cfg.Height = configInt(config, "height", cfg.Height)
		cfg.FPS = configInt(config, "fps", cfg.FPS)
		cfg.CheckerSize = configInt(config, "checker_size", cfg.CheckerSize)
		if name := configString(config, "pattern", ""); name != "" {
			p, err := ParsePatternType(name)
			if err != nil {
				return nil, err
			}
			cfg.Pattern = p
		}
		return NewTestPatternSource(cfg), nil
	})
}
