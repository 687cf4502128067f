package studio

import (
	"context"
	"fmt"
	"image/color"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// SourceStreams are the captured streams of a source. Any field may be nil.
type SourceStreams struct {
	Video VideoSource // Live video, shown through a VideoSourceDrawable
	Audio AudioSource // Live audio, fed into the source's endpoint
	Image Drawable    // Still image, used when there is no video
}

// Option configures a Studio.
type Option func(*studioOptions)

type studioOptions struct {
	logger      *log.Logger
	view        SurfaceView
	newSurface  SurfaceFactory
	newContext  func(AudioContextConfig) (*AudioContext, error)
	loadModule  ModuleLoader
	manualClock bool
}

// WithLogger sets the logger of the studio and its components.
func WithLogger(l *log.Logger) Option {
	return func(o *studioOptions) { o.logger = l }
}

// WithView sets where the output surface is displayed. Defaults to the
// surface itself at 1:1.
func WithView(v SurfaceView) Option {
	return func(o *studioOptions) { o.view = v }
}

// WithSurfaceFactory replaces the output surface implementation.
func WithSurfaceFactory(f SurfaceFactory) Option {
	return func(o *studioOptions) { o.newSurface = f }
}

// WithContextFactory replaces how the audio processing context is created.
func WithContextFactory(f func(AudioContextConfig) (*AudioContext, error)) Option {
	return func(o *studioOptions) { o.newContext = f }
}

// WithModuleLoader sets the loader of the loudness analysis unit.
func WithModuleLoader(l ModuleLoader) Option {
	return func(o *studioOptions) { o.loadModule = l }
}

// WithManualClock disables the audio render clock.
func WithManualClock() Option {
	return func(o *studioOptions) { o.manualClock = true }
}

// surfaceView displays the compositor surface at its own resolution.
type surfaceView struct {
	c *Compositor
}

func (v surfaceView) DisplayRect() Rect {
	return RectAt(Point{}, v.c.SurfaceSize())
}

type studioSource struct {
	info     SourceInfo
	pipeline *SourcePipeline
}

// Studio ties sources to the compositor and the audio router and produces
// the composed output stream.
type Studio struct {
	config     StudioConfig
	compositor *Compositor
	router     *Router
	placement  *PlacementEngine
	view       SurfaceView

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sources  map[string]*studioSource
	order    []string
	output   MediaStream
	started  time.Time
	onOutput func(MediaStream)

	log *log.Logger
}

// NewStudio creates a studio from a validated configuration.
func NewStudio(config StudioConfig, opts ...Option) (*Studio, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	var o studioOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}

	c := NewCompositor(CompositorConfig{
		Width:      config.Width,
		Height:     config.Height,
		FPS:        config.FPS,
		Background: config.BackgroundColor(),
		NewSurface: o.newSurface,
		Logger:     o.logger,
	})
	r := NewRouter(RouterConfig{
		SampleRate:    config.Audio.SampleRate,
		BlockSize:     config.Audio.BlockSize,
		MeterBuffer:   config.Audio.MeterBuffer,
		MeterInterval: config.Audio.MeterInterval.Duration,
		ManualClock:   o.manualClock,
		Logger:        o.logger,
		NewContext:    o.newContext,
		LoadModule:    o.loadModule,
	})
	view := o.view
	if view == nil {
		view = surfaceView{c: c}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Studio{
		config:     config,
		compositor: c,
		router:     r,
		placement:  NewPlacementEngine(c, view, c.Boxes(view), o.logger),
		view:       view,
		ctx:        ctx,
		cancel:     cancel,
		sources:    make(map[string]*studioSource),
		log:        componentLogger(o.logger, "studio"),
	}
	return s, nil
}

// Compositor returns the scene compositor.
func (s *Studio) Compositor() *Compositor { return s.compositor }

// Router returns the audio router.
func (s *Studio) Router() *Router { return s.router }

// Placement returns the placement engine.
func (s *Studio) Placement() *PlacementEngine { return s.placement }

// View returns where the output surface is displayed.
func (s *Studio) View() SurfaceView { return s.view }

// Start begins rendering the output surface.
func (s *Studio) Start() error {
	return s.compositor.Start(s.ctx)
}

// hasAudio reports whether a source of this kind gets an audio endpoint.
func hasAudio(kind SourceKind, streams SourceStreams) bool {
	return streams.Audio != nil || kind == SourceKindMicrophone || kind == SourceKindOutputDevice
}

// wiredByDefault reports whether new sources of this kind feed the recorder.
func wiredByDefault(kind SourceKind) bool {
	switch kind {
	case SourceKindMicrophone, SourceKindFile, SourceKindScreen, SourceKindTestPattern:
		return true
	default:
		return false
	}
}

// AddSource registers a discovered source: an audio endpoint when it carries
// audio, a layer when it carries video or an image, and a pipeline feeding
// both. Adding a known id is a no-op.
func (s *Studio) AddSource(ctx context.Context, info SourceInfo, streams SourceStreams) error {
	if info.ID == "" {
		return NewError(ErrCodeInvalidConfig, "source id is empty")
	}
	if info.ID == RecorderID {
		return NewError(ErrCodeInvalidConfig, "source id %q is reserved", info.ID)
	}

	s.mu.Lock()
	if _, ok := s.sources[info.ID]; ok {
		s.mu.Unlock()
		s.log.Debug("source already added", "id", info.ID)
		return nil
	}
	src := &studioSource{info: info}
	s.sources[info.ID] = src
	s.order = append(s.order, info.ID)
	s.mu.Unlock()

	if err := s.attach(ctx, src, streams); err != nil {
		s.log.Error("add source failed", "id", info.ID, "kind", info.Kind, "err", err)
		if rerr := s.RemoveSource(info.ID); rerr != nil {
			err = multierror.Append(err, rerr)
		}
		return err
	}
	s.log.Info("source added", "id", info.ID, "kind", info.Kind)
	return nil
}

// AddSourceSpec opens the streams spec declares and adds them as a source.
// A spec whose id is already added is a no-op.
func (s *Studio) AddSourceSpec(ctx context.Context, spec SourceSpec) error {
	info, err := spec.Info()
	if err != nil {
		return err
	}
	s.mu.Lock()
	_, exists := s.sources[info.ID]
	s.mu.Unlock()
	if exists {
		return nil
	}

	streams, err := spec.OpenStreams()
	if err != nil {
		return err
	}
	if err := s.AddSource(ctx, info, streams); err != nil {
		// Registered sources tolerate a second Close after a partial start.
		if streams.Video != nil {
			streams.Video.Close()
		}
		if streams.Audio != nil {
			streams.Audio.Close()
		}
		return err
	}
	return nil
}

// AddConfiguredSources adds the sources of the studio configuration in
// order, stopping at the first failure.
func (s *Studio) AddConfiguredSources(ctx context.Context) error {
	for _, spec := range s.config.Sources {
		if err := s.AddSourceSpec(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Studio) attach(ctx context.Context, src *studioSource, streams SourceStreams) error {
	id := src.info.ID

	if hasAudio(src.info.Kind, streams) {
		if _, err := s.router.RegisterEndpoint(ctx, id); err != nil {
			return err
		}
		if s.config.Audio.WireByDefault && wiredByDefault(src.info.Kind) {
			if _, err := s.router.Connect(ctx, id, RecorderID); err != nil {
				return err
			}
		}
	}

	var drawable *VideoSourceDrawable
	switch {
	case streams.Video != nil:
		drawable = NewVideoSourceDrawable(streams.Video)
		s.compositor.AddLayer(id, drawable)
	case streams.Image != nil:
		s.compositor.AddLayer(id, streams.Image)
	}

	if streams.Video == nil && streams.Audio == nil {
		return nil
	}
	p, err := NewSourcePipeline(SourcePipelineConfig{
		ID:       id,
		Video:    streams.Video,
		Audio:    streams.Audio,
		Drawable: drawable,
		OnBlock:  func(b *AudioBlock) error { return s.router.Push(id, b) },
		OnError: func(err error) {
			s.log.Debug("source delivery failed", "id", id, "err", err)
		},
	})
	if err != nil {
		return WrapError(ErrCodeResourceUnavailable, err, "source %s", id)
	}
	s.mu.Lock()
	src.pipeline = p
	s.mu.Unlock()

	if err := p.Start(s.ctx); err != nil {
		return WrapError(ErrCodeResourceUnavailable, err, "start source %s", id)
	}
	return nil
}

// RemoveSource stops the source's streams, releases its endpoint and
// connections, removes its layer and drops any gesture bound to it. Every
// step runs even when another fails; removing an unknown id is a no-op.
func (s *Studio) RemoveSource(id string) error {
	s.mu.Lock()
	src := s.sources[id]
	delete(s.sources, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	s.mu.Unlock()

	var result *multierror.Error
	if src != nil && src.pipeline != nil {
		if err := src.pipeline.Stop(); err != nil {
			result = multierror.Append(result, WrapError(ErrCodeTeardownFault, err, "stop streams of %s", id))
		}
	}
	if id != RecorderID {
		if err := s.router.ReleaseEndpoint(id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.compositor.RemoveLayer(id)
	s.placement.CancelLayer(id)

	if err := result.ErrorOrNil(); err != nil {
		s.log.Warn("source removed with faults", "id", id, "err", err)
		return err
	}
	if src != nil {
		s.log.Info("source removed", "id", id)
	}
	return nil
}

// Sources returns the added sources in order.
func (s *Studio) Sources() []SourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SourceInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sources[id].info)
	}
	return out
}

// BeginDrag starts dragging a proxy of layer id.
func (s *Studio) BeginDrag(id string, proxy Size, pointer Point) error {
	return s.placement.BeginDrag(id, proxy, pointer)
}

// BeginResize starts resizing placed layer id through handle.
func (s *Studio) BeginResize(id string, handle Handle, pointer Point) (Feedback, error) {
	return s.placement.BeginResize(id, handle, pointer)
}

// Move updates the active gesture.
func (s *Studio) Move(pointer Point) (Feedback, error) {
	return s.placement.Move(pointer)
}

// Wheel scales the dragged proxy.
func (s *Studio) Wheel(deltaY float64, pointer Point) (Feedback, error) {
	return s.placement.Wheel(deltaY, pointer)
}

// Release ends the active gesture.
func (s *Studio) Release(pointer Point) (Commit, error) {
	return s.placement.Release(pointer)
}

// Fullscreen fits layer id to the whole surface.
func (s *Studio) Fullscreen(id string) (Commit, error) {
	return s.placement.Fullscreen(id)
}

// SetFilters sets the color adjustments of layer id.
func (s *Studio) SetFilters(id string, f Filters) error {
	return s.compositor.SetFilters(id, f)
}

// Reorder moves layer id one step towards the front or back.
func (s *Studio) Reorder(id string, dir ReorderDirection) error {
	return s.compositor.Reorder(id, dir)
}

// SavePreset snapshots the painted layers under name.
func (s *Studio) SavePreset(name string) (Preset, error) {
	return s.compositor.SnapshotPreset(name)
}

// ApplyPreset applies the preset stored under name.
func (s *Studio) ApplyPreset(name string) error {
	return s.compositor.ApplyNamedPreset(name)
}

// ApplyShortcut applies the preset bound to key.
func (s *Studio) ApplyShortcut(key string) error {
	return s.compositor.ApplyShortcut(key)
}

// DeletePreset removes the preset stored under name.
func (s *Studio) DeletePreset(name string) bool {
	return s.compositor.Presets().Delete(name)
}

// Wire connects endpoint from to endpoint to.
func (s *Studio) Wire(ctx context.Context, from, to string) (Connection, error) {
	return s.router.Connect(ctx, from, to)
}

// Unwire severs a connection.
func (s *Studio) Unwire(conn Connection) error {
	return s.router.Disconnect(conn)
}

// SetFrameRate changes the output frame rate.
func (s *Studio) SetFrameRate(fps int) error {
	if err := s.compositor.SetFrameRate(fps); err != nil {
		return err
	}
	s.mu.Lock()
	s.config.FPS = fps
	s.mu.Unlock()
	return nil
}

// SetResolution changes the output surface size.
func (s *Studio) SetResolution(width, height int) error {
	if err := s.compositor.SetResolution(width, height); err != nil {
		return err
	}
	s.mu.Lock()
	s.config.Width, s.config.Height = width, height
	s.mu.Unlock()
	return nil
}

// Background returns the output surface background color.
func (s *Studio) Background() color.RGBA {
	return s.config.BackgroundColor()
}

// OnOutput sets the receiver of the composed stream. It is called with the
// stream when broadcasting starts and with nil when it stops.
func (s *Studio) OnOutput(fn func(MediaStream)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOutput = fn
}

// StartBroadcast starts rendering if needed and emits one stream carrying
// the surface track and the mix track.
func (s *Studio) StartBroadcast(ctx context.Context) (MediaStream, error) {
	s.mu.Lock()
	if s.output != nil {
		out := s.output
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	mix, err := s.router.MixTrack(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.compositor.Start(s.ctx); err != nil {
		s.log.Debug("compositor already rendering")
	}
	stream := NewMediaStream(uuid.NewString(), s.compositor.CaptureStream(), mix)

	s.mu.Lock()
	s.output = stream
	s.started = time.Now()
	fn := s.onOutput
	s.mu.Unlock()

	if fn != nil {
		fn(stream)
	}
	s.log.Info("broadcast started", "stream", stream.ID())
	return stream, nil
}

// StopBroadcast ends the output stream and emits nil. Stopping when not
// broadcasting is a no-op.
func (s *Studio) StopBroadcast() error {
	s.mu.Lock()
	stream := s.output
	s.output = nil
	s.started = time.Time{}
	fn := s.onOutput
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	err := stream.Close()
	if fn != nil {
		fn(nil)
	}
	s.log.Info("broadcast stopped", "stream", stream.ID())
	return err
}

// BroadcastElapsed returns how long the current broadcast has run.
func (s *Studio) BroadcastElapsed() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.output == nil {
		return 0, false
	}
	return time.Since(s.started), true
}

// FormatElapsed renders d as hh:mm:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

// Close stops broadcasting, removes every source and releases the
// compositor and the audio graph.
func (s *Studio) Close() error {
	var result *multierror.Error
	if err := s.StopBroadcast(); err != nil {
		result = multierror.Append(result, err)
	}

	s.mu.Lock()
	ids := slices.Clone(s.order)
	s.mu.Unlock()
	for _, id := range ids {
		if err := s.RemoveSource(id); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := s.compositor.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.router.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	s.cancel()
	return result.ErrorOrNil()
}
