package studio

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ReorderDirection moves a layer one step in paint order.
type ReorderDirection int

const (
	ReorderFront ReorderDirection = iota // Towards the end of the list (drawn later, on top)
	ReorderBack                          // Towards the start of the list
)

func (d ReorderDirection) String() string {
	if d == ReorderFront {
		return "front"
	}
	return "back"
}

// SurfaceFactory creates the output surface for a resolution.
type SurfaceFactory func(width, height int, background color.RGBA) Surface

// CompositorConfig configures the scene compositor.
type CompositorConfig struct {
	Width      int        // Surface width
	Height     int        // Surface height
	FPS        int        // Output frame rate
	Background color.RGBA // Background color

	NewSurface SurfaceFactory // Defaults to an in-memory ImageSurface
	Logger     *log.Logger
}

// DefaultCompositorConfig returns a default compositor configuration.
func DefaultCompositorConfig() CompositorConfig {
	return CompositorConfig{
		Width:      1280,
		Height:     720,
		FPS:        30,
		Background: color.RGBA{A: 255},
	}
}

// Compositor owns the ordered layer list and renders it to the output
// surface on a fixed-period timer. List order is paint order: later layers
// draw on top.
type Compositor struct {
	config CompositorConfig

	layers   []*Layer
	layersMu sync.RWMutex

	surface  Surface
	renderMu sync.Mutex

	presets *PresetBook

	tracks   map[string]*SurfaceTrack
	tracksMu sync.Mutex

	running    atomic.Bool
	ctx        context.Context
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	startNanos atomic.Int64
	fps        atomic.Int32
	frames     atomic.Uint64

	mu  sync.Mutex
	log *log.Logger
}

// NewCompositor creates a compositor with an empty layer list.
func NewCompositor(config CompositorConfig) *Compositor {
	def := DefaultCompositorConfig()
	if config.Width <= 0 {
		config.Width = def.Width
	}
	if config.Height <= 0 {
		config.Height = def.Height
	}
	if config.FPS <= 0 {
		config.FPS = def.FPS
	}
	if config.Background == (color.RGBA{}) {
		config.Background = def.Background
	}
	if config.NewSurface == nil {
		config.NewSurface = func(w, h int, bg color.RGBA) Surface { return NewImageSurface(w, h, bg) }
	}

	c := &Compositor{
		config:  config,
		surface: config.NewSurface(config.Width, config.Height, config.Background),
		presets: NewPresetBook(),
		tracks:  make(map[string]*SurfaceTrack),
		log:     componentLogger(config.Logger, "compositor"),
	}
	c.fps.Store(int32(config.FPS))
	return c
}

// AddLayer registers an unpainted layer. Re-adding an id replaces its
// drawable and keeps its geometry.
func (c *Compositor) AddLayer(id string, d Drawable) {
	c.layersMu.Lock()
	defer c.layersMu.Unlock()

	if l := c.find(id); l != nil {
		l.Drawable = d
		return
	}
	c.layers = append(c.layers, &Layer{ID: id, Drawable: d, Scale: 1})
	c.log.Debug("layer added", "id", id)
}

// RemoveLayer removes a layer by id. Removing an absent layer is a no-op.
func (c *Compositor) RemoveLayer(id string) bool {
	c.layersMu.Lock()
	defer c.layersMu.Unlock()

	for i, l := range c.layers {
		if l.ID == id {
			c.layers = append(c.layers[:i], c.layers[i+1:]...)
			c.log.Debug("layer removed", "id", id)
			return true
		}
	}
	return false
}

// Layer returns a copy of the layer with the given id.
func (c *Compositor) Layer(id string) (Layer, error) {
	c.layersMu.RLock()
	defer c.layersMu.RUnlock()

	l := c.find(id)
	if l == nil {
		return Layer{}, NewError(ErrCodeUnknownLayer, "layer %q", id)
	}
	return l.Clone(), nil
}

// Layers returns copies of all layers in paint order.
func (c *Compositor) Layers() []Layer {
	c.layersMu.RLock()
	defer c.layersMu.RUnlock()

	out := make([]Layer, len(c.layers))
	for i, l := range c.layers {
		out[i] = l.Clone()
	}
	return out
}

// IDs returns the layer ids in paint order.
func (c *Compositor) IDs() []string {
	c.layersMu.RLock()
	defer c.layersMu.RUnlock()

	ids := make([]string, len(c.layers))
	for i, l := range c.layers {
		ids[i] = l.ID
	}
	return ids
}

// Place paints a layer at position with the given scale.
func (c *Compositor) Place(id string, scale float64, position Point) error {
	if scale < 0 {
		return NewError(ErrCodeGeometryFault, "negative scale %g for layer %q", scale, id)
	}
	return c.update(id, func(l *Layer) {
		l.Scale = scale
		l.Position = &position
		l.Painted = true
	})
}

// Unpaint removes a layer from the render without forgetting it.
func (c *Compositor) Unpaint(id string) error {
	return c.update(id, func(l *Layer) {
		l.Painted = false
		l.Position = nil
		l.Scale = 1
	})
}

// SetFilters sets a layer's color adjustments.
func (c *Compositor) SetFilters(id string, f Filters) error {
	return c.update(id, func(l *Layer) { l.Filters = &f })
}

// ClearFilters removes a layer's color adjustments.
func (c *Compositor) ClearFilters(id string) error {
	return c.update(id, func(l *Layer) { l.Filters = nil })
}

// Reorder swaps a layer with its neighbor in the given direction.
// Moving past either end of the list is a no-op.
func (c *Compositor) Reorder(id string, dir ReorderDirection) error {
	c.layersMu.Lock()
	defer c.layersMu.Unlock()

	idx := c.index(id)
	if idx < 0 {
		return NewError(ErrCodeUnknownLayer, "layer %q", id)
	}
	other := idx + 1
	if dir == ReorderBack {
		other = idx - 1
	}
	if other < 0 || other >= len(c.layers) {
		return nil
	}
	c.layers[idx], c.layers[other] = c.layers[other], c.layers[idx]
	return nil
}

// RenderTick clears the surface and draws every painted layer in order.
// A failure on one layer is logged and does not skip the others.
func (c *Compositor) RenderTick() {
	layers := c.Layers()

	c.renderMu.Lock()
	surface := c.surface
	surface.Clear()
	for _, l := range layers {
		if !l.Painted || l.Position == nil || l.Drawable == nil {
			continue
		}
		size := l.Drawable.Size()
		if size.Empty() {
			c.log.Warn("layer has no intrinsic size", "id", l.ID)
			continue
		}
		if f := FilterString(l.Filters); f != surface.Filter() {
			surface.SetFilter(f)
		}
		box := RectAt(*l.Position, size.Scale(l.Scale))
		if err := surface.Draw(l.Drawable, box); err != nil {
			c.log.Warn("layer render failed", "id", l.ID, "err", err)
		}
	}
	c.renderMu.Unlock()

	c.frames.Add(1)
	c.publish()
}

// publish pushes a snapshot of the surface to every capture track.
func (c *Compositor) publish() {
	c.tracksMu.Lock()
	tracks := make([]*SurfaceTrack, 0, len(c.tracks))
	for _, t := range c.tracks {
		tracks = append(tracks, t)
	}
	c.tracksMu.Unlock()
	if len(tracks) == 0 {
		return
	}

	var ts int64
	if start := c.startNanos.Load(); start != 0 {
		ts = time.Now().UnixNano() - start
	}
	frame := FrameFromImage(c.Snapshot(), ts)
	frame.Duration = (time.Second / time.Duration(c.fps.Load())).Nanoseconds()
	for _, t := range tracks {
		t.push(frame)
	}
}

// Frames returns the number of ticks rendered so far.
func (c *Compositor) Frames() uint64 {
	return c.frames.Load()
}

// Snapshot returns a copy of the current surface pixels.
func (c *Compositor) Snapshot() *image.RGBA {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.surface.Snapshot()
}

// Surface returns the current output surface.
func (c *Compositor) Surface() Surface {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.surface
}

// SurfaceSize returns the internal resolution of the output surface.
func (c *Compositor) SurfaceSize() Size {
	return c.Surface().Size()
}

// FrameRate returns the configured frame rate.
func (c *Compositor) FrameRate() int {
	return int(c.fps.Load())
}

// SetFrameRate changes the frame rate, restarting the render timer when running.
func (c *Compositor) SetFrameRate(fps int) error {
	if fps <= 0 {
		return NewError(ErrCodeInvalidConfig, "frame rate must be positive, got %d", fps)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps
	c.fps.Store(int32(fps))
	if c.running.Load() {
		c.stopLoopLocked()
		c.startLoopLocked()
	}
	c.log.Debug("frame rate changed", "fps", fps)
	return nil
}

// SetResolution replaces the output surface with one of the given size.
// Layer geometry is kept as is.
func (c *Compositor) SetResolution(width, height int) error {
	if width <= 0 || height <= 0 {
		return NewError(ErrCodeInvalidConfig, "resolution must be positive, got %dx%d", width, height)
	}
	c.mu.Lock()
	c.config.Width, c.config.Height = width, height
	surface := c.config.NewSurface(width, height, c.config.Background)
	c.mu.Unlock()

	c.renderMu.Lock()
	c.surface = surface
	c.renderMu.Unlock()
	c.log.Debug("resolution changed", "width", width, "height", height)
	return nil
}

// Start begins rendering at the configured frame rate.
func (c *Compositor) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return fmt.Errorf("compositor already running")
	}
	c.ctx = ctx
	c.startNanos.Store(time.Now().UnixNano())
	c.running.Store(true)
	c.startLoopLocked()
	return nil
}

// Stop halts the render timer.
func (c *Compositor) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return nil
	}
	c.running.Store(false)
	c.stopLoopLocked()
	return nil
}

// Close stops rendering and ends every capture track.
func (c *Compositor) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}

	c.tracksMu.Lock()
	tracks := c.tracks
	c.tracks = make(map[string]*SurfaceTrack)
	c.tracksMu.Unlock()

	for _, t := range tracks {
		t.Close()
	}
	return nil
}

func (c *Compositor) startLoopLocked() {
	ctx, cancel := context.WithCancel(c.ctx)
	c.loopCancel = cancel
	c.loopDone = make(chan struct{})
	go c.renderLoop(ctx, time.Second/time.Duration(c.config.FPS), c.loopDone)
}

func (c *Compositor) stopLoopLocked() {
	if c.loopCancel != nil {
		c.loopCancel()
		<-c.loopDone
		c.loopCancel = nil
	}
}

func (c *Compositor) renderLoop(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RenderTick()
		}
	}
}

// CaptureStream returns a video track fed with a surface snapshot on every tick.
func (c *Compositor) CaptureStream() *SurfaceTrack {
	t := newSurfaceTrack(uuid.NewString())
	t.detach = func() {
		c.tracksMu.Lock()
		delete(c.tracks, t.ID())
		c.tracksMu.Unlock()
	}

	c.tracksMu.Lock()
	c.tracks[t.ID()] = t
	c.tracksMu.Unlock()
	return t
}

// Presets returns the compositor's preset book.
func (c *Compositor) Presets() *PresetBook {
	return c.presets
}

// SnapshotPreset stores the geometry of every painted layer under name and
// returns the stored preset.
func (c *Compositor) SnapshotPreset(name string) (Preset, error) {
	if name == "" {
		return Preset{}, NewError(ErrCodeInvalidConfig, "preset name is empty")
	}

	c.layersMu.RLock()
	var elements []PresetElement
	for _, l := range c.layers {
		if !l.Painted || l.Position == nil || l.Drawable == nil {
			continue
		}
		dup, err := DuplicateDrawable(l.Drawable)
		if err != nil {
			c.log.Warn("drawable duplicate failed, sharing original", "id", l.ID, "err", err)
			dup = l.Drawable
		}
		cl := l.Clone()
		elements = append(elements, PresetElement{
			ID:       l.ID,
			Scale:    l.Scale,
			Position: *cl.Position,
			Filters:  cl.Filters,
			Drawable: dup,
		})
	}
	c.layersMu.RUnlock()

	p := c.presets.Put(name, elements)
	c.log.Debug("preset saved", "name", name, "shortcut", p.Shortcut, "elements", len(elements))
	return p, nil
}

// ApplyPreset resets every layer to unpainted, paints the layers named by the
// preset with its geometry, and moves them to the front of the list in the
// preset's order. Preset entries with no live layer are skipped.
func (c *Compositor) ApplyPreset(p Preset) {
	c.layersMu.Lock()
	defer c.layersMu.Unlock()

	for _, l := range c.layers {
		l.Painted = false
		l.Position = nil
		l.Scale = 1
	}

	next := 0
	for _, e := range p.Elements {
		idx := c.index(e.ID)
		if idx < 0 {
			continue
		}
		l := c.layers[idx]
		pos := e.Position
		l.Scale = e.Scale
		l.Position = &pos
		l.Painted = true

		if idx < next {
			continue
		}
		copy(c.layers[next+1:idx+1], c.layers[next:idx])
		c.layers[next] = l
		next++
	}
}

// ApplyNamedPreset applies the stored preset with the given name.
func (c *Compositor) ApplyNamedPreset(name string) error {
	p, err := c.presets.Get(name)
	if err != nil {
		return err
	}
	c.ApplyPreset(p)
	return nil
}

// ApplyShortcut applies the preset bound to a keyboard shortcut such as "ctrl+2".
func (c *Compositor) ApplyShortcut(key string) error {
	p, err := c.presets.ByShortcut(key)
	if err != nil {
		return err
	}
	c.ApplyPreset(p)
	return nil
}

// LayerBox returns a placed layer's rectangle in the display coordinates of view.
func (c *Compositor) LayerBox(id string, view SurfaceView) (Rect, bool) {
	l, err := c.Layer(id)
	if err != nil {
		return Rect{}, false
	}
	box, ok := l.Box()
	if !ok {
		return Rect{}, false
	}
	return toDisplay(box, c.SurfaceSize(), view.DisplayRect()), true
}

// Boxes exposes placed layer geometry in the display coordinates of view.
func (c *Compositor) Boxes(view SurfaceView) LayerBoxes {
	return compositorBoxes{c: c, view: view}
}

type compositorBoxes struct {
	c    *Compositor
	view SurfaceView
}

func (b compositorBoxes) PlacedLayers() []string {
	var ids []string
	for _, l := range b.c.Layers() {
		if _, ok := l.Box(); ok {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func (b compositorBoxes) LayerBox(id string) (Rect, bool) {
	return b.c.LayerBox(id, b.view)
}

// find returns the layer with id. Callers hold layersMu.
func (c *Compositor) find(id string) *Layer {
	if i := c.index(id); i >= 0 {
		return c.layers[i]
	}
	return nil
}

func (c *Compositor) index(id string) int {
	for i, l := range c.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (c *Compositor) update(id string, fn func(*Layer)) error {
	c.layersMu.Lock()
	defer c.layersMu.Unlock()

	l := c.find(id)
	if l == nil {
		return NewError(ErrCodeUnknownLayer, "layer %q", id)
	}
	fn(l)
	return nil
}
