package studio

import (
	"sync"

	"github.com/charmbracelet/log"
)

const (
	wheelStepUp   = 1.05 // Scroll up grows the proxy by 5%
	wheelStepDown = 0.95 // Scroll down shrinks it by 5%
	minProxySize  = 10   // Smallest proxy edge in display pixels
)

// SurfaceView reports where the output surface is displayed, in the same
// coordinate space as pointer events.
type SurfaceView interface {
	DisplayRect() Rect
}

// FixedView is a SurfaceView at a constant rectangle.
type FixedView Rect

func (v FixedView) DisplayRect() Rect { return Rect(v) }

// LayerBoxes answers, for the current instant, which layers are placed and
// where they are displayed.
type LayerBoxes interface {
	PlacedLayers() []string
	LayerBox(id string) (Rect, bool)
}

// LayerPlacer is the compositor surface the engine commits geometry to.
type LayerPlacer interface {
	Layer(id string) (Layer, error)
	Place(id string, scale float64, position Point) error
	SurfaceSize() Size
}

// Handle identifies the grip used to resize a placed layer.
type Handle int

const (
	HandleTopLeft Handle = iota
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
	HandleCenter // Translates without resizing
)

func (h Handle) String() string {
	switch h {
	case HandleTopLeft:
		return "tl"
	case HandleTopRight:
		return "tr"
	case HandleBottomLeft:
		return "bl"
	case HandleBottomRight:
		return "br"
	case HandleCenter:
		return "center"
	default:
		return "unknown"
	}
}

// ParseHandle is the inverse of Handle.String.
func ParseHandle(s string) (Handle, error) {
	for h := HandleTopLeft; h <= HandleCenter; h++ {
		if h.String() == s {
			return h, nil
		}
	}
	return HandleCenter, NewError(ErrCodeInvalidConfig, "unknown handle %q", s)
}

// GestureState is one of Idle, Dragging or Resizing.
type GestureState interface {
	gestureState()
}

// Idle means no gesture is in progress.
type Idle struct{}

// Dragging moves a proxy for a layer towards the surface.
type Dragging struct {
	LayerID string
	Proxy   Rect
	Pointer Point
}

// Resizing adjusts the proxy of a placed layer through a handle.
type Resizing struct {
	LayerID string
	Handle  Handle
	Proxy   Rect
	Pointer Point
}

func (Idle) gestureState()     {}
func (Dragging) gestureState() {}
func (Resizing) gestureState() {}

// Guides describe the alignment cross shown while a gesture is active.
// X and Y are relative to the displayed surface origin.
type Guides struct {
	Horizontal bool
	Vertical   bool
	X, Y       float64
	Alert      bool
}

// Feedback is the visual state computed on every gesture update.
type Feedback struct {
	Collisions      []string // Placed layers the proxy overlaps
	TouchesBoundary bool     // An edge of the proxy is at or past the surface edge
	OverSurface     bool     // The pointer is over the surface
	Intersecting    bool     // The proxy overlaps the surface
	FullyContained  bool     // The proxy lies inside the surface
	Guides          Guides
}

// Outcome is how a gesture ended.
type Outcome int

const (
	OutcomeDropped Outcome = iota
	OutcomeCancelled
)

func (o Outcome) String() string {
	if o == OutcomeDropped {
		return "dropped"
	}
	return "cancelled"
}

// Commit is the result of ending a gesture.
type Commit struct {
	LayerID  string
	Outcome  Outcome
	Scale    float64
	Position Point
}

// PlacementEngine turns drag and resize gestures into layer geometry.
// One gesture is active at a time.
type PlacementEngine struct {
	mu     sync.Mutex
	target LayerPlacer
	view   SurfaceView
	boxes  LayerBoxes
	state  GestureState
	log    *log.Logger
}

// NewPlacementEngine creates an idle engine.
func NewPlacementEngine(target LayerPlacer, view SurfaceView, boxes LayerBoxes, logger *log.Logger) *PlacementEngine {
	return &PlacementEngine{
		target: target,
		view:   view,
		boxes:  boxes,
		state:  Idle{},
		log:    componentLogger(logger, "placement"),
	}
}

// State returns the current gesture state.
func (e *PlacementEngine) State() GestureState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BeginDrag starts dragging a proxy of the given on-screen size, centered on pointer.
func (e *PlacementEngine) BeginDrag(id string, proxy Size, pointer Point) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.(Idle); !ok {
		return NewError(ErrCodeGestureActive, "cannot drag %q", id)
	}
	if _, err := e.target.Layer(id); err != nil {
		return err
	}
	if proxy.W < minProxySize || proxy.H < minProxySize {
		proxy = Size{W: max(proxy.W, minProxySize), H: max(proxy.H, minProxySize)}
	}
	e.state = Dragging{
		LayerID: id,
		Proxy:   RectAt(Point{}, proxy).CenteredOn(pointer),
		Pointer: pointer,
	}
	e.log.Debug("drag started", "id", id)
	return nil
}

// BeginResize starts resizing a placed layer from its displayed box.
func (e *PlacementEngine) BeginResize(id string, handle Handle, pointer Point) (Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.(Idle); !ok {
		return Feedback{}, NewError(ErrCodeGestureActive, "cannot resize %q", id)
	}
	if _, err := e.target.Layer(id); err != nil {
		return Feedback{}, err
	}
	box, ok := e.boxes.LayerBox(id)
	if !ok {
		return Feedback{}, NewError(ErrCodeGeometryFault, "layer %q is not placed", id)
	}
	st := Resizing{LayerID: id, Handle: handle, Proxy: box, Pointer: pointer}
	e.state = st
	e.log.Debug("resize started", "id", id, "handle", handle)
	return e.feedback(id, box, box.Center(), true), nil
}

// Move updates the active gesture for a pointer position.
func (e *PlacementEngine) Move(pointer Point) (Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch st := e.state.(type) {
	case Dragging:
		st.Proxy = st.Proxy.CenteredOn(pointer)
		st.Pointer = pointer
		e.state = st
		return e.feedback(st.LayerID, st.Proxy, pointer, false), nil
	case Resizing:
		st.Proxy = resizeProxy(st.Proxy, st.Handle, pointer.X-st.Pointer.X, pointer.Y-st.Pointer.Y)
		st.Pointer = pointer
		e.state = st
		return e.feedback(st.LayerID, st.Proxy, st.Proxy.Center(), true), nil
	default:
		return Feedback{}, ErrNoGesture
	}
}

// Wheel scales the dragged proxy by one step, keeping it centered on the
// pointer. It has no effect unless the pointer is over the surface.
func (e *PlacementEngine) Wheel(deltaY float64, pointer Point) (Feedback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.state.(Dragging)
	if !ok {
		return Feedback{}, ErrNoGesture
	}
	if e.view.DisplayRect().Contains(pointer) {
		step := wheelStepDown
		if deltaY < 0 {
			step = wheelStepUp
		}
		size := Size{
			W: max(minProxySize, st.Proxy.W*step),
			H: max(minProxySize, st.Proxy.H*step),
		}
		st.Proxy = RectAt(Point{}, size).CenteredOn(pointer)
		st.Pointer = pointer
		e.state = st
	}
	return e.feedback(st.LayerID, st.Proxy, pointer, false), nil
}

// Release ends the active gesture. A drag released off the surface is
// cancelled and leaves the layer untouched; otherwise the proxy is committed.
// The engine is idle afterwards, even when the commit fails.
func (e *PlacementEngine) Release(pointer Point) (Commit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state
	e.state = Idle{}

	switch st := state.(type) {
	case Dragging:
		if !e.view.DisplayRect().Contains(pointer) {
			e.log.Debug("drag cancelled", "id", st.LayerID)
			return Commit{LayerID: st.LayerID, Outcome: OutcomeCancelled}, nil
		}
		return e.commit(st.LayerID, st.Proxy.Size(), pointer)
	case Resizing:
		return e.commit(st.LayerID, st.Proxy.Size(), st.Proxy.Center())
	default:
		return Commit{}, ErrNoGesture
	}
}

// Cancel abandons the active gesture without touching any layer.
func (e *PlacementEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Idle{}
}

// CancelLayer abandons the active gesture if it is bound to id.
func (e *PlacementEngine) CancelLayer(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	var bound string
	switch st := e.state.(type) {
	case Dragging:
		bound = st.LayerID
	case Resizing:
		bound = st.LayerID
	}
	if bound == "" || bound != id {
		return false
	}
	e.state = Idle{}
	e.log.Debug("gesture dropped with its layer", "id", id)
	return true
}

// Fullscreen fits a layer to the whole surface, centered.
func (e *PlacementEngine) Fullscreen(id string) (Commit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	display := e.view.DisplayRect()
	return e.commit(id, display.Size(), display.Center())
}

// commit converts a display-space box dropped at a display-space point into
// surface coordinates, fits the drawable into it and places the layer.
func (e *PlacementEngine) commit(id string, box Size, drop Point) (Commit, error) {
	display := e.view.DisplayRect()
	surface := e.target.SurfaceSize()
	if surface.Empty() || display.Size().Empty() {
		return Commit{}, NewError(ErrCodeGeometryFault, "no valid surface for %q", id)
	}
	layer, err := e.target.Layer(id)
	if err != nil {
		return Commit{}, err
	}
	if layer.Drawable == nil {
		return Commit{}, NewError(ErrCodeGeometryFault, "layer %q has no drawable", id)
	}

	rx := surface.W / display.W
	ry := surface.H / display.H
	intrinsic := layer.Drawable.Size()
	scale, err := FitScale(intrinsic, Size{W: box.W * rx, H: box.H * ry})
	if err != nil {
		return Commit{}, err
	}
	scaled := intrinsic.Scale(scale)
	pos := Point{
		X: (drop.X-display.X)*rx - scaled.W/2,
		Y: (drop.Y-display.Y)*ry - scaled.H/2,
	}
	if err := e.target.Place(id, scale, pos); err != nil {
		return Commit{}, err
	}
	e.log.Debug("layer placed", "id", id, "scale", scale, "x", pos.X, "y", pos.Y)
	return Commit{LayerID: id, Outcome: OutcomeDropped, Scale: scale, Position: pos}, nil
}

// toDisplay maps a rectangle in surface coordinates onto the displayed surface.
func toDisplay(box Rect, surface Size, display Rect) Rect {
	if surface.Empty() {
		return Rect{}
	}
	rx := display.W / surface.W
	ry := display.H / surface.H
	return Rect{
		X: display.X + box.X*rx,
		Y: display.Y + box.Y*ry,
		W: box.W * rx,
		H: box.H * ry,
	}
}

// feedback computes collisions and guides for proxy. Neighbors are queried
// live since placed layers can change mid-gesture.
func (e *PlacementEngine) feedback(id string, proxy Rect, guide Point, alwaysGuides bool) Feedback {
	display := e.view.DisplayRect()
	_, intersecting := proxy.Intersection(display)

	fb := Feedback{
		TouchesBoundary: proxy.TouchesBoundary(display),
		OverSurface:     display.Contains(guide),
		Intersecting:    intersecting,
		FullyContained:  proxy.Within(display),
	}
	for _, other := range e.boxes.PlacedLayers() {
		if other == id {
			continue
		}
		if box, ok := e.boxes.LayerBox(other); ok && proxy.Intersects(box) {
			fb.Collisions = append(fb.Collisions, other)
		}
	}
	if intersecting || alwaysGuides {
		fb.Guides = guidesAt(guide, display, len(fb.Collisions) > 0 || fb.TouchesBoundary)
	}
	return fb
}

// guidesAt places the alignment cross at p. Over the surface both lines show;
// beside it only the horizontal line, above or below it only the vertical.
func guidesAt(p Point, display Rect, alert bool) Guides {
	above := p.Y < display.Top()
	below := p.Y > display.Bottom()
	left := p.X < display.Left()
	right := p.X > display.Right()

	g := Guides{
		Horizontal: (left || right) && !above && !below,
		Vertical:   (above || below) && !left && !right,
		X:          p.X - display.X,
		Y:          p.Y - display.Y,
		Alert:      alert,
	}
	if display.Contains(p) {
		g.Horizontal, g.Vertical = true, true
	}
	return g
}

// resizeProxy moves the edges grabbed by handle by (dx, dy). A change that
// would shrink an axis below the minimum is ignored for that axis.
func resizeProxy(r Rect, h Handle, dx, dy float64) Rect {
	n := r
	switch h {
	case HandleTopLeft:
		n.X, n.W = r.X+dx, r.W-dx
		n.Y, n.H = r.Y+dy, r.H-dy
	case HandleTopRight:
		n.W = r.W + dx
		n.Y, n.H = r.Y+dy, r.H-dy
	case HandleBottomLeft:
		n.X, n.W = r.X+dx, r.W-dx
		n.H = r.H + dy
	case HandleBottomRight:
		n.W = r.W + dx
		n.H = r.H + dy
	case HandleCenter:
		return r.Translate(dx, dy)
	}
	if n.W < minProxySize {
		n.X, n.W = r.X, r.W
	}
	if n.H < minProxySize {
		n.Y, n.H = r.Y, r.H
	}
	return n
}
