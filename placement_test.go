package studio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The surface is 1280x720 and displayed at half size.
func newTestEngine(t *testing.T) (*PlacementEngine, *Compositor) {
	t.Helper()
	c, _ := newTestCompositor(t)
	view := FixedView(Rect{0, 0, 640, 360})
	c.AddLayer("cam", &namedDrawable{name: "cam", size: Size{1920, 1080}})
	return NewPlacementEngine(c, view, c.Boxes(view), nil), c
}

func TestPlacementDrop(t *testing.T) {
	e, c := newTestEngine(t)

	require.NoError(t, e.BeginDrag("cam", Size{200, 150}, Point{100, 100}))
	st, ok := e.State().(Dragging)
	require.True(t, ok)
	assert.Equal(t, Rect{0, 25, 200, 150}, st.Proxy)

	_, err := e.Move(Point{320, 180})
	require.NoError(t, err)
	commit, err := e.Release(Point{320, 180})
	require.NoError(t, err)

	assert.Equal(t, OutcomeDropped, commit.Outcome)
	assert.InDelta(t, 400.0/1920.0, commit.Scale, 1e-9)
	assert.InDelta(t, 440, commit.Position.X, 1e-9)
	assert.InDelta(t, 247.5, commit.Position.Y, 1e-9)
	assert.IsType(t, Idle{}, e.State())

	l, err := c.Layer("cam")
	require.NoError(t, err)
	assert.True(t, l.Painted)
	assert.Equal(t, commit.Scale, l.Scale)
	assert.Equal(t, commit.Position, *l.Position)
}

func TestPlacementCancelOffSurface(t *testing.T) {
	e, c := newTestEngine(t)
	require.NoError(t, c.Place("cam", 0.1, Point{5, 5}))

	require.NoError(t, e.BeginDrag("cam", Size{100, 100}, Point{50, 50}))
	commit, err := e.Release(Point{700, 100})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, commit.Outcome)
	assert.IsType(t, Idle{}, e.State())

	l, _ := c.Layer("cam")
	assert.Equal(t, 0.1, l.Scale, "prior state is kept")
	assert.Equal(t, Point{5, 5}, *l.Position)
}

func TestPlacementSingleGesture(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Move(Point{})
	assert.ErrorIs(t, err, ErrNoGesture)
	_, err = e.Release(Point{})
	assert.ErrorIs(t, err, ErrNoGesture)

	assert.ErrorIs(t, e.BeginDrag("nope", Size{10, 10}, Point{}), ErrUnknownLayer)
	require.NoError(t, e.BeginDrag("cam", Size{10, 10}, Point{}))
	assert.ErrorIs(t, e.BeginDrag("cam", Size{10, 10}, Point{}), ErrGestureActive)
	_, err = e.BeginResize("cam", HandleCenter, Point{})
	assert.ErrorIs(t, err, ErrGestureActive)

	e.Cancel()
	assert.IsType(t, Idle{}, e.State())
}

func TestPlacementWheel(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.BeginDrag("cam", Size{100, 100}, Point{50, 50}))

	_, err := e.Wheel(-1, Point{60, 60})
	require.NoError(t, err)
	st := e.State().(Dragging)
	assert.InDelta(t, 105, st.Proxy.W, 1e-9)
	assert.Equal(t, Point{60, 60}, st.Proxy.Center())

	_, err = e.Wheel(1, Point{60, 60})
	require.NoError(t, err)
	st = e.State().(Dragging)
	assert.InDelta(t, 99.75, st.Proxy.W, 1e-9)

	_, err = e.Wheel(-1, Point{700, 10})
	require.NoError(t, err)
	assert.InDelta(t, 99.75, e.State().(Dragging).Proxy.W, 1e-9, "off-surface wheel is ignored")
}

func TestPlacementWheelMinimum(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.BeginDrag("cam", Size{4, 4}, Point{50, 50}))
	assert.Equal(t, Size{10, 10}, e.State().(Dragging).Proxy.Size())

	_, err := e.Wheel(1, Point{50, 50})
	require.NoError(t, err)
	assert.Equal(t, Size{10, 10}, e.State().(Dragging).Proxy.Size())

	e.Cancel()
	_, err = e.Wheel(1, Point{50, 50})
	assert.ErrorIs(t, err, ErrNoGesture)
}

func TestPlacementFeedback(t *testing.T) {
	e, c := newTestEngine(t)
	c.AddLayer("other", &namedDrawable{name: "other", size: Size{200, 200}})
	require.NoError(t, c.Place("other", 1, Point{0, 0})) // display box 0,0 100x100

	require.NoError(t, e.BeginDrag("cam", Size{50, 50}, Point{90, 90}))
	fb, err := e.Move(Point{90, 90})
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, fb.Collisions)
	assert.False(t, fb.TouchesBoundary)
	assert.True(t, fb.OverSurface)
	assert.True(t, fb.FullyContained)
	assert.True(t, fb.Guides.Horizontal && fb.Guides.Vertical)
	assert.True(t, fb.Guides.Alert)

	fb, err = e.Move(Point{300, 180})
	require.NoError(t, err)
	assert.Empty(t, fb.Collisions)
	assert.False(t, fb.Guides.Alert)

	fb, err = e.Move(Point{300, 10})
	require.NoError(t, err)
	assert.True(t, fb.TouchesBoundary)
	assert.False(t, fb.FullyContained)
	assert.True(t, fb.Guides.Alert)

	// Neighbors are queried on every update.
	c.AddLayer("late", &namedDrawable{name: "late", size: Size{100, 100}})
	require.NoError(t, c.Place("late", 1, Point{560, 320})) // display box 280,160 50x50
	fb, err = e.Move(Point{300, 180})
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, fb.Collisions)

	fb, err = e.Move(Point{900, 180})
	require.NoError(t, err)
	assert.False(t, fb.OverSurface)
	assert.False(t, fb.Intersecting)
	assert.Equal(t, Guides{}, fb.Guides)
}

func TestGuidesAt(t *testing.T) {
	display := Rect{0, 0, 640, 360}
	tests := []struct {
		name       string
		p          Point
		horizontal bool
		vertical   bool
	}{
		{"over", Point{300, 180}, true, true},
		{"right of", Point{700, 180}, true, false},
		{"left of", Point{-20, 180}, true, false},
		{"above", Point{300, -10}, false, true},
		{"below", Point{300, 400}, false, true},
		{"diagonal", Point{-5, -5}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := guidesAt(tt.p, display, false)
			assert.Equal(t, tt.horizontal, g.Horizontal)
			assert.Equal(t, tt.vertical, g.Vertical)
		})
	}
}

func TestResizeProxy(t *testing.T) {
	r := Rect{100, 100, 50, 50}
	tests := []struct {
		handle Handle
		dx, dy float64
		want   Rect
	}{
		{HandleTopLeft, 10, 5, Rect{110, 105, 40, 45}},
		{HandleTopRight, 10, 5, Rect{100, 105, 60, 45}},
		{HandleBottomLeft, 10, 5, Rect{110, 100, 40, 55}},
		{HandleBottomRight, 10, 5, Rect{100, 100, 60, 55}},
		{HandleCenter, 10, 5, Rect{110, 105, 50, 50}},
		{HandleTopLeft, 45, 5, Rect{100, 105, 50, 45}},
		{HandleBottomRight, -45, -45, Rect{100, 100, 50, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.handle.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, resizeProxy(r, tt.handle, tt.dx, tt.dy))
		})
	}
}

func TestPlacementResize(t *testing.T) {
	e, c := newTestEngine(t)

	_, err := e.BeginResize("cam", HandleBottomRight, Point{})
	assert.ErrorIs(t, err, ErrGeometryFault, "unplaced layer")
	assert.IsType(t, Idle{}, e.State())

	require.NoError(t, c.Place("cam", 0.25, Point{0, 0})) // display box 0,0 240x135
	fb, err := e.BeginResize("cam", HandleBottomRight, Point{240, 135})
	require.NoError(t, err)
	assert.True(t, fb.Guides.Horizontal && fb.Guides.Vertical)

	_, err = e.Move(Point{340, 185})
	require.NoError(t, err)
	st := e.State().(Resizing)
	assert.Equal(t, Rect{0, 0, 340, 185}, st.Proxy)

	// Resize commits at the proxy center wherever the pointer is released.
	commit, err := e.Release(Point{1000, 1000})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDropped, commit.Outcome)
	assert.InDelta(t, 370.0/1080.0, commit.Scale, 1e-9)
	assert.InDelta(t, 0, commit.Position.Y, 1e-9)
	assert.InDelta(t, 340-1920*370.0/1080.0/2, commit.Position.X, 1e-9)
}

func TestPlacementFullscreen(t *testing.T) {
	e, _ := newTestEngine(t)
	commit, err := e.Fullscreen("cam")
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, commit.Scale, 1e-9)
	assert.InDelta(t, 0, commit.Position.X, 1e-9)
	assert.InDelta(t, 0, commit.Position.Y, 1e-9)
}

func TestPlacementGeometryFault(t *testing.T) {
	e, c := newTestEngine(t)
	c.AddLayer("blank", &namedDrawable{name: "blank"})

	require.NoError(t, e.BeginDrag("blank", Size{50, 50}, Point{100, 100}))
	_, err := e.Release(Point{100, 100})
	assert.ErrorIs(t, err, ErrGeometryFault)
	assert.IsType(t, Idle{}, e.State())

	l, _ := c.Layer("blank")
	assert.False(t, l.Painted, "no partial mutation")
}

func TestPlacementCancelLayer(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.BeginDrag("cam", Size{50, 50}, Point{100, 100}))

	assert.False(t, e.CancelLayer("other"))
	assert.IsType(t, Dragging{}, e.State())
	assert.True(t, e.CancelLayer("cam"))
	assert.IsType(t, Idle{}, e.State())
	assert.False(t, e.CancelLayer("cam"))
}
