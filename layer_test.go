package studio

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), c)
	return img
}

func TestFiltersString(t *testing.T) {
	f := Filters{Brightness: 120, Contrast: 90, Saturation: 100}
	assert.Equal(t, "brightness(120%) contrast(90%) saturate(100%)", f.String())

	parsed, err := ParseFilters(f.String())
	require.NoError(t, err)
	assert.Equal(t, f, parsed)

	assert.Equal(t, "", FilterString(nil))
	assert.Equal(t, f.String(), FilterString(&f))
	assert.True(t, DefaultFilters().IsIdentity())
	assert.False(t, f.IsIdentity())

	id, err := ParseFilters("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFilters(), id)

	_, err = ParseFilters("blur(2px)")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLayerClone(t *testing.T) {
	f := DefaultFilters()
	l := Layer{ID: "cam", Painted: true, Scale: 0.5, Position: &Point{1, 2}, Filters: &f}
	c := l.Clone()
	c.Position.X = 99
	c.Filters.Brightness = 10

	assert.Equal(t, 1.0, l.Position.X)
	assert.Equal(t, 100.0, l.Filters.Brightness)
}

func TestLayerBox(t *testing.T) {
	d := NewImageDrawable(solidImage(200, 100, color.RGBA{A: 255}))
	l := Layer{ID: "img", Drawable: d, Painted: true, Scale: 0.5, Position: &Point{10, 20}}

	box, ok := l.Box()
	require.True(t, ok)
	assert.Equal(t, Rect{10, 20, 100, 50}, box)

	l.Painted = false
	_, ok = l.Box()
	assert.False(t, ok)
}

func TestImageDrawableDuplicate(t *testing.T) {
	img := solidImage(4, 4, color.RGBA{255, 0, 0, 255})
	d := NewImageDrawable(img)

	dup, err := DuplicateDrawable(d)
	require.NoError(t, err)
	fill(img, img.Bounds(), color.RGBA{0, 255, 0, 255})

	r, g, _, _ := dup.Image().At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r, "duplicate must not follow the original")
	assert.Equal(t, uint32(0), g)
	assert.Equal(t, Size{4, 4}, dup.Size())
}

func TestVideoSourceDrawable(t *testing.T) {
	src := NewTestPatternSource(TestPatternConfig{Width: 32, Height: 16, FPS: 30, Pattern: PatternSolidColor, Solid: color.RGBA{0, 0, 255, 255}})
	defer src.Close()

	d := NewVideoSourceDrawable(src)
	assert.Equal(t, Size{32, 16}, d.Size(), "configured size before the first frame")
	assert.Nil(t, d.Image())

	early, err := d.Duplicate()
	require.NoError(t, err)
	assert.NotSame(t, Drawable(d), early, "an early duplicate is a separate drawable")
	assert.Nil(t, early.Image())
	assert.Equal(t, Size{32, 16}, early.Size())

	d.Update(src.Frame(1))
	require.NotNil(t, d.Image())
	assert.NotNil(t, early.Image(), "an early duplicate follows the source")

	refrozen, err := DuplicateDrawable(early)
	require.NoError(t, err)
	_, isStill := refrozen.(*ImageDrawable)
	assert.True(t, isStill, "duplicating the view freezes the current frame")

	frozen, err := d.Duplicate()
	require.NoError(t, err)

	_, isStill = frozen.(*ImageDrawable)
	assert.True(t, isStill)
	assert.Equal(t, Size{32, 16}, frozen.Size())
}
