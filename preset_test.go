package studio

import (
	"encoding/json"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetBookShortcuts(t *testing.T) {
	b := NewPresetBook()
	assert.Equal(t, "ctrl+1", b.Put("one", nil).Shortcut)
	assert.Equal(t, "ctrl+2", b.Put("two", nil).Shortcut)
	assert.Equal(t, "ctrl+3", b.Put("three", nil).Shortcut)

	// Slots freed by Delete are not reclaimed.
	assert.True(t, b.Delete("one"))
	assert.False(t, b.Delete("one"))
	four := b.Put("four", nil)
	assert.Equal(t, "ctrl+3", four.Shortcut)

	p, err := b.ByShortcut("ctrl+3")
	require.NoError(t, err)
	assert.Equal(t, "three", p.Name, "first match in insertion order")

	assert.Equal(t, []string{"two", "three", "four"}, b.Names())
	assert.Equal(t, 3, b.Len())

	_, err = b.ByShortcut("ctrl+1")
	assert.ErrorIs(t, err, ErrUnknownPreset)
	_, err = b.Get("one")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestPresetBookOverwrite(t *testing.T) {
	b := NewPresetBook()
	b.Put("a", []PresetElement{{ID: "x", Scale: 1}})
	b.Put("b", nil)
	p := b.Put("a", []PresetElement{{ID: "y", Scale: 2}})

	assert.Equal(t, "ctrl+3", p.Shortcut)
	assert.Equal(t, []string{"a", "b"}, b.Names(), "overwrite keeps the slot")
	got, err := b.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "y", got.Elements[0].ID)
}

func TestPresetBookCopies(t *testing.T) {
	b := NewPresetBook()
	f := DefaultFilters()
	b.Put("a", []PresetElement{{ID: "x", Scale: 1, Filters: &f}})

	got, err := b.Get("a")
	require.NoError(t, err)
	got.Elements[0].Scale = 9
	got.Elements[0].Filters.Brightness = 1

	again, _ := b.Get("a")
	assert.Equal(t, 1.0, again.Elements[0].Scale)
	assert.Equal(t, 100.0, again.Elements[0].Filters.Brightness)
}

func TestPresetBookExportImport(t *testing.T) {
	b := NewPresetBook()
	f := Filters{Brightness: 110, Contrast: 100, Saturation: 100}
	b.Put("main", []PresetElement{
		{ID: "cam", Scale: 0.5, Position: Point{10, 20}, Filters: &f},
		{ID: "logo", Scale: 1, Position: Point{0, 0}},
	})

	raw, err := json.Marshal(b.Export())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"shortcut":"ctrl+1"`)
	assert.Contains(t, string(raw), `"position":{"x":10,"y":20}`)

	var data map[string]PresetData
	require.NoError(t, json.Unmarshal(raw, &data))

	logo := NewImageDrawable(solidImage(8, 8, color.RGBA{A: 255}))
	other := NewPresetBook()
	other.Import(data, func(id string) Drawable {
		if id == "logo" {
			return logo
		}
		return nil
	})

	p, err := other.Get("main")
	require.NoError(t, err)
	assert.Equal(t, "ctrl+1", p.Shortcut)
	require.Len(t, p.Elements, 2)
	assert.Equal(t, Point{10, 20}, p.Elements[0].Position)
	assert.Equal(t, &f, p.Elements[0].Filters)
	assert.Nil(t, p.Elements[0].Drawable)
	assert.Same(t, logo, p.Elements[1].Drawable.(*ImageDrawable))
}

func TestPresetBookThumbnail(t *testing.T) {
	b := NewPresetBook()
	img := NewImageDrawable(solidImage(200, 100, color.RGBA{A: 255}))
	b.Put("main", []PresetElement{
		{ID: "img", Scale: 2, Position: Point{100, 50}, Drawable: img},
		{ID: "nodrawable", Scale: 1},
	})

	boxes, err := b.Thumbnail("main", Size{1000, 500}, Size{100, 50})
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, ThumbnailBox{ID: "img", Box: Rect{10, 5, 40, 20}}, boxes[0])

	_, err = b.Thumbnail("main", Size{}, Size{100, 50})
	assert.ErrorIs(t, err, ErrGeometryFault)
	_, err = b.Thumbnail("missing", Size{1000, 500}, Size{100, 50})
	assert.ErrorIs(t, err, ErrUnknownPreset)
}
