package studio

import (
	"fmt"
	"sort"
	"sync"
)

// PresetElement is the stored state of one painted layer.
type PresetElement struct {
	ID       string
	Scale    float64
	Position Point
	Filters  *Filters
	Drawable Drawable // Duplicate taken at save time, may be nil after Import
}

// Preset is a named snapshot of layer geometry and paint order.
type Preset struct {
	Name     string
	Elements []PresetElement
	Shortcut string
}

func (p Preset) clone() Preset {
	c := p
	c.Elements = make([]PresetElement, len(p.Elements))
	for i, e := range p.Elements {
		if e.Filters != nil {
			f := *e.Filters
			e.Filters = &f
		}
		c.Elements[i] = e
	}
	return c
}

// PresetData is the serializable form of a preset.
type PresetData struct {
	Elements []PresetElementData `json:"elements"`
	Shortcut string              `json:"shortcut"`
}

// PresetElementData is the serializable form of a preset element.
type PresetElementData struct {
	ID       string   `json:"id"`
	Scale    float64  `json:"scale"`
	Position Point    `json:"position"`
	Filters  *Filters `json:"filters,omitempty"`
}

// DrawableResolver returns the drawable to attach to an imported element,
// or nil when none is available.
type DrawableResolver func(id string) Drawable

// PresetBook stores presets by name in insertion order.
type PresetBook struct {
	mu      sync.RWMutex
	presets map[string]Preset
	order   []string
}

// NewPresetBook creates an empty book.
func NewPresetBook() *PresetBook {
	return &PresetBook{presets: make(map[string]Preset)}
}

// Put stores elements under name. The shortcut is "ctrl+N" where N is the
// number of presets before insertion plus one; slots freed by Delete are not
// reclaimed, so shortcuts may repeat. Saving under an existing name replaces
// the preset in place.
func (b *PresetBook) Put(name string, elements []PresetElement) Preset {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := Preset{
		Name:     name,
		Elements: append([]PresetElement(nil), elements...),
		Shortcut: fmt.Sprintf("ctrl+%d", len(b.presets)+1),
	}
	if _, ok := b.presets[name]; !ok {
		b.order = append(b.order, name)
	}
	b.presets[name] = p
	return p.clone()
}

// Get returns a copy of the named preset.
func (b *PresetBook) Get(name string) (Preset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.presets[name]
	if !ok {
		return Preset{}, NewError(ErrCodeUnknownPreset, "preset %q", name)
	}
	return p.clone(), nil
}

// ByShortcut returns the first preset, in insertion order, bound to key.
func (b *PresetBook) ByShortcut(key string) (Preset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, name := range b.order {
		if p := b.presets[name]; p.Shortcut == key {
			return p.clone(), nil
		}
	}
	return Preset{}, NewError(ErrCodeUnknownPreset, "no preset bound to %q", key)
}

// Delete removes the named preset, reporting whether it existed.
func (b *PresetBook) Delete(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.presets[name]; !ok {
		return false
	}
	delete(b.presets, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Names returns preset names in insertion order.
func (b *PresetBook) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.order...)
}

// Len returns the number of stored presets.
func (b *PresetBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.presets)
}

// Export returns the serializable form of every preset.
func (b *PresetBook) Export() map[string]PresetData {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]PresetData, len(b.presets))
	for name, p := range b.presets {
		d := PresetData{Shortcut: p.Shortcut, Elements: make([]PresetElementData, len(p.Elements))}
		for i, e := range p.Elements {
			d.Elements[i] = PresetElementData{ID: e.ID, Scale: e.Scale, Position: e.Position, Filters: e.Filters}
			if e.Filters != nil {
				f := *e.Filters
				d.Elements[i].Filters = &f
			}
		}
		out[name] = d
	}
	return out
}

// Import merges serialized presets into the book, keeping their shortcuts.
// Names are added in sorted order. resolve may be nil.
func (b *PresetBook) Import(data map[string]PresetData, resolve DrawableResolver) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range names {
		d := data[name]
		p := Preset{Name: name, Shortcut: d.Shortcut, Elements: make([]PresetElement, len(d.Elements))}
		for i, e := range d.Elements {
			p.Elements[i] = PresetElement{ID: e.ID, Scale: e.Scale, Position: e.Position}
			if e.Filters != nil {
				f := *e.Filters
				p.Elements[i].Filters = &f
			}
			if resolve != nil {
				p.Elements[i].Drawable = resolve(e.ID)
			}
		}
		if _, ok := b.presets[name]; !ok {
			b.order = append(b.order, name)
		}
		b.presets[name] = p
	}
}

// ThumbnailBox is one element of a preset preview.
type ThumbnailBox struct {
	ID  string
	Box Rect
}

// Thumbnail maps the named preset's element boxes from surface coordinates
// into a preview of size preview. Elements without a drawable are left out.
func (b *PresetBook) Thumbnail(name string, surface, preview Size) ([]ThumbnailBox, error) {
	if surface.Empty() {
		return nil, NewError(ErrCodeGeometryFault, "surface has no size")
	}
	p, err := b.Get(name)
	if err != nil {
		return nil, err
	}

	rx := preview.W / surface.W
	ry := preview.H / surface.H
	var out []ThumbnailBox
	for _, e := range p.Elements {
		if e.Drawable == nil {
			continue
		}
		size := e.Drawable.Size().Scale(e.Scale)
		out = append(out, ThumbnailBox{
			ID:  e.ID,
			Box: Rect{X: e.Position.X * rx, Y: e.Position.Y * ry, W: size.W * rx, H: size.H * ry},
		})
	}
	return out, nil
}
