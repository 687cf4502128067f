package studio

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/disintegration/imaging"
)

// Filters are per-layer color adjustments, each a percentage where 100 is
// the identity.
type Filters struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
}

// DefaultFilters returns the identity adjustments.
func DefaultFilters() Filters {
	return Filters{Brightness: 100, Contrast: 100, Saturation: 100}
}

// String renders the filters as a CSS-style filter string.
func (f Filters) String() string {
	return fmt.Sprintf("brightness(%g%%) contrast(%g%%) saturate(%g%%)", f.Brightness, f.Contrast, f.Saturation)
}

// IsIdentity reports whether the filters leave pixels unchanged.
func (f Filters) IsIdentity() bool {
	return f == DefaultFilters()
}

// FilterString returns the filter string a layer applies; empty when unset.
func FilterString(f *Filters) string {
	if f == nil {
		return ""
	}
	return f.String()
}

// ParseFilters is the inverse of Filters.String. An empty string is the identity.
func ParseFilters(s string) (Filters, error) {
	f := DefaultFilters()
	if s == "" {
		return f, nil
	}
	if _, err := fmt.Sscanf(s, "brightness(%g%%) contrast(%g%%) saturate(%g%%)", &f.Brightness, &f.Contrast, &f.Saturation); err != nil {
		return DefaultFilters(), WrapError(ErrCodeInvalidConfig, err, "filter %q", s)
	}
	return f, nil
}

// Drawable is an opaque visual handle the compositor can size and paint.
// Image may return nil while no content is available yet.
type Drawable interface {
	Size() Size
	Image() image.Image
}

// Duplicator is implemented by drawables that can produce an independent copy
// of themselves for preset snapshots.
type Duplicator interface {
	Duplicate() (Drawable, error)
}

// DuplicateDrawable returns d's duplicate when d supports it, otherwise d.
func DuplicateDrawable(d Drawable) (Drawable, error) {
	if d == nil {
		return nil, nil
	}
	if dup, ok := d.(Duplicator); ok {
		return dup.Duplicate()
	}
	return d, nil
}

// Layer is a visual element the compositor may draw.
// Position is non-nil if and only if Painted is true.
type Layer struct {
	ID       string
	Drawable Drawable
	Painted  bool
	Scale    float64
	Position *Point
	Filters  *Filters
}

// Clone returns a copy that shares only the drawable.
func (l Layer) Clone() Layer {
	c := l
	if l.Position != nil {
		p := *l.Position
		c.Position = &p
	}
	if l.Filters != nil {
		f := *l.Filters
		c.Filters = &f
	}
	return c
}

// Box returns the layer's rectangle in surface coordinates, and false when
// the layer is not drawable.
func (l Layer) Box() (Rect, bool) {
	if !l.Painted || l.Position == nil || l.Drawable == nil {
		return Rect{}, false
	}
	return RectAt(*l.Position, l.Drawable.Size().Scale(l.Scale)), true
}

// ImageDrawable is a static picture, for example an image file source.
type ImageDrawable struct {
	img image.Image
}

// NewImageDrawable wraps img.
func NewImageDrawable(img image.Image) *ImageDrawable {
	return &ImageDrawable{img: img}
}

// OpenImageDrawable decodes an image file.
func OpenImageDrawable(path string) (*ImageDrawable, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, WrapError(ErrCodeResourceUnavailable, err, "open image %s", path)
	}
	return NewImageDrawable(img), nil
}

func (d *ImageDrawable) Size() Size {
	b := d.img.Bounds()
	return Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

func (d *ImageDrawable) Image() image.Image { return d.img }

// Duplicate returns a drawable over a private copy of the pixels.
func (d *ImageDrawable) Duplicate() (Drawable, error) {
	return NewImageDrawable(imaging.Clone(d.img)), nil
}

// VideoSourceDrawable shows the latest frame pushed by a VideoSource.
type VideoSourceDrawable struct {
	source VideoSource
	latest atomic.Pointer[VideoFrame]
}

// NewVideoSourceDrawable installs itself as the source's frame callback.
func NewVideoSourceDrawable(source VideoSource) *VideoSourceDrawable {
	d := &VideoSourceDrawable{source: source}
	source.SetCallback(d.Update)
	return d
}

// Update records f as the current frame.
func (d *VideoSourceDrawable) Update(f *VideoFrame) {
	d.latest.Store(f)
}

// Size is the latest frame size, or the configured size before the first frame.
func (d *VideoSourceDrawable) Size() Size {
	if f := d.latest.Load(); f != nil {
		return Size{W: float64(f.Width), H: float64(f.Height)}
	}
	cfg := d.source.Config()
	return Size{W: float64(cfg.Width), H: float64(cfg.Height)}
}

func (d *VideoSourceDrawable) Image() image.Image {
	f := d.latest.Load()
	if f == nil {
		return nil
	}
	return f.Image()
}

// Duplicate freezes the current frame into a still. Before the first frame
// there is nothing to freeze, so it returns a separate view that follows
// the same source.
func (d *VideoSourceDrawable) Duplicate() (Drawable, error) {
	img := d.Image()
	if img == nil {
		return &videoSourceView{live: d}, nil
	}
	return NewImageDrawable(imaging.Clone(img)), nil
}

// videoSourceView shows the frames of another VideoSourceDrawable.
type videoSourceView struct {
	live *VideoSourceDrawable
}

func (v *videoSourceView) Size() Size         { return v.live.Size() }
func (v *videoSourceView) Image() image.Image { return v.live.Image() }

// Duplicate freezes the frame the view currently shows.
func (v *videoSourceView) Duplicate() (Drawable, error) { return v.live.Duplicate() }
