package studio

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/disintegration/imaging"
)

// Surface is the output drawing target of the compositor.
type Surface interface {
	// Size returns the internal resolution.
	Size() Size

	// Clear fills the surface with its background.
	Clear()

	// Filter returns the currently applied filter string.
	Filter() string

	// SetFilter changes the filter applied to subsequent draws.
	SetFilter(filter string)

	// Draw paints d scaled into box (surface coordinates).
	Draw(d Drawable, box Rect) error

	// Snapshot returns a copy of the current pixels.
	Snapshot() *image.RGBA
}

// ImageSurface is an in-memory RGBA Surface.
type ImageSurface struct {
	mu            sync.Mutex
	img           *image.RGBA
	background    color.RGBA
	filter        string
	filters       Filters
	filterChanges int
}

// NewImageSurface creates a cleared surface of the given resolution.
func NewImageSurface(width, height int, background color.RGBA) *ImageSurface {
	s := &ImageSurface{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		background: background,
		filters:    DefaultFilters(),
	}
	s.Clear()
	return s
}

func (s *ImageSurface) Size() Size {
	b := s.img.Bounds()
	return Size{W: float64(b.Dx()), H: float64(b.Dy())}
}

func (s *ImageSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(s.background), image.Point{}, draw.Src)
}

func (s *ImageSurface) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// SetFilter applies a filter string; unparsable strings reset to the identity.
func (s *ImageSurface) SetFilter(filter string) {
	f, err := ParseFilters(filter)
	if err != nil {
		Logger().Warn("ignoring filter", "filter", filter, "err", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	s.filters = f
	s.filterChanges++
}

// FilterChanges counts SetFilter calls since creation.
func (s *ImageSurface) FilterChanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterChanges
}

func (s *ImageSurface) Draw(d Drawable, box Rect) error {
	if d == nil {
		return fmt.Errorf("nil drawable")
	}
	src := d.Image()
	if src == nil {
		return fmt.Errorf("drawable has no content")
	}
	w := int(math.Round(box.W))
	h := int(math.Round(box.H))
	if w <= 0 || h <= 0 {
		return nil
	}

	s.mu.Lock()
	filters := s.filters
	s.mu.Unlock()

	var scaled image.Image = src
	if b := src.Bounds(); b.Dx() != w || b.Dy() != h {
		scaled = imaging.Resize(src, w, h, imaging.Linear)
	}
	if !filters.IsIdentity() {
		scaled = applyFilters(scaled, filters)
	}

	x := int(math.Round(box.X))
	y := int(math.Round(box.Y))
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, image.Rect(x, y, x+w, y+h), scaled, scaled.Bounds().Min, draw.Over)
	return nil
}

func (s *ImageSurface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// applyFilters maps percentage filters onto imaging adjustments, which take
// offsets from the identity.
func applyFilters(img image.Image, f Filters) *image.NRGBA {
	out := imaging.Clone(img)
	if f.Brightness != 100 {
		out = imaging.AdjustBrightness(out, clamp(f.Brightness-100, -100, 100))
	}
	if f.Contrast != 100 {
		out = imaging.AdjustContrast(out, clamp(f.Contrast-100, -100, 100))
	}
	if f.Saturation != 100 {
		out = imaging.AdjustSaturation(out, clamp(f.Saturation-100, -100, 500))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
