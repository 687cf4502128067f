// Core frame and sample types used across the studio package.
package studio

import (
	"encoding/binary"
	"image"
	"math"
)

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatI420   PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatRGBA32                    // Packed RGBA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatRGBA32:
		return "RGBA32"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3 // Y, U, V
	case PixelFormatRGBA32:
		return 1 // Packed
	default:
		return 0
	}
}

// AudioFormat represents audio sample formats.
type AudioFormat int

const (
	AudioFormatS16 AudioFormat = iota // Signed 16-bit PCM
	AudioFormatF32                    // 32-bit float
)

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatS16:
		return "S16"
	case AudioFormatF32:
		return "F32"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the number of bytes per sample for this format.
func (a AudioFormat) BytesPerSample() int {
	switch a {
	case AudioFormatS16:
		return 2
	case AudioFormatF32:
		return 4
	default:
		return 0
	}
}

// VideoFrame represents a raw video frame.
type VideoFrame struct {
	Data      [][]byte    // Plane data (1 or 3 planes depending on format)
	Stride    []int       // Stride for each plane in bytes
	Width     int         // Frame width in pixels
	Height    int         // Frame height in pixels
	Format    PixelFormat // Pixel format
	Timestamp int64       // Capture timestamp in nanoseconds
	Duration  int64       // Frame duration in nanoseconds (optional)
}

// Clone creates a deep copy of the video frame.
// Use this when you need to keep the frame data beyond its original lifetime.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:      make([][]byte, len(f.Data)),
		Stride:    make([]int, len(f.Stride)),
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Timestamp: f.Timestamp,
		Duration:  f.Duration,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// Image returns an image.Image view over the frame planes without copying.
// Returns nil if the frame layout does not match its format.
func (f *VideoFrame) Image() image.Image {
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case PixelFormatI420:
		if len(f.Data) < 3 || len(f.Stride) < 2 {
			return nil
		}
		return &image.YCbCr{
			Y:              f.Data[0],
			Cb:             f.Data[1],
			Cr:             f.Data[2],
			YStride:        f.Stride[0],
			CStride:        f.Stride[1],
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}
	case PixelFormatRGBA32:
		if len(f.Data) < 1 || len(f.Stride) < 1 {
			return nil
		}
		return &image.RGBA{Pix: f.Data[0], Stride: f.Stride[0], Rect: rect}
	default:
		return nil
	}
}

// FrameFromImage wraps an RGBA image as a VideoFrame. The pixel buffer is shared.
func FrameFromImage(img *image.RGBA, timestamp int64) *VideoFrame {
	b := img.Bounds()
	return &VideoFrame{
		Data:      [][]byte{img.Pix},
		Stride:    []int{img.Stride},
		Width:     b.Dx(),
		Height:    b.Dy(),
		Format:    PixelFormatRGBA32,
		Timestamp: timestamp,
	}
}

// AudioSamples represents raw interleaved audio samples.
type AudioSamples struct {
	Data        []byte      // Sample data
	SampleRate  int         // Sample rate (e.g., 48000)
	Channels    int         // Number of channels (1 = mono, 2 = stereo)
	SampleCount int         // Number of samples (per channel)
	Format      AudioFormat // Sample format
	Timestamp   int64       // Capture timestamp in nanoseconds
}

// Clone creates a deep copy of the audio samples.
func (s *AudioSamples) Clone() *AudioSamples {
	clone := &AudioSamples{
		SampleRate:  s.SampleRate,
		Channels:    s.Channels,
		SampleCount: s.SampleCount,
		Format:      s.Format,
		Timestamp:   s.Timestamp,
	}
	if s.Data != nil {
		clone.Data = make([]byte, len(s.Data))
		copy(clone.Data, s.Data)
	}
	return clone
}

// Block converts the interleaved samples into a planar float block.
func (s *AudioSamples) Block() *AudioBlock {
	channels := s.Channels
	if channels <= 0 {
		channels = 1
	}
	bps := s.Format.BytesPerSample()
	if bps == 0 {
		return &AudioBlock{SampleRate: s.SampleRate, Timestamp: s.Timestamp}
	}
	frames := s.SampleCount
	if avail := len(s.Data) / (bps * channels); frames <= 0 || frames > avail {
		frames = avail
	}

	block := NewAudioBlock(channels, frames, s.SampleRate)
	block.Timestamp = s.Timestamp
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * bps
			switch s.Format {
			case AudioFormatS16:
				v := int16(binary.LittleEndian.Uint16(s.Data[off:]))
				block.Channels[ch][i] = float32(v) / 32768.0
			case AudioFormatF32:
				block.Channels[ch][i] = math.Float32frombits(binary.LittleEndian.Uint32(s.Data[off:]))
			}
		}
	}
	return block
}

// AudioBlock is one render quantum of planar float samples in [-1, 1].
type AudioBlock struct {
	Channels   [][]float32 // One slice per channel, equal lengths
	SampleRate int
	Timestamp  int64
}

// NewAudioBlock allocates a silent block.
func NewAudioBlock(channels, frames, sampleRate int) *AudioBlock {
	b := &AudioBlock{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for i := range b.Channels {
		b.Channels[i] = make([]float32, frames)
	}
	return b
}

// Frames returns the number of samples per channel.
func (b *AudioBlock) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Clone creates a deep copy of the block.
func (b *AudioBlock) Clone() *AudioBlock {
	c := &AudioBlock{
		Channels:   make([][]float32, len(b.Channels)),
		SampleRate: b.SampleRate,
		Timestamp:  b.Timestamp,
	}
	for i, ch := range b.Channels {
		c.Channels[i] = append([]float32(nil), ch...)
	}
	return c
}

// Samples interleaves the block into S16 little-endian samples.
func (b *AudioBlock) Samples() *AudioSamples {
	channels := len(b.Channels)
	frames := b.Frames()
	data := make([]byte, frames*channels*2)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := b.Channels[ch][i]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			binary.LittleEndian.PutUint16(data[(i*channels+ch)*2:], uint16(int16(v*32767)))
		}
	}
	return &AudioSamples{
		Data:        data,
		SampleRate:  b.SampleRate,
		Channels:    channels,
		SampleCount: frames,
		Format:      AudioFormatS16,
		Timestamp:   b.Timestamp,
	}
}
