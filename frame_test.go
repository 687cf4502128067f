package studio

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestPixelFormat_String(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   string
		planes int
	}{
		{PixelFormatI420, "I420", 3},
		{PixelFormatRGBA32, "RGBA32", 1},
		{PixelFormat(99), "Unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.format.String(); got != tt.want {
				t.Errorf("PixelFormat.String() = %v, want %v", got, tt.want)
			}
			if got := tt.format.PlaneCount(); got != tt.planes {
				t.Errorf("PixelFormat.PlaneCount() = %v, want %v", got, tt.planes)
			}
		})
	}
}

func TestAudioFormat_BytesPerSample(t *testing.T) {
	tests := []struct {
		format AudioFormat
		want   int
	}{
		{AudioFormatS16, 2},
		{AudioFormatF32, 4},
		{AudioFormat(99), 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.BytesPerSample(); got != tt.want {
				t.Errorf("AudioFormat.BytesPerSample() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVideoFrame_Clone(t *testing.T) {
	original := &VideoFrame{
		Data: [][]byte{
			{1, 2, 3, 4},
			{5},
			{7},
		},
		Stride:    []int{2, 1, 1},
		Width:     2,
		Height:    2,
		Format:    PixelFormatI420,
		Timestamp: 12345,
		Duration:  33333,
	}

	clone := original.Clone()

	if clone.Width != original.Width || clone.Height != original.Height {
		t.Error("Clone dimensions mismatch")
	}
	if clone.Timestamp != original.Timestamp || clone.Duration != original.Duration {
		t.Error("Clone timing mismatch")
	}

	clone.Data[0][0] = 99
	if original.Data[0][0] == 99 {
		t.Error("Clone is not independent from original")
	}
}

func TestVideoFrame_Image(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.SetRGBA(3, 1, color.RGBA{10, 20, 30, 255})

	f := FrameFromImage(img, 42)
	if f.Width != 4 || f.Height != 2 || f.Timestamp != 42 {
		t.Fatalf("unexpected frame %dx%d @%d", f.Width, f.Height, f.Timestamp)
	}
	got, ok := f.Image().(*image.RGBA)
	if !ok {
		t.Fatalf("Image() = %T, want *image.RGBA", f.Image())
	}
	if c := got.RGBAAt(3, 1); c != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("pixel = %v", c)
	}

	yuv := &VideoFrame{
		Data:   [][]byte{make([]byte, 4), make([]byte, 1), make([]byte, 1)},
		Stride: []int{2, 1, 1},
		Width:  2, Height: 2,
		Format: PixelFormatI420,
	}
	if _, ok := yuv.Image().(*image.YCbCr); !ok {
		t.Errorf("I420 Image() = %T", yuv.Image())
	}

	broken := &VideoFrame{Width: 2, Height: 2, Format: PixelFormatI420}
	if broken.Image() != nil {
		t.Error("frame without planes should have no image")
	}
}

func TestAudioSamples_Clone(t *testing.T) {
	original := &AudioSamples{
		Data:        []byte{0x00, 0x01, 0x02, 0x03},
		SampleRate:  48000,
		Channels:    2,
		SampleCount: 1,
		Format:      AudioFormatS16,
		Timestamp:   12345,
	}

	clone := original.Clone()
	if clone.SampleRate != original.SampleRate || clone.Channels != original.Channels {
		t.Error("Clone format mismatch")
	}

	clone.Data[0] = 0xFF
	if original.Data[0] == 0xFF {
		t.Error("Clone is not independent from original")
	}
}

func TestAudioBlock_RoundTrip(t *testing.T) {
	b := NewAudioBlock(2, 3, 48000)
	b.Channels[0] = []float32{0.5, -0.5, 2}
	b.Channels[1] = []float32{0, 0.25, -2}
	b.Timestamp = 7

	s := b.Samples()
	if s.SampleCount != 3 || s.Channels != 2 || len(s.Data) != 12 {
		t.Fatalf("unexpected samples %+v", s)
	}

	back := s.Block()
	if back.Timestamp != 7 || back.Frames() != 3 {
		t.Fatalf("unexpected block %+v", back)
	}
	want := [][]float32{{0.5, -0.5, 1}, {0, 0.25, -1}}
	for ch := range want {
		for i, v := range want[ch] {
			if math.Abs(float64(back.Channels[ch][i]-v)) > 1e-3 {
				t.Errorf("channel %d sample %d = %v, want %v", ch, i, back.Channels[ch][i], v)
			}
		}
	}
}

func TestAudioSamples_BlockFloat(t *testing.T) {
	s := &AudioSamples{
		Data:        make([]byte, 8),
		SampleRate:  48000,
		Channels:    1,
		SampleCount: 5, // more than the data holds
		Format:      AudioFormatF32,
	}
	bits := math.Float32bits(0.75)
	s.Data[4], s.Data[5], s.Data[6], s.Data[7] = byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24)

	b := s.Block()
	if b.Frames() != 2 {
		t.Fatalf("Frames() = %d, want 2", b.Frames())
	}
	if b.Channels[0][1] != 0.75 {
		t.Errorf("sample = %v, want 0.75", b.Channels[0][1])
	}

	empty := (&AudioSamples{Format: AudioFormat(9)}).Block()
	if empty.Frames() != 0 {
		t.Error("unknown format should give an empty block")
	}
}

func BenchmarkAudioSamples_Block(b *testing.B) {
	s := NewToneSource(DefaultToneConfig()).Next()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s.Block()
	}
}
