package codec

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/t-34400/quest-grpc/internal/frame"
)

func solidFrame(w, h int, y, u, v byte) *frame.RawFrame {
	cw, ch := frame.ChromaDims(w, h)
	f := &frame.RawFrame{Width: w, Height: h, Y: make([]byte, w*h), U: make([]byte, cw*ch), V: make([]byte, cw*ch)}
	for i := range f.Y {
		f.Y[i] = y
	}
	for i := range f.U {
		f.U[i] = u
		f.V[i] = v
	}
	return f
}

func TestEncodeProducesDecodableJPEG(t *testing.T) {
	f := solidFrame(16, 16, 128, 128, 128)
	e := NewEncoder()

	out, err := e.Encode(f, 80)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("Encode() returned empty output")
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding encoder output: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 16 || bounds.Dy() != 16 {
		t.Fatalf("decoded dims = %dx%d, want 16x16", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeRejectsInvalidFrame(t *testing.T) {
	e := NewEncoder()
	bad := &frame.RawFrame{Width: 0, Height: 0}
	if _, err := e.Encode(bad, 70); err == nil {
		t.Fatal("expected error for invalid frame")
	}
}

func TestEncodeHonorsQuality(t *testing.T) {
	f := solidFrame(64, 64, 90, 120, 140)
	e := NewEncoder()

	low, err := e.Encode(f, 5)
	if err != nil {
		t.Fatalf("low quality Encode() error: %v", err)
	}
	high, err := e.Encode(f, 95)
	if err != nil {
		t.Fatalf("high quality Encode() error: %v", err)
	}
	if len(high) <= len(low) {
		t.Fatalf("expected higher quality to produce a strictly larger payload: low=%d high=%d", len(low), len(high))
	}
}
