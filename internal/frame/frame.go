// Package frame defines the data records that flow through the stereo
// capture → encode → send pipeline.
package frame

import "fmt"

// Role identifies a logical camera slot.
type Role int

const (
	RoleLeft Role = iota
	RoleRight
)

// String returns the wire suffix for the role ("left" / "right").
func (r Role) String() string {
	switch r {
	case RoleLeft:
		return "left"
	case RoleRight:
		return "right"
	default:
		return "unknown"
	}
}

// CaptureConfig is the desired capture geometry and rate. A zero value on any
// field means "use platform default" (640x480 @ 30 in this implementation).
type CaptureConfig struct {
	Width  int
	Height int
	FPS    int
}

// WithDefaults returns a copy of c with zero fields replaced by the platform
// defaults (640x480 @ 30).
func (c CaptureConfig) WithDefaults() CaptureConfig {
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	return c
}

// JpegConfig is the JPEG encode configuration. Width/Height are reserved
// (stored, never consulted — see Open Question 1): the encoder always
// encodes at the RawFrame's actual dimensions.
type JpegConfig struct {
	Width   int
	Height  int
	Quality int
}

// ClampQuality returns cfg with Quality clamped into [1,100], with 0 or a
// negative value mapped to the documented default of 70.
func (cfg JpegConfig) ClampQuality() JpegConfig {
	switch {
	case cfg.Quality < 1:
		cfg.Quality = 70
	case cfg.Quality > 100:
		cfg.Quality = 100
	}
	return cfg
}

// ChromaDims returns the chroma plane width/height for a canonical 4:2:0
// planar frame of the given luma dimensions: ceil(w/2), ceil(h/2).
func ChromaDims(w, h int) (cw, ch int) {
	return (w + 1) / 2, (h + 1) / 2
}

// PlanarSize returns the total byte length of a canonical 4:2:0 planar
// frame: W*H + 2*ceil(W/2)*ceil(H/2).
func PlanarSize(w, h int) int {
	cw, ch := ChromaDims(w, h)
	return w*h + 2*cw*ch
}

// RawFrame is a captured image in canonical planar 4:2:0 layout: full
// resolution Y, half resolution (rounded up) U and V, each plane contiguous
// with strides {W, ceil(W/2), ceil(W/2)} and heights {H, ceil(H/2), ceil(H/2)}.
type RawFrame struct {
	Role        Role
	Width       int
	Height      int
	FrameIndex  uint64
	TimestampNs uint64
	Y, U, V     []byte
}

// Validate checks the dimension and plane-length invariants from the data
// model: positive dimensions and len(Y)+len(U)+len(V) == PlanarSize(W,H).
func (f *RawFrame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame: non-positive dimensions %dx%d", f.Width, f.Height)
	}
	cw, ch := ChromaDims(f.Width, f.Height)
	if len(f.Y) != f.Width*f.Height {
		return fmt.Errorf("frame: Y plane length %d != %d", len(f.Y), f.Width*f.Height)
	}
	if len(f.U) != cw*ch || len(f.V) != cw*ch {
		return fmt.Errorf("frame: chroma plane length mismatch: U=%d V=%d want %d", len(f.U), len(f.V), cw*ch)
	}
	return nil
}

// EncodedPacket is a compressed frame ready for the wire.
type EncodedPacket struct {
	Role        Role
	Width       int
	Height      int
	FrameIndex  uint64
	TimestampNs uint64
	JPEG        []byte
	CameraID    string
	StreamID    string
}

// StreamID returns "${streamBase}_${role}" for the given role.
func StreamID(streamBase string, role Role) string {
	return fmt.Sprintf("%s_%s", streamBase, role)
}
