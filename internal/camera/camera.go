// Package camera defines the camera session abstraction: the platform
// camera handle plus the image-available producer that feeds raw frames
// into the pipeline.
//
// Grounded on the teacher's ScreenCapturer interface (desktop/capture.go):
// one small interface implemented per platform/backend, with optional
// marker interfaces a backend can implement to advertise extra
// capabilities. Here the core contract is a blocking Capture call run in a
// tight per-role goroutine (desktop/capture.go's TightLoopHint idiom)
// rather than a ticker, since image-available events are themselves
// blocking/event-driven on real hardware.
package camera

import (
	"context"
	"errors"
	"fmt"

	"github.com/t-34400/quest-grpc/internal/frame"
)

// Capturer is implemented per platform/device backend. Capture blocks until
// a frame is available (or ctx is done) and returns it already converted to
// canonical planar 4:2:0 layout — each backend owns its own semiplanar- or
// packed-to-planar conversion, the way the teacher's colorconv.go owns
// BGRA-to-NV12 conversion for the desktop capturer.
type Capturer interface {
	// Open acquires the device handle and configures capture geometry.
	Open(ctx context.Context, cfg frame.CaptureConfig) error
	// Capture blocks for the next frame. TimestampNs is 0 when the backend
	// cannot report a hardware timestamp.
	Capture(ctx context.Context) (y, u, v []byte, width, height int, timestampNs uint64, err error)
	// Close releases the device handle and any buffers. Idempotent.
	Close() error
}

// VendorPositionProvider is implemented by backends that can report the
// vendor metadata position tag (spec §6 "Vendor metadata", tag 0x80004d01).
type VendorPositionProvider interface {
	VendorPosition() int
}

// ParamsProvider is implemented by backends that can read intrinsics and
// extrinsics from device metadata (spec §4.6 GetCameraParams).
type ParamsProvider interface {
	Params() (Intrinsics, Extrinsics, *Rect, error)
}

var (
	// ErrNotSupported is returned when no backend is available for the
	// current platform.
	ErrNotSupported = errors.New("camera: not supported on this platform")
	// ErrCameraOpen is returned when the device fails to open.
	ErrCameraOpen = errors.New("camera: open failed")
	// ErrFormatMismatch is returned by a backend's Capture when the driver
	// delivers a frame whose format or dimensions do not match what Open
	// negotiated; the frame is dropped rather than surfaced.
	ErrFormatMismatch = errors.New("camera: frame format mismatch")
)

// Intrinsics mirrors AIV_Intrinsics: fx, fy, cx, cy, skew.
type Intrinsics struct {
	FX, FY, CX, CY, Skew float64
}

// Extrinsics mirrors AIV_Extrinsics: translation t and rotation quaternion q.
type Extrinsics struct {
	TX, TY, TZ         float64
	QX, QY, QZ, QW     float64
}

// Rect is the optional active-array rectangle (spec §9 Open Question 2).
type Rect struct {
	X, Y, Width, Height int
}

// ErrCameraParam signals that a required intrinsics/extrinsics field was
// missing from device metadata (spec §4.6 GetCameraParams).
type ErrCameraParam struct {
	CameraID string
	Field    string
}

func (e *ErrCameraParam) Error() string {
	return fmt.Sprintf("camera: %s missing field %q", e.CameraID, e.Field)
}
