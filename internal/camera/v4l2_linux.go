//go:build linux

package camera

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/t-34400/quest-grpc/internal/frame"
)

// V4L2Source enumerates /dev/video* nodes as camera.Descriptors, reading
// each device's vendor position tag the same way V4L2Capturer.VendorPosition
// does (spec §6 "Vendor metadata"). Opening every node briefly to read its
// control is the only portable way go4vl exposes that tag outside of an
// active capture session.
type V4L2Source struct {
	Glob string // device node glob, defaults to "/dev/video*"
}

// NewV4L2Source returns a Source scanning the default device glob.
func NewV4L2Source() *V4L2Source {
	return &V4L2Source{Glob: "/dev/video*"}
}

func (s *V4L2Source) List() ([]Descriptor, error) {
	glob := s.Glob
	if glob == "" {
		glob = "/dev/video*"
	}
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("camera: enumerate %s: %w", glob, err)
	}
	sort.Strings(paths)

	descs := make([]Descriptor, 0, len(paths))
	for _, path := range paths {
		dev, err := device.Open(path)
		if err != nil {
			continue // not a capture-capable node, or busy; skip rather than fail the whole enumeration
		}
		c := &V4L2Capturer{path: path, dev: dev}
		descs = append(descs, Descriptor{ID: path, Position: c.VendorPosition()})
		dev.Close()
	}
	return descs, nil
}

// V4L2Capturer captures from a Video4Linux2 device node (e.g. /dev/video0)
// using go4vl. Frames arrive from the driver as packed YUYV 4:2:2; Capture
// converts them to the pipeline's canonical planar 4:2:0 layout, the way
// the teacher's desktop capturer converts BGRA to NV12 at the edge of its
// own backend rather than in shared code.
type V4L2Capturer struct {
	path string
	dev  *device.Device
	out  <-chan []byte
}

// NewV4L2Capturer returns a capturer bound to the given device node path.
func NewV4L2Capturer(path string) *V4L2Capturer {
	return &V4L2Capturer{path: path}
}

func (c *V4L2Capturer) Open(ctx context.Context, cfg frame.CaptureConfig) error {
	cfg = cfg.WithDefaults()

	dev, err := device.Open(c.path,
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtYUYV,
			Width:       uint32(cfg.Width),
			Height:      uint32(cfg.Height),
		}),
		device.WithFPS(uint32(cfg.FPS)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCameraOpen, err)
	}

	if err := dev.Start(ctx); err != nil {
		dev.Close()
		return fmt.Errorf("%w: start streaming: %v", ErrCameraOpen, err)
	}

	c.dev = dev
	c.out = dev.GetOutput()
	return nil
}

func (c *V4L2Capturer) Capture(ctx context.Context) (y, u, v []byte, width, height int, timestampNs uint64, err error) {
	if c.dev == nil {
		return nil, nil, nil, 0, 0, 0, fmt.Errorf("camera: device not open")
	}

	select {
	case <-ctx.Done():
		return nil, nil, nil, 0, 0, 0, ctx.Err()
	case buf, ok := <-c.out:
		if !ok {
			return nil, nil, nil, 0, 0, 0, fmt.Errorf("%w: device output closed", ErrCameraOpen)
		}
		pf := c.dev.GetPixFormat()
		width, height = int(pf.Width), int(pf.Height)
		if len(buf) < width*height*2 {
			return nil, nil, nil, 0, 0, 0, fmt.Errorf("%w: short YUYV buffer", ErrFormatMismatch)
		}
		y, u, v = yuyvToPlanar420(buf, width, height)
		return y, u, v, width, height, 0, nil
	}
}

// VendorPosition reads the vendor metadata position tag (0x80004d01) via a
// private V4L2 control. Returns PositionAbsent if the driver exposes no
// such control, matching spec §6's "-1 when the tag is absent".
func (c *V4L2Capturer) VendorPosition() int {
	if c.dev == nil {
		return PositionAbsent
	}
	ctrl, err := c.dev.GetControl(v4l2.CtrlID(VendorTagPosition))
	if err != nil {
		return PositionAbsent
	}
	switch ctrl.Value {
	case PositionLeft, PositionRight:
		return int(ctrl.Value)
	default:
		return PositionAbsent
	}
}

// Params reads intrinsics/extrinsics from vendor-private controls. Stock
// UVC/V4L2 exposes no standard calibration controls, and no vendor
// extension is read here, so this always returns ErrCameraParam; this
// mirrors the original's ERR_CAMERA_PARAM-on-missing-field behavior rather
// than fabricating values.
func (c *V4L2Capturer) Params() (Intrinsics, Extrinsics, *Rect, error) {
	return Intrinsics{}, Extrinsics{}, nil, &ErrCameraParam{CameraID: c.path, Field: "intrinsics"}
}

func (c *V4L2Capturer) Close() error {
	if c.dev == nil {
		return nil
	}
	err := c.dev.Close()
	c.dev = nil
	return err
}

// yuyvToPlanar420 converts packed YUYV 4:2:2 (2 pixels per 4 bytes, chroma
// shared across each horizontal pair) to canonical planar 4:2:0 by
// subsampling every other chroma row, mirroring the resolution reduction
// the teacher's colorconv.go performs for BGRA-to-NV12.
func yuyvToPlanar420(src []byte, w, h int) (y, u, v []byte) {
	cw, ch := frame.ChromaDims(w, h)
	y = make([]byte, w*h)
	u = make([]byte, cw*ch)
	v = make([]byte, cw*ch)

	rowStride := w * 2
	for row := 0; row < h; row++ {
		srcRow := src[row*rowStride : (row+1)*rowStride]
		for col := 0; col < w; col += 2 {
			i := col * 2
			y[row*w+col] = srcRow[i]
			if col+1 < w {
				y[row*w+col+1] = srcRow[i+2]
			}
		}

		if row%2 == 0 {
			crow := row / 2
			for col := 0; col < w; col += 2 {
				i := col * 2
				ccol := col / 2
				if crow < ch && ccol < cw {
					u[crow*cw+ccol] = srcRow[i+1]
					v[crow*cw+ccol] = srcRow[i+3]
				}
			}
		}
	}
	return y, u, v
}
