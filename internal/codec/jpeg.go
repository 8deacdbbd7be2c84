// Package codec compresses canonical planar 4:2:0 frames to baseline JPEG.
//
// Grounded on the teacher's EncodeJPEG/EncodeJPEGPooled (image/jpeg over an
// image.RGBA), generalized to accept the pipeline's native planar 4:2:0
// input (image.YCbCr, subsample ratio 4:2:0) instead of RGBA, which avoids
// an RGBA round-trip the teacher's screen-capture source required but our
// already-YUV camera frames do not.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/t-34400/quest-grpc/internal/frame"
)

// bufferPool pools *bytes.Buffer instances used to hold compressed JPEG
// output, mirroring the teacher's bufferPool.
var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 64*1024))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 2*1024*1024 {
		return // don't pool oversized buffers
	}
	bufferPool.Put(buf)
}

// Encoder compresses RawFrame planes to baseline JPEG at a configured
// quality. Safe for concurrent use by multiple encoder workers: the
// image.YCbCr header wrapping the frame's planes is cheap to allocate, so
// only the output buffer is pooled.
type Encoder struct{}

// NewEncoder returns an Encoder ready to use.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode compresses f's Y/U/V planes to a baseline JPEG at the given
// quality (already expected to be clamped to [1,100] by the caller). Per
// Open Question 1, the encode always uses f's actual dimensions: jpeg_width/
// jpeg_height overrides are reserved and never consulted here.
func (e *Encoder) Encode(f *frame.RawFrame, quality int) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("codec: invalid frame: %w", err)
	}

	cw, _ := frame.ChromaDims(f.Width, f.Height)
	img := &image.YCbCr{
		Y:              f.Y,
		Cb:             f.U,
		Cr:             f.V,
		YStride:        f.Width,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, f.Width, f.Height),
	}

	buf := getBuffer()
	defer putBuffer(buf)

	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("codec: jpeg encode: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
