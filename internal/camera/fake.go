package camera

import (
	"context"
	"sync"

	"github.com/t-34400/quest-grpc/internal/frame"
)

// FakeFrame is one scripted output of a FakeCapturer.
type FakeFrame struct {
	Width, Height int
	Y, U, V       []byte
	TimestampNs   uint64
}

// SolidFakeFrame builds a FakeFrame of uniform Y/U/V sample values, useful
// when a test only cares about sequencing, not pixel content.
func SolidFakeFrame(width, height int, y, u, v byte) FakeFrame {
	cw, ch := frame.ChromaDims(width, height)
	f := FakeFrame{Width: width, Height: height, Y: make([]byte, width*height), U: make([]byte, cw*ch), V: make([]byte, cw*ch)}
	for i := range f.Y {
		f.Y[i] = y
	}
	for i := range f.U {
		f.U[i] = u
		f.V[i] = v
	}
	return f
}

// FakeCapturer drives a deterministic, test-controlled sequence of frames.
// Grounded on the teacher's pattern of a small interface with a
// hand-rolled, test-only implementation (no platform backend needed to
// exercise the pipeline logic).
type FakeCapturer struct {
	mu      sync.Mutex
	frames  []FakeFrame
	next    int
	paused  bool
	closed  bool
	opened  bool
	advance chan struct{}
}

// NewFakeCapturer returns a FakeCapturer that will yield frames in order.
func NewFakeCapturer(frames ...FakeFrame) *FakeCapturer {
	return &FakeCapturer{frames: frames, advance: make(chan struct{}, 1)}
}

// Pause makes Capture block until Unpause is called, regardless of scripted
// frames remaining — used to reproduce the backpressure scenario (S2).
func (f *FakeCapturer) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

// Unpause clears the pause and wakes a blocked Capture call; Capture then
// keeps yielding the remaining scripted frames until Pause is called again.
func (f *FakeCapturer) Unpause() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
	select {
	case f.advance <- struct{}{}:
	default:
	}
}

// Push appends a frame to the script, usable from a producer goroutine
// while Capture calls are already in flight.
func (f *FakeCapturer) Push(fr FakeFrame) {
	f.mu.Lock()
	f.frames = append(f.frames, fr)
	f.mu.Unlock()
	select {
	case f.advance <- struct{}{}:
	default:
	}
}

func (f *FakeCapturer) Open(ctx context.Context, cfg frame.CaptureConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = true
	return nil
}

func (f *FakeCapturer) Capture(ctx context.Context) (y, u, v []byte, width, height int, timestampNs uint64, err error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return nil, nil, nil, 0, 0, 0, ctx.Err()
		}
		if !f.paused && f.next < len(f.frames) {
			fr := f.frames[f.next]
			f.next++
			f.mu.Unlock()
			return fr.Y, fr.U, fr.V, fr.Width, fr.Height, fr.TimestampNs, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, nil, nil, 0, 0, 0, ctx.Err()
		case <-f.advance:
		}
	}
}

func (f *FakeCapturer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	select {
	case f.advance <- struct{}{}:
	default:
	}
	return nil
}
