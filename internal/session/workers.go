package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/t-34400/quest-grpc/internal/camera"
	"github.com/t-34400/quest-grpc/internal/frame"
	"github.com/t-34400/quest-grpc/internal/logging"
	"github.com/t-34400/quest-grpc/internal/visionpb"
)

// idlePoll is the backoff used by a worker whose queue/capturer has nothing
// ready right now. The capture loop never sleeps on its own: Capturer.Capture
// already blocks until a frame is ready (or ctx is done), per spec
// Invariant 6 "the capture callback never blocks the caller" — it is the
// *caller into the ring* that must never block, not the hardware wait.
const idlePoll = 2 * time.Millisecond

// streamDrainTimeout bounds how long StopStreaming waits for recvLoop to
// observe the stream's final status after a half-close before giving up
// and cancelling it outright. A server that never acknowledges the
// half-close must not hang StopStreaming forever.
const streamDrainTimeout = 2 * time.Second

// captureLoop pulls frames from rs.capturer and pushes them into rs.rawQ.
// Push is always non-blocking (drop-oldest on overflow), so this loop can
// run flat out at the camera's native rate without ever stalling behind a
// slow encoder (spec §4.2).
func (c *Controller) captureLoop(ctx context.Context, rs *roleState) {
	defer c.wg.Done()
	roleLog := logging.WithRole(log, rs.role.String())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		y, u, v, w, h, ts, err := rs.capturer.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, camera.ErrFormatMismatch) {
				roleLog.Warn("dropping mismatched captured frame", logging.KeyError, err)
				continue
			}
			c.emitError(ErrCameraOpen, "%s: capture: %v", rs.cameraID, err)
			c.triggerStop()
			return
		}
		if ts == 0 && c.stampMissing() {
			ts = MonotonicNanos()
		}

		idx := rs.frameIndex.Add(1) - 1
		raw := &frame.RawFrame{
			Role: rs.role, Width: w, Height: h,
			FrameIndex: idx, TimestampNs: ts,
			Y: y, U: u, V: v,
		}
		if err := raw.Validate(); err != nil {
			roleLog.Warn("dropping invalid captured frame", logging.KeyError, err)
			continue
		}

		if ok := rs.rawQ.Push(raw); !ok {
			roleLog.Debug("raw queue overflow, dropped oldest frame")
		}
	}
}

// encodeLoop drains rs.rawQ, JPEG-encodes each frame at the current
// configured quality, and pushes the result into rs.encQ (spec §4.3).
func (c *Controller) encodeLoop(ctx context.Context, rs *roleState) {
	defer c.wg.Done()
	roleLog := logging.WithRole(log, rs.role.String())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, ok := rs.rawQ.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePoll):
			}
			continue
		}

		quality := c.jpegConfig().Quality
		data, err := c.encoder.Encode(raw, quality)
		if err != nil {
			roleLog.Warn("encode failed, dropping frame", logging.KeyError, err)
			continue
		}

		pkt := &frame.EncodedPacket{
			Role: raw.Role, Width: raw.Width, Height: raw.Height,
			FrameIndex: raw.FrameIndex, TimestampNs: raw.TimestampNs,
			JPEG:     data,
			CameraID: rs.cameraID,
			StreamID: frame.StreamID(c.streamBaseID(), raw.Role),
		}
		if ok := rs.encQ.Push(pkt); !ok {
			roleLog.Debug("encoded queue overflow, dropped oldest packet")
		}
	}
}

// sendLoop is the pipeline's single writer on the stream. It alternates
// between the two roles' encoded queues by a turn counter's parity so
// neither role can starve the other under sustained load (spec §4.4
// "turn-counter parity fairness"): a role with nothing ready yields its
// turn immediately rather than blocking the other role's packet behind it.
func (c *Controller) sendLoop(ctx context.Context, stream visionpb.StreamDetectClient, roles []*roleState) {
	defer c.wg.Done()

	var turn int
	idleStreak := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rs := roles[turn%len(roles)]
		turn++

		pkt, ok := rs.encQ.Pop()
		if !ok {
			idleStreak++
			if idleStreak >= 2 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(idlePoll):
				}
				idleStreak = 0
			}
			continue
		}
		idleStreak = 0

		wireFrame := &visionpb.Frame{
			StreamID: pkt.StreamID, CameraID: pkt.CameraID,
			FrameIndex: pkt.FrameIndex, TimestampNs: pkt.TimestampNs,
			Width: uint32(pkt.Width), Height: uint32(pkt.Height),
			Format: visionpb.ImageFormatJPEG, Data: pkt.JPEG,
		}
		if err := stream.Send(wireFrame); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.emitError(ErrGRPC, "send: %v", err)
			c.triggerStop()
			return
		}

		imageID := fmt.Sprintf("%s_%d", c.imagePrefixValue(), pkt.FrameIndex)
		c.emitFrameSent(imageID, pkt.FrameIndex, float64(pkt.TimestampNs)*1e-9)
	}
}

// recvLoop is the pipeline's single reader on the stream. Every received
// Result is filtered by the configured score threshold before being handed
// to OnResult (spec §4.5, Invariant 3).
//
// ctx governs only the stream's own lifetime, not the other workers':
// StopStreaming deliberately leaves it uncancelled until this loop has had
// a chance to drain the stream after a half-close, so a non-OK terminal
// status from the server is observed and surfaced rather than masked by
// ctx.Err() (spec §4.6/§7 final-status reporting). done is closed when this
// loop returns, letting StopStreaming wait for that drain with a timeout.
func (c *Controller) recvLoop(ctx context.Context, stream visionpb.StreamDetectClient, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	for {
		res, err := stream.Recv()
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return
			}
			c.emitError(ErrGRPC, "recv: %v", err)
			c.triggerStop()
			return
		}
		c.emitResult(c.toHostResult(res))
	}
}

// toHostResult converts a wire Result into the host-facing Result (spec
// §4.5): detections are filtered to score >= threshold (a negative
// threshold passes everything, since reported scores are non-negative),
// and an image_id is derived from the configured prefix.
func (c *Controller) toHostResult(res *visionpb.Result) *Result {
	threshold := c.threshold()
	out := &Result{
		ImageID:      fmt.Sprintf("%s_%d", c.imagePrefixValue(), res.FrameIndex),
		FrameIndex:   res.FrameIndex,
		TimestampSec: float64(res.TimestampNs) * 1e-9,
	}
	for _, d := range res.Detections {
		if d.Score < threshold {
			continue
		}
		det := Detection{ClassID: d.ClassID, Score: d.Score}
		if d.Box != nil {
			det.Box = Box{X: d.Box.X, Y: d.Box.Y, W: d.Box.W, H: d.Box.H}
		}
		out.Detections = append(out.Detections, det)
	}
	return out
}
