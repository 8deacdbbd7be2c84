package session

import (
	"context"
	"time"

	"github.com/t-34400/quest-grpc/internal/frame"
	"github.com/t-34400/quest-grpc/internal/logging"
	"github.com/t-34400/quest-grpc/internal/queue"
)

// StartStreamingStereo opens every role with an assigned camera, opens the
// RPC stream and starts the pipeline's worker goroutines (spec §4.6).
// At least one role must be assigned; the other may be left unattached
// (spec §3 Invariants: "an EncodedPacket is never emitted for an
// unattached role"). Any failure rolls back everything already opened.
func (c *Controller) StartStreamingStereo(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitLocked(); err != nil {
		return err
	}
	if c.running {
		return newErr(ErrAlreadyActive, "already streaming")
	}

	var assigned []*roleState
	for _, rs := range c.roles {
		if rs.cameraID != "" {
			assigned = append(assigned, rs)
		}
	}
	if len(assigned) == 0 {
		return newErr(ErrInvalidArg, "at least one role must have an assigned camera before streaming")
	}

	opened := make([]*roleState, 0, len(assigned))
	rollback := func() {
		for _, rs := range opened {
			_ = rs.capturer.Close()
			rs.capturer, rs.rawQ, rs.encQ = nil, nil, nil
		}
	}

	for _, rs := range assigned {
		capturer, err := c.deps.NewCapturer(rs.cameraID)
		if err != nil {
			rollback()
			return newErr(ErrCameraOpen, "%s: %v", rs.cameraID, err)
		}
		if err := capturer.Open(ctx, rs.captureCfg); err != nil {
			rollback()
			return newErr(ErrCameraOpen, "%s: %v", rs.cameraID, err)
		}
		rs.capturer = capturer
		rs.rawQ = queue.New[*frame.RawFrame](rawQueueCapacity)
		rs.encQ = queue.New[*frame.EncodedPacket](encQueueCapacity)
		rs.frameIndex.Store(0)
		opened = append(opened, rs)
	}

	// runCtx governs capture/encode/send: cancelling it unblocks a stalled
	// Capture() call and stops the loops from picking up further work.
	// streamCtx is the context the stream itself was opened under (so it's
	// what Send/Recv actually respect) and governs recvLoop; it is
	// deliberately cancelled later, only once StopStreaming has given the
	// stream a bounded chance to drain its real terminal status after a
	// half-close — see StopStreaming.
	runCtx, cancelRun := context.WithCancel(ctx)
	streamCtx, cancelStream := context.WithCancel(ctx)

	stream, err := c.deps.Channel.OpenStream(streamCtx)
	if err != nil {
		cancelRun()
		cancelStream()
		rollback()
		return newErr(ErrGRPC, "%v", err)
	}

	c.cancelRun = cancelRun
	c.cancelStream = cancelStream
	c.activeRoles = assigned
	recvDone := make(chan struct{})
	c.recvDone = recvDone

	c.wg.Add(2*len(assigned) + 2)
	for _, rs := range assigned {
		go c.captureLoop(runCtx, rs)
		go c.encodeLoop(runCtx, rs)
	}
	go c.sendLoop(runCtx, stream, assigned)
	go c.recvLoop(streamCtx, stream, recvDone)

	c.running = true
	log.Info("stereo streaming started", "roles", len(assigned))
	return nil
}

// StopStreaming halts and tears down the pipeline. Per spec's idempotence
// law, a second call while already stopped returns ErrNotRunning rather
// than succeeding silently; callers that want a tolerant stop (Shutdown)
// should ignore that error.
//
// Per spec §4.6/§7, stopping calls the stream equivalent of Finish: it
// half-closes the send side and lets the receive loop drain whatever the
// server still has in flight, surfacing a non-OK terminal status through
// on_error rather than masking it with a context-canceled error.
func (c *Controller) StopStreaming() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return newErr(ErrNotRunning, "no stream is running")
	}
	cancelRun := c.cancelRun
	cancelStream := c.cancelStream
	recvDone := c.recvDone
	channel := c.deps.Channel
	roles := c.activeRoles
	c.running = false
	c.activeRoles = nil
	c.mu.Unlock()

	// Stop producing new traffic first: capture/encode exit immediately,
	// and sendLoop stops picking up further packets (a Send already in
	// flight is bounded by the stream's own context, cancelled below).
	cancelRun()

	// Half-close the stream and give recvLoop a bounded window to observe
	// the server's final status (io.EOF on a clean close, a real error
	// otherwise) before the stream's context is cancelled out from under
	// it. Only after that drain (or timeout) do we cancel streamCtx and
	// wait for every worker, then clear the channel's stream reference:
	// gRPC forbids calling CloseSend concurrently with an in-flight
	// SendMsg, so send-side teardown (cancelRun, above) must still
	// precede this half-close.
	if err := channel.HalfCloseStream(); err != nil {
		log.Warn("stream half-close", logging.KeyError, err)
	}
	select {
	case <-recvDone:
	case <-time.After(streamDrainTimeout):
		log.Warn("stream drain timed out, cancelling")
	}

	cancelStream()
	c.wg.Wait()
	channel.CloseStream()

	for _, rs := range roles {
		if rs.capturer != nil {
			if err := rs.capturer.Close(); err != nil {
				log.Warn("camera close", "camera", rs.cameraID, logging.KeyError, err)
			}
			rs.capturer = nil
		}
		if rs.rawQ != nil {
			rs.rawQ.Reset()
		}
		if rs.encQ != nil {
			rs.encQ.Reset()
		}
	}

	log.Info("stereo streaming stopped")
	return nil
}
