// Package testserver provides an in-process VisionServer double so session
// tests can exercise the real wire codec and stream plumbing without a real
// vision backend, mirroring spec §2.4's "fakes over mocks" approach.
package testserver

import (
	"context"
	"io"
	"sync"

	"github.com/t-34400/quest-grpc/internal/visionpb"
)

// Server is a scriptable VisionServer: it records every Frame it receives
// and sends back Results queued via Reply.
type Server struct {
	mu        sync.Mutex
	replies   map[uint64][]*visionpb.Result // frame_index -> results to send
	received  []*visionpb.Frame
	onFrame   func(*visionpb.Frame)
	failAfter int // 0 = never
	failErr   error
}

// New returns an empty test server.
func New() *Server {
	return &Server{replies: make(map[uint64][]*visionpb.Result)}
}

// Reply queues res to be sent back after a Frame with the matching
// FrameIndex is received.
func (s *Server) Reply(res *visionpb.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[res.FrameIndex] = append(s.replies[res.FrameIndex], res)
}

// OnFrame installs a callback invoked synchronously for every received
// frame, before any queued reply is sent.
func (s *Server) OnFrame(fn func(*visionpb.Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFrame = fn
}

// FailAfter makes StreamDetect return err as soon as the n-th Frame (1
// indexed) has been received, terminating the RPC with a non-OK status —
// used to reproduce a mid-stream RPC failure.
func (s *Server) FailAfter(n int, err error) {
	s.mu.Lock()
	s.failAfter = n
	s.failErr = err
	s.mu.Unlock()
}

// Received returns every Frame received so far, in arrival order.
func (s *Server) Received() []*visionpb.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*visionpb.Frame, len(s.received))
	copy(out, s.received)
	return out
}

// StreamDetect implements visionpb.VisionServer.
func (s *Server) StreamDetect(stream visionpb.StreamDetectServer) error {
	for {
		f, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.received = append(s.received, f)
		onFrame := s.onFrame
		failNow := s.failAfter != 0 && len(s.received) == s.failAfter
		failErr := s.failErr
		s.mu.Unlock()

		if onFrame != nil {
			onFrame(f)
		}

		if failNow {
			return failErr
		}

		s.mu.Lock()
		replies := s.replies[f.FrameIndex]
		delete(s.replies, f.FrameIndex)
		s.mu.Unlock()

		for _, r := range replies {
			if err := stream.Send(r); err != nil {
				return err
			}
		}
	}
}

// Detect implements the unary fallback by synthesizing an empty result.
func (s *Server) Detect(ctx context.Context, req *visionpb.DetectRequest) (*visionpb.DetectResponse, error) {
	var idx uint64
	if req.Frame != nil {
		idx = req.Frame.FrameIndex
	}
	return &visionpb.DetectResponse{Result: &visionpb.Result{FrameIndex: idx}}, nil
}
