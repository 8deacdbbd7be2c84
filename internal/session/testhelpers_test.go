package session

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"

	"github.com/t-34400/quest-grpc/internal/camera"
	"github.com/t-34400/quest-grpc/internal/visionpb"
	"github.com/t-34400/quest-grpc/internal/visionpb/testserver"
)

// startTestServer starts an in-process VisionServer on a loopback TCP
// listener and returns its address and the scriptable testserver.Server
// backing it. grpc's content-subtype negotiation is the real wire path,
// not a fake: this exercises the actual visionwire codec end to end.
func startTestServer(t *testing.T) (addr string, srv *testserver.Server) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := grpc.NewServer()
	srv = testserver.New()
	visionpb.RegisterVisionServer(s, srv)

	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	return lis.Addr().String(), srv
}

// dialTestChannel dials addr with the same options production Init uses,
// bypassing Controller.Init's own Dial call so tests can share one server
// across Channels without redialing insecure credentials boilerplate.
func dialTestChannel(t *testing.T, addr string) *Channel {
	t.Helper()
	ch := NewChannel(addr)
	if err := ch.Dial(context.Background()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

// fakeSource is a minimal camera.Source for tests.
type fakeSource struct {
	descs []camera.Descriptor
}

func (f fakeSource) List() ([]camera.Descriptor, error) {
	return f.descs, nil
}

// newFakeCapturerFactory returns a CapturerFactory that hands back the
// FakeCapturer mapped to the requested camera id, or an error when the map
// has no entry for it.
func newFakeCapturerFactory(capturers map[string]*camera.FakeCapturer) CapturerFactory {
	return func(cameraID string) (camera.Capturer, error) {
		fc, ok := capturers[cameraID]
		if !ok {
			return nil, errCameraNotFound(cameraID)
		}
		return fc, nil
	}
}

type cameraNotFoundError string

func (e cameraNotFoundError) Error() string { return "no fake capturer for camera " + string(e) }

func errCameraNotFound(id string) error { return cameraNotFoundError(id) }
