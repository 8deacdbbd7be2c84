package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/t-34400/quest-grpc/internal/logging"
	"github.com/t-34400/quest-grpc/internal/visionpb"
)

var chLog = logging.L("channel")

const maxWireMessageBytes = 32 * 1024 * 1024

// Channel is the long-lived RPC channel holder from spec §4.7: one
// grpc.ClientConn per process, dialed once at Init and reused across every
// StartStreamingStereo/StopStreaming cycle, plus the current stream.
//
// Grounded on the teacher's websocket.Client: connMu there guards only the
// *websocket.Conn pointer, not the Read/Write calls themselves, because the
// pipeline already guarantees a single writer (the send worker) and a
// single reader (the receive worker) on the stream at any time. The same
// split applies here: mu protects getting/swapping the stream pointer;
// StreamDetectClient.Send/Recv are called unguarded by their respective
// single-owner workers.
type Channel struct {
	target string

	mu     sync.RWMutex
	conn   *grpc.ClientConn
	client visionpb.VisionClient
	stream visionpb.StreamDetectClient
}

// NewChannel returns a channel for the given "host:port" target. Dial must
// be called before any stream operation.
func NewChannel(target string) *Channel {
	return &Channel{target: target}
}

// Dial opens the underlying gRPC connection. Safe to call once; calling it
// again after a successful Dial is a no-op.
func (c *Channel) Dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := grpc.NewClient(c.target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxWireMessageBytes),
			grpc.MaxCallSendMsgSize(maxWireMessageBytes),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                15 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	if err != nil {
		return fmt.Errorf("channel: dial %s: %w", c.target, err)
	}

	c.conn = conn
	c.client = visionpb.NewVisionClient(conn)
	chLog.Info("channel dialed", "target", c.target)
	return nil
}

// OpenStream starts a new StreamDetect RPC and installs it as the channel's
// current stream. Only one stream may be open at a time (spec Invariant 4).
func (c *Channel) OpenStream(ctx context.Context) (visionpb.StreamDetectClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil, newErr(ErrNotInit, "channel not dialed")
	}
	if c.stream != nil {
		return nil, newErr(ErrAlreadyActive, "a stream is already open")
	}

	stream, err := c.client.StreamDetect(ctx)
	if err != nil {
		return nil, fmt.Errorf("channel: open stream: %w", err)
	}
	c.stream = stream
	return stream, nil
}

// HalfCloseStream half-closes the current stream's send side without
// clearing it, so a still-running receive worker can keep draining the
// stream and observe its real terminal status (spec §4.6/§7: StopStreaming
// "calls stream.Finish, captures final status"). Call CloseStream
// afterwards, once that drain is done, to release the reference.
func (c *Channel) HalfCloseStream() error {
	c.mu.RLock()
	stream := c.stream
	c.mu.RUnlock()

	if stream == nil {
		return nil
	}
	if err := stream.CloseSend(); err != nil {
		chLog.Warn("stream close send", logging.KeyError, err)
		return err
	}
	return nil
}

// CloseStream clears the channel's reference to the current stream. Safe to
// call whether or not HalfCloseStream was already called.
func (c *Channel) CloseStream() {
	c.mu.Lock()
	c.stream = nil
	c.mu.Unlock()
}

// Stream returns the currently open stream, if any.
func (c *Channel) Stream() (visionpb.StreamDetectClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream, c.stream != nil
}

// Client returns the dialed VisionClient for one-shot unary calls (the
// Detect fallback, spec §3.2), or false if Dial has not been called yet.
func (c *Channel) Client() (visionpb.VisionClient, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client, c.client != nil
}

// Close tears down the underlying connection. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.client = nil
	c.stream = nil
	return err
}
