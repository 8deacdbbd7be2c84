// Package session implements the stereo capture → encode → send/receive
// pipeline and the session controller that owns its lifecycle (spec §4.6).
//
// Grounded on the teacher's desktop.Session/SessionManager (session.go):
// a done channel plus startOnce/stopOnce/cleanupOnce guarding a single
// start/stop transition, a sync.WaitGroup tracking worker goroutines, and a
// doCleanup step that releases owned resources in reverse-acquisition
// order. The controller generalizes that single-worker-group shape to the
// pipeline's six concurrent goroutines when both roles are assigned: two
// capture loops, two encoder loops, one send worker and one receive worker.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/t-34400/quest-grpc/internal/camera"
	"github.com/t-34400/quest-grpc/internal/codec"
	"github.com/t-34400/quest-grpc/internal/frame"
	"github.com/t-34400/quest-grpc/internal/logging"
	"github.com/t-34400/quest-grpc/internal/queue"
)

var log = logging.L("session")

const (
	rawQueueCapacity = 4
	encQueueCapacity = 3
)

// CapturerFactory builds a fresh, unopened Capturer for the given platform
// camera id. Injected rather than hardcoded so tests can hand the
// controller a camera.FakeCapturer factory (spec §2.4 fakes-over-mocks).
type CapturerFactory func(cameraID string) (camera.Capturer, error)

// Callbacks are the session's asynchronous edges (spec §6): every callback
// is invoked from a worker goroutine and must not block or call back into
// the controller, the same contract the teacher's desktop session places on
// its event handlers.
type Callbacks struct {
	OnFrameSent func(imageID string, frameIndex uint64, timestampSec float64)
	OnResult    func(result *Result)
	OnError     func(code Status, message string)
}

// Deps are the external collaborators a Controller needs: the RPC channel,
// the camera enumeration source, and the factory that turns a camera id
// into a Capturer. All three are swappable in tests.
type Deps struct {
	Channel     *Channel
	Source      camera.Source
	NewCapturer CapturerFactory
}

// roleState is the per-role (LEFT/RIGHT) pipeline state: one camera
// assignment, its capturer, its raw and encoded queues, and its per-session
// frame index counter.
type roleState struct {
	role     frame.Role
	cameraID string

	captureCfg frame.CaptureConfig
	capturer   camera.Capturer
	rawQ       *queue.Ring[*frame.RawFrame]
	encQ       *queue.Ring[*frame.EncodedPacket]
	frameIndex atomic.Uint64
}

// Controller implements the session lifecycle operations from spec §4.6.
// Two mutexes guard two different concerns, mirroring the teacher's split
// between session.mu (lifecycle/state) and connMu (the hot-path handle):
// mu guards initialized/running/camera-assignment/lifecycle transitions,
// cfgMu guards the small set of scalars (jpeg config, score threshold,
// prefix, stream base) the hot-path encoder/receive loops read every frame.
type Controller struct {
	mu          sync.Mutex
	initialized bool
	running     bool
	deps        Deps

	roles [2]*roleState

	cfgMu                  sync.RWMutex
	jpegCfg                frame.JpegConfig
	scoreThreshold         float32
	imagePrefix            string
	streamBase             string
	stampMissingTimestamps bool

	callbacksMu sync.RWMutex
	callbacks   Callbacks

	encoder *codec.Encoder

	activeRoles  []*roleState
	cancelRun    context.CancelFunc
	cancelStream context.CancelFunc
	recvDone     chan struct{}
	wg           sync.WaitGroup
}

// New returns an uninitialized Controller.
func New() *Controller {
	return &Controller{encoder: codec.NewEncoder()}
}

// Init wires the controller's collaborators and dials the RPC channel.
// Must be called exactly once before any other operation (spec §4.6 Init).
func (c *Controller) Init(ctx context.Context, deps Deps) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return newErr(ErrAlreadyActive, "already initialized")
	}
	if deps.Channel == nil || deps.Source == nil || deps.NewCapturer == nil {
		return newErr(ErrInvalidArg, "channel, source and capturer factory are required")
	}

	if err := deps.Channel.Dial(ctx); err != nil {
		return newErr(ErrGRPC, "%v", err)
	}

	c.deps = deps
	c.roles[frame.RoleLeft] = &roleState{role: frame.RoleLeft, captureCfg: frame.CaptureConfig{}.WithDefaults()}
	c.roles[frame.RoleRight] = &roleState{role: frame.RoleRight, captureCfg: frame.CaptureConfig{}.WithDefaults()}

	c.cfgMu.Lock()
	c.jpegCfg = frame.JpegConfig{Quality: 70}.ClampQuality()
	c.scoreThreshold = 0
	c.imagePrefix = "img"
	c.streamBase = "default"
	c.stampMissingTimestamps = false
	c.cfgMu.Unlock()

	c.initialized = true
	log.Info("session initialized")
	return nil
}

// Shutdown stops any active stream and releases the RPC channel. Safe to
// call from any state; idempotent.
func (c *Controller) Shutdown() error {
	_ = c.StopStreaming()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}
	if err := c.deps.Channel.Close(); err != nil {
		log.Warn("channel close", logging.KeyError, err)
	}
	c.initialized = false
	log.Info("session shut down")
	return nil
}

func (c *Controller) requireInitLocked() error {
	if !c.initialized {
		return newErr(ErrNotInit, "Init has not been called")
	}
	return nil
}

// SetCallbacks installs the session's async edges (spec §4.6).
func (c *Controller) SetCallbacks(cb Callbacks) error {
	c.mu.Lock()
	if err := c.requireInitLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.callbacksMu.Lock()
	c.callbacks = cb
	c.callbacksMu.Unlock()
	return nil
}

// SetJpegConfig updates the JPEG encode quality used by subsequent frames.
// Quality is clamped per spec (0 or negative -> 70, >100 -> 100); width/
// height are stored but never consulted (Open Question 1).
func (c *Controller) SetJpegConfig(cfg frame.JpegConfig) error {
	c.mu.Lock()
	err := c.requireInitLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	cfg = cfg.ClampQuality()
	c.cfgMu.Lock()
	c.jpegCfg = cfg
	c.cfgMu.Unlock()
	return nil
}

// SetScoreThreshold updates the detection score filter applied to inbound
// results. A negative value disables filtering (every detection passes,
// since reported scores are non-negative).
func (c *Controller) SetScoreThreshold(threshold float32) error {
	c.mu.Lock()
	err := c.requireInitLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.cfgMu.Lock()
	c.scoreThreshold = threshold
	c.cfgMu.Unlock()
	return nil
}

// SetImageIdPrefix updates the prefix used when an implementation needs to
// mint an opaque image id (spec §6). Empty is replaced with the default.
func (c *Controller) SetImageIdPrefix(prefix string) error {
	c.mu.Lock()
	err := c.requireInitLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if prefix == "" {
		prefix = "img"
	}
	c.cfgMu.Lock()
	c.imagePrefix = prefix
	c.cfgMu.Unlock()
	return nil
}

// SetStereoStreamBaseId updates the base used to derive each role's wire
// stream id ("${base}_${role}").
func (c *Controller) SetStereoStreamBaseId(base string) error {
	c.mu.Lock()
	err := c.requireInitLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if base == "" {
		base = "default"
	}
	c.cfgMu.Lock()
	c.streamBase = base
	c.cfgMu.Unlock()
	return nil
}

// SetStampMissingTimestamps controls whether captureLoop substitutes
// MonotonicNanos() for a captured frame whose backend reported no
// timestamp. Per the RawFrame invariant ("0 if unavailable"), the default
// is false: a zero timestamp is passed through unchanged. Enabling this is
// an explicit opt-in, not a silent default, so a backend that legitimately
// has no clock doesn't have that fact fabricated away.
func (c *Controller) SetStampMissingTimestamps(enabled bool) error {
	c.mu.Lock()
	err := c.requireInitLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.cfgMu.Lock()
	c.stampMissingTimestamps = enabled
	c.cfgMu.Unlock()
	return nil
}

func (c *Controller) stampMissing() bool {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.stampMissingTimestamps
}

// SetCameraForRole assigns a platform camera id and capture geometry to a
// stereo role, overwriting any prior assignment (spec §4.6). Not permitted
// while streaming: reassigning a live role's camera would orphan its
// in-flight capture goroutine.
func (c *Controller) SetCameraForRole(role frame.Role, cameraID string, cfg frame.CaptureConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitLocked(); err != nil {
		return err
	}
	if c.running {
		return newErr(ErrAlreadyActive, "cannot reassign camera while streaming")
	}
	if cameraID == "" {
		return newErr(ErrInvalidArg, "cameraID must not be empty")
	}
	if role != frame.RoleLeft && role != frame.RoleRight {
		return newErr(ErrInvalidArg, "unknown role %v", role)
	}

	c.roles[role].cameraID = cameraID
	c.roles[role].captureCfg = cfg.WithDefaults()
	return nil
}

// EnumerateCameras lists the cameras visible to the configured Source
// (spec §4.6).
func (c *Controller) EnumerateCameras() ([]camera.Descriptor, error) {
	c.mu.Lock()
	err := c.requireInitLocked()
	src := c.deps.Source
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	descs, err := camera.Enumerate(src)
	if err != nil {
		return nil, newErr(ErrCameraOpen, "%v", err)
	}
	return descs, nil
}

// GetCameraIdByPosition resolves the camera tagged with the given vendor
// position (spec §4.6).
func (c *Controller) GetCameraIdByPosition(pos int) (string, error) {
	c.mu.Lock()
	err := c.requireInitLocked()
	src := c.deps.Source
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	id, err := camera.ByPosition(src, pos)
	if err != nil {
		return "", newErr(ErrCameraOpen, "%v", err)
	}
	return id, nil
}

// GetCameraParams reads intrinsics/extrinsics for a camera id from a
// capturer built through the capturer factory (spec §4.6); the capturer is
// not opened before Params is called. Returns
// ErrCameraParam if the backend cannot supply calibration data.
func (c *Controller) GetCameraParams(cameraID string) (camera.Intrinsics, camera.Extrinsics, *camera.Rect, error) {
	c.mu.Lock()
	err := c.requireInitLocked()
	newCapturer := c.deps.NewCapturer
	c.mu.Unlock()
	if err != nil {
		return camera.Intrinsics{}, camera.Extrinsics{}, nil, err
	}

	capturer, err := newCapturer(cameraID)
	if err != nil {
		return camera.Intrinsics{}, camera.Extrinsics{}, nil, newErr(ErrCameraOpen, "%v", err)
	}
	defer capturer.Close()

	provider, ok := capturer.(camera.ParamsProvider)
	if !ok {
		return camera.Intrinsics{}, camera.Extrinsics{}, nil, &StatusError{Code: ErrCameraParam, Message: fmt.Sprintf("%s: backend does not expose calibration data", cameraID)}
	}
	intr, extr, rect, err := provider.Params()
	if err != nil {
		return camera.Intrinsics{}, camera.Extrinsics{}, nil, &StatusError{Code: ErrCameraParam, Message: err.Error()}
	}
	return intr, extr, rect, nil
}

// IsStreaming reports whether a stereo stream is currently active.
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Controller) jpegConfig() frame.JpegConfig {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.jpegCfg
}

func (c *Controller) threshold() float32 {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.scoreThreshold
}

func (c *Controller) streamBaseID() string {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.streamBase
}

func (c *Controller) imagePrefixValue() string {
	c.cfgMu.RLock()
	defer c.cfgMu.RUnlock()
	return c.imagePrefix
}

// triggerStop asynchronously tears the session down after a worker detects
// a fatal condition (stream write/read failure, camera disconnect). It must
// not call StopStreaming synchronously: the calling worker is one of the
// goroutines StopStreaming's wg.Wait blocks on, and the caller is expected
// to return (and so call wg.Done) immediately after, which unblocks it.
func (c *Controller) triggerStop() {
	go func() { _ = c.StopStreaming() }()
}

func (c *Controller) emitError(code Status, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Error("session error", "code", int(code), "message", msg)
	c.callbacksMu.RLock()
	cb := c.callbacks.OnError
	c.callbacksMu.RUnlock()
	if cb != nil {
		cb(code, msg)
	}
}

func (c *Controller) emitFrameSent(imageID string, frameIndex uint64, timestampSec float64) {
	c.callbacksMu.RLock()
	cb := c.callbacks.OnFrameSent
	c.callbacksMu.RUnlock()
	if cb != nil {
		cb(imageID, frameIndex, timestampSec)
	}
}

func (c *Controller) emitResult(res *Result) {
	c.callbacksMu.RLock()
	cb := c.callbacks.OnResult
	c.callbacksMu.RUnlock()
	if cb != nil {
		cb(res)
	}
}
