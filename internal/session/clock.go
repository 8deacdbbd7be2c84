package session

import "time"

// processStart anchors MonotonicNanos so timestamps are comparable across a
// process's lifetime even when a capture backend cannot report a hardware
// timestamp (camera.Capturer.Capture returning timestampNs == 0).
var processStart = time.Now()

// MonotonicNanos returns nanoseconds elapsed since process start. time.Since
// uses the runtime's monotonic clock reading internally, so this is immune
// to wall-clock adjustments the way a hardware timestamp would be.
func MonotonicNanos() uint64 {
	return uint64(time.Since(processStart).Nanoseconds())
}
