package session

// Box is a detection bounding box, decoupled from the wire message type so
// host callbacks never depend on the visionpb package directly (spec §6
// "on_result(AIV_Result*)").
type Box struct {
	X, Y, W, H float32
}

// Detection is one reported detection surviving the score-threshold filter.
type Detection struct {
	Box     Box
	ClassID int32
	Score   float32
}

// Result is the host-facing detection result for one previously sent frame,
// mirroring the original AIV_Result: an image id derived from the
// configured prefix, the frame index and timestamp it answers, and the
// surviving detections.
type Result struct {
	ImageID      string
	FrameIndex   uint64
	TimestampSec float64
	Detections   []Detection
}
