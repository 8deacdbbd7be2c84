package visionpb

import "testing"

func TestFrameRoundTrip(t *testing.T) {
	f := &Frame{
		StreamID:    "default_left",
		CameraID:    "cam0",
		FrameIndex:  42,
		TimestampNs: 1234567890,
		Width:       640,
		Height:      480,
		Format:      ImageFormatJPEG,
		Data:        []byte{0xff, 0xd8, 0xff, 0xd9},
	}

	b, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	got := &Frame{}
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if got.StreamID != f.StreamID || got.CameraID != f.CameraID || got.FrameIndex != f.FrameIndex ||
		got.TimestampNs != f.TimestampNs || got.Width != f.Width || got.Height != f.Height || got.Format != f.Format {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, f)
	}
	if string(got.Data) != string(f.Data) {
		t.Fatalf("Data mismatch: got %x, want %x", got.Data, f.Data)
	}
}

func TestResultRoundTripWithDetections(t *testing.T) {
	r := &Result{
		FrameIndex:  7,
		TimestampNs: 99,
		Detections: []*Detection{
			{Box: &Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}, ClassID: 3, Score: 0.9},
			{Box: &Box{X: 0.5, Y: 0.5, W: 0.1, H: 0.1}, ClassID: -1, Score: 0.2},
		},
	}

	b, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	got := &Result{}
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if got.FrameIndex != r.FrameIndex || got.TimestampNs != r.TimestampNs {
		t.Fatalf("scalar mismatch: got %+v, want %+v", got, r)
	}
	if len(got.Detections) != len(r.Detections) {
		t.Fatalf("detections len = %d, want %d", len(got.Detections), len(r.Detections))
	}
	for i, d := range got.Detections {
		want := r.Detections[i]
		if d.ClassID != want.ClassID || d.Score != want.Score {
			t.Fatalf("detection[%d] = %+v, want %+v", i, d, want)
		}
		if d.Box == nil || want.Box == nil || *d.Box != *want.Box {
			t.Fatalf("detection[%d] box = %+v, want %+v", i, d.Box, want.Box)
		}
	}
}

func TestDetectRequestResponseRoundTrip(t *testing.T) {
	req := &DetectRequest{
		CameraID: "cam1",
		Frame:    &Frame{StreamID: "default_right", FrameIndex: 1, Format: ImageFormatJPEG},
	}
	b, err := req.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got := &DetectRequest{}
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.CameraID != req.CameraID || got.Frame == nil || got.Frame.StreamID != req.Frame.StreamID {
		t.Fatalf("round-trip mismatch: got %+v", got)
	}

	resp := &DetectResponse{Result: &Result{FrameIndex: 1}}
	rb, err := resp.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	gotResp := &DetectResponse{}
	if err := gotResp.Unmarshal(rb); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if gotResp.Result == nil || gotResp.Result.FrameIndex != 1 {
		t.Fatalf("response round-trip mismatch: got %+v", gotResp)
	}
}
