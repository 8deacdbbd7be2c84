package frame

import "testing"

func TestChromaDimsRoundsUp(t *testing.T) {
	cw, ch := ChromaDims(641, 481)
	if cw != 321 || ch != 241 {
		t.Fatalf("ChromaDims(641,481) = (%d,%d), want (321,241)", cw, ch)
	}
}

func TestPlanarSizeMatchesInvariant(t *testing.T) {
	got := PlanarSize(640, 480)
	want := 640*480 + 2*320*240
	if got != want {
		t.Fatalf("PlanarSize(640,480) = %d, want %d", got, want)
	}
}

func TestCaptureConfigDefaults(t *testing.T) {
	cfg := CaptureConfig{}.WithDefaults()
	if cfg.Width != 640 || cfg.Height != 480 || cfg.FPS != 30 {
		t.Fatalf("WithDefaults() = %+v, want 640x480@30", cfg)
	}

	cfg = CaptureConfig{Width: 1280, Height: 720, FPS: 60}.WithDefaults()
	if cfg.Width != 1280 || cfg.Height != 720 || cfg.FPS != 60 {
		t.Fatalf("WithDefaults() changed non-zero fields: %+v", cfg)
	}
}

func TestJpegConfigClampQuality(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 70},
		{-4, 70},
		{250, 100},
		{55, 55},
		{1, 1},
		{100, 100},
	}
	for _, c := range cases {
		got := JpegConfig{Quality: c.in}.ClampQuality().Quality
		if got != c.want {
			t.Errorf("ClampQuality(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestRawFrameValidate(t *testing.T) {
	f := &RawFrame{
		Width:  4,
		Height: 2,
		Y:      make([]byte, 8),
		U:      make([]byte, 2),
		V:      make([]byte, 2),
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("valid frame rejected: %v", err)
	}

	bad := &RawFrame{Width: 0, Height: 2}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for zero width")
	}

	mismatched := &RawFrame{Width: 4, Height: 2, Y: make([]byte, 7), U: make([]byte, 2), V: make([]byte, 2)}
	if err := mismatched.Validate(); err == nil {
		t.Fatal("expected error for short Y plane")
	}
}

func TestStreamIDDiffersByRole(t *testing.T) {
	left := StreamID("default", RoleLeft)
	right := StreamID("default", RoleRight)
	if left == right {
		t.Fatalf("stream ids must differ between roles: %q == %q", left, right)
	}
	if left != "default_left" || right != "default_right" {
		t.Fatalf("unexpected stream ids: %q, %q", left, right)
	}
}
