package camera

import "testing"

type fakeSource struct {
	descs []Descriptor
}

func (s fakeSource) List() ([]Descriptor, error) {
	return s.descs, nil
}

func TestByPositionFindsMatch(t *testing.T) {
	src := fakeSource{descs: []Descriptor{
		{ID: "cam0", Position: PositionLeft},
		{ID: "cam1", Position: PositionRight},
	}}
	id, err := ByPosition(src, PositionRight)
	if err != nil {
		t.Fatalf("ByPosition() error: %v", err)
	}
	if id != "cam1" {
		t.Fatalf("ByPosition() = %q, want cam1", id)
	}
}

func TestByPositionNoMatch(t *testing.T) {
	src := fakeSource{descs: []Descriptor{{ID: "cam0", Position: PositionLeft}}}
	if _, err := ByPosition(src, PositionRight); err == nil {
		t.Fatal("expected error when no camera matches position")
	}
}

func TestEnumerateJSONShape(t *testing.T) {
	src := fakeSource{descs: []Descriptor{
		{ID: "cam0", Position: PositionLeft},
		{ID: "cam1", Position: PositionAbsent},
	}}
	out, err := EnumerateJSON(src)
	if err != nil {
		t.Fatalf("EnumerateJSON() error: %v", err)
	}
	want := `[{"id":"cam0","position":0},{"id":"cam1","position":-1}]`
	if string(out) != want {
		t.Fatalf("EnumerateJSON() = %s, want %s", out, want)
	}
}
