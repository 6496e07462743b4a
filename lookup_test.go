package gattcache

import "testing"

func buildSampleGraph() *Graph {
	g := NewGraph(nil)
	g.InsertService(HandleRange{Start: 1, End: 10}, New16(0x180F), true)
	g.InsertCharacteristic(1, 2, 3, New16(0x2A19), 0x10)
	g.InsertDescriptor(3, 4, New16(0x2902))
	g.InsertCharacteristic(1, 5, 6, New16(0x2A1A), 0x02)
	return g
}

func TestFindServiceContaining(t *testing.T) {
	g := buildSampleGraph()
	if g.FindServiceContaining(1) == nil {
		t.Errorf("expected to find service at start handle")
	}
	if g.FindServiceContaining(10) == nil {
		t.Errorf("expected to find service at end handle")
	}
	if g.FindServiceContaining(11) != nil {
		t.Errorf("expected no service beyond end handle")
	}
}

func TestFindCharacteristic(t *testing.T) {
	g := buildSampleGraph()
	c := g.FindCharacteristic(6)
	if c == nil || c.UUID != New16(0x2A1A) {
		t.Fatalf("expected to find second characteristic by value handle")
	}
	if g.FindCharacteristic(2) != nil {
		t.Errorf("expected no characteristic at declaration handle, only value handle")
	}
}

func TestFindDescriptor(t *testing.T) {
	g := buildSampleGraph()
	d := g.FindDescriptor(4)
	if d == nil || d.UUID != New16(0x2902) {
		t.Fatalf("expected to find descriptor by handle")
	}
	if g.FindDescriptor(999) != nil {
		t.Errorf("expected no descriptor for unknown handle")
	}
}

func TestServicesOrdering(t *testing.T) {
	g := NewGraph(nil)
	g.InsertService(HandleRange{Start: 1, End: 5}, New16(0x1800), true)
	g.InsertService(HandleRange{Start: 10, End: 15}, New16(0x1801), true)
	g.InsertService(HandleRange{Start: 20, End: 25}, New16(0x1802), true)

	svcs := g.Services()
	for i, want := range []Handle{1, 10, 20} {
		if svcs[i].Range.Start != want {
			t.Errorf("service %d: expected start %d, got %d", i, want, svcs[i].Range.Start)
		}
	}
}
