package packet

import (
	"testing"

	"github.com/kabili207/overlay-router/core"
)

func TestRoutingHeader_OriginDestination(t *testing.T) {
	h := RoutingHeader{Hops: []core.NodeID{1, 2, 3}, HopIndex: 1}

	origin, ok := h.Origin()
	if !ok || origin != 1 {
		t.Errorf("Origin() = %v, %v, want 1, true", origin, ok)
	}
	dest, ok := h.Destination()
	if !ok || dest != 3 {
		t.Errorf("Destination() = %v, %v, want 3, true", dest, ok)
	}
	next, ok := h.NextHop()
	if !ok || next != 2 {
		t.Errorf("NextHop() = %v, %v, want 2, true", next, ok)
	}
}

func TestRoutingHeader_EmptyHops(t *testing.T) {
	var h RoutingHeader
	if _, ok := h.Origin(); ok {
		t.Error("Origin() should fail on empty header")
	}
	if _, ok := h.Destination(); ok {
		t.Error("Destination() should fail on empty header")
	}
	if _, ok := h.NextHop(); ok {
		t.Error("NextHop() should fail on empty header")
	}
}

func TestRoutingHeader_HasLoopAndStrip(t *testing.T) {
	h := RoutingHeader{Hops: []core.NodeID{1, 2, 3, 2, 4}}
	if !h.HasLoop() {
		t.Fatal("expected loop to be detected")
	}

	stripped := h.StripLoops()
	want := []core.NodeID{1, 3, 2, 4}
	if len(stripped.Hops) != len(want) {
		t.Fatalf("StripLoops() = %v, want %v", stripped.Hops, want)
	}
	for i, id := range want {
		if stripped.Hops[i] != id {
			t.Errorf("StripLoops()[%d] = %v, want %v", i, stripped.Hops[i], id)
		}
	}
}

func TestRoutingHeader_Reversed(t *testing.T) {
	h := RoutingHeader{Hops: []core.NodeID{1, 2, 3}, HopIndex: 1}
	rev := h.Reversed()

	want := []core.NodeID{3, 2, 1}
	for i, id := range want {
		if rev.Hops[i] != id {
			t.Errorf("Reversed().Hops[%d] = %v, want %v", i, rev.Hops[i], id)
		}
	}
	if rev.HopIndex != 1 {
		t.Errorf("Reversed().HopIndex = %d, want 1", rev.HopIndex)
	}
}

func TestFromRoute(t *testing.T) {
	h := FromRoute([]core.NodeID{1, 2, 2, 3})
	want := []core.NodeID{1, 2, 3}
	if len(h.Hops) != len(want) {
		t.Fatalf("FromRoute() = %v, want %v", h.Hops, want)
	}
	for i, id := range want {
		if h.Hops[i] != id {
			t.Errorf("FromRoute().Hops[%d] = %v, want %v", i, h.Hops[i], id)
		}
	}
	if h.HopIndex != 1 {
		t.Errorf("FromRoute().HopIndex = %d, want 1", h.HopIndex)
	}
}

func TestPacket_Clone_IsDeepCopy(t *testing.T) {
	orig := NewFloodRequest(1, 2, core.NodeID(5))
	orig.PathTrace = []TraceEntry{{NodeID: 9, Role: core.RoleDrone}}
	orig.RoutingHeader = RoutingHeader{Hops: []core.NodeID{1, 2}}

	clone := orig.Clone()
	clone.PathTrace[0].NodeID = 99
	clone.RoutingHeader.Hops[0] = 99

	if orig.PathTrace[0].NodeID == 99 {
		t.Error("Clone() shares PathTrace backing array with original")
	}
	if orig.RoutingHeader.Hops[0] == 99 {
		t.Error("Clone() shares RoutingHeader.Hops backing array with original")
	}
}

func TestNewFragment_PanicsOnOversizedChunk(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for oversized chunk")
		}
	}()
	NewFragment(0, 1, make([]byte, FragmentSize+1))
}

func TestFragment_Payload(t *testing.T) {
	f := NewFragment(0, 1, []byte{1, 2, 3})
	if got := f.Payload(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("Payload() = %v, want [1 2 3]", got)
	}
}
