package packet

import (
	"testing"

	"github.com/kabili207/overlay-router/core"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()
	data := p.WriteTo()
	var out Packet
	if err := out.ReadFrom(data); err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	return out
}

func TestWireRoundTrip_MsgFragment(t *testing.T) {
	hdr := RoutingHeader{Hops: []core.NodeID{1, 2, 3}, HopIndex: 1}
	frag := NewFragment(0, 2, []byte("hello"))
	p := NewMsgFragment(42, hdr, frag)

	out := roundTrip(t, p)

	if out.Kind != KindMsgFragment || out.SessionID != 42 {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
	if len(out.RoutingHeader.Hops) != 3 || out.RoutingHeader.HopIndex != 1 {
		t.Errorf("RoutingHeader = %+v", out.RoutingHeader)
	}
	if string(out.Fragment.Payload()) != "hello" {
		t.Errorf("Fragment.Payload() = %q, want %q", out.Fragment.Payload(), "hello")
	}
}

func TestWireRoundTrip_Ack(t *testing.T) {
	hdr := RoutingHeader{Hops: []core.NodeID{5, 6}, HopIndex: 1}
	p := NewAck(7, hdr, 3)

	out := roundTrip(t, p)

	if out.Kind != KindAck || out.SessionID != 7 || out.FragmentIndex != 3 {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestWireRoundTrip_Nack(t *testing.T) {
	hdr := RoutingHeader{Hops: []core.NodeID{5, 6}, HopIndex: 1}
	p := NewNack(7, hdr, 2, NackErrorInRouting, core.NodeID(6))

	out := roundTrip(t, p)

	if out.NackKind != NackErrorInRouting || out.NackNodeID != 6 {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestWireRoundTrip_FloodRequest(t *testing.T) {
	p := NewFloodRequest(1, 99, core.NodeID(4))
	p.PathTrace = []TraceEntry{{NodeID: 1, Role: core.RoleDrone}, {NodeID: 2, Role: core.RoleClient}}

	out := roundTrip(t, p)

	if out.FloodID != 99 || out.InitiatorID != 4 {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
	if len(out.PathTrace) != 2 || out.PathTrace[1].Role != core.RoleClient {
		t.Errorf("PathTrace = %+v", out.PathTrace)
	}
}

func TestWireRoundTrip_FloodResponse(t *testing.T) {
	hdr := RoutingHeader{Hops: []core.NodeID{4, 3, 2}, HopIndex: 1}
	trace := []TraceEntry{{NodeID: 3, Role: core.RoleDrone}}
	p := NewFloodResponse(1, hdr, 99, trace)

	out := roundTrip(t, p)

	if out.FloodID != 99 || len(out.PathTrace) != 1 {
		t.Fatalf("roundtrip mismatch: %+v", out)
	}
}

func TestReadFrom_TooShort(t *testing.T) {
	var p Packet
	if err := p.ReadFrom([]byte{0x00}); err == nil {
		t.Error("expected error decoding truncated packet")
	}
}

func TestReadFrom_UnknownKind(t *testing.T) {
	var p Packet
	data := []byte{0xFF}
	if err := p.ReadFrom(data); err != ErrUnknownKind {
		t.Errorf("ReadFrom() error = %v, want ErrUnknownKind", err)
	}
}
