package routing

import (
	"context"
	"testing"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
	"github.com/kabili207/overlay-router/transport"
)

// peerLink wires one Handler directly to another for deterministic,
// synchronous-delivery integration tests: Send hands the packet straight to
// the peer's HandlePacket, the same role transport/chanlink plays for real
// goroutine-driven links.
type peerLink struct {
	peer *Handler
	ctx  context.Context
}

func (p *peerLink) Start(context.Context) error               { return nil }
func (p *peerLink) Stop() error                                { return nil }
func (p *peerLink) IsConnected() bool                          { return true }
func (p *peerLink) SetInboundHandler(transport.InboundHandler) {}
func (p *peerLink) SetStateHandler(transport.StateHandler)     {}
func (p *peerLink) Send(pkt packet.Packet) error               { return p.peer.HandlePacket(p.ctx, pkt) }

func TestStartFlood_BroadcastsToEveryNeighbor(t *testing.T) {
	h := New(Config{SelfID: 1, SelfRole: core.RoleDrone})
	link2 := &mockLink{}
	link3 := &mockLink{}
	_ = h.AddNeighbor(2, link2)
	_ = h.AddNeighbor(3, link3)

	if err := h.StartFlood(context.Background()); err != nil {
		t.Fatalf("StartFlood() error = %v", err)
	}

	if link2.sentCount() != 1 || link3.sentCount() != 1 {
		t.Fatalf("sentCount() = %d, %d, want 1, 1", link2.sentCount(), link3.sentCount())
	}
	if link2.lastSent().Kind != packet.KindFloodRequest {
		t.Errorf("Kind = %v, want KindFloodRequest", link2.lastSent().Kind)
	}
	if h.floodCounter != 1 || h.sessionCounter != 1 {
		t.Errorf("floodCounter, sessionCounter = %d, %d, want 1, 1", h.floodCounter, h.sessionCounter)
	}
}

// TestFlood_DiscoversThreeNodeLine wires three handlers 1-2-3 with no prior
// topology knowledge beyond their immediate AddNeighbor calls, starts a
// flood from node 1, and checks that node 1 learns the full line and can
// then route to node 3.
func TestFlood_DiscoversThreeNodeLine(t *testing.T) {
	ctx := context.Background()
	h1 := New(Config{SelfID: 1, SelfRole: core.RoleDrone})
	h2 := New(Config{SelfID: 2, SelfRole: core.RoleDrone})
	h3 := New(Config{SelfID: 3, SelfRole: core.RoleClient})

	_ = h1.AddNeighbor(2, &peerLink{peer: h2, ctx: ctx})
	_ = h2.AddNeighbor(1, &peerLink{peer: h1, ctx: ctx})
	_ = h2.AddNeighbor(3, &peerLink{peer: h3, ctx: ctx})
	_ = h3.AddNeighbor(2, &peerLink{peer: h2, ctx: ctx})

	if err := h1.StartFlood(ctx); err != nil {
		t.Fatalf("StartFlood() error = %v", err)
	}

	route, err := h1.Topology().FindPath(3)
	if err != nil {
		t.Fatalf("FindPath(3) on h1 error = %v", err)
	}
	want := []core.NodeID{1, 2, 3}
	if len(route) != len(want) {
		t.Fatalf("FindPath(3) = %v, want %v", route, want)
	}
	for i, id := range want {
		if route[i] != id {
			t.Errorf("route[%d] = %v, want %v", i, route[i], id)
		}
	}

	// Node 3 is a leaf and declares itself RoleClient locally, but the trace
	// entry it appends to the flood request advertises Drone regardless —
	// intermediate nodes always advertise Drone in the path trace, even at
	// an endpoint (SPEC_FULL.md §4.4.2, worked example in §8 scenario 5).
	n3, ok := h1.Topology().Node(3)
	if !ok || n3.Role != core.RoleDrone {
		t.Errorf("h1's view of node 3 = %+v, %v, want RoleDrone", n3, ok)
	}
}

func TestHandleFloodRequest_DuplicateIsTerminated(t *testing.T) {
	ctx := context.Background()
	h2 := New(Config{SelfID: 2, SelfRole: core.RoleDrone})
	link1 := &mockLink{}
	link3 := &mockLink{}
	_ = h2.AddNeighbor(1, link1)
	_ = h2.AddNeighbor(3, link3)

	req := packet.NewFloodRequest(1, 1, core.NodeID(1))
	if err := h2.handleFloodRequest(ctx, req); err != nil {
		t.Fatalf("handleFloodRequest() first call error = %v", err)
	}
	if link3.sentCount() != 1 {
		t.Fatalf("expected forward to node 3, got %d sends", link3.sentCount())
	}

	// Same flood arrives again (e.g. a different neighbor forwarded it too).
	if err := h2.handleFloodRequest(ctx, req); err != nil {
		t.Fatalf("handleFloodRequest() duplicate call error = %v", err)
	}
	if link3.sentCount() != 1 {
		t.Errorf("duplicate flood should not be forwarded again, got %d sends", link3.sentCount())
	}
	// Termination of the duplicate sends a FloodResponse back toward the
	// initiator, via whichever neighbor is reachable.
	if link1.sentCount() != 1 {
		t.Errorf("duplicate flood should terminate with a response, got %d sends on link1", link1.sentCount())
	}
}
