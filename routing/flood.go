package routing

import (
	"context"
	"errors"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
	"github.com/kabili207/overlay-router/core/topology"
)

// StartFlood increments both counters, broadcasts a FloodRequest to every
// neighbor, and emits FloodStarted before any request leaves — per
// SPEC_FULL.md §4.4.2, FloodStarted is always emitted even if no neighbors
// are currently known.
func (h *Handler) StartFlood(ctx context.Context) error {
	sessionID, floodID := h.nextFloodAndSessionID()
	self := h.cfg.SelfID

	if err := h.emit(ctx, Event{Kind: EventFloodStarted, FloodID: floodID, InitiatorID: self}); err != nil {
		return err
	}

	req := packet.NewFloodRequest(sessionID, floodID, self)
	for _, id := range h.neighborIDs() {
		h.enqueueOrSend(ctx, id, req, PriorityFloodPath)
	}
	return nil
}

// handleFloodRequest processes an inbound FloodRequest, per SPEC_FULL.md
// §4.4.2.
func (h *Handler) handleFloodRequest(ctx context.Context, req packet.Packet) error {
	prevHop := req.InitiatorID
	if n := len(req.PathTrace); n > 0 {
		prevHop = req.PathTrace[n-1].NodeID
	}

	// Intermediate nodes advertise themselves as Drone in the trace even if
	// they are endpoints — the path is interpreted as a forwarding path, per
	// SPEC_FULL.md §4.4.2.
	trace := append(append([]packet.TraceEntry(nil), req.PathTrace...),
		packet.TraceEntry{NodeID: h.cfg.SelfID, Role: core.RoleDrone})

	key := floodKey{floodID: req.FloodID, initiatorID: req.InitiatorID}
	h.mu.Lock()
	_, alreadySeen := h.floodSeen[key]
	h.floodSeen[key] = struct{}{}
	h.mu.Unlock()

	if alreadySeen || h.neighborCount() == 1 {
		return h.terminateFlood(ctx, req, trace)
	}

	fwd := req
	fwd.PathTrace = trace
	fwd.RoutingHeader = packet.RoutingHeader{}
	for _, id := range h.neighborIDs() {
		if id == prevHop {
			continue
		}
		h.enqueueOrSend(ctx, id, fwd, PriorityFloodPath)
	}
	return nil
}

// terminateFlood builds and sends a FloodResponse back toward the flood's
// initiator: find_path(initiator) if known, otherwise the reversed trace
// with the initiator appended.
func (h *Handler) terminateFlood(ctx context.Context, req packet.Packet, trace []packet.TraceEntry) error {
	var hops []core.NodeID

	route, err := h.topo.FindPath(req.InitiatorID)
	if err == nil {
		hops = route
	} else {
		hops = make([]core.NodeID, 0, len(trace)+1)
		for i := len(trace) - 1; i >= 0; i-- {
			hops = append(hops, trace[i].NodeID)
		}
		if len(hops) == 0 || hops[len(hops)-1] != req.InitiatorID {
			hops = append(hops, req.InitiatorID)
		}
	}

	resp := packet.NewFloodResponse(req.SessionID, packet.FromRoute(hops), req.FloodID, trace)
	return h.trySend(ctx, resp, PriorityFloodData)
}

// handleFloodResponse folds a FloodResponse's path trace into the topology
// graph only if it matches this node's own outstanding flood_counter — a
// relay passing a response through for some other node's flood has no
// matching local flood and must not fold it in. Per SPEC_FULL.md §4.4.2:
// "if resp.flood_id matches the local flood_counter ... Mismatched flood_id
// responses are discarded." A mismatch still gets forwarded onward if this
// node isn't yet at the response's final hop; only the fold is gated.
// Topology errors from folding are swallowed since folding is best-effort
// informational (SPEC_FULL.md §7).
func (h *Handler) handleFloodResponse(ctx context.Context, resp packet.Packet) error {
	h.mu.Lock()
	ownFlood := resp.FloodID == h.floodCounter
	h.mu.Unlock()

	if ownFlood {
		h.foldTrace(resp.PathTrace)
	}

	fwd, err := h.forwardIfNotFinalHop(ctx, resp)
	if fwd || err != nil {
		return err
	}
	return nil
}

func (h *Handler) foldTrace(trace []packet.TraceEntry) {
	for i, entry := range trace {
		var neighbors []core.NodeID
		if i > 0 {
			neighbors = append(neighbors, trace[i-1].NodeID)
		}
		if i < len(trace)-1 {
			neighbors = append(neighbors, trace[i+1].NodeID)
		}

		err := h.topo.UpdateNode(entry.NodeID, neighbors)
		if err == nil {
			continue
		}
		if errors.Is(err, topology.ErrNodeNotFound) {
			_ = h.topo.AddNode(topology.GraphNode{ID: entry.NodeID, Role: entry.Role, Adjacents: neighbors})
		}
	}
}
