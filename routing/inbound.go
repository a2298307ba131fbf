package routing

import (
	"context"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
)

// HandlePacket dispatches an inbound packet by Kind, per SPEC_FULL.md
// §4.4.4. Errors returned here are fatal to the caller's receive loop
// (see Run); routing.Handler itself does not retry a failed dispatch.
//
// MsgFragment, Ack, Nack, and FloodResponse all carry a source route: a node
// that isn't yet at the route's final hop advances HopIndex and forwards the
// packet via trySend instead of handling it locally. FloodRequest carries no
// route — it propagates through handleFloodRequest's own neighbor fan-out.
func (h *Handler) HandlePacket(ctx context.Context, pkt packet.Packet) error {
	switch pkt.Kind {
	case packet.KindMsgFragment:
		if fwd, err := h.forwardIfNotFinalHop(ctx, pkt); fwd || err != nil {
			return err
		}
		return h.handleMsgFragment(ctx, pkt)
	case packet.KindAck:
		if fwd, err := h.forwardIfNotFinalHop(ctx, pkt); fwd || err != nil {
			return err
		}
		h.handleAck(pkt)
		return nil
	case packet.KindNack:
		if fwd, err := h.forwardIfNotFinalHop(ctx, pkt); fwd || err != nil {
			return err
		}
		return h.handleNack(ctx, pkt)
	case packet.KindFloodRequest:
		return h.handleFloodRequest(ctx, pkt)
	case packet.KindFloodResponse:
		return h.handleFloodResponse(ctx, pkt)
	default:
		return nil
	}
}

// forwardIfNotFinalHop advances pkt's RoutingHeader and forwards it via
// trySend if the receiving node isn't yet at the route's last hop. Reports
// whether it forwarded (in which case the caller's local handling is
// skipped).
func (h *Handler) forwardIfNotFinalHop(ctx context.Context, pkt packet.Packet) (forwarded bool, err error) {
	if pkt.RoutingHeader.HopIndex >= len(pkt.RoutingHeader.Hops)-1 {
		return false, nil
	}
	pkt.RoutingHeader.HopIndex++
	return true, h.trySend(ctx, pkt, forwardPriority(pkt.Kind))
}

// forwardPriority picks the send-queue priority for a forwarded packet.
// FloodResponses carry topology data back toward a flood's initiator and
// rank below ordinary direct traffic but above flood fan-out itself;
// everything else forwarded here (MsgFragment, Ack, Nack) is direct traffic.
func forwardPriority(kind packet.Kind) uint8 {
	if kind == packet.KindFloodResponse {
		return PriorityFloodData
	}
	return PriorityDirect
}

// handleMsgFragment acks the fragment back along the reversed route, then
// folds it into the assembler, invoking OnMessage once the message
// completes.
func (h *Handler) handleMsgFragment(ctx context.Context, pkt packet.Packet) error {
	origin, ok := pkt.RoutingHeader.Origin()
	if !ok {
		return ErrNoDestination
	}

	ack := packet.NewAck(pkt.SessionID, pkt.RoutingHeader.Reversed(), pkt.Fragment.FragmentIndex)
	if err := h.trySend(ctx, ack, PriorityDirect); err != nil {
		return err
	}

	if payload, complete := h.asm.AddFragment(pkt.Fragment, pkt.SessionID, origin); complete {
		if h.onMessage != nil {
			h.onMessage(payload, origin, pkt.SessionID)
		}
	}
	return nil
}

// handleAck clears the acknowledged fragment from the send buffer. Acks for
// unknown sessions are silently ignored (SPEC_FULL.md §7).
func (h *Handler) handleAck(pkt packet.Packet) {
	origin, ok := pkt.RoutingHeader.Origin()
	if !ok {
		return
	}
	h.sendBuf.MarkAcked(pkt.SessionID, origin, pkt.FragmentIndex)
}

// handleNack reacts to a Nack per its kind, per SPEC_FULL.md §4.4.4:
// ErrorInRouting and UnexpectedRecipient drop the offending node and
// reflood; Dropped drops the reporting node and reflood; DestinationIsDrone
// reclassifies the destination's role without reflooding. ErrorInRouting
// additionally retries the named fragment, if it is still buffered.
func (h *Handler) handleNack(ctx context.Context, pkt packet.Packet) error {
	source, _ := pkt.RoutingHeader.Origin()

	switch pkt.NackKind {
	case packet.NackErrorInRouting:
		h.dropNode(ctx, pkt.NackNodeID)
		if err := h.StartFlood(ctx); err != nil {
			return err
		}
		if retryPkt, ok := h.sendBuf.Get(pkt.SessionID, source, pkt.FragmentIndex); ok {
			if err := h.trySend(ctx, retryPkt, PriorityRetry); err != nil {
				return err
			}
		}

	case packet.NackDropped:
		h.dropNode(ctx, source)
		if err := h.StartFlood(ctx); err != nil {
			return err
		}

	case packet.NackUnexpectedRecipient:
		h.dropNode(ctx, pkt.NackNodeID)
		if err := h.StartFlood(ctx); err != nil {
			return err
		}

	case packet.NackDestinationIsDrone:
		_ = h.topo.ChangeRole(source, core.RoleDrone)
	}

	return nil
}

// dropNode removes id from both the neighbor map (if present) and the
// topology graph, ignoring a not-found result either way.
func (h *Handler) dropNode(ctx context.Context, id core.NodeID) {
	if h.hasNeighbor(id) {
		_ = h.RemoveNeighbor(ctx, id)
		return
	}
	_ = h.topo.RemoveNode(id)
}
