package routing

import (
	"context"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
)

// SendMessage fragments payload into FragmentSize chunks, computes a source
// route to destination, and sends each fragment in order via trySend,
// recording every successfully sent fragment in the send buffer for later
// selective retry. Per SPEC_FULL.md §4.4.3.
func (h *Handler) SendMessage(ctx context.Context, payload []byte, destination core.NodeID) error {
	if len(payload) == 0 {
		return ErrEmptyMessage
	}

	total := (len(payload) + packet.FragmentSize - 1) / packet.FragmentSize
	sessionID := h.nextSessionID()

	route, err := h.topo.FindPath(destination)
	if err != nil {
		return err
	}
	header := packet.FromRoute(route)

	for i := 0; i < total; i++ {
		start := i * packet.FragmentSize
		end := start + packet.FragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		frag := packet.NewFragment(uint64(i), uint64(total), payload[start:end])
		pkt := packet.NewMsgFragment(sessionID, header, frag)

		if err := h.trySend(ctx, pkt, PriorityDirect); err != nil {
			return err
		}
		h.sendBuf.Insert(sessionID, destination, pkt)
	}
	return nil
}

// trySend walks pkt's routing header to its next hop and hands it off for
// delivery at the given priority. Per SPEC_FULL.md §4.4.3, try_send no
// longer writes straight to the neighbor link: once Start has been called
// it pushes onto the priority send queue and returns immediately, the same
// enqueue-everything pattern the teacher's device/router.Router uses for
// every forwarded or originated packet. Before Start, there is no drain
// goroutine to observe a later failure, so trySend falls back to sending
// synchronously and, on failure, prunes that neighbor and recomputes a
// fresh route before retrying.
func (h *Handler) trySend(ctx context.Context, pkt packet.Packet, priority uint8) error {
	dest, ok := pkt.RoutingHeader.Destination()
	if !ok {
		return ErrNoDestination
	}

	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if started {
		firstHop, ok := pkt.RoutingHeader.NextHop()
		if !ok {
			return ErrNoDestination
		}
		if !h.hasNeighbor(firstHop) {
			return &ErrNodeIsNotANeighbor{NodeID: firstHop}
		}
		h.queue.push(firstHop, pkt, priority, 0)
		return nil
	}

	for {
		firstHop, ok := pkt.RoutingHeader.NextHop()
		if !ok {
			return ErrNoDestination
		}

		h.mu.Lock()
		link, known := h.neighbors[firstHop]
		h.mu.Unlock()
		if !known {
			return &ErrNodeIsNotANeighbor{NodeID: firstHop}
		}

		err := link.Send(pkt)
		if err == nil {
			if emitErr := h.emit(ctx, Event{Kind: EventPacketSent, Packet: pkt}); emitErr != nil {
				return emitErr
			}
			return nil
		}

		h.log.Warn("send failed, rerouting", "neighbor", firstHop, "error", err)
		_ = h.RemoveNeighbor(ctx, firstHop)

		if h.neighborCount() == 0 {
			return ErrNoReachableNeighbor
		}

		route, routeErr := h.topo.FindPath(dest)
		if routeErr != nil {
			return routeErr
		}
		pkt.RoutingHeader = packet.FromRoute(route)
	}
}
