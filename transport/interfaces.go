// Package transport defines the neighbor link abstraction the routing
// handler sends packets through, and the connection-state event it reports.
//
// This mirrors the teacher's transport.Transport interface, but scoped down
// to the one relationship the overlay core's §6 calls an "outbound
// channel": a single point-to-point link to one neighbor, rather than a
// shared multi-peer transport the router multiplexes over many contacts.
package transport

import (
	"context"

	"github.com/kabili207/overlay-router/core/packet"
)

// InboundHandler is called by a NeighborLink when it receives a packet from
// its peer.
type InboundHandler func(pkt packet.Packet)

// StateHandler is called when a link's connection state changes.
type StateHandler func(link NeighborLink, event Event)

// NeighborLink is this node's "outbound channel" to one neighbor (SPEC_FULL.md
// §6). Implementations are treated as opaque by the routing handler: a
// failed Send is the handler's only signal that the neighbor is
// unreachable, matching SPEC_FULL.md §4.4.3's try_send recovery path.
type NeighborLink interface {
	// Start begins the link's connection and message handling. The context
	// controls the link's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the link.
	Stop() error
	// IsConnected reports whether the link is currently usable.
	IsConnected() bool
	// SetInboundHandler registers the callback invoked for packets arriving
	// from this neighbor.
	SetInboundHandler(fn InboundHandler)
	// SetStateHandler registers the callback invoked on connection state changes.
	SetStateHandler(fn StateHandler)
	// Send transmits pkt to the neighbor. An error is treated as a
	// topology hint: the caller prunes the neighbor and reroutes.
	Send(pkt packet.Packet) error
}

// Event represents link state change events.
type Event int

const (
	EventConnected Event = iota
	EventDisconnected
	EventReconnecting
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}
