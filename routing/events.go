package routing

import (
	"fmt"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
	"github.com/kabili207/overlay-router/transport"
)

// EventKind tags the variant an Event carries, the Go-native counterpart of
// original_source's NodeEvent enum.
type EventKind uint8

const (
	EventPacketSent EventKind = iota
	EventFloodStarted
	EventNodeRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventPacketSent:
		return "packet_sent"
	case EventFloodStarted:
		return "flood_started"
	case EventNodeRemoved:
		return "node_removed"
	default:
		return "unknown"
	}
}

// Event is emitted on the Handler's outbound event channel to the
// controller. Every successful neighbor send emits EventPacketSent; every
// StartFlood emits EventFloodStarted before any request packets leave.
type Event struct {
	Kind EventKind

	Packet packet.Packet // EventPacketSent

	FloodID     uint64       // EventFloodStarted
	InitiatorID core.NodeID  // EventFloodStarted

	NodeID core.NodeID // EventNodeRemoved
}

func (e Event) String() string {
	switch e.Kind {
	case EventPacketSent:
		return fmt.Sprintf("packet_sent(%s)", e.Packet)
	case EventFloodStarted:
		return fmt.Sprintf("flood_started(flood=%d, initiator=%s)", e.FloodID, e.InitiatorID)
	case EventNodeRemoved:
		return fmt.Sprintf("node_removed(%s)", e.NodeID)
	default:
		return "event(unknown)"
	}
}

// CommandKind tags the variant a Command carries.
type CommandKind uint8

const (
	CommandAddNeighbor CommandKind = iota
	CommandRemoveNeighbor
	CommandShutdown
)

// Command is received on the Handler's control channel, the Go-native
// counterpart of original_source's NodeCommand enum.
type Command struct {
	Kind CommandKind

	NodeID core.NodeID            // CommandAddNeighbor, CommandRemoveNeighbor
	Link   transport.NeighborLink // CommandAddNeighbor
}

// AddNeighborCommand builds a CommandAddNeighbor command.
func AddNeighborCommand(id core.NodeID, link transport.NeighborLink) Command {
	return Command{Kind: CommandAddNeighbor, NodeID: id, Link: link}
}

// RemoveNeighborCommand builds a CommandRemoveNeighbor command.
func RemoveNeighborCommand(id core.NodeID) Command {
	return Command{Kind: CommandRemoveNeighbor, NodeID: id}
}

// ShutdownCommand builds a CommandShutdown command.
func ShutdownCommand() Command {
	return Command{Kind: CommandShutdown}
}
