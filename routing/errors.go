package routing

import (
	"errors"
	"fmt"

	"github.com/kabili207/overlay-router/core"
)

// Sentinel and typed errors raised by the routing Handler, per SPEC_FULL.md
// §7's error taxonomy. Topology errors (TopologyViolation, PathNotFound,
// NodeNotFound) are returned directly from the topology package and are not
// redeclared here.
var (
	// ErrEmptyMessage is returned by SendMessage for a zero-length payload.
	ErrEmptyMessage = errors.New("routing: message payload is empty")

	// ErrNoDestination is returned when a packet's routing header has no
	// hops, so no destination can be determined.
	ErrNoDestination = errors.New("routing: packet has no destination")

	// ErrNoReachableNeighbor is returned by trySend when every candidate
	// first hop has been exhausted without a successful send.
	ErrNoReachableNeighbor = errors.New("routing: no reachable neighbor")

	// ErrControllerDisconnected is returned by Run when the event sink
	// channel send fails; this is fatal and ends the run loop.
	ErrControllerDisconnected = errors.New("routing: controller disconnected")
)

// ErrNodeIsNotANeighbor is returned by trySend when the packet's next hop
// is not a currently known neighbor.
type ErrNodeIsNotANeighbor struct {
	NodeID core.NodeID
}

func (e *ErrNodeIsNotANeighbor) Error() string {
	return fmt.Sprintf("routing: node %s is not a neighbor", e.NodeID)
}

// ErrChannelSendFailure wraps a failed send to a neighbor's link, carrying
// the offending node id and the underlying cause. This corresponds to
// original_source's NetworkError::SendError(String), produced there by a
// From<SendError<T>> conversion; here it's a normal wrapped error.
type ErrChannelSendFailure struct {
	NodeID core.NodeID
	Cause  error
}

func (e *ErrChannelSendFailure) Error() string {
	return fmt.Sprintf("routing: send to node %s failed: %v", e.NodeID, e.Cause)
}

func (e *ErrChannelSendFailure) Unwrap() error {
	return e.Cause
}
