// Package packet defines the wire-level types exchanged by the overlay
// routing core: fragments, routing headers, and the packet variants built
// from them (message fragments, acks, nacks, and flood discovery traffic).
//
// Packet is modeled as a flat struct tagged by Kind rather than a sum type,
// the same way core/codec.Packet in the teacher repo tags a flood/route/ack
// variant with a header byte instead of an interface hierarchy — cheap to
// copy, cheap to clone for retransmission, and the fields that don't apply
// to a given Kind are simply left zero.
package packet

import (
	"fmt"

	"github.com/kabili207/overlay-router/core"
)

// FragmentSize is the fixed wire size of a fragment payload.
const FragmentSize = 128

// Fragment is one wire unit of a fragmented application message.
// The payload occupies Data[:Length]; the remainder is zero-padded.
type Fragment struct {
	FragmentIndex   uint64
	TotalFragments  uint64
	Data            [FragmentSize]byte
	Length          int
}

// NewFragment builds a Fragment from a chunk of at most FragmentSize bytes.
func NewFragment(index, total uint64, chunk []byte) Fragment {
	if len(chunk) > FragmentSize {
		panic("packet: fragment chunk exceeds FragmentSize")
	}
	f := Fragment{FragmentIndex: index, TotalFragments: total, Length: len(chunk)}
	copy(f.Data[:], chunk)
	return f
}

// Payload returns the effective (unpadded) fragment payload.
func (f Fragment) Payload() []byte {
	return f.Data[:f.Length]
}

// RoutingHeader carries the full source route of a packet. Hops[0] is the
// origin, Hops[len(Hops)-1] is the destination. HopIndex points at the next
// hop to process the packet.
type RoutingHeader struct {
	Hops     []core.NodeID
	HopIndex int
}

// Origin returns the first hop, or false if the header is empty.
func (h RoutingHeader) Origin() (core.NodeID, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[0], true
}

// Destination returns the last hop, or false if the header is empty.
func (h RoutingHeader) Destination() (core.NodeID, bool) {
	if len(h.Hops) == 0 {
		return 0, false
	}
	return h.Hops[len(h.Hops)-1], true
}

// NextHop returns the hop at HopIndex, or false if out of range.
func (h RoutingHeader) NextHop() (core.NodeID, bool) {
	if h.HopIndex < 0 || h.HopIndex >= len(h.Hops) {
		return 0, false
	}
	return h.Hops[h.HopIndex], true
}

// HasLoop reports whether any node id repeats in Hops.
func (h RoutingHeader) HasLoop() bool {
	seen := make(map[core.NodeID]struct{}, len(h.Hops))
	for _, id := range h.Hops {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// StripLoops collapses any repeated id to its last occurrence, preserving
// the order of the remaining hops. Used after route recomputation, where a
// shortcut back through an already-visited node would otherwise loop.
func (h RoutingHeader) StripLoops() RoutingHeader {
	if !h.HasLoop() {
		return h
	}
	lastIndex := make(map[core.NodeID]int, len(h.Hops))
	for i, id := range h.Hops {
		lastIndex[id] = i
	}
	out := make([]core.NodeID, 0, len(h.Hops))
	for i, id := range h.Hops {
		if lastIndex[id] == i {
			out = append(out, id)
		}
	}
	return RoutingHeader{Hops: out, HopIndex: h.HopIndex}
}

// Reversed returns a header walking the same hops from destination back to
// origin, with HopIndex reset to 1 (the first hop after the new origin).
func (h RoutingHeader) Reversed() RoutingHeader {
	rev := make([]core.NodeID, len(h.Hops))
	for i, id := range h.Hops {
		rev[len(h.Hops)-1-i] = id
	}
	return RoutingHeader{Hops: rev, HopIndex: 1}
}

// FromRoute builds a header over route with HopIndex positioned at the
// first hop after the origin, loops stripped.
func FromRoute(route []core.NodeID) RoutingHeader {
	h := RoutingHeader{Hops: append([]core.NodeID(nil), route...), HopIndex: 1}
	return h.StripLoops()
}

// Kind tags the variant a Packet carries.
type Kind uint8

const (
	KindMsgFragment Kind = iota
	KindAck
	KindNack
	KindFloodRequest
	KindFloodResponse
)

func (k Kind) String() string {
	switch k {
	case KindMsgFragment:
		return "msg_fragment"
	case KindAck:
		return "ack"
	case KindNack:
		return "nack"
	case KindFloodRequest:
		return "flood_request"
	case KindFloodResponse:
		return "flood_response"
	default:
		return "unknown"
	}
}

// NackKind distinguishes the reasons a Nack can be raised.
type NackKind uint8

const (
	NackErrorInRouting NackKind = iota
	NackDestinationIsDrone
	NackDropped
	NackUnexpectedRecipient
)

func (k NackKind) String() string {
	switch k {
	case NackErrorInRouting:
		return "error_in_routing"
	case NackDestinationIsDrone:
		return "destination_is_drone"
	case NackDropped:
		return "dropped"
	case NackUnexpectedRecipient:
		return "unexpected_recipient"
	default:
		return "unknown"
	}
}

// TraceEntry is one (node, declared role) pair recorded along a flood path.
type TraceEntry struct {
	NodeID core.NodeID
	Role   core.NodeRole
}

// Packet is a routed unit of the overlay protocol. Only the fields relevant
// to Kind are meaningful; see the New* constructors.
type Packet struct {
	Kind          Kind
	SessionID     uint64
	RoutingHeader RoutingHeader

	// KindMsgFragment
	Fragment Fragment

	// KindAck, KindNack
	FragmentIndex uint64

	// KindNack
	NackKind   NackKind
	NackNodeID core.NodeID // meaningful for NackErrorInRouting / NackUnexpectedRecipient

	// KindFloodRequest, KindFloodResponse
	FloodID     uint64
	InitiatorID core.NodeID
	PathTrace   []TraceEntry
}

// NewMsgFragment builds a MsgFragment packet.
func NewMsgFragment(sessionID uint64, hdr RoutingHeader, frag Fragment) Packet {
	return Packet{Kind: KindMsgFragment, SessionID: sessionID, RoutingHeader: hdr, Fragment: frag}
}

// NewAck builds an Ack packet for the given fragment index.
func NewAck(sessionID uint64, hdr RoutingHeader, fragmentIndex uint64) Packet {
	return Packet{Kind: KindAck, SessionID: sessionID, RoutingHeader: hdr, FragmentIndex: fragmentIndex}
}

// NewNack builds a Nack packet.
func NewNack(sessionID uint64, hdr RoutingHeader, fragmentIndex uint64, kind NackKind, offender core.NodeID) Packet {
	return Packet{
		Kind: KindNack, SessionID: sessionID, RoutingHeader: hdr,
		FragmentIndex: fragmentIndex, NackKind: kind, NackNodeID: offender,
	}
}

// NewFloodRequest builds a FloodRequest packet with an empty routing header
// and empty path trace, as required when a flood is originated.
func NewFloodRequest(sessionID, floodID uint64, initiator core.NodeID) Packet {
	return Packet{
		Kind: KindFloodRequest, SessionID: sessionID,
		FloodID: floodID, InitiatorID: initiator,
	}
}

// NewFloodResponse builds a FloodResponse packet carrying the given header
// and path trace back to the flood's initiator.
func NewFloodResponse(sessionID uint64, hdr RoutingHeader, floodID uint64, trace []TraceEntry) Packet {
	return Packet{
		Kind: KindFloodResponse, SessionID: sessionID, RoutingHeader: hdr,
		FloodID: floodID, PathTrace: trace,
	}
}

// Clone returns a deep copy, used before mutating a packet in place for
// retransmission (forwarding a flood request, rerouting a retry).
func (p Packet) Clone() Packet {
	clone := p
	clone.RoutingHeader.Hops = append([]core.NodeID(nil), p.RoutingHeader.Hops...)
	clone.PathTrace = append([]TraceEntry(nil), p.PathTrace...)
	return clone
}

func (p Packet) String() string {
	return fmt.Sprintf("%s{session=%d}", p.Kind, p.SessionID)
}
