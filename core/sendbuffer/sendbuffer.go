// Package sendbuffer retains outgoing fragments per (session, destination)
// with a per-fragment acknowledgement bit, supporting selective retry of
// exactly the fragments a Nack names instead of resending a whole message.
//
// Modeled structurally on the teacher's core/ack.Tracker (a mutex-guarded
// map of pending outbound state, entries removed once resolved) but keyed
// and indexed the way SPEC_FULL.md §9 settles the session-key question: by
// (session, destination), addressed by fragment index rather than a single
// hash per message, since one session spans many fragments each acked
// independently.
package sendbuffer

import (
	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
)

type key struct {
	sessionID   uint64
	destination core.NodeID
}

type slot struct {
	acked  bool
	packet packet.Packet
}

// Buffer is the send-side counterpart of assembler.Assembler. Not safe for
// concurrent use without external synchronization — a routing handler owns
// its Buffer exclusively, per SPEC_FULL.md §5.
type Buffer struct {
	entries map[key][]slot
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{entries: make(map[key][]slot)}
}

// Insert appends pkt (a MsgFragment packet) to the session's sequence,
// unacked. Fragments must be inserted in ascending FragmentIndex order; out
// of order insertion indicates a caller bug and panics, the same way the
// source's SendEntry indexes strictly by position.
func (b *Buffer) Insert(sessionID uint64, destination core.NodeID, pkt packet.Packet) {
	k := key{sessionID: sessionID, destination: destination}
	seq := b.entries[k]
	if int(pkt.Fragment.FragmentIndex) != len(seq) {
		panic("sendbuffer: fragments must be inserted in ascending order")
	}
	b.entries[k] = append(seq, slot{packet: pkt})
}

// MarkAcked sets the acknowledgement bit for fragmentIndex. If every
// fragment in the session becomes acked, the entry is destroyed. A no-op
// if the (session, destination) pair is unknown or the index is out of
// range — acks for unknown sessions are silently ignored per SPEC_FULL.md §7.
func (b *Buffer) MarkAcked(sessionID uint64, destination core.NodeID, fragmentIndex uint64) {
	k := key{sessionID: sessionID, destination: destination}
	seq, ok := b.entries[k]
	if !ok || fragmentIndex >= uint64(len(seq)) {
		return
	}
	seq[fragmentIndex].acked = true

	for _, s := range seq {
		if !s.acked {
			return
		}
	}
	delete(b.entries, k)
}

// GetUnacked returns every unacked packet in the session, in fragment order.
func (b *Buffer) GetUnacked(sessionID uint64, destination core.NodeID) []packet.Packet {
	seq := b.entries[key{sessionID: sessionID, destination: destination}]
	out := make([]packet.Packet, 0, len(seq))
	for _, s := range seq {
		if !s.acked {
			out = append(out, s.packet)
		}
	}
	return out
}

// Get returns the packet at fragmentIndex if present and unacked.
func (b *Buffer) Get(sessionID uint64, destination core.NodeID, fragmentIndex uint64) (packet.Packet, bool) {
	seq, ok := b.entries[key{sessionID: sessionID, destination: destination}]
	if !ok || fragmentIndex >= uint64(len(seq)) {
		return packet.Packet{}, false
	}
	s := seq[fragmentIndex]
	if s.acked {
		return packet.Packet{}, false
	}
	return s.packet, true
}

// Has reports whether a send entry exists for (session, destination).
func (b *Buffer) Has(sessionID uint64, destination core.NodeID) bool {
	_, ok := b.entries[key{sessionID: sessionID, destination: destination}]
	return ok
}

// Len returns the number of tracked (session, destination) entries.
func (b *Buffer) Len() int {
	return len(b.entries)
}
