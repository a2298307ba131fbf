// Package assembler reconstructs application messages split across fixed
// size wire fragments.
//
// This plays the same role as the teacher's core/multipart.Reassembler —
// a map keyed by sender, accumulating pieces until a declared count is met
// — but keyed by (session, origin) instead of (innerType, srcHash), sorted
// by FragmentIndex instead of accepted strictly in order, and concatenated
// using each fragment's own declared Length rather than treated as
// fixed-size, since MeshCore's MULTIPART fragments are never partial but
// this protocol's are.
package assembler

import (
	"sort"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
)

// key identifies one in-progress reassembly.
type key struct {
	sessionID uint64
	origin    core.NodeID
}

type entry struct {
	expected  uint64
	fragments map[uint64]packet.Fragment
}

// Assembler buffers incoming fragments per (session, origin) and emits the
// reconstructed payload once every fragment has arrived.
//
// Not safe for concurrent use without external synchronization — a routing
// handler owns its Assembler exclusively, per SPEC_FULL.md §5.
type Assembler struct {
	pending map[key]*entry
}

// New creates an empty Assembler.
func New() *Assembler {
	return &Assembler{pending: make(map[key]*entry)}
}

// AddFragment folds frag into the entry for (sessionID, origin). Duplicate
// fragment indices are silently discarded. When the entry becomes complete
// the fragments are sorted by index, their payloads concatenated using each
// fragment's own Length, the entry is destroyed, and the reconstructed
// payload is returned. Otherwise AddFragment returns (nil, false).
func (a *Assembler) AddFragment(frag packet.Fragment, sessionID uint64, origin core.NodeID) ([]byte, bool) {
	k := key{sessionID: sessionID, origin: origin}

	e, ok := a.pending[k]
	if !ok {
		e = &entry{expected: frag.TotalFragments, fragments: make(map[uint64]packet.Fragment, frag.TotalFragments)}
		a.pending[k] = e
	}

	if _, dup := e.fragments[frag.FragmentIndex]; dup {
		return nil, false
	}
	e.fragments[frag.FragmentIndex] = frag

	if uint64(len(e.fragments)) != e.expected {
		return nil, false
	}

	delete(a.pending, k)
	return concat(e), true
}

func concat(e *entry) []byte {
	ordered := make([]packet.Fragment, 0, len(e.fragments))
	for _, f := range e.fragments {
		ordered = append(ordered, f)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].FragmentIndex < ordered[j].FragmentIndex })

	total := 0
	for _, f := range ordered {
		total += f.Length
	}
	out := make([]byte, 0, total)
	for _, f := range ordered {
		out = append(out, f.Payload()...)
	}
	return out
}

// PendingCount returns the number of in-progress reassemblies.
func (a *Assembler) PendingCount() int {
	return len(a.pending)
}

// Discard drops any in-progress reassembly for (sessionID, origin), e.g.
// when the session is abandoned. A no-op if none is pending.
func (a *Assembler) Discard(sessionID uint64, origin core.NodeID) {
	delete(a.pending, key{sessionID: sessionID, origin: origin})
}
