package assembler

import (
	"testing"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
)

func TestAddFragment_CompletesInOrder(t *testing.T) {
	a := New()
	origin := core.NodeID(7)

	if _, complete := a.AddFragment(packet.NewFragment(0, 2, []byte("ab")), 1, origin); complete {
		t.Fatal("should not complete after first of two fragments")
	}
	payload, complete := a.AddFragment(packet.NewFragment(1, 2, []byte("cd")), 1, origin)
	if !complete {
		t.Fatal("expected completion after second fragment")
	}
	if string(payload) != "abcd" {
		t.Errorf("payload = %q, want %q", payload, "abcd")
	}
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after completion", a.PendingCount())
	}
}

func TestAddFragment_CompletesOutOfOrder(t *testing.T) {
	a := New()
	origin := core.NodeID(7)

	a.AddFragment(packet.NewFragment(2, 3, []byte("gh")), 1, origin)
	a.AddFragment(packet.NewFragment(0, 3, []byte("ab")), 1, origin)
	payload, complete := a.AddFragment(packet.NewFragment(1, 3, []byte("cdef")), 1, origin)

	if !complete {
		t.Fatal("expected completion after third fragment")
	}
	if string(payload) != "abcdefgh" {
		t.Errorf("payload = %q, want %q", payload, "abcdefgh")
	}
}

func TestAddFragment_DuplicateIgnored(t *testing.T) {
	a := New()
	origin := core.NodeID(7)

	a.AddFragment(packet.NewFragment(0, 2, []byte("ab")), 1, origin)
	if _, complete := a.AddFragment(packet.NewFragment(0, 2, []byte("zz")), 1, origin); complete {
		t.Fatal("duplicate fragment should not trigger completion")
	}
	payload, complete := a.AddFragment(packet.NewFragment(1, 2, []byte("cd")), 1, origin)
	if !complete || string(payload) != "abcd" {
		t.Errorf("payload = %q, complete = %v, want \"abcd\", true (duplicate should not overwrite)", payload, complete)
	}
}

func TestAddFragment_SeparatesSessionsAndOrigins(t *testing.T) {
	a := New()

	a.AddFragment(packet.NewFragment(0, 2, []byte("a")), 1, core.NodeID(1))
	a.AddFragment(packet.NewFragment(0, 2, []byte("b")), 2, core.NodeID(1))
	a.AddFragment(packet.NewFragment(0, 2, []byte("c")), 1, core.NodeID(2))

	if a.PendingCount() != 3 {
		t.Errorf("PendingCount() = %d, want 3", a.PendingCount())
	}
}

func TestDiscard(t *testing.T) {
	a := New()
	a.AddFragment(packet.NewFragment(0, 2, []byte("a")), 1, core.NodeID(1))
	a.Discard(1, core.NodeID(1))
	if a.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after Discard", a.PendingCount())
	}
}
