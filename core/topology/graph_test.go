package topology

import (
	"errors"
	"testing"

	"github.com/kabili207/overlay-router/core"
)

func TestNew_SeedsSelf(t *testing.T) {
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	if g.SelfID() != 1 {
		t.Errorf("SelfID() = %v, want 1", g.SelfID())
	}
	n, ok := g.Node(1)
	if !ok || n.Role != core.RoleDrone {
		t.Errorf("Node(1) = %+v, %v", n, ok)
	}
}

func TestAddNode_RejectsEndpointToEndpointAdjacency(t *testing.T) {
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	if err := g.AddNode(GraphNode{ID: 2, Role: core.RoleClient}); err != nil {
		t.Fatalf("AddNode(2) error = %v", err)
	}

	err := g.AddNode(GraphNode{ID: 3, Role: core.RoleServer, Adjacents: []core.NodeID{2}})
	if !errors.Is(err, ErrTopologyViolation) {
		t.Errorf("AddNode() error = %v, want ErrTopologyViolation", err)
	}
}

func TestAddNode_AllowsAdjacencyThroughDrone(t *testing.T) {
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	if err := g.AddNode(GraphNode{ID: 2, Role: core.RoleDrone}); err != nil {
		t.Fatalf("AddNode(2) error = %v", err)
	}
	if err := g.AddNode(GraphNode{ID: 3, Role: core.RoleClient, Adjacents: []core.NodeID{2}}); err != nil {
		t.Fatalf("AddNode(3) error = %v", err)
	}

	n, _ := g.Node(2)
	found := false
	for _, a := range n.Adjacents {
		if a == 3 {
			found = true
		}
	}
	if !found {
		t.Error("expected AddNode to write back symmetric adjacency through the drone")
	}
}

func TestRemoveNode_CleansAdjacencyAndIsIdempotent(t *testing.T) {
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	_ = g.AddNode(GraphNode{ID: 2, Role: core.RoleDrone, Adjacents: []core.NodeID{1}})
	_ = g.UpdateNode(1, []core.NodeID{2})

	if err := g.RemoveNode(2); err != nil {
		t.Fatalf("RemoveNode(2) error = %v", err)
	}
	n, _ := g.Node(1)
	for _, a := range n.Adjacents {
		if a == 2 {
			t.Error("RemoveNode did not clean up reverse adjacency")
		}
	}

	if err := g.RemoveNode(2); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("RemoveNode() second call error = %v, want ErrNodeNotFound", err)
	}
}

func TestChangeRole_NoopWhenUnchanged(t *testing.T) {
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	_ = g.AddNode(GraphNode{ID: 2, Role: core.RoleClient})

	if err := g.ChangeRole(2, core.RoleClient); err != nil {
		t.Errorf("ChangeRole() no-op case error = %v", err)
	}
	if err := g.ChangeRole(2, core.RoleDrone); err != nil {
		t.Errorf("ChangeRole() error = %v", err)
	}
	n, _ := g.Node(2)
	if n.Role != core.RoleDrone {
		t.Errorf("Role = %v, want RoleDrone", n.Role)
	}
}

// buildLine constructs a straight topology 1 - 2 - 3 - 4, rooted at 1.
func buildLine(t *testing.T) *Graph {
	t.Helper()
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	_ = g.AddNode(GraphNode{ID: 2, Role: core.RoleDrone})
	_ = g.AddNode(GraphNode{ID: 3, Role: core.RoleDrone})
	_ = g.AddNode(GraphNode{ID: 4, Role: core.RoleClient})
	_ = g.UpdateNode(1, []core.NodeID{2})
	_ = g.UpdateNode(2, []core.NodeID{1, 3})
	_ = g.UpdateNode(3, []core.NodeID{2, 4})
	_ = g.UpdateNode(4, []core.NodeID{3})
	return g
}

func TestFindPath_Line(t *testing.T) {
	g := buildLine(t)

	route, err := g.FindPath(4)
	if err != nil {
		t.Fatalf("FindPath(4) error = %v", err)
	}
	want := []core.NodeID{1, 2, 3, 4}
	if len(route) != len(want) {
		t.Fatalf("FindPath(4) = %v, want %v", route, want)
	}
	for i, id := range want {
		if route[i] != id {
			t.Errorf("FindPath(4)[%d] = %v, want %v", i, route[i], id)
		}
	}
}

func TestFindPath_Self(t *testing.T) {
	g := buildLine(t)
	route, err := g.FindPath(1)
	if err != nil || len(route) != 1 || route[0] != 1 {
		t.Errorf("FindPath(self) = %v, %v", route, err)
	}
}

func TestFindPath_Unreachable(t *testing.T) {
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	_, err := g.FindPath(99)
	var pathErr *ErrPathNotFound
	if !errors.As(err, &pathErr) {
		t.Errorf("FindPath() error = %v, want *ErrPathNotFound", err)
	}
}

func TestUpdateNode_UnknownNode(t *testing.T) {
	g := New(core.NodeID(1), core.RoleDrone, Config{})
	if err := g.UpdateNode(42, []core.NodeID{1}); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("UpdateNode() error = %v, want ErrNodeNotFound", err)
	}
}
