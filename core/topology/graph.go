// Package topology holds the discovered network view of one node: the
// nodes it knows about, their declared roles, adjacency, and the shortest
// paths computed from them.
//
// This corresponds to the teacher's core/contact.ContactManager in shape
// (an indexable, mutex-protected slice of peer records with add/remove/
// update operations and logging hooks) and to original_source/src/network.rs
// in semantics (add/remove/update/change-role/find-path over a BFS-rooted
// node list).
package topology

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kabili207/overlay-router/core"
)

// Errors returned by Graph operations.
var (
	// ErrTopologyViolation is returned by AddNode when two endpoint nodes
	// (Client/Server) declare each other as adjacent without a Drone link.
	ErrTopologyViolation = errors.New("topology: endpoints may only neighbor through a drone")

	// ErrNodeNotFound is returned when an operation targets an id not present
	// in the graph.
	ErrNodeNotFound = errors.New("topology: node not found")
)

// ErrPathNotFound is returned by FindPath when no route exists to dest.
type ErrPathNotFound struct {
	Dest core.NodeID
}

func (e *ErrPathNotFound) Error() string {
	return fmt.Sprintf("topology: no path to node %s", e.Dest)
}

// GraphNode is one discovered node: its id, declared role, and the ids of
// its known neighbors. Adjacency is stored as a slice, order-preserving
// but duplicate-free.
type GraphNode struct {
	ID        core.NodeID
	Role      core.NodeRole
	Adjacents []core.NodeID
}

func (n *GraphNode) hasAdjacent(id core.NodeID) bool {
	for _, a := range n.Adjacents {
		if a == id {
			return true
		}
	}
	return false
}

// addAdjacent appends id if not already present. Returns true if added.
func (n *GraphNode) addAdjacent(id core.NodeID) bool {
	if n.hasAdjacent(id) {
		return false
	}
	n.Adjacents = append(n.Adjacents, id)
	return true
}

func (n *GraphNode) removeAdjacent(id core.NodeID) {
	for i, a := range n.Adjacents {
		if a == id {
			n.Adjacents = append(n.Adjacents[:i], n.Adjacents[i+1:]...)
			return
		}
	}
}

// Config configures a Graph.
type Config struct {
	// Logger for topology mutation events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Graph is the topology view rooted at a local node. Index 0 always holds
// the local node (invariant I1); no two entries share an id (I2).
//
// All operations are safe for concurrent use; a routing handler uses its
// own Graph exclusively (see §5 of SPEC_FULL.md), but the lock keeps the
// type safe to share with, e.g., a diagnostics goroutine.
type Graph struct {
	log   *slog.Logger
	mu    sync.RWMutex
	nodes []GraphNode
}

// New creates a Graph rooted at self.
func New(self core.NodeID, role core.NodeRole, cfg Config) *Graph {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		log:   logger.WithGroup("topology"),
		nodes: []GraphNode{{ID: self, Role: role}},
	}
}

// indexOf returns the slice index of id, or -1. Caller must hold the lock.
func (g *Graph) indexOf(id core.NodeID) int {
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// SelfID returns the local node's id (always index 0).
func (g *Graph) SelfID() core.NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[0].ID
}

// Node returns a copy of the node record for id, and whether it was found.
func (g *Graph) Node(id core.NodeID) (GraphNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := g.indexOf(id)
	if i < 0 {
		return GraphNode{}, false
	}
	n := g.nodes[i]
	n.Adjacents = append([]core.NodeID(nil), n.Adjacents...)
	return n, true
}

// Nodes returns a snapshot copy of every node currently known, index 0 first.
func (g *Graph) Nodes() []GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]GraphNode, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n
		out[i].Adjacents = append([]core.NodeID(nil), n.Adjacents...)
	}
	return out
}

// AddNode appends node to the graph. For each of node's declared adjacents
// already present, the reverse adjacency is added when either side has role
// Drone; if both node and the existing peer are endpoints, AddNode fails
// with ErrTopologyViolation and node is not inserted.
func (g *Graph) AddNode(node GraphNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, adjID := range node.Adjacents {
		i := g.indexOf(adjID)
		if i < 0 {
			continue
		}
		peer := &g.nodes[i]
		if node.Role == core.RoleDrone || peer.Role == core.RoleDrone {
			peer.addAdjacent(node.ID)
		} else {
			return ErrTopologyViolation
		}
	}

	node.Adjacents = append([]core.NodeID(nil), node.Adjacents...)
	g.nodes = append(g.nodes, node)
	g.log.Debug("node added", "id", node.ID, "role", node.Role)
	return nil
}

// RemoveNode removes every occurrence of id from other nodes' adjacency
// lists, then removes the node itself. Idempotent on absent ids: returns
// ErrNodeNotFound without side effects.
func (g *Graph) RemoveNode(id core.NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOf(id)
	if i < 0 {
		return ErrNodeNotFound
	}

	for j := range g.nodes {
		if j == i {
			continue
		}
		g.nodes[j].removeAdjacent(id)
	}
	g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
	g.log.Debug("node removed", "id", id)
	return nil
}

// UpdateNode unions newAdjacents into id's adjacency list. Does not write
// back symmetric references — those are expected to arrive through their
// own flood updates. Returns ErrNodeNotFound if id is absent.
func (g *Graph) UpdateNode(id core.NodeID, newAdjacents []core.NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOf(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	for _, adj := range newAdjacents {
		g.nodes[i].addAdjacent(adj)
	}
	return nil
}

// ChangeRole overwrites id's role if different; a no-op (not an error) if
// the role already matches. Returns ErrNodeNotFound if id is absent.
func (g *Graph) ChangeRole(id core.NodeID, role core.NodeRole) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexOf(id)
	if i < 0 {
		return ErrNodeNotFound
	}
	if g.nodes[i].Role == role {
		return nil
	}
	g.nodes[i].Role = role
	g.log.Debug("node role changed", "id", id, "role", role)
	return nil
}

// FindPath returns the shortest sequence of node ids from the local node
// (inclusive) to dest (inclusive) via breadth-first search, visiting
// adjacents in insertion order and breaking ties FIFO. Returns
// *ErrPathNotFound if dest is unreachable.
func (g *Graph) FindPath(dest core.NodeID) ([]core.NodeID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start := g.nodes[0].ID
	if start == dest {
		return []core.NodeID{start}, nil
	}

	byID := make(map[core.NodeID]*GraphNode, len(g.nodes))
	for i := range g.nodes {
		byID[g.nodes[i].ID] = &g.nodes[i]
	}

	visited := map[core.NodeID]bool{start: true}
	parent := map[core.NodeID]core.NodeID{}
	queue := []core.NodeID{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node, ok := byID[current]
		if !ok {
			continue
		}
		for _, neighbor := range node.Adjacents {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			parent[neighbor] = current
			if neighbor == dest {
				return reconstruct(parent, start, dest), nil
			}
			queue = append(queue, neighbor)
		}
	}

	return nil, &ErrPathNotFound{Dest: dest}
}

func reconstruct(parent map[core.NodeID]core.NodeID, start, dest core.NodeID) []core.NodeID {
	path := []core.NodeID{dest}
	for cur := dest; cur != start; {
		p := parent[cur]
		path = append(path, p)
		cur = p
	}
	// reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
