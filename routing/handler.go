// Package routing implements the routing handler that ties together the
// topology graph, fragment assembler, and send buffer: it fragments
// outbound messages, walks source routes, reacts to Ack/Nack by rerouting
// or retrying, and runs the flood discovery protocol.
//
// This corresponds to original_source/src/routing_handler.rs and
// packet_processor.rs, grown to the teacher's device/router.Router shape:
// a Config struct with logger/interval defaults, a mutex-guarded struct of
// collaborators, and Start/Stop around a background goroutine.
package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/assembler"
	"github.com/kabili207/overlay-router/core/packet"
	"github.com/kabili207/overlay-router/core/sendbuffer"
	"github.com/kabili207/overlay-router/core/topology"
	"github.com/kabili207/overlay-router/transport"
)

// DefaultDrainInterval is how often the send-queue drain goroutine checks
// for ready packets, once Start has been called.
const DefaultDrainInterval = 10 * time.Millisecond

// MessageHandler is the application collaborator invoked with a reassembled
// payload. Its return value is ignored by the core, per SPEC_FULL.md §6.
type MessageHandler func(payload []byte, origin core.NodeID, sessionID uint64)

// Config configures a Handler.
type Config struct {
	// SelfID is this node's identifier.
	SelfID core.NodeID
	// SelfRole is this node's declared role.
	SelfRole core.NodeRole

	// DrainInterval is the send-queue drain goroutine's poll interval.
	// Default: DefaultDrainInterval. Only used once Start is called.
	DrainInterval time.Duration

	// FloodOnStart causes Run to call StartFlood once before entering the
	// receive loop, matching original_source's Processor::run. Default false:
	// a freshly constructed node usually has no neighbors yet.
	FloodOnStart bool

	// OnMessage is invoked when the assembler completes a message.
	OnMessage MessageHandler

	// Events is the outbound event sink to the controller.
	Events chan<- Event

	// Logger falls back to slog.Default() if nil.
	Logger *slog.Logger
}

type floodKey struct {
	floodID     uint64
	initiatorID core.NodeID
}

// Handler is the routing core of one overlay node. Per SPEC_FULL.md §5, a
// Handler owns its topology, send buffer, and assembler exclusively; the
// mutex below exists only because AddNeighbor/RemoveNeighbor and the
// optional queue-drain goroutine may run concurrently with HandlePacket's
// caller, not because the spec calls for shared ownership.
type Handler struct {
	cfg Config
	log *slog.Logger

	topo      *topology.Graph
	asm       *assembler.Assembler
	sendBuf   *sendbuffer.Buffer
	queue     *sendQueue
	onMessage MessageHandler
	events    chan<- Event

	mu             sync.Mutex
	neighbors      map[core.NodeID]transport.NeighborLink
	floodSeen      map[floodKey]struct{}
	sessionCounter uint64
	floodCounter   uint64

	group     *errgroup.Group
	groupStop context.CancelFunc
	started   bool
}

// New creates a Handler rooted at cfg.SelfID.
func New(cfg Config) *Handler {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("routing")

	return &Handler{
		cfg:       cfg,
		log:       logger,
		topo:      topology.New(cfg.SelfID, cfg.SelfRole, topology.Config{Logger: logger}),
		asm:       assembler.New(),
		sendBuf:   sendbuffer.New(),
		queue:     newSendQueue(),
		onMessage: cfg.OnMessage,
		events:    cfg.Events,
		neighbors: make(map[core.NodeID]transport.NeighborLink),
		floodSeen: make(map[floodKey]struct{}),
	}
}

// Topology exposes the handler's network view, e.g. for diagnostics.
func (h *Handler) Topology() *topology.Graph { return h.topo }

// Start begins the send-queue drain goroutine. Until Start is called,
// enqueued sends fall back to synchronous delivery (see enqueueOrSend).
func (h *Handler) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	h.groupStop = cancel
	g, gctx := errgroup.WithContext(ctx)
	h.group = g
	g.Go(func() error {
		h.drainLoop(gctx)
		return nil
	})
}

// Stop cancels the drain goroutine and waits for it to finish.
func (h *Handler) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	h.mu.Unlock()

	if h.groupStop != nil {
		h.groupStop()
	}
	if h.group != nil {
		_ = h.group.Wait()
	}
}

func (h *Handler) drainLoop(ctx context.Context) {
	interval := h.cfg.DrainInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				item, ok := h.queue.pop()
				if !ok {
					break
				}
				h.deliver(ctx, item.dest, item.pkt)
			}
		}
	}
}

// deliver performs the actual neighbor send for a queued (or synchronous)
// item: on success it emits EventPacketSent; on failure it prunes the
// neighbor, the same local-recovery rule trySend applies inline.
func (h *Handler) deliver(ctx context.Context, dest core.NodeID, pkt packet.Packet) {
	h.mu.Lock()
	link, ok := h.neighbors[dest]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := link.Send(pkt); err != nil {
		h.log.Warn("neighbor send failed, pruning", "neighbor", dest, "error", err)
		_ = h.RemoveNeighbor(ctx, dest)
		return
	}
	if err := h.emit(ctx, Event{Kind: EventPacketSent, Packet: pkt}); err != nil {
		h.log.Error("event sink disconnected", "error", err)
	}
}

// enqueueOrSend delivers pkt to dest: through the send queue if Start has
// been called, synchronously otherwise. Used for flood fan-out, which
// doesn't need a synchronous success/failure signal back to the caller.
// trySend applies the same started/not-started split itself: queued once
// Start has been called (its retry-on-failure loop only runs beforehand,
// when there is no drain goroutine to observe a later failure).
func (h *Handler) enqueueOrSend(ctx context.Context, dest core.NodeID, pkt packet.Packet, priority uint8) {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if started {
		h.queue.push(dest, pkt, priority, 0)
		return
	}
	h.deliver(ctx, dest, pkt)
}

// emit sends ev on the event channel, or returns ErrControllerDisconnected
// if ctx is done first — the Go stand-in for a closed/full channel send
// failure, per SPEC_FULL.md §7.
func (h *Handler) emit(ctx context.Context, ev Event) error {
	if h.events == nil {
		return nil
	}
	select {
	case h.events <- ev:
		return nil
	case <-ctx.Done():
		return ErrControllerDisconnected
	}
}

// AddNeighbor registers a neighbor link and records the adjacency in the
// topology graph.
func (h *Handler) AddNeighbor(id core.NodeID, link transport.NeighborLink) error {
	h.mu.Lock()
	h.neighbors[id] = link
	h.mu.Unlock()
	return h.topo.UpdateNode(h.cfg.SelfID, []core.NodeID{id})
}

// RemoveNeighbor removes a neighbor link and the corresponding topology
// node. Idempotent: removing an absent neighbor's topology entry is not an
// error from the caller's perspective, matching SPEC_FULL.md §4.4.1; the
// returned error is ErrNodeNotFound only if the caller wants to observe it.
func (h *Handler) RemoveNeighbor(ctx context.Context, id core.NodeID) error {
	h.mu.Lock()
	delete(h.neighbors, id)
	h.mu.Unlock()

	err := h.topo.RemoveNode(id)
	if err == nil {
		_ = h.emit(ctx, Event{Kind: EventNodeRemoved, NodeID: id})
	}
	return err
}

// nextSessionID increments and returns the session counter.
func (h *Handler) nextSessionID() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionCounter++
	return h.sessionCounter
}

// nextFloodAndSessionID increments both monotonic counters together, as
// StartFlood requires (SPEC_FULL.md §4.4.2), and returns (session, flood).
func (h *Handler) nextFloodAndSessionID() (sessionID, floodID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionCounter++
	h.floodCounter++
	return h.sessionCounter, h.floodCounter
}

// neighborIDs returns a snapshot of currently known neighbor ids.
func (h *Handler) neighborIDs() []core.NodeID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]core.NodeID, 0, len(h.neighbors))
	for id := range h.neighbors {
		ids = append(ids, id)
	}
	return ids
}

// neighborCount returns the number of currently known neighbors.
func (h *Handler) neighborCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.neighbors)
}

// hasNeighbor reports whether id is a currently known neighbor.
func (h *Handler) hasNeighbor(id core.NodeID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.neighbors[id]
	return ok
}
