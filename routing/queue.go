package routing

import (
	"sync"
	"time"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
)

// Priority values for the send queue. Lower is sent first, mirroring the
// teacher's device/router.SendQueue priority convention.
const (
	PriorityDirect      uint8 = 0 // MsgFragment, Ack, Nack along a known route
	PriorityFloodData   uint8 = 1 // FloodResponse
	PriorityFloodPath   uint8 = 2 // FloodRequest
	PriorityRetry       uint8 = 3 // retried fragments
)

// sendQueue is a priority-ordered outbound buffer sitting between the
// Handler and its neighbor links, modeled on the teacher's
// device/router.SendQueue. Used only once Handler.Start has been called;
// otherwise the Handler sends synchronously (see enqueueOrSend).
type sendQueue struct {
	mu    sync.Mutex
	items []queueItem
}

type queueItem struct {
	dest     core.NodeID
	pkt      packet.Packet
	priority uint8
	readyAt  time.Time
}

func newSendQueue() *sendQueue {
	return &sendQueue{}
}

// push adds pkt to the queue, to be delivered to dest once delay elapses.
func (q *sendQueue) push(dest core.NodeID, pkt packet.Packet, priority uint8, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queueItem{dest: dest, pkt: pkt, priority: priority, readyAt: time.Now().Add(delay)})
}

// pop returns the highest-priority ready item (lowest priority value first,
// earliest-inserted breaking ties), or false if none are ready.
func (q *sendQueue) pop() (queueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	best := -1
	var bestPri uint8 = 255
	for i, it := range q.items {
		if now.Before(it.readyAt) {
			continue
		}
		if best == -1 || it.priority < bestPri {
			best, bestPri = i, it.priority
		}
	}
	if best == -1 {
		return queueItem{}, false
	}
	item := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return item, true
}

// len returns the number of items currently queued (ready or not).
func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
