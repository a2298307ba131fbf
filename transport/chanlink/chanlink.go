// Package chanlink implements transport.NeighborLink over an in-process Go
// channel, the default link used when two overlay nodes run as goroutines
// in the same process (e.g. in tests and in-process simulation) rather than
// as separate processes joined by MQTT or a serial cable.
//
// This is the Go-native counterpart of the Rust original's
// crossbeam_channel::Sender<Packet> neighbor entries (original_source/src/
// routing_handler.rs), adapted to the teacher's Start/Stop/IsConnected
// transport lifecycle.
package chanlink

import (
	"context"
	"errors"
	"sync"

	"github.com/kabili207/overlay-router/core/packet"
	"github.com/kabili207/overlay-router/transport"
)

// ErrClosed is returned by Send after the link has been stopped.
var ErrClosed = errors.New("chanlink: link closed")

// Link is one end of an in-process channel pair. Once Connect has been
// called on both ends, sending on one delivers to the other's inbound
// handler.
type Link struct {
	out chan packet.Packet

	mu      sync.RWMutex
	inbound transport.InboundHandler
	state   transport.StateHandler
	closed  bool

	cancel context.CancelFunc
}

// New creates an unconnected Link with the given outbound buffer size.
func New(bufSize int) *Link {
	return &Link{out: make(chan packet.Packet, bufSize)}
}

// Pair creates two Links with the same buffer size. It does not connect
// them: call a.Connect(ctx, b) and b.Connect(ctx, a) so that a.Send delivers
// to b's inbound handler and vice versa.
func Pair(bufSize int) (a, b *Link) {
	return New(bufSize), New(bufSize)
}

// Connect starts a goroutine draining l's outbound channel into peer's
// inbound handler. Call Connect on both ends of a Pair to join them.
func (l *Link) Connect(ctx context.Context, peer *Link) {
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case pkt := <-l.out:
				peer.mu.RLock()
				handler := peer.inbound
				peer.mu.RUnlock()
				if handler != nil {
					handler(pkt)
				}
			}
		}
	}()
}

func (l *Link) Start(ctx context.Context) error {
	return nil
}

func (l *Link) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.cancel != nil {
		l.cancel()
	}
	return nil
}

func (l *Link) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.closed
}

func (l *Link) SetInboundHandler(fn transport.InboundHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbound = fn
}

func (l *Link) SetStateHandler(fn transport.StateHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = fn
}

// Send enqueues pkt for delivery to the connected peer. Returns ErrClosed
// if the link has been stopped.
func (l *Link) Send(pkt packet.Packet) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	select {
	case l.out <- pkt:
		return nil
	default:
		return errors.New("chanlink: outbound buffer full")
	}
}

var _ transport.NeighborLink = (*Link)(nil)
