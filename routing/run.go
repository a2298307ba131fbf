package routing

import (
	"context"
	"errors"

	"github.com/kabili207/overlay-router/core/packet"
	"github.com/kabili207/overlay-router/core/topology"
)

// Run is the handler's single-threaded receive loop: it drains control
// commands and inbound packets until ctx is cancelled or control is closed.
// Per SPEC_FULL.md §5, the control channel is drained with priority over the
// packet channel on every iteration — Go has no select_biased!, so this is
// done with a non-blocking pre-check of control before the blocking select
// that waits on both.
//
// If cfg.FloodOnStart was set, Run calls StartFlood once before entering the
// loop.
func (h *Handler) Run(ctx context.Context, control <-chan Command, inbound <-chan packet.Packet) error {
	if h.cfg.FloodOnStart {
		if err := h.StartFlood(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case cmd, ok := <-control:
			if !ok {
				return nil
			}
			stop, err := h.handleCommand(ctx, cmd)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil

		case cmd, ok := <-control:
			if !ok {
				return nil
			}
			stop, err := h.handleCommand(ctx, cmd)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}

		case pkt, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := h.HandlePacket(ctx, pkt); err != nil {
				return err
			}
		}
	}
}

// handleCommand applies one control command. stop is true only for
// CommandShutdown, telling Run to return cleanly.
func (h *Handler) handleCommand(ctx context.Context, cmd Command) (stop bool, err error) {
	switch cmd.Kind {
	case CommandAddNeighbor:
		return false, h.AddNeighbor(cmd.NodeID, cmd.Link)
	case CommandRemoveNeighbor:
		err := h.RemoveNeighbor(ctx, cmd.NodeID)
		if errors.Is(err, topology.ErrNodeNotFound) {
			err = nil
		}
		return false, err
	case CommandShutdown:
		return true, nil
	default:
		return false, nil
	}
}
