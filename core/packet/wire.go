package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kabili207/overlay-router/core"
)

// Errors returned while decoding a wire-format Packet.
var (
	ErrPacketTooShort  = errors.New("packet: too short")
	ErrUnknownKind     = errors.New("packet: unknown kind byte")
	ErrInvalidEncoding = errors.New("packet: invalid encoding")
)

// WriteTo encodes p into its wire representation, used by NeighborLink
// implementations that carry bytes rather than in-process values (mqttlink,
// seriallink). Mirrors the teacher's codec.Packet.WriteTo in shape: a
// header/type byte, fixed-width fields, then variable-length fields
// prefixed by their own length.
func (p Packet) WriteTo() []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, byte(p.Kind))
	buf = appendUint64(buf, p.SessionID)
	buf = appendHops(buf, p.RoutingHeader)

	switch p.Kind {
	case KindMsgFragment:
		buf = appendUint64(buf, p.Fragment.FragmentIndex)
		buf = appendUint64(buf, p.Fragment.TotalFragments)
		buf = append(buf, byte(p.Fragment.Length))
		buf = append(buf, p.Fragment.Data[:]...)
	case KindAck:
		buf = appendUint64(buf, p.FragmentIndex)
	case KindNack:
		buf = appendUint64(buf, p.FragmentIndex)
		buf = append(buf, byte(p.NackKind), byte(p.NackNodeID))
	case KindFloodRequest:
		buf = appendUint64(buf, p.FloodID)
		buf = append(buf, byte(p.InitiatorID))
		buf = appendTrace(buf, p.PathTrace)
	case KindFloodResponse:
		buf = appendUint64(buf, p.FloodID)
		buf = appendTrace(buf, p.PathTrace)
	}
	return buf
}

// ReadFrom decodes p from its wire representation.
func (p *Packet) ReadFrom(data []byte) error {
	r := &reader{data: data}

	kindByte, err := r.byte()
	if err != nil {
		return err
	}
	kind := Kind(kindByte)
	if kind > KindFloodResponse {
		return ErrUnknownKind
	}
	p.Kind = kind

	sessionID, err := r.uint64()
	if err != nil {
		return err
	}
	p.SessionID = sessionID

	hdr, err := r.hops()
	if err != nil {
		return err
	}
	p.RoutingHeader = hdr

	switch kind {
	case KindMsgFragment:
		idx, err := r.uint64()
		if err != nil {
			return err
		}
		total, err := r.uint64()
		if err != nil {
			return err
		}
		length, err := r.byte()
		if err != nil {
			return err
		}
		if int(length) > FragmentSize {
			return fmt.Errorf("%w: fragment length %d", ErrInvalidEncoding, length)
		}
		data, err := r.take(FragmentSize)
		if err != nil {
			return err
		}
		frag := Fragment{FragmentIndex: idx, TotalFragments: total, Length: int(length)}
		copy(frag.Data[:], data)
		p.Fragment = frag
	case KindAck:
		idx, err := r.uint64()
		if err != nil {
			return err
		}
		p.FragmentIndex = idx
	case KindNack:
		idx, err := r.uint64()
		if err != nil {
			return err
		}
		nk, err := r.byte()
		if err != nil {
			return err
		}
		offender, err := r.byte()
		if err != nil {
			return err
		}
		p.FragmentIndex = idx
		p.NackKind = NackKind(nk)
		p.NackNodeID = core.NodeID(offender)
	case KindFloodRequest:
		floodID, err := r.uint64()
		if err != nil {
			return err
		}
		initiator, err := r.byte()
		if err != nil {
			return err
		}
		trace, err := r.trace()
		if err != nil {
			return err
		}
		p.FloodID = floodID
		p.InitiatorID = core.NodeID(initiator)
		p.PathTrace = trace
	case KindFloodResponse:
		floodID, err := r.uint64()
		if err != nil {
			return err
		}
		trace, err := r.trace()
		if err != nil {
			return err
		}
		p.FloodID = floodID
		p.PathTrace = trace
	}
	return nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendHops(buf []byte, hdr RoutingHeader) []byte {
	buf = append(buf, byte(len(hdr.Hops)))
	for _, id := range hdr.Hops {
		buf = append(buf, byte(id))
	}
	buf = append(buf, byte(hdr.HopIndex))
	return buf
}

func appendTrace(buf []byte, trace []TraceEntry) []byte {
	buf = append(buf, byte(len(trace)))
	for _, e := range trace {
		buf = append(buf, byte(e.NodeID), byte(e.Role))
	}
	return buf
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrPacketTooShort
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, ErrPacketTooShort
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) hops() (RoutingHeader, error) {
	n, err := r.byte()
	if err != nil {
		return RoutingHeader{}, err
	}
	hops := make([]core.NodeID, n)
	for i := range hops {
		b, err := r.byte()
		if err != nil {
			return RoutingHeader{}, err
		}
		hops[i] = core.NodeID(b)
	}
	idx, err := r.byte()
	if err != nil {
		return RoutingHeader{}, err
	}
	return RoutingHeader{Hops: hops, HopIndex: int(idx)}, nil
}

func (r *reader) trace() ([]TraceEntry, error) {
	n, err := r.byte()
	if err != nil {
		return nil, err
	}
	trace := make([]TraceEntry, n)
	for i := range trace {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		role, err := r.byte()
		if err != nil {
			return nil, err
		}
		trace[i] = TraceEntry{NodeID: core.NodeID(id), Role: core.NodeRole(role)}
	}
	return trace, nil
}
