package state

// FrameType distinguishes the three things a radio can carry.
type FrameType int

const (
	FrameBeacon FrameType = iota
	FrameData
	FrameAck
)

func (t FrameType) String() string {
	switch t {
	case FrameBeacon:
		return "beacon"
	case FrameData:
		return "data"
	case FrameAck:
		return "ack"
	}
	return "unknown"
}

// Beacon is the routing control frame. It carries the sender's declared
// route so neighbours can judge it as a parent candidate. A root declares
// itself as its own parent on the wire, with ETX 0.
type Beacon struct {
	Origin    NodeId
	Seqno     uint8
	Parent    NodeId
	Etx       uint16
	Congested bool
	Pull      bool
}

// DataPacket is one collected datum travelling towards the root. THL counts
// the hops it has lived; together with Origin and Seqno it forms the
// duplicate-detection key.
type DataPacket struct {
	Origin    NodeId
	Seqno     uint16
	THL       uint8
	Etx       uint16
	Congested bool
	Pull      bool
	Payload   int32
}

// PacketKey is the full duplicate-detection triple. Both the output cache
// and the forwarding queue are looked up by the exact triple; a packet
// re-entering at a different hop depth is a distinct forwarding instance.
type PacketKey struct {
	Origin NodeId
	Seqno  uint16
	THL    uint8
}

func (p *DataPacket) Key() PacketKey {
	return PacketKey{Origin: p.Origin, Seqno: p.Seqno, THL: p.THL}
}

// Frame is the unit the link layer frames and the physical layer carries.
// Exactly one of Beacon/Data is set, matching Type; acks carry only the key
// of the packet they acknowledge.
type Frame struct {
	Type   FrameType
	Src    NodeId
	Dst    NodeId // Broadcast for beacons
	Beacon *Beacon
	Data   *DataPacket
	AckKey PacketKey
}

// Length returns the over-the-air payload size in bytes, used for airtime
// computation. Sizes mirror a compact wire encoding; they only need to be
// consistent, not byte-exact.
func (f *Frame) Length() int {
	const header = 8 // src, dst, type, fcs
	switch f.Type {
	case FrameBeacon:
		return header + 7 // origin seq, parent, etx, flags
	case FrameData:
		return header + 11 // origin, seqno, thl, etx, flags, payload
	case FrameAck:
		return 5
	}
	return header
}
