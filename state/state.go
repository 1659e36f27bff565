package state

import (
	"log/slog"
	"time"
)

// NodeId identifies a simulated node. Ids are assigned once at setup and are
// immutable for the node's lifetime.
type NodeId int

const (
	// NoNode is the "no such node" sentinel, used for a missing parent and
	// for table lookups that find nothing.
	NoNode NodeId = -1
	// Broadcast addresses a frame to every node in radio range.
	Broadcast NodeId = -2
)

// INF is the unreachable-link sentinel. Any ETX computation that would
// exceed it saturates to it, and it is never selected as a route cost.
const INF = ^uint16(0)

// Scheduler is the only way the protocol stack interacts with virtual time
// and with other nodes. Every cross-node effect is expressed as one Schedule
// call per recipient; nothing in the stack blocks.
type Scheduler interface {
	// Schedule delivers ev to node after delay has elapsed in virtual time.
	// For a single node, events fire in non-decreasing virtual-time order,
	// ties resolved in scheduling order.
	Schedule(node NodeId, delay time.Duration, ev Event)
	// Now returns the node's current virtual time.
	Now(node NodeId) time.Duration
	// RandUint32 returns a uniform value in [0, n).
	RandUint32(n uint32) uint32
	// RandFloat64 returns a uniform value in [0, 1).
	RandFloat64() float64
}

// Topology exposes the immutable pairwise link gains precomputed before the
// simulation starts.
type Topology interface {
	// Gain returns the signal strength (dBm) at which a transmission from
	// src arrives at dst, and whether dst hears src at all.
	Gain(src, dst NodeId) (float64, bool)
	// Reachable lists every node that hears src, in a stable order.
	Reachable(src NodeId) []NodeId
}

// Env is the per-node environment handed to every protocol module. All
// state behind it is owned by exactly one node; only Sched and Topo are
// shared, and both are safe because event delivery is sequential.
type Env struct {
	Proto   *ProtocolCfg
	Sched   Scheduler
	Topo    Topology
	Log     *slog.Logger
	Metrics *Metrics
}
