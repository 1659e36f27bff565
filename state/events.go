package state

import "time"

// Event is the typed payload delivered by the scheduler. Each node reacts
// only to these; there is no other way to make protocol state change.
//
// Timers are never cancelled. A fired timer must re-validate the state it
// was armed against (generation counters, queue heads) before acting.
type Event interface {
	event()
}

// routing engine timers

// RouteUpdateTimer drives the periodic best-parent recompute.
type RouteUpdateTimer struct{}

// BeaconTimer fires at the randomized send point within the current
// beacon interval. Gen invalidates timers armed before an interval reset.
type BeaconTimer struct{ Gen uint32 }

// BeaconIntervalTimer fires when the current beacon interval has fully
// elapsed, doubling it.
type BeaconIntervalTimer struct{ Gen uint32 }

// forwarding engine timers

// RetryTimer checks for a missing acknowledgment of the queue head. Key
// identifies the packet the timer was armed for.
type RetryTimer struct{ Key PacketKey }

// ForwardDelayTimer re-attempts forwarding the queue head after a deferral
// (no route, busy link layer, retransmission pause, loop repair).
type ForwardDelayTimer struct{}

// SendRequest asks the node to originate one local data packet. Produced by
// the traffic schedule outside the stack.
type SendRequest struct{ Payload int32 }

// link layer timers, all guarded by the MAC attempt generation

// BackoffTimer ends a backoff period and starts channel sampling.
type BackoffTimer struct{ Gen uint32 }

// SampleTimer takes the next carrier-sense sample.
type SampleTimer struct{ Gen uint32 }

// TxBeginTimer fires after the radio switch delay; the framed transmission
// starts when it is handled.
type TxBeginTimer struct{ Gen uint32 }

// TxDoneTimer fires at the sender when its own transmission has been on the
// air for the full frame duration.
type TxDoneTimer struct{ Gen uint32 }

// physical layer messages

// TransmissionStarted tells a receiver that a signal has begun arriving.
// PowerDbm is the precomputed link gain from the sender.
type TransmissionStarted struct {
	From     NodeId
	Frame    Frame
	PowerDbm float64
	Airtime  time.Duration
}

// Transmission is a receiver's private record of one in-flight signal.
type Transmission struct {
	Frame    Frame
	PowerDbm float64
	Lost     bool
}

// TransmissionEnded fires at the receiver when the signal it tracks stops.
// Tx points into the receiving node's own pending list, never another
// node's.
type TransmissionEnded struct{ Tx *Transmission }

func (RouteUpdateTimer) event()    {}
func (BeaconTimer) event()         {}
func (BeaconIntervalTimer) event() {}
func (RetryTimer) event()          {}
func (ForwardDelayTimer) event()   {}
func (SendRequest) event()         {}
func (BackoffTimer) event()        {}
func (SampleTimer) event()         {}
func (TxBeginTimer) event()        {}
func (TxDoneTimer) event()         {}
func (TransmissionStarted) event() {}
func (TransmissionEnded) event()   {}
