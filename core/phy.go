package core

import (
	"time"

	"github.com/rayonsim/rayon/state"
)

// Phy models the node's radio front end: which in-flight signals it can
// decode given competing signals and ambient noise. Each node tracks only
// the signals directed at it; nothing here is shared across nodes.
type Phy struct {
	env        *state.Env
	self       state.NodeId
	mac        *Csma
	noiseRange float64

	pending []*state.Transmission
}

func NewPhy(env *state.Env, self state.NodeId, noiseRange float64, mac *Csma) *Phy {
	return &Phy{env: env, self: self, noiseRange: noiseRange, mac: mac}
}

// noiseDbm draws fresh ambient noise: a fixed floor plus a uniform
// component scaled by the node's configured range. Refreshed on every
// strength computation.
func (p *Phy) noiseDbm() float64 {
	return p.env.Proto.NoiseFloorDbm + p.env.Sched.RandFloat64()*p.noiseRange
}

// sensedDbm is the total power at the antenna: ambient noise plus every
// in-flight signal, summed in the linear domain.
func (p *Phy) sensedDbm() float64 {
	mw := DbmToMw(p.noiseDbm())
	for _, tx := range p.pending {
		mw += DbmToMw(tx.PowerDbm)
	}
	return MwToDbm(mw)
}

// ChannelFree implements carrier sense for the link layer.
func (p *Phy) ChannelFree() bool {
	return p.sensedDbm() < p.env.Proto.ClearChannelDbm
}

// StartTransmission broadcasts f: one scheduled arrival per node in radio
// range, each carrying the precomputed link gain. The sender's own radio
// state is the link layer's concern.
func (p *Phy) StartTransmission(f state.Frame, airtime time.Duration) {
	for _, dst := range p.env.Topo.Reachable(p.self) {
		gain, ok := p.env.Topo.Gain(p.self, dst)
		if !ok || gain < p.env.Proto.DeliveryFloorDbm {
			continue
		}
		p.env.Sched.Schedule(dst, p.env.Proto.PropagationDelay, state.TransmissionStarted{
			From:     p.self,
			Frame:    f,
			PowerDbm: gain,
			Airtime:  airtime,
		})
	}
}

// HandleEvent tracks signal starts and completions at this receiver.
func (p *Phy) HandleEvent(ev state.Event) {
	switch e := ev.(type) {
	case state.TransmissionStarted:
		p.onStart(e)
	case state.TransmissionEnded:
		p.onEnd(e.Tx)
	}
}

func (p *Phy) onStart(e state.TransmissionStarted) {
	tx := &state.Transmission{Frame: e.Frame, PowerDbm: e.PowerDbm}
	// receivable only if it clears the currently sensed power by the
	// capture margin; anything weaker already in flight is drowned out
	if e.PowerDbm-p.sensedDbm() < p.env.Proto.CaptureDb {
		tx.Lost = true
	}
	for _, other := range p.pending {
		if other.PowerDbm < e.PowerDbm {
			other.Lost = true
		}
	}
	p.pending = append(p.pending, tx)
	p.env.Sched.Schedule(p.self, e.Airtime, state.TransmissionEnded{Tx: tx})
}

func (p *Phy) onEnd(tx *state.Transmission) {
	for i, other := range p.pending {
		if other == tx {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			break
		}
	}
	// a stronger signal still on the air captured the tail of this one
	for _, other := range p.pending {
		if other.PowerDbm > tx.PowerDbm {
			tx.Lost = true
		}
	}
	if tx.Lost {
		p.env.Metrics.FramesLost.Inc()
		return
	}

	f := tx.Frame
	p.mac.OnFrame(f)

	// the acknowledgment rides the reserved window at the end of a data
	// frame; it is returned only when this radio is free to send it
	if f.Type == state.FrameData && f.Dst == p.self && !p.mac.Transmitting() {
		if gain, ok := p.env.Topo.Gain(p.self, f.Src); ok {
			p.env.Sched.Schedule(f.Src, p.env.Proto.PropagationDelay, state.TransmissionStarted{
				From: p.self,
				Frame: state.Frame{
					Type:   state.FrameAck,
					Src:    p.self,
					Dst:    f.Src,
					AckKey: f.Data.Key(),
				},
				PowerDbm: gain,
				Airtime:  p.env.Proto.AckAirtime,
			})
		}
	}
}
