package core

import (
	"time"

	"github.com/rayonsim/rayon/state"
)

// MacState is the link layer's explicit radio state.
type MacState int

const (
	MacIdle MacState = iota
	MacBackingOff
	MacSampling
	// MacTransmitting covers both the rx/tx switch delay and the frame
	// being on the air; the radio is deaf for its whole span.
	MacTransmitting
)

// Channel is what the link layer needs from the physical layer.
type Channel interface {
	// ChannelFree samples the carrier: true iff sensed power is below the
	// clear-channel threshold.
	ChannelFree() bool
	// StartTransmission puts a framed signal on the air for airtime.
	StartTransmission(f state.Frame, airtime time.Duration)
}

// Csma arbitrates medium access: exponential backoff, then a run of
// consecutive free carrier samples, then transmit. One outgoing frame at a
// time; Send is rejected while any frame is pending.
type Csma struct {
	env     *state.Env
	self    state.NodeId
	channel Channel

	st          MacState
	gen         uint32 // invalidates timers from abandoned attempts
	frame       state.Frame
	samplesLeft int
	attempts    int
	window      time.Duration

	// sendDone reports the fate of a frame handed to Send: true once it
	// has been fully transmitted, false when the attempt limit was reached
	// without finding the channel free.
	sendDone func(f state.Frame, ok bool)
	// receive dispatches a successfully decoded incoming frame upward.
	receive func(f state.Frame)
}

func NewCsma(env *state.Env, self state.NodeId) *Csma {
	return &Csma{env: env, self: self}
}

func (m *Csma) Attach(channel Channel, sendDone func(state.Frame, bool), receive func(state.Frame)) {
	m.channel = channel
	m.sendDone = sendDone
	m.receive = receive
}

// Transmitting reports whether the radio is in transmit mode; the node is
// half-duplex and hears nothing while it is.
func (m *Csma) Transmitting() bool { return m.st == MacTransmitting }

func (m *Csma) State() MacState { return m.st }

// Send accepts f for transmission unless a frame is already pending.
func (m *Csma) Send(f state.Frame) bool {
	if m.st != MacIdle {
		return false
	}
	m.frame = f
	m.samplesLeft = m.env.Proto.MinFreeSamples
	m.attempts = 0
	m.window = m.env.Proto.InitialBackoff
	m.gen++
	m.st = MacBackingOff
	m.scheduleBackoff()
	return true
}

func (m *Csma) scheduleBackoff() {
	delay := time.Duration(m.env.Sched.RandUint32(uint32(m.window)))
	m.env.Sched.Schedule(m.self, delay, state.BackoffTimer{Gen: m.gen})
}

// HandleEvent runs the Idle → Backoff → Sampling → Transmitting machine.
// Stale-generation timers are no-ops.
func (m *Csma) HandleEvent(ev state.Event) {
	switch e := ev.(type) {
	case state.BackoffTimer:
		if e.Gen != m.gen || m.st != MacBackingOff {
			return
		}
		m.st = MacSampling
		m.sample()
	case state.SampleTimer:
		if e.Gen != m.gen || m.st != MacSampling {
			return
		}
		m.sample()
	case state.TxBeginTimer:
		if e.Gen != m.gen || m.st != MacTransmitting {
			return
		}
		airtime := m.Airtime(&m.frame)
		m.channel.StartTransmission(m.frame, airtime)
		m.env.Sched.Schedule(m.self, airtime, state.TxDoneTimer{Gen: m.gen})
	case state.TxDoneTimer:
		if e.Gen != m.gen || m.st != MacTransmitting {
			return
		}
		m.st = MacIdle
		m.sendDone(m.frame, true)
	}
}

func (m *Csma) sample() {
	if m.channel.ChannelFree() {
		m.samplesLeft--
		if m.samplesLeft > 0 {
			m.env.Sched.Schedule(m.self, m.env.Proto.SampleInterval, state.SampleTimer{Gen: m.gen})
			return
		}
		// enough consecutive free samples; switch the radio and transmit
		m.st = MacTransmitting
		m.env.Sched.Schedule(m.self, m.env.Proto.SwitchDelay, state.TxBeginTimer{Gen: m.gen})
		return
	}

	// busy: the free-sample run restarts from scratch
	m.samplesLeft = m.env.Proto.MinFreeSamples
	m.attempts++
	if m.attempts >= m.env.Proto.MaxChannelAttempts {
		m.st = MacIdle
		m.env.Metrics.ChannelFailures.Inc()
		m.sendDone(m.frame, false)
		return
	}
	maxWindow := m.env.Proto.InitialBackoff << m.env.Proto.MaxBackoffExp
	m.window = min(m.window*2, maxWindow)
	m.st = MacBackingOff
	m.scheduleBackoff()
}

// OnFrame is the physical layer's delivery upcall. A half-duplex radio in
// transmit mode hears nothing; frames for other nodes are not snooped.
func (m *Csma) OnFrame(f state.Frame) {
	if m.st == MacTransmitting {
		return
	}
	if f.Dst != m.self && f.Dst != state.Broadcast {
		return
	}
	m.receive(f)
}

// Airtime computes the on-air duration of a frame from preamble, payload
// and symbol rate; data frames reserve an acknowledgment window on top.
func (m *Csma) Airtime(f *state.Frame) time.Duration {
	bits := (m.env.Proto.PreambleBytes + f.Length()) * 8
	d := time.Duration(bits) * time.Second / time.Duration(m.env.Proto.BitRate)
	if f.Type == state.FrameData {
		d += m.env.Proto.AckAirtime
	}
	return d
}
