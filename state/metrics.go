package state

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the simulation-wide Prometheus collectors. All nodes
// share one instance; the event loop is sequential, so increments never
// race.
type Metrics struct {
	gatherer prometheus.Gatherer

	BeaconsSent     prometheus.Counter
	BeaconsLost     prometheus.Counter
	DataTx          prometheus.Counter
	DataDelivered   prometheus.Counter
	DataDuplicates  prometheus.Counter
	DataDropped     *prometheus.CounterVec
	FramesLost      prometheus.Counter
	ChannelFailures prometheus.Counter
	ParentSwitches  prometheus.Counter
	LoopsDetected   prometheus.Counter
	Collected       prometheus.Gauge
}

// NewMetrics registers the simulator collectors against reg, defaulting to
// the global registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		BeaconsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_beacons_sent_total",
			Help: "Routing beacons put on the air.",
		}),
		BeaconsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_beacons_lost_total",
			Help: "Routing beacons that never cleared the channel.",
		}),
		DataTx: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_data_tx_total",
			Help: "Data frame transmissions, including retries.",
		}),
		DataDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_data_delivered_total",
			Help: "Distinct data packets delivered to the collection sink.",
		}),
		DataDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_data_duplicates_total",
			Help: "Received data packets suppressed as duplicates.",
		}),
		DataDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rayon_data_dropped_total",
			Help: "Data packets dropped, labeled by reason.",
		}, []string{"reason"}),
		FramesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_frames_lost_total",
			Help: "Frames lost at a receiver to interference or capture.",
		}),
		ChannelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_channel_failures_total",
			Help: "Transmissions abandoned after the channel-access attempt limit.",
		}),
		ParentSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_parent_switches_total",
			Help: "Route parent changes across all nodes.",
		}),
		LoopsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rayon_loops_detected_total",
			Help: "Forwarding loops detected from stale ETX stamps.",
		}),
		Collected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rayon_collected_packets",
			Help: "Distinct (origin, seqno) pairs the root has collected.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.BeaconsSent, m.BeaconsLost, m.DataTx, m.DataDelivered, m.DataDuplicates,
		m.DataDropped, m.FramesLost, m.ChannelFailures, m.ParentSwitches,
		m.LoopsDetected, m.Collected,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewTestMetrics returns collectors on a private registry, for tests and
// for runs that do not export metrics.
func NewTestMetrics() *Metrics {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
