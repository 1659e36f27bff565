package state

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// ProtocolCfg collects every tunable the protocol stack consumes. A
// scenario file may override any subset; the rest keep their defaults.
type ProtocolCfg struct {
	// table and queue capacities
	NeighborTableSize int `yaml:"neighbor_table_size,omitempty"`
	RoutingTableSize  int `yaml:"routing_table_size,omitempty"`
	QueueDepth        int `yaml:"queue_depth,omitempty"`
	CacheSize         int `yaml:"cache_size,omitempty"`
	MaxRetries        int `yaml:"max_retries,omitempty"`

	// link estimation
	BeaconWindow int    `yaml:"beacon_window,omitempty"` // beacons per quality recompute
	DataWindow   int    `yaml:"data_window,omitempty"`   // data packets per quality recompute
	MaxSeqGap    int    `yaml:"max_seq_gap,omitempty"`   // larger gaps reinitialize the entry
	EvictEtx     uint16 `yaml:"evict_etx,omitempty"`     // worst-entry eviction threshold
	MaxOneHopEtx uint16 `yaml:"max_one_hop_etx,omitempty"`

	// routing
	ParentSwitchThreshold uint16        `yaml:"parent_switch_threshold,omitempty"`
	MinBeaconInterval     time.Duration `yaml:"min_beacon_interval,omitempty"`
	MaxBeaconInterval     time.Duration `yaml:"max_beacon_interval,omitempty"`
	RouteUpdatePeriod     time.Duration `yaml:"route_update_period,omitempty"`

	// forwarding
	AckTimeout      time.Duration `yaml:"ack_timeout,omitempty"`
	RetryPause      time.Duration `yaml:"retry_pause,omitempty"`
	NoRoutePause    time.Duration `yaml:"no_route_pause,omitempty"`
	LoopRepairPause time.Duration `yaml:"loop_repair_pause,omitempty"`

	// medium access
	MinFreeSamples     int           `yaml:"min_free_samples,omitempty"`
	SampleInterval     time.Duration `yaml:"sample_interval,omitempty"`
	InitialBackoff     time.Duration `yaml:"initial_backoff,omitempty"`
	MaxBackoffExp      int           `yaml:"max_backoff_exp,omitempty"`
	MaxChannelAttempts int           `yaml:"max_channel_attempts,omitempty"`
	SwitchDelay        time.Duration `yaml:"switch_delay,omitempty"`
	PreambleBytes      int           `yaml:"preamble_bytes,omitempty"`
	BitRate            int           `yaml:"bit_rate,omitempty"`
	AckAirtime         time.Duration `yaml:"ack_airtime,omitempty"`

	// physical layer
	TxPowerDbm       float64       `yaml:"tx_power_dbm,omitempty"`
	NoiseFloorDbm    float64       `yaml:"noise_floor_dbm,omitempty"`
	NoiseRangeDbm    float64       `yaml:"noise_range_dbm,omitempty"`
	ClearChannelDbm  float64       `yaml:"clear_channel_dbm,omitempty"`
	CaptureDb        float64       `yaml:"capture_db,omitempty"`
	DeliveryFloorDbm float64       `yaml:"delivery_floor_dbm,omitempty"`
	PathLossRefDb    float64       `yaml:"path_loss_ref_db,omitempty"`
	PathLossExp      float64       `yaml:"path_loss_exp,omitempty"`
	PropagationDelay time.Duration `yaml:"propagation_delay,omitempty"`
}

// NodeCfg places one node on the plane. Coordinates are integer metres.
type NodeCfg struct {
	Id NodeId `yaml:"id"`
	X  int    `yaml:"x"`
	Y  int    `yaml:"y"`
	// NoiseRangeDbm overrides the per-node ambient noise spread; nil keeps
	// the protocol default.
	NoiseRangeDbm *float64 `yaml:"noise_range_dbm,omitempty"`
}

// GainCfg pins the link gain between one ordered node pair, overriding the
// distance-derived value.
type GainCfg struct {
	From NodeId  `yaml:"from"`
	To   NodeId  `yaml:"to"`
	Dbm  float64 `yaml:"dbm"`
}

// TrafficCfg originates Count data packets at Node, the first at virtual
// time At and the rest spaced by Interval.
type TrafficCfg struct {
	Node     NodeId        `yaml:"node"`
	At       time.Duration `yaml:"at"`
	Count    int           `yaml:"count"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// SimCfg is a full scenario: topology, traffic, termination and protocol
// overrides.
type SimCfg struct {
	Seed        uint64        `yaml:"seed"`
	Root        NodeId        `yaml:"root"`
	CollectGoal int           `yaml:"collect_goal"`
	Horizon     time.Duration `yaml:"horizon,omitempty"` // 0 = run until collected
	Nodes       []NodeCfg     `yaml:"nodes"`
	Gains       []GainCfg     `yaml:"gains,omitempty"`
	Traffic     []TrafficCfg  `yaml:"traffic,omitempty"`
	Protocol    *ProtocolCfg  `yaml:"protocol,omitempty"`
}

// LoadSimCfg reads and decodes a scenario file. Overridden protocol fields
// are merged over the defaults; validation is the caller's job.
func LoadSimCfg(path string) (*SimCfg, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := SimCfg{Protocol: DefaultProtocol()}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimCfg) GetNode(id NodeId) *NodeCfg {
	for i := range c.Nodes {
		if c.Nodes[i].Id == id {
			return &c.Nodes[i]
		}
	}
	return nil
}

func (c *SimCfg) NoiseRange(id NodeId) float64 {
	if n := c.GetNode(id); n != nil && n.NoiseRangeDbm != nil {
		return *n.NoiseRangeDbm
	}
	return c.Protocol.NoiseRangeDbm
}
