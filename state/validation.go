package state

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ValidateSimCfg checks a scenario for every problem it can find at once.
// Any error is fatal at startup: no node can run against an inconsistent
// topology.
func ValidateSimCfg(c *SimCfg) error {
	var result *multierror.Error

	if len(c.Nodes) == 0 {
		result = multierror.Append(result, fmt.Errorf("scenario has no nodes"))
	}
	seen := make(map[NodeId]bool)
	coords := make(map[[2]int]NodeId)
	for _, n := range c.Nodes {
		if n.Id < 0 {
			result = multierror.Append(result, fmt.Errorf("node id %d is negative", n.Id))
			continue
		}
		if seen[n.Id] {
			result = multierror.Append(result, fmt.Errorf("duplicate node id %d", n.Id))
		}
		seen[n.Id] = true
		if prev, ok := coords[[2]int{n.X, n.Y}]; ok {
			result = multierror.Append(result,
				fmt.Errorf("nodes %d and %d share coordinates (%d,%d)", prev, n.Id, n.X, n.Y))
		}
		coords[[2]int{n.X, n.Y}] = n.Id
	}
	if !seen[c.Root] {
		result = multierror.Append(result, fmt.Errorf("root %d is not a configured node", c.Root))
	}
	if c.CollectGoal <= 0 {
		result = multierror.Append(result, fmt.Errorf("collect_goal must be positive, got %d", c.CollectGoal))
	}
	if c.Horizon < 0 {
		result = multierror.Append(result, fmt.Errorf("horizon must not be negative"))
	}

	for _, g := range c.Gains {
		if !seen[g.From] || !seen[g.To] {
			result = multierror.Append(result, fmt.Errorf("gain entry %d->%d references unknown node", g.From, g.To))
		}
		if g.From == g.To {
			result = multierror.Append(result, fmt.Errorf("gain entry %d->%d is a self link", g.From, g.To))
		}
	}

	for _, tr := range c.Traffic {
		if !seen[tr.Node] {
			result = multierror.Append(result, fmt.Errorf("traffic references unknown node %d", tr.Node))
		}
		if tr.Node == c.Root {
			result = multierror.Append(result, fmt.Errorf("traffic from node %d: the root only collects", tr.Node))
		}
		if tr.Count <= 0 {
			result = multierror.Append(result, fmt.Errorf("traffic from node %d has count %d", tr.Node, tr.Count))
		}
		if tr.At < 0 || tr.Interval < 0 {
			result = multierror.Append(result, fmt.Errorf("traffic from node %d has a negative time", tr.Node))
		}
	}

	if c.Protocol == nil {
		result = multierror.Append(result, fmt.Errorf("protocol constants missing"))
		return result.ErrorOrNil()
	}
	p := c.Protocol
	positive := func(v int, name string) {
		if v <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive(p.NeighborTableSize, "neighbor_table_size")
	positive(p.RoutingTableSize, "routing_table_size")
	positive(p.QueueDepth, "queue_depth")
	positive(p.CacheSize, "cache_size")
	positive(p.MaxRetries, "max_retries")
	positive(p.BeaconWindow, "beacon_window")
	positive(p.DataWindow, "data_window")
	positive(p.MaxSeqGap, "max_seq_gap")
	positive(p.MinFreeSamples, "min_free_samples")
	positive(p.MaxChannelAttempts, "max_channel_attempts")
	positive(p.BitRate, "bit_rate")
	if p.MaxBackoffExp < 0 {
		result = multierror.Append(result, fmt.Errorf("max_backoff_exp must not be negative"))
	}
	if p.MinBeaconInterval <= 0 || p.MaxBeaconInterval < p.MinBeaconInterval {
		result = multierror.Append(result,
			fmt.Errorf("beacon interval bounds invalid: min %v max %v", p.MinBeaconInterval, p.MaxBeaconInterval))
	}
	if p.RouteUpdatePeriod <= 0 {
		result = multierror.Append(result, fmt.Errorf("route_update_period must be positive"))
	}
	if p.AckTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("ack_timeout must be positive"))
	}

	return result.ErrorOrNil()
}
