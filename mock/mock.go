package mock

import (
	"time"

	"github.com/rayonsim/rayon/state"
)

// pinBoth pins a symmetric link gain for one node pair.
func pinBoth(cfg *state.SimCfg, a, b state.NodeId, dbm float64) {
	cfg.Gains = append(cfg.Gains,
		state.GainCfg{From: a, To: b, Dbm: dbm},
		state.GainCfg{From: b, To: a, Dbm: dbm},
	)
}

// LineCfg builds an n-node chain rooted at node 0. Nodes sit far enough
// apart that distance-derived gains are below the delivery floor; only
// the pinned adjacent links exist, so every packet from the tail must
// cross n-1 hops.
func LineCfg(n, goal int) *state.SimCfg {
	cfg := &state.SimCfg{
		Seed:        1,
		Root:        0,
		CollectGoal: goal,
		Horizon:     10 * time.Minute,
		Protocol:    state.DefaultProtocol(),
	}
	for i := 0; i < n; i++ {
		cfg.Nodes = append(cfg.Nodes, state.NodeCfg{Id: state.NodeId(i), X: i * 1000, Y: 0})
	}
	for i := 0; i < n-1; i++ {
		pinBoth(cfg, state.NodeId(i), state.NodeId(i+1), -60)
	}
	return cfg
}

// DiamondCfg builds the four-node routing fixture:
//
//	  0 (root)
//	 / \
//	1   2
//	 \ /
//	  3
//
// Node 3 hears both mids, but its link to 2 is pinned much weaker, so a
// converged tree routes 3 through 1.
func DiamondCfg(goal int) *state.SimCfg {
	cfg := &state.SimCfg{
		Seed:        1,
		Root:        0,
		CollectGoal: goal,
		Horizon:     10 * time.Minute,
		Protocol:    state.DefaultProtocol(),
		Nodes: []state.NodeCfg{
			{Id: 0, X: 0, Y: 0},
			{Id: 1, X: 0, Y: 1000},
			{Id: 2, X: 1000, Y: 0},
			{Id: 3, X: 1000, Y: 1000},
		},
	}
	pinBoth(cfg, 0, 1, -60)
	pinBoth(cfg, 0, 2, -60)
	pinBoth(cfg, 1, 3, -62)
	pinBoth(cfg, 2, 3, -96)
	return cfg
}

// Traffic appends one traffic source to cfg and returns cfg for chaining.
func Traffic(cfg *state.SimCfg, node state.NodeId, at time.Duration, count int, interval time.Duration) *state.SimCfg {
	cfg.Traffic = append(cfg.Traffic, state.TrafficCfg{Node: node, At: at, Count: count, Interval: interval})
	return cfg
}
