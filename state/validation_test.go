package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validCfg() *SimCfg {
	return &SimCfg{
		Seed:        1,
		Root:        0,
		CollectGoal: 5,
		Horizon:     time.Minute,
		Nodes: []NodeCfg{
			{Id: 0, X: 0, Y: 0},
			{Id: 1, X: 100, Y: 0},
		},
		Traffic:  []TrafficCfg{{Node: 1, At: time.Second, Count: 5, Interval: time.Second}},
		Protocol: DefaultProtocol(),
	}
}

func TestValidateSimCfg_Valid(t *testing.T) {
	assert.NoError(t, ValidateSimCfg(validCfg()))
}

func TestValidateSimCfg_NoNodes(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes = nil
	assert.Error(t, ValidateSimCfg(cfg))
}

func TestValidateSimCfg_DuplicateId(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes = append(cfg.Nodes, NodeCfg{Id: 1, X: 200, Y: 0})
	assert.ErrorContains(t, ValidateSimCfg(cfg), "duplicate node id")
}

func TestValidateSimCfg_SharedCoordinates(t *testing.T) {
	cfg := validCfg()
	cfg.Nodes = append(cfg.Nodes, NodeCfg{Id: 2, X: 100, Y: 0})
	assert.ErrorContains(t, ValidateSimCfg(cfg), "share coordinates")
}

func TestValidateSimCfg_MissingRoot(t *testing.T) {
	cfg := validCfg()
	cfg.Root = 9
	assert.ErrorContains(t, ValidateSimCfg(cfg), "root")
}

func TestValidateSimCfg_RootTraffic(t *testing.T) {
	cfg := validCfg()
	cfg.Traffic[0].Node = 0
	assert.ErrorContains(t, ValidateSimCfg(cfg), "the root only collects")
}

func TestValidateSimCfg_SelfGain(t *testing.T) {
	cfg := validCfg()
	cfg.Gains = []GainCfg{{From: 1, To: 1, Dbm: -50}}
	assert.ErrorContains(t, ValidateSimCfg(cfg), "self link")
}

func TestValidateSimCfg_UnknownGainNode(t *testing.T) {
	cfg := validCfg()
	cfg.Gains = []GainCfg{{From: 0, To: 7, Dbm: -50}}
	assert.ErrorContains(t, ValidateSimCfg(cfg), "unknown node")
}

func TestValidateSimCfg_BadProtocolBounds(t *testing.T) {
	cfg := validCfg()
	cfg.Protocol.MaxBeaconInterval = cfg.Protocol.MinBeaconInterval / 2
	assert.ErrorContains(t, ValidateSimCfg(cfg), "beacon interval bounds")
}

func TestValidateSimCfg_CollectsAllErrors(t *testing.T) {
	cfg := validCfg()
	cfg.Root = 9
	cfg.CollectGoal = 0
	cfg.Protocol.QueueDepth = 0
	err := ValidateSimCfg(cfg)
	assert.ErrorContains(t, err, "root")
	assert.ErrorContains(t, err, "collect_goal")
	assert.ErrorContains(t, err, "queue_depth")
}
