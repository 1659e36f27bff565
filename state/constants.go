package state

import "time"

// ETX fixed-point scale: one expected transmission = 10. All link and path
// costs are carried at this scale to avoid fractional loss.
const (
	EtxUnit = uint16(10)
	// QualityMax is a perfect ingoing link quality.
	QualityMax = uint16(250)
	// QualityFloor is the detectable floor; a smoothed quality below it
	// maps straight to INF so the link drops out of parent selection.
	QualityFloor = uint16(10)
	// Exponential smoothing weights: new value 1/10, history 9/10.
	EwmaOld = 9
	EwmaDiv = 10
)

// DefaultProtocol returns the protocol constants used when a scenario does
// not override them. Values follow common low-power collection stacks: a
// 250 kbit/s radio, tables of around ten neighbours and beacon intervals
// that decay from 128ms to 512s.
func DefaultProtocol() *ProtocolCfg {
	return &ProtocolCfg{
		NeighborTableSize:     10,
		RoutingTableSize:      10,
		QueueDepth:            12,
		CacheSize:             4,
		MaxRetries:            30,
		BeaconWindow:          3,
		DataWindow:            5,
		MaxSeqGap:             20,
		EvictEtx:              55,
		MaxOneHopEtx:          50,
		ParentSwitchThreshold: 15,

		MinBeaconInterval: 128 * time.Millisecond,
		MaxBeaconInterval: 512 * time.Second,
		RouteUpdatePeriod: 8 * time.Second,
		AckTimeout:        8 * time.Millisecond,
		RetryPause:        3 * time.Millisecond,
		NoRoutePause:      100 * time.Millisecond,
		LoopRepairPause:   256 * time.Millisecond,

		MinFreeSamples:     3,
		SampleInterval:     128 * time.Microsecond,
		InitialBackoff:     640 * time.Microsecond,
		MaxBackoffExp:      5,
		MaxChannelAttempts: 8,
		SwitchDelay:        192 * time.Microsecond,
		PreambleBytes:      6,
		BitRate:            250_000,
		AckAirtime:         352 * time.Microsecond,

		TxPowerDbm:       0,
		NoiseFloorDbm:    -98,
		NoiseRangeDbm:    4,
		ClearChannelDbm:  -85,
		CaptureDb:        5,
		DeliveryFloorDbm: -115,
		PathLossRefDb:    40,
		PathLossExp:      3,
		PropagationDelay: time.Microsecond,
	}
}
