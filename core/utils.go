package core

import (
	"math"

	"github.com/rayonsim/rayon/state"
)

// AddEtx saturates path-cost addition at the unreachable sentinel.
func AddEtx(a, b uint16) uint16 {
	if a == state.INF || b == state.INF {
		return state.INF
	}
	sum := uint32(a) + uint32(b)
	if sum >= uint32(state.INF) {
		return state.INF
	}
	return uint16(sum)
}

func DbmToMw(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

func MwToDbm(mw float64) float64 {
	return 10 * math.Log10(mw)
}
