package indicators

import (
	"fmt"
	"math"
)

type Signal int

const (
	Hold Signal = iota
	Up
	Down
)

func (s Signal) String() string {
	switch s {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	default:
		return "HOLD"
	}
}

// Cross signals when a fast EMA crosses a slow one. It fires only on the
// transition, not on every update while the averages stay crossed.
type Cross struct {
	fast *EMA
	slow *EMA

	// -1 fast below slow, +1 above, 0 unknown
	prevRel int

	// |fast-slow| / slow below this is treated as no relationship; 0 disables.
	minSpread float64
}

// NewCross panics unless 0 < fast < slow.
func NewCross(fast, slow int, minSpread float64) *Cross {
	if fast <= 0 || slow <= 0 {
		panic("Cross periods must be > 0")
	}
	if fast >= slow {
		panic("Cross requires fast < slow")
	}
	return &Cross{fast: NewEMA(fast), slow: NewEMA(slow), minSpread: minSpread}
}

func (x *Cross) Name() string {
	return fmt.Sprintf("EMA_CROSS(%d,%d)", x.fast.n, x.slow.n)
}

func (x *Cross) Ready() bool { return x.fast.Ready() && x.slow.Ready() }

func (x *Cross) Values() (fast, slow float64) { return x.fast.Float64(), x.slow.Float64() }

func (x *Cross) Reset() {
	x.fast.Reset()
	x.slow.Reset()
	x.prevRel = 0
}

// Update consumes the next price and returns the signal with a short
// description of why.
func (x *Cross) Update(price float64) (Signal, string) {
	x.fast.Update(price)
	x.slow.Update(price)

	if !x.Ready() {
		return Hold, "warming up"
	}

	fv, sv := x.Values()
	diff := fv - sv
	if x.minSpread > 0 && sv != 0 && math.Abs(diff)/sv < x.minSpread {
		return Hold, "spread below filter"
	}

	rel := 0
	switch {
	case diff > 0:
		rel = +1
	case diff < 0:
		rel = -1
	}

	prev := x.prevRel
	x.prevRel = rel
	switch {
	case prev == 0:
		return Hold, "baseline set"
	case prev == -1 && rel == +1:
		return Up, "fast EMA crossed above slow EMA"
	case prev == +1 && rel == -1:
		return Down, "fast EMA crossed below slow EMA"
	}
	return Hold, "no cross"
}
