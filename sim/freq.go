package sim

import (
	"log"
	"math"
)

// Freq defines the type of frequency.
type Freq float64

// Defines the unit of frequency.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// Period returns the time between two consecutive ticks, in seconds.
func (f Freq) Period() float64 {
	if f == 0 {
		log.Panic("frequency cannot be 0")
	}

	return 1.0 / float64(f)
}

// Seconds converts a number of cycles into seconds.
func (f Freq) Seconds(cycles VTimeInCycle) float64 {
	return float64(cycles) * f.Period()
}

// Cycles converts a duration in seconds into the number of whole cycles that
// fit in it, rounding to the nearest cycle.
func (f Freq) Cycles(seconds float64) VTimeInCycle {
	if math.IsNaN(seconds) || seconds < 0 {
		log.Panicf("invalid duration %f", seconds)
	}

	return VTimeInCycle(math.Round(seconds * float64(f)))
}
