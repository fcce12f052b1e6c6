package signal

// Crossover tags the transition of one series across another between two
// consecutive ticks.
type Crossover int

const (
	CrossNone    Crossover = 0
	CrossBullish Crossover = 1
	CrossBearish Crossover = -1
)

// String implements fmt.Stringer.
func (c Crossover) String() string {
	switch c {
	case CrossBullish:
		return "bullish"
	case CrossBearish:
		return "bearish"
	default:
		return "none"
	}
}

// DetectCrossover reports whether series a crossed series b between the
// previous and current tick. Equality on the previous tick still counts as
// "at or below" (or "at or above"), so the strict inequality on the current
// tick decides the direction; equality on both ticks is no crossover.
// NaN inputs fail every comparison and yield CrossNone.
func DetectCrossover(currA, currB, prevA, prevB float64) Crossover {
	if prevA <= prevB && currA > currB {
		return CrossBullish
	}
	if prevA >= prevB && currA < currB {
		return CrossBearish
	}
	return CrossNone
}
