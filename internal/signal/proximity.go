package signal

import "math"

// Band identifies a VWAP band.
type Band string

const (
	BandNone   Band = ""
	BandLower  Band = "lower"
	BandMiddle Band = "middle"
	BandUpper  Band = "upper"
)

// Proximity reports whether a price sits close enough to a VWAP band.
type Proximity struct {
	Near bool
	Band Band
}

// BandProximity checks the price against the lower, middle and upper bands
// in that order and returns the first band within threshold. The threshold
// is a fraction of the band's own magnitude, so wider bands get wider
// acceptance zones. NaN bands never match.
func BandProximity(price, middle, upper, lower, threshold float64) Proximity {
	if math.Abs(price-lower) <= math.Abs(lower)*threshold {
		return Proximity{Near: true, Band: BandLower}
	}
	if math.Abs(price-middle) <= math.Abs(middle)*threshold {
		return Proximity{Near: true, Band: BandMiddle}
	}
	if math.Abs(price-upper) <= math.Abs(upper)*threshold {
		return Proximity{Near: true, Band: BandUpper}
	}
	return Proximity{Near: false, Band: BandNone}
}
