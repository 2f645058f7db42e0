package analyzer

// Band names one of the three analysed frequency ranges.
type Band int

const (
	BandBass Band = iota
	BandMid
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandMid:
		return "mid"
	case BandHigh:
		return "high"
	default:
		return "bass"
	}
}

// Bands holds the smoothed bass/mid/high energies, each in [0,1].
type Bands struct {
	Bass float64 `json:"bass"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// Dominant returns the strongest band. Ties resolve towards bass, then mid.
func (b Bands) Dominant() (Band, float64) {
	switch {
	case b.Bass >= b.Mid && b.Bass >= b.High:
		return BandBass, b.Bass
	case b.Mid >= b.High:
		return BandMid, b.Mid
	default:
		return BandHigh, b.High
	}
}

// Gate applies a noise floor so weak bands read as silence; values above the
// floor are rescaled back onto [0,1].
func Gate(b Bands, floor float64) Bands {
	if floor <= 0 {
		return b
	}
	if floor >= 1 {
		return Bands{}
	}
	gate := func(v float64) float64 {
		if v <= floor {
			return 0
		}
		return clamp((v-floor)/(1.0-floor), 0, 1)
	}
	return Bands{Bass: gate(b.Bass), Mid: gate(b.Mid), High: gate(b.High)}
}
