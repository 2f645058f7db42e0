// Package gain implements the visual auto-gain control: an attack/release
// follower that keeps the drawn trace near a target size regardless of the
// input loudness, plus a smoothed frame energy used for color modulation.
package gain

import "math"

// Config holds the follower constants.
type Config struct {
	// DesiredPeak is the mid-channel peak the trace should be scaled to.
	DesiredPeak float64
	// PeakFloor stops silence from dividing by zero.
	PeakFloor float64
	MinGain   float64
	MaxGain   float64
	// Attack applies when the gain must rise (signal got quieter), Release
	// when it must fall (signal got louder).
	Attack  float64
	Release float64

	EnergyAttack  float64
	EnergyRelease float64
	// EnergyLow and EnergyHigh are the RMS values mapped to 0 and 1.
	EnergyLow  float64
	EnergyHigh float64
}

// DefaultConfig returns the tuned constants.
func DefaultConfig() Config {
	return Config{
		DesiredPeak:   0.35,
		PeakFloor:     1e-6,
		MinGain:       0.25,
		MaxGain:       20,
		Attack:        0.25,
		Release:       0.05,
		EnergyAttack:  0.25,
		EnergyRelease: 0.05,
		EnergyLow:     0.02,
		EnergyHigh:    0.25,
	}
}

// Levels is the outcome of one Update.
type Levels struct {
	Gain   float64 `json:"gain"`
	Energy float64 `json:"energy"`
	Peak   float64 `json:"peak"`
	RMS    float64 `json:"rms"`
}

// Controller is owned by the render tick and is not safe for concurrent use.
type Controller struct {
	cfg    Config
	gain   float64
	energy float64
	last   Levels
}

// New returns a controller with unity gain and zero energy. Zero fields in
// cfg take their DefaultConfig value.
func New(cfg Config) *Controller {
	def := DefaultConfig()
	fill := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&cfg.DesiredPeak, def.DesiredPeak)
	fill(&cfg.PeakFloor, def.PeakFloor)
	fill(&cfg.MinGain, def.MinGain)
	fill(&cfg.MaxGain, def.MaxGain)
	fill(&cfg.Attack, def.Attack)
	fill(&cfg.Release, def.Release)
	fill(&cfg.EnergyAttack, def.EnergyAttack)
	fill(&cfg.EnergyRelease, def.EnergyRelease)
	fill(&cfg.EnergyLow, def.EnergyLow)
	fill(&cfg.EnergyHigh, def.EnergyHigh)
	if cfg.MaxGain < cfg.MinGain {
		cfg.MaxGain = cfg.MinGain
	}
	if cfg.EnergyHigh <= cfg.EnergyLow {
		cfg.EnergyHigh = cfg.EnergyLow + def.EnergyHigh - def.EnergyLow
	}

	c := &Controller{cfg: cfg}
	c.Reset()
	return c
}

// Reset returns to unity gain and zero energy.
func (c *Controller) Reset() {
	c.gain = 1
	c.energy = 0
	c.last = Levels{Gain: 1}
}

// Last returns the levels computed by the latest Update.
func (c *Controller) Last() Levels { return c.last }

// Update advances both followers by one frame. An empty block leaves the
// state unchanged.
func (c *Controller) Update(left, right []float32) Levels {
	n := min(len(left), len(right))
	if n == 0 {
		return c.last
	}

	peak := c.cfg.PeakFloor
	sumSq := 0.0
	for i := 0; i < n; i++ {
		l := finite(left[i])
		r := finite(right[i])
		m := 0.5 * (math.Abs(l) + math.Abs(r))
		if m > peak {
			peak = m
		}
		mid := 0.5 * (l + r)
		sumSq += mid * mid
	}
	rms := math.Sqrt(sumSq / float64(n))

	target := clamp(c.cfg.DesiredPeak/peak, c.cfg.MinGain, c.cfg.MaxGain)
	c.gain = follow(c.gain, target, c.cfg.Attack, c.cfg.Release)
	c.energy = follow(c.energy, rms, c.cfg.EnergyAttack, c.cfg.EnergyRelease)

	c.last = Levels{Gain: c.gain, Energy: c.normEnergy(), Peak: peak, RMS: rms}
	return c.last
}

func (c *Controller) normEnergy() float64 {
	return clamp((c.energy-c.cfg.EnergyLow)/(c.cfg.EnergyHigh-c.cfg.EnergyLow), 0, 1)
}

// follow moves current towards target by the attack coefficient when
// rising and by the release coefficient when falling.
func follow(current, target, attack, release float64) float64 {
	if target > current {
		return current + (target-current)*attack
	}
	return current + (target-current)*release
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// finite maps NaN and infinities to silence.
func finite(v float32) float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
