package resonator

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-nofft/dsp/core"
)

// Clock is the sample clock shared by every bin of a bank.
type Clock struct {
	index      int
	sampleRate float64
}

// NewClock returns a clock at index 0.
func NewClock(sampleRate float64) (Clock, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return Clock{}, fmt.Errorf("%w: sample rate must be > 0: %v", ErrInvalidParameter, sampleRate)
	}

	return Clock{sampleRate: sampleRate}, nil
}

// Index returns the index of the next sample to be processed.
func (c Clock) Index() int { return c.index }

// SampleRate returns the clock rate in Hz.
func (c Clock) SampleRate() float64 { return c.sampleRate }

// Time returns Index()/SampleRate() in seconds.
func (c Clock) Time() float64 { return float64(c.index) / c.sampleRate }

// Angle returns the phasor angle of freq at the current index.
func (c Clock) Angle(freq float64) float64 {
	return PhasorAngle(freq, c.index, c.sampleRate)
}

// Advance moves the clock forward by n samples.
func (c *Clock) Advance(n int) { c.index += n }

// PhasorAngle returns -2*pi*freq*n/sampleRate reduced to (-2*pi, 0].
//
// The angle is derived from n alone. Whole cycles are removed before the
// multiplication by 2*pi so the trigonometric argument stays small however
// large n grows.
func PhasorAngle(freq float64, n int, sampleRate float64) float64 {
	cycles := freq * float64(n) / sampleRate
	cycles -= math.Floor(cycles)

	return -2 * math.Pi * cycles
}
