package spectrum

import (
	"fmt"
	"math"
)

// Goertzel evaluates one DFT term over all samples processed since the last
// Reset. Unlike the resonator bank it has no forgetting factor, so its
// estimate is a block average rather than a running one.
type Goertzel struct {
	frequency  float64
	sampleRate float64
	coeff      float64
	s0, s1     float64
	count      int
}

// NewGoertzel creates a Goertzel evaluator for frequency, which must lie in
// [0, sampleRate/2].
func NewGoertzel(frequency, sampleRate float64) (*Goertzel, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("goertzel: sample rate must be > 0: %v", sampleRate)
	}

	if frequency < 0 || frequency > sampleRate/2 || math.IsNaN(frequency) {
		return nil, fmt.Errorf("goertzel: frequency must be between 0 and sampleRate/2: %v", frequency)
	}

	return &Goertzel{
		frequency:  frequency,
		sampleRate: sampleRate,
		coeff:      2 * math.Cos(2*math.Pi*frequency/sampleRate),
	}, nil
}

// Reset clears the internal state.
func (g *Goertzel) Reset() {
	g.s0, g.s1 = 0, 0
	g.count = 0
}

// ProcessBlock updates the internal state with a block of samples.
func (g *Goertzel) ProcessBlock(input []float64) {
	s0, s1 := g.s0, g.s1

	coeff := g.coeff
	for _, x := range input {
		s := x + coeff*s0 - s1
		s1 = s0
		s0 = s
	}

	g.s0, g.s1 = s0, s1
	g.count += len(input)
}

// Frequency returns the analysed frequency in Hz.
func (g *Goertzel) Frequency() float64 { return g.frequency }

// Power returns |X|^2 / N^2, which is 0.25 for a unit cosine at the
// analysed frequency when the block holds a whole number of periods.
func (g *Goertzel) Power() float64 {
	if g.count == 0 {
		return 0
	}

	p := g.s0*g.s0 + g.s1*g.s1 - g.coeff*g.s0*g.s1
	if p < 0 {
		p = 0
	}

	n := float64(g.count)
	return p / (n * n)
}

// TonePower returns the normalised Goertzel power of input at frequency.
func TonePower(input []float64, frequency, sampleRate float64) (float64, error) {
	g, err := NewGoertzel(frequency, sampleRate)
	if err != nil {
		return 0, err
	}

	g.ProcessBlock(input)

	return g.Power(), nil
}
