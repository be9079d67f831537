package resonator

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-nofft/dsp/core"
)

// Defaults for [LogFrequencies]: seven octaves of semitones from C1.
const (
	DefaultMinFrequency         = 32.7
	DefaultNumFrequencies       = 84
	DefaultFrequenciesPerOctave = 12
)

// LogFrequencies returns n frequencies spaced perOctave to the octave,
// starting at fmin: fmin * 2^(i/perOctave).
func LogFrequencies(fmin float64, n, perOctave int) []float64 {
	if n <= 0 || perOctave <= 0 || fmin <= 0 {
		return nil
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = fmin * math.Pow(2, float64(i)/float64(perOctave))
	}

	return out
}

// AlphaHeuristic returns a smoothing coefficient for a bin at freq:
//
//	alpha = 1 - exp(-(1/fs) * f / (k * log10(1 + f)))
//
// The time constant k*log10(1+f)/f shrinks as f grows, so higher bins
// respond faster. Larger k slows every bin down.
func AlphaHeuristic(freq, sampleRate, k float64) float64 {
	return 1 - math.Exp(-(1/sampleRate)*freq/(k*math.Log10(1+freq)))
}

// Alphas applies [AlphaHeuristic] to every frequency and checks that each
// result is a usable coefficient.
func Alphas(freqs []float64, sampleRate, k float64) ([]float64, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("%w: sample rate must be > 0: %v", ErrInvalidParameter, sampleRate)
	}

	if k <= 0 || !core.IsFinite(k) {
		return nil, fmt.Errorf("%w: heuristic k must be > 0: %v", ErrInvalidParameter, k)
	}

	out := make([]float64, len(freqs))
	for i, f := range freqs {
		if f <= 0 || !core.IsFinite(f) {
			return nil, fmt.Errorf("%w: frequency[%d] must be > 0: %v", ErrInvalidParameter, i, f)
		}

		out[i] = AlphaHeuristic(f, sampleRate, k)
		if err := validateCoefficient("alpha", i, out[i]); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// TimeConstant returns tau = -1/(ln(1-alpha)*fs) in seconds. alpha = 1 has
// no memory and returns 0.
func TimeConstant(alpha, sampleRate float64) float64 {
	if alpha >= 1 {
		return 0
	}

	return -1 / (math.Log1p(-alpha) * sampleRate)
}
