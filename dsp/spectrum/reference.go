package spectrum

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/mjibson/go-dsp/window"
)

// Reference returns the power at each frequency in freqs from one
// Hann-windowed FFT of the whole input, zero-padded to a power of two.
//
// Each frequency reads the nearest FFT bin, so values include the window's
// scalloping loss when a frequency falls between bins. The result is scaled
// by the window sum so a unit cosine on a bin centre reads 0.25.
func Reference(input []float64, sampleRate float64, freqs []float64) ([]float64, error) {
	if len(input) < 2 {
		return nil, fmt.Errorf("spectrum: reference needs at least 2 samples: %d", len(input))
	}

	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("spectrum: sample rate must be > 0: %v", sampleRate)
	}

	for i, f := range freqs {
		if f < 0 || f > sampleRate/2 || math.IsNaN(f) {
			return nil, fmt.Errorf("spectrum: frequency %d out of range [0, %v]: %v", i, sampleRate/2, f)
		}
	}

	win := window.Hann(len(input))
	winSum := 0.0

	for _, w := range win {
		winSum += w
	}

	fftSize := nextPowerOf2(len(input))

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum: failed to create FFT plan: %w", err)
	}

	padded := make([]complex128, fftSize)
	for i, x := range input {
		padded[i] = complex(x*win[i], 0)
	}

	bins := make([]complex128, fftSize)
	if err := plan.Forward(bins, padded); err != nil {
		return nil, fmt.Errorf("spectrum: forward FFT failed: %w", err)
	}

	power := Power(bins)
	norm := 1 / (winSum * winSum)

	out := make([]float64, len(freqs))
	for i, f := range freqs {
		k := int(math.Round(f * float64(fftSize) / sampleRate))
		if k > fftSize/2 {
			k = fftSize / 2
		}

		out[i] = power[k] * norm
	}

	return out, nil
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
