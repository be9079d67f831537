package calibrate

import (
	"fmt"

	"github.com/cwbudde/algo-nofft/dsp/core"
	"github.com/cwbudde/algo-nofft/dsp/resonator"
	"github.com/cwbudde/algo-nofft/dsp/signal"
)

// Response drives a fresh bank with a unit cosine at inputFreq for duration
// seconds and returns the power of every bin at every sample.
func Response(inputFreq float64, freqs, alphas, betas []float64, sampleRate, duration float64) (*resonator.Series, error) {
	if !(duration > 0) || !core.IsFinite(duration) {
		return nil, fmt.Errorf("%w: duration must be > 0: %v", resonator.ErrInvalidParameter, duration)
	}

	if !(inputFreq >= 0) || !core.IsFinite(inputFreq) {
		return nil, fmt.Errorf("%w: input frequency must be >= 0: %v", resonator.ErrInvalidParameter, inputFreq)
	}

	gen := signal.NewGenerator(core.WithSampleRate(sampleRate))

	n := gen.Samples(duration)
	if n < 1 {
		return nil, fmt.Errorf("%w: %v s at %v Hz is shorter than one sample", resonator.ErrInvalidParameter, duration, sampleRate)
	}

	if betas == nil {
		betas = alphas
	}

	bank, err := resonator.New(freqs, alphas, betas, sampleRate)
	if err != nil {
		return nil, err
	}

	tone, err := gen.Cosine(inputFreq, 1, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", resonator.ErrInvalidParameter, err)
	}

	return bank.ProcessBlock(tone)
}
