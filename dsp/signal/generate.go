// Package signal generates the deterministic driving signals used to excite
// a resonator bank: test tones for calibration and noise for robustness runs.
package signal

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-nofft/dsp/core"
)

// Generator creates deterministic signals from a shared configuration.
type Generator struct {
	cfg  core.ProcessorConfig
	seed int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed sets deterministic random seed for noise generation.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// NewGenerator creates a configured signal generator.
func NewGenerator(opts ...core.ProcessorOption) *Generator {
	return &Generator{
		cfg:  core.ApplyProcessorOptions(opts...),
		seed: 1,
	}
}

// NewGeneratorWithOptions creates a configured signal generator with signal-specific options.
func NewGeneratorWithOptions(coreOpts []core.ProcessorOption, opts ...Option) *Generator {
	g := NewGenerator(coreOpts...)
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Config returns the generator processor configuration.
func (g *Generator) Config() core.ProcessorConfig {
	return g.cfg
}

// SetSeed replaces the noise seed.
func (g *Generator) SetSeed(seed int64) { g.seed = seed }

// Seed returns the noise seed.
func (g *Generator) Seed() int64 { return g.seed }

// Samples returns the number of whole samples in duration seconds.
func (g *Generator) Samples(duration float64) int {
	if duration <= 0 {
		return 0
	}
	return int(g.cfg.SampleRate * duration)
}

// Cosine generates amplitude*cos(2*pi*f*n/fs) for n = 0..samples-1.
//
// Phase zero lines the tone up with the in-phase axis of a resonator bin at
// the same frequency.
func (g *Generator) Cosine(freqHz, amplitude float64, samples int) ([]float64, error) {
	return g.tone(freqHz, amplitude, samples, math.Cos)
}

// Sine generates amplitude*sin(2*pi*f*n/fs) for n = 0..samples-1.
func (g *Generator) Sine(freqHz, amplitude float64, samples int) ([]float64, error) {
	return g.tone(freqHz, amplitude, samples, math.Sin)
}

func (g *Generator) tone(freqHz, amplitude float64, samples int, fn func(float64) float64) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("tone samples must be > 0: %d", samples)
	}
	if g.cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("tone sample rate must be > 0: %f", g.cfg.SampleRate)
	}
	if freqHz < 0 || !core.IsFinite(freqHz) {
		return nil, fmt.Errorf("tone frequency must be finite and >= 0: %f", freqHz)
	}

	out := make([]float64, samples)
	sr := g.cfg.SampleRate
	for i := range out {
		// Angle from the absolute index keeps long tones free of phase drift.
		out[i] = amplitude * fn(2*math.Pi*freqHz*float64(i)/sr)
	}
	return out, nil
}

// WhiteNoise generates deterministic white noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float64, samples int) ([]float64, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("noise samples must be > 0: %d", samples)
	}
	if amplitude < 0 {
		return nil, fmt.Errorf("noise amplitude must be >= 0: %f", amplitude)
	}
	out := make([]float64, samples)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out, nil
}

// Mix adds src into dst sample by sample. The slices must have equal length.
func Mix(dst, src []float64) error {
	if len(dst) != len(src) {
		return fmt.Errorf("mix length mismatch: %d != %d", len(dst), len(src))
	}
	for i, v := range src {
		dst[i] += v
	}
	return nil
}
