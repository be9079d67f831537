package resonator

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-nofft/dsp/core"
	"github.com/cwbudde/algo-nofft/dsp/spectrum"
)

// Bank is an ordered set of resonator bins sharing one sample clock.
//
// Every processing call advances all bins by the same number of samples, so
// the bins never disagree about elapsed time. Output slices returned in a
// [Frame] are owned by the bank and overwritten by the next call.
type Bank struct {
	freqs  []float64
	alphas []float64
	betas  []float64
	decayA []float64 // 1 - alpha
	decayB []float64 // 1 - beta

	re    []float64 // smoothed in-phase accumulator c
	im    []float64 // smoothed quadrature accumulator s
	mag2  []float64 // c^2 + s^2 scratch
	power []float64
	phase []float64

	clock   Clock
	workers int
	flush   bool
}

// Frame holds the bank output for one sample index. The slices are aligned
// with the bank frequencies.
type Frame struct {
	Index int
	Power []float64
	Phase []float64
	Re    []float64
	Im    []float64
}

type config struct {
	proc  core.ProcessorConfig
	flush bool
}

// Option configures a Bank.
type Option func(*config)

// WithWorkers partitions bins across n goroutines inside ProcessBlock and
// ProcessBlockHop. Zero selects GOMAXPROCS; the default is 1. Single-sample
// calls always run on the caller's goroutine.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		core.WithWorkers(n)(&cfg.proc)
	}
}

// WithDenormalFlush snaps accumulator and power values below 1e-30 to zero,
// so a silent input reaches the all-zero state in finite time.
func WithDenormalFlush(enabled bool) Option {
	return func(cfg *config) {
		cfg.flush = enabled
	}
}

// New builds a bank with one bin per frequency. alphas and betas must have
// the same length as freqs, with every coefficient in (0, 1]. All
// accumulators start at zero and the clock starts at index 0.
func New(freqs, alphas, betas []float64, sampleRate float64, opts ...Option) (*Bank, error) {
	clock, err := NewClock(sampleRate)
	if err != nil {
		return nil, err
	}

	if len(freqs) == 0 {
		return nil, fmt.Errorf("%w: at least one frequency is required", ErrInvalidParameter)
	}

	if len(alphas) != len(freqs) {
		return nil, fmt.Errorf("%w: %d alphas for %d frequencies", ErrInvalidParameter, len(alphas), len(freqs))
	}

	if len(betas) != len(freqs) {
		return nil, fmt.Errorf("%w: %d betas for %d frequencies", ErrInvalidParameter, len(betas), len(freqs))
	}

	for i, f := range freqs {
		if f <= 0 || !core.IsFinite(f) {
			return nil, fmt.Errorf("%w: frequency[%d] must be > 0: %v", ErrInvalidParameter, i, f)
		}

		if err := validateCoefficient("alpha", i, alphas[i]); err != nil {
			return nil, err
		}

		if err := validateCoefficient("beta", i, betas[i]); err != nil {
			return nil, err
		}
	}

	cfg := config{proc: core.DefaultProcessorConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	n := len(freqs)
	b := &Bank{
		freqs:   append([]float64(nil), freqs...),
		alphas:  append([]float64(nil), alphas...),
		betas:   append([]float64(nil), betas...),
		decayA:  make([]float64, n),
		decayB:  make([]float64, n),
		re:      make([]float64, n),
		im:      make([]float64, n),
		mag2:    make([]float64, n),
		power:   make([]float64, n),
		phase:   make([]float64, n),
		clock:   clock,
		workers: min(max(cfg.proc.Workers, 1), n),
		flush:   cfg.flush,
	}

	for i := range n {
		b.decayA[i] = 1 - b.alphas[i]
		b.decayB[i] = 1 - b.betas[i]
	}

	return b, nil
}

// NewEqualRates builds a bank whose power smoothing uses the same
// coefficient as the accumulator (beta = alpha).
func NewEqualRates(freqs, alphas []float64, sampleRate float64, opts ...Option) (*Bank, error) {
	return New(freqs, alphas, alphas, sampleRate, opts...)
}

func validateCoefficient(name string, i int, v float64) error {
	// Written so NaN fails too.
	if !(v > 0 && v <= 1) {
		return fmt.Errorf("%w: %s[%d] must be in (0, 1]: %v", ErrInvalidParameter, name, i, v)
	}

	return nil
}

// NumBins returns the number of bins.
func (b *Bank) NumBins() int { return len(b.freqs) }

// SampleRate returns the sample rate the bank was built for.
func (b *Bank) SampleRate() float64 { return b.clock.SampleRate() }

// Index returns the sample index the next call will process.
func (b *Bank) Index() int { return b.clock.Index() }

// Clock returns a copy of the bank's sample clock.
func (b *Bank) Clock() Clock { return b.clock }

// Frequencies returns a copy of the bin frequencies.
func (b *Bank) Frequencies() []float64 { return append([]float64(nil), b.freqs...) }

// Alphas returns a copy of the accumulator coefficients.
func (b *Bank) Alphas() []float64 { return append([]float64(nil), b.alphas...) }

// Betas returns a copy of the power smoothing coefficients.
func (b *Bank) Betas() []float64 { return append([]float64(nil), b.betas...) }

// Powers returns a copy of the current smoothed power per bin.
func (b *Bank) Powers() []float64 { return append([]float64(nil), b.power...) }

// Phases returns a copy of the current phase per bin.
func (b *Bank) Phases() []float64 { return append([]float64(nil), b.phase...) }

// Amplitudes returns |c + i*s| per bin. A matched unit cosine settles at 0.5.
func (b *Bank) Amplitudes() []float64 {
	out := make([]float64, len(b.re))
	spectrum.MagnitudeFromParts(out, b.re, b.im)

	return out
}

// Complex returns the accumulators as c + i*s per bin.
func (b *Bank) Complex() []complex128 {
	out := make([]complex128, len(b.re))
	for i := range out {
		out[i] = complex(b.re[i], b.im[i])
	}

	return out
}

// ProcessSample advances every bin by one input sample.
func (b *Bank) ProcessSample(x float64) Frame {
	n := b.clock.Index()
	b.advance(x, n, 0, len(b.freqs))
	b.clock.Advance(1)

	return Frame{Index: n, Power: b.power, Phase: b.phase, Re: b.re, Im: b.im}
}

// ProcessSampleInto advances every bin by one input sample and copies power
// and phase into caller-owned buffers. A nil buffer is skipped. A buffer
// whose length differs from NumBins fails with ErrInvalidState before any
// state changes.
func (b *Bank) ProcessSampleInto(x float64, power, phase []float64) error {
	if power != nil && len(power) != len(b.freqs) {
		return fmt.Errorf("%w: power buffer has %d entries for %d bins", ErrInvalidState, len(power), len(b.freqs))
	}

	if phase != nil && len(phase) != len(b.freqs) {
		return fmt.Errorf("%w: phase buffer has %d entries for %d bins", ErrInvalidState, len(phase), len(b.freqs))
	}

	frame := b.ProcessSample(x)
	copy(power, frame.Power)
	copy(phase, frame.Phase)

	return nil
}

// ProcessBlock advances the bank through input and records every frame.
func (b *Bank) ProcessBlock(input []float64) (*Series, error) {
	return b.ProcessBlockHop(input, 1)
}

// ProcessBlockHop advances the bank through every sample of input but only
// records frames whose absolute sample index is a multiple of hop. Because
// the test uses the absolute index, consecutive blocks line up as if the
// input had been passed in one call.
func (b *Bank) ProcessBlockHop(input []float64, hop int) (*Series, error) {
	if hop < 1 {
		return nil, fmt.Errorf("%w: hop must be >= 1: %d", ErrInvalidParameter, hop)
	}

	start := b.clock.Index()
	s := newSeries(b.freqs, hop, frameIndices(start, len(input), hop))

	if b.workers <= 1 || len(input) == 0 {
		b.runRange(input, start, s, 0, len(b.freqs))
	} else {
		var wg sync.WaitGroup

		per := (len(b.freqs) + b.workers - 1) / b.workers
		for lo := 0; lo < len(b.freqs); lo += per {
			hi := min(lo+per, len(b.freqs))

			wg.Add(1)

			go func(lo, hi int) {
				defer wg.Done()
				b.runRange(input, start, s, lo, hi)
			}(lo, hi)
		}

		wg.Wait()
	}

	b.clock.Advance(len(input))

	return s, nil
}

// runRange drives bins [lo, hi) through the whole block. Bins only read the
// shared clock and their own state, so disjoint ranges may run concurrently.
func (b *Bank) runRange(input []float64, start int, s *Series, lo, hi int) {
	frame := 0

	for k, x := range input {
		n := start + k
		b.advance(x, n, lo, hi)

		if n%s.Hop != 0 {
			continue
		}

		copy(s.Power[frame][lo:hi], b.power[lo:hi])
		copy(s.Phase[frame][lo:hi], b.phase[lo:hi])
		copy(s.Re[frame][lo:hi], b.re[lo:hi])
		copy(s.Im[frame][lo:hi], b.im[lo:hi])
		frame++
	}
}

// advance applies one step of the recurrence at sample index n to bins
// [lo, hi).
func (b *Bank) advance(x float64, n, lo, hi int) {
	if n == 0 {
		clear(b.re[lo:hi])
		clear(b.im[lo:hi])
		clear(b.power[lo:hi])
		clear(b.phase[lo:hi])

		return
	}

	sr := b.clock.SampleRate()

	for i := lo; i < hi; i++ {
		sin, cos := math.Sincos(PhasorAngle(b.freqs[i], n, sr))

		c := b.decayA[i]*b.re[i] + b.alphas[i]*(x*cos)
		s := b.decayA[i]*b.im[i] + b.alphas[i]*(x*sin)

		if b.flush {
			c = core.FlushDenormals(c)
			s = core.FlushDenormals(s)
		}

		b.re[i] = c
		b.im[i] = s
	}

	spectrum.PowerFromParts(b.mag2[lo:hi], b.re[lo:hi], b.im[lo:hi])

	for i := lo; i < hi; i++ {
		p := b.decayB[i]*b.power[i] + b.betas[i]*b.mag2[i]
		if b.flush {
			p = core.FlushDenormals(p)
		}

		b.power[i] = p
	}

	spectrum.PhaseFromParts(b.phase[lo:hi], b.re[lo:hi], b.im[lo:hi])
}
