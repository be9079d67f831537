package calibrate

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-nofft/dsp/core"
	"github.com/cwbudde/algo-nofft/dsp/resonator"
	"github.com/cwbudde/algo-nofft/dsp/signal"
	"github.com/cwbudde/algo-nofft/logging"
)

// TargetPower is the calibrated power of a matched unit cosine.
const TargetPower = 0.25

// Result holds the gains of one calibration sweep. It is not modified after
// [Sweep] returns and may be shared between goroutines.
type Result struct {
	sampleRate float64
	mode       Mode
	freqs      []float64
	alphas     []float64
	betas      []float64
	samples    []int
	powers     []float64
	gains      []float64
}

// Summary describes the spread of a sweep.
type Summary struct {
	Bins       int
	MeanPower  float64
	StdPower   float64
	MeanGain   float64
	StdGain    float64
	MinGainBin int
	MaxGainBin int
}

// Sweep drives a fresh bank with a unit cosine at each frequency and derives
// one gain per bin. alphas must match freqs in length. ctx cancellation
// stops scheduling new sweeps and returns ctx.Err().
func Sweep(ctx context.Context, freqs, alphas []float64, sampleRate float64, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.durationFactor <= 0 || !core.IsFinite(cfg.durationFactor) {
		return nil, fmt.Errorf("%w: duration factor must be > 0: %v", resonator.ErrInvalidParameter, cfg.durationFactor)
	}

	if cfg.mode != ModeOwnBin && cfg.mode != ModeBankSum {
		return nil, fmt.Errorf("%w: unknown calibration mode %d", resonator.ErrInvalidParameter, int(cfg.mode))
	}

	betas := cfg.betas
	if betas == nil {
		betas = alphas
	}

	// Validates lengths, coefficients and the sample rate in one place.
	if _, err := resonator.New(freqs, alphas, betas, sampleRate); err != nil {
		return nil, err
	}

	res := &Result{
		sampleRate: sampleRate,
		mode:       cfg.mode,
		freqs:      append([]float64(nil), freqs...),
		alphas:     append([]float64(nil), alphas...),
		betas:      append([]float64(nil), betas...),
		samples:    make([]int, len(freqs)),
		powers:     make([]float64, len(freqs)),
		gains:      make([]float64, len(freqs)),
	}

	log := logging.Or(cfg.logger).WithFields(logging.Fields{"mode": cfg.mode.String()})

	errs := make([]error, len(freqs))
	jobs := make(chan int)

	var wg sync.WaitGroup

	for range min(max(cfg.proc.Workers, 1), len(freqs)) {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range jobs {
				errs[i] = res.sweepOne(i, cfg.durationFactor)
				if errs[i] == nil {
					log.Debug("swept bin", logging.Fields{
						"bin":     i,
						"freq":    res.freqs[i],
						"samples": res.samples[i],
						"power":   res.powers[i],
						"gain":    res.gains[i],
					})
				}
			}
		}()
	}

feed:
	for i := range freqs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}

	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sum := res.Summary()
	log.Info("calibration sweep done", logging.Fields{
		"bins":      sum.Bins,
		"meanPower": sum.MeanPower,
		"meanGain":  sum.MeanGain,
	})

	return res, nil
}

// SweepSamples returns the sweep length for a bin with the given alpha:
// ceil(factor*tau*fs), at least 2 so one sample after index 0 is seen.
func SweepSamples(alpha, sampleRate, factor float64) int {
	tau := resonator.TimeConstant(alpha, sampleRate)

	return max(2, int(math.Ceil(factor*tau*sampleRate)))
}

// sweepOne measures bin i. It writes only index i of the result slices.
func (r *Result) sweepOne(i int, factor float64) error {
	n := SweepSamples(r.alphas[i], r.sampleRate, factor)

	tone, err := signal.NewGenerator(core.WithSampleRate(r.sampleRate)).Cosine(r.freqs[i], 1, n)
	if err != nil {
		return fmt.Errorf("%w: bin %d: %v", resonator.ErrInvalidParameter, i, err)
	}

	freqs, alphas, betas := r.freqs[i:i+1], r.alphas[i:i+1], r.betas[i:i+1]
	if r.mode == ModeBankSum {
		freqs, alphas, betas = r.freqs, r.alphas, r.betas
	}

	// Only the frames at 0 and n-1 are recorded.
	series, err := resonator.Resonate(tone, r.sampleRate, freqs, alphas, betas, n-1)
	if err != nil {
		return err
	}

	last, ok := series.Last()
	if !ok {
		return fmt.Errorf("%w: bin %d recorded no frames", resonator.ErrInvalidState, i)
	}

	p := last.Power[0]
	if r.mode == ModeBankSum {
		p = floats.Sum(last.Power)
	}

	if !(p > 0) || !core.IsFinite(p) {
		return fmt.Errorf("%w: bin %d (%.3f Hz) has no steady-state power: %v",
			resonator.ErrInvalidParameter, i, r.freqs[i], p)
	}

	r.samples[i] = n
	r.powers[i] = p
	r.gains[i] = TargetPower / math.Sqrt(p)

	return nil
}

// NumBins returns the number of calibrated bins.
func (r *Result) NumBins() int { return len(r.freqs) }

// SampleRate returns the rate the sweep ran at.
func (r *Result) SampleRate() float64 { return r.sampleRate }

// Mode returns the read-out the sweep used.
func (r *Result) Mode() Mode { return r.mode }

// Frequencies returns a copy of the swept frequencies.
func (r *Result) Frequencies() []float64 { return append([]float64(nil), r.freqs...) }

// Gains returns a copy of the per-bin gains.
func (r *Result) Gains() []float64 { return append([]float64(nil), r.gains...) }

// Powers returns a copy of the raw steady-state powers.
func (r *Result) Powers() []float64 { return append([]float64(nil), r.powers...) }

// Samples returns a copy of the per-bin sweep lengths.
func (r *Result) Samples() []int { return append([]int(nil), r.samples...) }

// Gain returns the gain of bin i.
func (r *Result) Gain(i int) float64 { return r.gains[i] }

// Power maps a raw power p of bin i to its calibrated power g_i*sqrt(p).
func (r *Result) Power(i int, p float64) float64 {
	if p <= 0 {
		return 0
	}

	return r.gains[i] * math.Sqrt(p)
}

// Amplitude maps a raw power p of bin i to sqrt of its calibrated power.
func (r *Result) Amplitude(i int, p float64) float64 {
	return math.Sqrt(r.Power(i, p))
}

// CalibratedPowers writes g_i*amplitudes[i] into dst, where amplitudes are
// square roots of raw powers. Both slices must have NumBins entries.
func (r *Result) CalibratedPowers(dst, amplitudes []float64) error {
	if len(dst) != len(r.gains) || len(amplitudes) != len(r.gains) {
		return fmt.Errorf("%w: calibrating %d/%d values for %d bins",
			resonator.ErrInvalidState, len(dst), len(amplitudes), len(r.gains))
	}

	vecmath.MulBlock(dst, amplitudes, r.gains)

	return nil
}

// CalibrateFrame replaces each raw power in powers by its calibrated power.
func (r *Result) CalibrateFrame(powers []float64) error {
	if len(powers) != len(r.gains) {
		return fmt.Errorf("%w: frame has %d powers for %d bins", resonator.ErrInvalidState, len(powers), len(r.gains))
	}

	for i, p := range powers {
		powers[i] = math.Sqrt(max(p, 0))
	}

	vecmath.MulBlockInPlace(powers, r.gains)

	return nil
}

// Summary returns mean and standard deviation of the raw powers and gains.
func (r *Result) Summary() Summary {
	s := Summary{Bins: len(r.gains)}
	if s.Bins == 0 {
		return s
	}

	s.MeanPower, s.StdPower = stat.MeanStdDev(r.powers, nil)
	s.MeanGain, s.StdGain = stat.MeanStdDev(r.gains, nil)
	s.MinGainBin = floats.MinIdx(r.gains)
	s.MaxGainBin = floats.MaxIdx(r.gains)

	if s.Bins == 1 {
		s.StdPower, s.StdGain = 0, 0
	}

	return s
}
