package resonator

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-nofft/internal/testutil"
)

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	freqs := []float64{100, 200}
	ok := []float64{0.1, 1}

	tests := []struct {
		name   string
		freqs  []float64
		alphas []float64
		betas  []float64
		sr     float64
	}{
		{name: "zero sample rate", freqs: freqs, alphas: ok, betas: ok, sr: 0},
		{name: "negative sample rate", freqs: freqs, alphas: ok, betas: ok, sr: -8000},
		{name: "NaN sample rate", freqs: freqs, alphas: ok, betas: ok, sr: math.NaN()},
		{name: "no frequencies", freqs: nil, alphas: nil, betas: nil, sr: 1000},
		{name: "negative frequency", freqs: []float64{100, -1}, alphas: ok, betas: ok, sr: 1000},
		{name: "infinite frequency", freqs: []float64{100, math.Inf(1)}, alphas: ok, betas: ok, sr: 1000},
		{name: "alpha zero", freqs: freqs, alphas: []float64{0, 0.5}, betas: ok, sr: 1000},
		{name: "alpha above one", freqs: freqs, alphas: []float64{0.5, 1.5}, betas: ok, sr: 1000},
		{name: "beta NaN", freqs: freqs, alphas: ok, betas: []float64{math.NaN(), 0.5}, sr: 1000},
		{name: "beta negative", freqs: freqs, alphas: ok, betas: []float64{0.5, -0.1}, sr: 1000},
		{name: "alpha length", freqs: freqs, alphas: []float64{0.1}, betas: ok, sr: 1000},
		{name: "beta length", freqs: freqs, alphas: ok, betas: []float64{0.1, 0.1, 0.1}, sr: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.freqs, tt.alphas, tt.betas, tt.sr)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("New() error = %v, want ErrInvalidParameter", err)
			}
			if b != nil {
				t.Fatal("New() returned a bank alongside an error")
			}
		})
	}
}

func TestNew_CopiesInputs(t *testing.T) {
	freqs := []float64{100, 200}
	alphas := []float64{0.1, 0.2}

	b, err := NewEqualRates(freqs, alphas, 1000)
	if err != nil {
		t.Fatalf("NewEqualRates: %v", err)
	}

	freqs[0] = 999
	alphas[0] = 0.9

	if b.Frequencies()[0] != 100 || b.Alphas()[0] != 0.1 || b.Betas()[0] != 0.1 {
		t.Fatal("bank shares caller slices")
	}

	if b.NumBins() != 2 || b.SampleRate() != 1000 || b.Index() != 0 {
		t.Fatalf("unexpected bank shape: bins=%d sr=%v index=%d", b.NumBins(), b.SampleRate(), b.Index())
	}
}

func TestProcessSample_IndexZeroIsZero(t *testing.T) {
	b, err := New([]float64{100, 250, 400}, []float64{0.1, 0.5, 1}, []float64{0.2, 1, 0.7}, 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frame := b.ProcessSample(1)
	if frame.Index != 0 {
		t.Fatalf("Index = %d, want 0", frame.Index)
	}

	for i := range frame.Power {
		if frame.Power[i] != 0 || frame.Phase[i] != 0 || frame.Re[i] != 0 || frame.Im[i] != 0 {
			t.Fatalf("bin %d not zero at index 0: p=%v th=%v c=%v s=%v",
				i, frame.Power[i], frame.Phase[i], frame.Re[i], frame.Im[i])
		}
	}

	frame = b.ProcessSample(1)
	if frame.Index != 1 {
		t.Fatalf("Index = %d, want 1", frame.Index)
	}

	if frame.Power[0] <= 0 {
		t.Fatalf("power after index 1 = %v, want > 0", frame.Power[0])
	}
}

func TestProcessSample_AlphaOneHasNoMemory(t *testing.T) {
	const fs = 1000.0

	b, err := New([]float64{100}, []float64{1}, []float64{1}, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	b.ProcessSample(0.3)

	frame := b.ProcessSample(0.7)
	phi := PhasorAngle(100, 1, fs)
	testutil.RequireNear(t, "c", frame.Re[0], 0.7*math.Cos(phi), 1e-15)
	testutil.RequireNear(t, "s", frame.Im[0], 0.7*math.Sin(phi), 1e-15)
	testutil.RequireNear(t, "p", frame.Power[0], 0.49, 1e-15)
}

func TestZeroInputIsAbsorbing(t *testing.T) {
	b, err := New([]float64{50, 100, 300}, fill(3, 0.05), fill(3, 0.3), 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for range 1000 {
		frame := b.ProcessSample(0)
		for i := range frame.Power {
			if frame.Power[i] != 0 || frame.Re[i] != 0 || frame.Im[i] != 0 || frame.Phase[i] != 0 {
				t.Fatalf("index %d bin %d left the zero state", frame.Index, i)
			}
		}
	}
}

func TestZeroInputDecaysToZero(t *testing.T) {
	const fs = 1000.0

	tone := testutil.DeterministicCosine(100, fs, 1, 500)
	silence := make([]float64, 8000)

	b, err := New([]float64{100, 130}, fill(2, 0.1), fill(2, 0.1), fs, WithDenormalFlush(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := b.ProcessBlock(tone); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	if b.Powers()[0] < 0.1 {
		t.Fatalf("tone did not excite the bin: %v", b.Powers()[0])
	}

	if _, err := b.ProcessBlock(silence); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	for i, p := range b.Powers() {
		if p != 0 {
			t.Fatalf("bin %d power = %v after silence, want 0", i, p)
		}
	}

	for i, a := range b.Amplitudes() {
		if a != 0 {
			t.Fatalf("bin %d amplitude = %v after silence, want 0", i, a)
		}
	}
}

// Sample rate 1 kHz, one 100 Hz bin, alpha = beta = 0.1, 2000 samples of a
// matched cosine.
func TestMatchedCosine_ReferenceScenario(t *testing.T) {
	const fs = 1000.0

	b, err := New([]float64{100}, []float64{0.1}, []float64{0.1}, fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var frame Frame
	for _, x := range testutil.DeterministicCosine(100, fs, 1, 2000) {
		frame = b.ProcessSample(x)
	}

	testutil.RequireNear(t, "power", frame.Power[0], 0.25, 0.01)
	testutil.RequireNear(t, "phase", frame.Phase[0], 0, 0.1)
}

func TestMatchedCosine_Converges(t *testing.T) {
	const fs = 1000.0

	for _, f := range []float64{50, 100, 200} {
		b, err := NewEqualRates([]float64{f}, []float64{0.01}, fs)
		if err != nil {
			t.Fatalf("NewEqualRates: %v", err)
		}

		// tau is 100 samples; run 50 of them.
		if _, err := b.ProcessBlock(testutil.DeterministicCosine(f, fs, 1, 5000)); err != nil {
			t.Fatalf("ProcessBlock: %v", err)
		}

		p := b.Powers()[0]
		testutil.RequireNear(t, "power", p, 0.25, 1e-3)
		testutil.RequireNear(t, "sqrt(power)", math.Sqrt(p), 0.5, 1e-3)
		testutil.RequireNear(t, "amplitude", b.Amplitudes()[0], 0.5, 0.02)
	}
}

func TestDetunedBinsAttenuate(t *testing.T) {
	const fs = 1000.0

	freqs := []float64{100, 105, 120, 200}

	b, err := NewEqualRates(freqs, fill(len(freqs), 0.01), fs)
	if err != nil {
		t.Fatalf("NewEqualRates: %v", err)
	}

	if _, err := b.ProcessBlock(testutil.DeterministicCosine(100, fs, 1, 5000)); err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}

	p := b.Powers()
	testutil.RequireNear(t, "matched power", p[0], 0.25, 1e-3)

	for i := 1; i < len(p); i++ {
		if p[i] >= p[i-1] {
			t.Fatalf("power not falling with detuning: %.0f Hz=%v, %.0f Hz=%v",
				freqs[i-1], p[i-1], freqs[i], p[i])
		}
	}

	if p[3] > 0.01*p[0] {
		t.Fatalf("far bin power %v not attenuated relative to %v", p[3], p[0])
	}
}

func TestAccumulatorsBoundedByInput(t *testing.T) {
	const fs = 8000.0

	freqs := LogFrequencies(55, 24, 6)

	alphas, err := Alphas(freqs, fs, 1)
	if err != nil {
		t.Fatalf("Alphas: %v", err)
	}

	b, err := New(freqs, alphas, fill(len(freqs), 0.5), fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	noise := testutil.DeterministicNoise(7, 1, 4000)

	for _, x := range noise {
		frame := b.ProcessSample(x)
		for i := range frame.Power {
			if frame.Power[i] < 0 || frame.Power[i] > 1 {
				t.Fatalf("index %d bin %d power %v outside [0, 1]", frame.Index, i, frame.Power[i])
			}

			if math.Abs(frame.Re[i]) > 1 || math.Abs(frame.Im[i]) > 1 {
				t.Fatalf("index %d bin %d accumulator exceeds input range", frame.Index, i)
			}

			if frame.Phase[i] <= -math.Pi || frame.Phase[i] > math.Pi {
				t.Fatalf("index %d bin %d phase %v outside (-pi, pi]", frame.Index, i, frame.Phase[i])
			}
		}
	}
}

func TestPhaseRange_DecayToZero(t *testing.T) {
	const fs = 1000.0

	freqs := LogFrequencies(30, 60, 12)
	b, err := NewEqualRates(freqs, fill(len(freqs), 0.5), fs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A short burst, then enough silence for the accumulators to underflow
	// to signed zeros.
	input := append(testutil.DeterministicNoise(11, 1, 7), make([]float64, 3000)...)

	for _, x := range input {
		frame := b.ProcessSample(x)
		for i, ph := range frame.Phase {
			if ph <= -math.Pi || ph > math.Pi {
				t.Fatalf("index %d bin %d phase %v outside (-pi, pi] (re %v, im %v)",
					frame.Index, i, ph, frame.Re[i], frame.Im[i])
			}
		}
	}

	for i, v := range b.Phases() {
		if v <= -math.Pi || v > math.Pi {
			t.Fatalf("bin %d final phase %v outside (-pi, pi]", i, v)
		}
	}
}

func TestDeterministic(t *testing.T) {
	const fs = 4000.0

	freqs := []float64{110, 220, 440, 880}
	noise := testutil.DeterministicNoise(3, 0.8, 3000)

	run := func() *Series {
		s, err := Resonate(noise, fs, freqs, fill(4, 0.02), fill(4, 0.05), 1)
		if err != nil {
			t.Fatalf("Resonate: %v", err)
		}
		return s
	}

	a, b := run(), run()
	for f := range a.Len() {
		testutil.RequireSliceNearlyEqual(t, a.Power[f], b.Power[f], 0)
		testutil.RequireSliceNearlyEqual(t, a.Phase[f], b.Phase[f], 0)
	}
}

func TestProcessSampleInto(t *testing.T) {
	b, err := NewEqualRates([]float64{100, 200}, fill(2, 0.1), 1000)
	if err != nil {
		t.Fatalf("NewEqualRates: %v", err)
	}

	power := make([]float64, 2)
	phase := make([]float64, 2)

	if err := b.ProcessSampleInto(1, power, phase); err != nil {
		t.Fatalf("ProcessSampleInto: %v", err)
	}

	if err := b.ProcessSampleInto(1, power, nil); err != nil {
		t.Fatalf("ProcessSampleInto with nil phase: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, power, b.Powers(), 0)

	err = b.ProcessSampleInto(1, make([]float64, 3), phase)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error = %v, want ErrInvalidState", err)
	}

	if b.Index() != 2 {
		t.Fatalf("Index = %d after rejected call, want 2", b.Index())
	}
}

func TestComplexMatchesAccumulators(t *testing.T) {
	b, err := NewEqualRates([]float64{100, 200}, fill(2, 0.2), 1000)
	if err != nil {
		t.Fatalf("NewEqualRates: %v", err)
	}

	var frame Frame
	for _, x := range testutil.DeterministicCosine(100, 1000, 1, 64) {
		frame = b.ProcessSample(x)
	}

	for i, z := range b.Complex() {
		if real(z) != frame.Re[i] || imag(z) != frame.Im[i] {
			t.Fatalf("bin %d: Complex() = %v, want %v%+vi", i, z, frame.Re[i], frame.Im[i])
		}
	}
}
