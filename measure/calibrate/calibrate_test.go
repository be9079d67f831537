package calibrate

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cwbudde/algo-nofft/dsp/resonator"
	"github.com/cwbudde/algo-nofft/internal/testutil"
	"github.com/cwbudde/algo-nofft/logging"
)

const testRate = 8000.0

func testBins(t *testing.T) ([]float64, []float64) {
	t.Helper()

	freqs := []float64{200, 2000}

	alphas, err := resonator.Alphas(freqs, testRate, 1)
	if err != nil {
		t.Fatalf("Alphas: %v", err)
	}

	return freqs, alphas
}

func TestSweep_MatchedToneReadsTarget(t *testing.T) {
	freqs, alphas := testBins(t)

	res, err := Sweep(context.Background(), freqs, alphas, testRate)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if res.NumBins() != 2 || res.Mode() != ModeOwnBin || res.SampleRate() != testRate {
		t.Fatalf("unexpected result shape: bins=%d mode=%v rate=%v", res.NumBins(), res.Mode(), res.SampleRate())
	}

	for i, p := range res.Powers() {
		testutil.RequireNear(t, "raw power", p, 0.25, 0.01)
		testutil.RequireNear(t, "gain", res.Gain(i), 0.5, 0.01)
		testutil.RequireNear(t, "calibrated power", res.Power(i, p), TargetPower, 1e-12)
		testutil.RequireNear(t, "calibrated amplitude", res.Amplitude(i, p), 0.5, 1e-12)
	}

	for i, n := range res.Samples() {
		if want := SweepSamples(alphas[i], testRate, DefaultDurationFactor); n != want {
			t.Fatalf("samples[%d] = %d, want %d", i, n, want)
		}
	}
}

// A longer independent run of the same tone must also calibrate to 0.25.
func TestSweep_GainsApplyToLongerRuns(t *testing.T) {
	freqs, alphas := testBins(t)

	res, err := Sweep(context.Background(), freqs, alphas, testRate, WithWorkers(1))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	for i, f := range freqs {
		s, err := Response(f, freqs, alphas, nil, testRate, 1)
		if err != nil {
			t.Fatalf("Response: %v", err)
		}

		last, _ := s.Last()
		testutil.RequireNear(t, "calibrated power", res.Power(i, last.Power[i]), TargetPower, 0.005)
	}
}

func TestSweep_BankSumIncludesLeakage(t *testing.T) {
	freqs, alphas := testBins(t)

	own, err := Sweep(context.Background(), freqs, alphas, testRate)
	if err != nil {
		t.Fatalf("Sweep(own): %v", err)
	}

	sum, err := Sweep(context.Background(), freqs, alphas, testRate, WithMode(ModeBankSum))
	if err != nil {
		t.Fatalf("Sweep(sum): %v", err)
	}

	for i := range freqs {
		if sum.Powers()[i] <= own.Powers()[i] {
			t.Fatalf("bin %d: bank sum %v not above own power %v", i, sum.Powers()[i], own.Powers()[i])
		}

		if sum.Gain(i) >= own.Gain(i) {
			t.Fatalf("bin %d: bank-sum gain %v not below own gain %v", i, sum.Gain(i), own.Gain(i))
		}
	}
}

func TestSweep_WorkersDoNotChangeResult(t *testing.T) {
	freqs := resonator.LogFrequencies(100, 9, 3)

	alphas, err := resonator.Alphas(freqs, testRate, 1)
	if err != nil {
		t.Fatalf("Alphas: %v", err)
	}

	serial, err := Sweep(context.Background(), freqs, alphas, testRate, WithWorkers(1))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	parallel, err := Sweep(context.Background(), freqs, alphas, testRate, WithWorkers(4))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, parallel.Gains(), serial.Gains(), 0)
}

func TestSweep_Betas(t *testing.T) {
	freqs, alphas := testBins(t)

	res, err := Sweep(context.Background(), freqs, alphas, testRate, WithBetas([]float64{0.5, 0.5}))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	for _, p := range res.Powers() {
		testutil.RequireNear(t, "raw power", p, 0.25, 0.05)
	}

	if _, err := Sweep(context.Background(), freqs, alphas, testRate, WithBetas([]float64{0.5})); !errors.Is(err, resonator.ErrInvalidParameter) {
		t.Fatalf("short betas error = %v, want ErrInvalidParameter", err)
	}
}

func TestSweep_Errors(t *testing.T) {
	freqs, alphas := testBins(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		freqs  []float64
		alphas []float64
		rate   float64
		opts   []Option
	}{
		{"duration factor", freqs, alphas, testRate, []Option{WithDurationFactor(0)}},
		{"nan duration factor", freqs, alphas, testRate, []Option{WithDurationFactor(math.NaN())}},
		{"mode", freqs, alphas, testRate, []Option{WithMode(Mode(7))}},
		{"lengths", freqs, alphas[:1], testRate, nil},
		{"empty", nil, nil, testRate, nil},
		{"rate", freqs, alphas, 0, nil},
		{"alpha", freqs, []float64{0.1, 1.5}, testRate, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Sweep(ctx, tt.freqs, tt.alphas, tt.rate, tt.opts...); !errors.Is(err, resonator.ErrInvalidParameter) {
				t.Fatalf("error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestSweep_Cancelled(t *testing.T) {
	freqs, alphas := testBins(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Sweep(ctx, freqs, alphas, testRate); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestSweep_Logs(t *testing.T) {
	freqs, alphas := testBins(t)

	var out bytes.Buffer

	logger := logging.NewWriterLogger(&out, &out, 0)
	logger.SetLevel(logging.DebugLevel)

	if _, err := Sweep(context.Background(), freqs, alphas, testRate, WithLogger(logger), WithWorkers(1)); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	text := out.String()
	if got := strings.Count(text, "[DEBUG] swept bin"); got != 2 {
		t.Fatalf("debug records = %d, want 2:\n%s", got, text)
	}

	if !strings.Contains(text, "[INFO] calibration sweep done bins=2") {
		t.Fatalf("missing summary record:\n%s", text)
	}
}

func TestResult_FrameCalibration(t *testing.T) {
	freqs, alphas := testBins(t)

	res, err := Sweep(context.Background(), freqs, alphas, testRate)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	powers := res.Powers()

	amps := []float64{math.Sqrt(powers[0]), math.Sqrt(powers[1])}
	dst := make([]float64, 2)

	if err := res.CalibratedPowers(dst, amps); err != nil {
		t.Fatalf("CalibratedPowers: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, dst, []float64{0.25, 0.25}, 1e-12)

	if err := res.CalibrateFrame(powers); err != nil {
		t.Fatalf("CalibrateFrame: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, powers, []float64{0.25, 0.25}, 1e-12)

	if err := res.CalibratedPowers(dst[:1], amps); !errors.Is(err, resonator.ErrInvalidState) {
		t.Fatalf("short dst error = %v, want ErrInvalidState", err)
	}

	if err := res.CalibrateFrame(make([]float64, 3)); !errors.Is(err, resonator.ErrInvalidState) {
		t.Fatalf("long frame error = %v, want ErrInvalidState", err)
	}

	if res.Power(0, 0) != 0 || res.Power(0, -1) != 0 {
		t.Fatal("non-positive raw power should calibrate to 0")
	}
}

func TestResult_Summary(t *testing.T) {
	freqs, alphas := testBins(t)

	res, err := Sweep(context.Background(), freqs, alphas, testRate)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	s := res.Summary()
	if s.Bins != 2 {
		t.Fatalf("Bins = %d, want 2", s.Bins)
	}

	testutil.RequireNear(t, "mean gain", s.MeanGain, 0.5, 0.01)
	testutil.RequireNear(t, "mean power", s.MeanPower, 0.25, 0.01)
	testutil.RequireFinite(t, []float64{s.StdGain, s.StdPower})

	g := res.Gains()
	if g[s.MaxGainBin] < g[s.MinGainBin] {
		t.Fatalf("max gain bin %d below min gain bin %d", s.MaxGainBin, s.MinGainBin)
	}

	one, err := Sweep(context.Background(), freqs[:1], alphas[:1], testRate)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if s := one.Summary(); s.StdGain != 0 || s.StdPower != 0 {
		t.Fatalf("single-bin spread = %v/%v, want 0", s.StdPower, s.StdGain)
	}
}

func TestSweepSamples(t *testing.T) {
	const fs = 1000.0

	alpha := 1 - math.Exp(-1/(0.01*fs)) // tau = 10 ms

	if got := SweepSamples(alpha, fs, 10.25); got != 103 {
		t.Fatalf("SweepSamples = %d, want 103", got)
	}

	if got := SweepSamples(1, fs, 40); got != 2 {
		t.Fatalf("SweepSamples(alpha=1) = %d, want 2", got)
	}
}

func TestModeParsing(t *testing.T) {
	for _, m := range []Mode{ModeOwnBin, ModeBankSum} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}

	if _, err := ParseMode("loud"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
