package time

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-nofft/internal/testutil"
)

func TestCalculate_UnitCosine(t *testing.T) {
	// 100 Hz at 8 kHz: 80 samples per cycle, 50 whole cycles.
	s := Calculate(testutil.DeterministicCosine(100, 8000, 1, 4000))

	testutil.RequireNear(t, "dc", s.DC, 0, 1e-12)
	testutil.RequireNear(t, "rms", s.RMS, 1/math.Sqrt2, 1e-12)
	testutil.RequireNear(t, "peak", s.Peak, 1, 1e-12)
	testutil.RequireNear(t, "crest", s.CrestFactor, math.Sqrt2, 1e-12)
	testutil.RequireNear(t, "crest dB", s.CrestFactor_dB, 20*math.Log10(math.Sqrt2), 1e-9)
	testutil.RequireNear(t, "tone power", s.TonePower, 0.25, 1e-12)
	testutil.RequireNear(t, "std", s.StdDev, 1/math.Sqrt2, 1e-12)

	if s.MaxPos != 0 || s.Max != 1 {
		t.Fatalf("max = %v at %d, want 1 at 0", s.Max, s.MaxPos)
	}

	// Two crossings per cycle.
	if s.ZeroCrossings != 100 {
		t.Fatalf("zero crossings = %d, want 100", s.ZeroCrossings)
	}
}

func TestCalculate_Empty(t *testing.T) {
	s := Calculate(nil)
	if s.Length != 0 || !math.IsInf(s.RMS_dB, -1) || !math.IsInf(s.Peak_dB, -1) {
		t.Fatalf("empty stats = %+v", s)
	}
}

func TestCalculate_Silence(t *testing.T) {
	s := Calculate(make([]float64, 16))
	if s.RMS != 0 || s.CrestFactor != 0 || !math.IsInf(s.CrestFactor_dB, -1) {
		t.Fatalf("silence stats = %+v", s)
	}
}

func TestHelpers(t *testing.T) {
	x := []float64{3, -4, 0, 0}

	testutil.RequireNear(t, "rms", RMS(x), 2.5, 1e-12)
	testutil.RequireNear(t, "peak", Peak(x), 4, 0)

	if ZeroCrossings(x) != 1 {
		t.Fatalf("zero crossings = %d, want 1", ZeroCrossings(x))
	}

	if RMS(nil) != 0 || Peak(nil) != 0 || ZeroCrossings(nil) != 0 {
		t.Fatal("empty helpers should return 0")
	}
}
