// Package frequency computes shape statistics of a magnitude spectrum
// sampled on an arbitrary, increasing frequency grid such as the
// log-spaced bins of a resonator bank.
package frequency

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-nofft/dsp/core"
)

// Stats holds statistics of a magnitude spectrum.
type Stats struct {
	BinCount   int
	Sum        float64 // sum of magnitudes
	Max        float64
	MaxBin     int
	Max_dB     float64
	PeakFreq   float64 // frequency of MaxBin (Hz)
	Min        float64
	MinBin     int
	Average    float64
	Average_dB float64
	Energy     float64 // sum of squared magnitudes
	Power      float64
	// Spectral shape descriptors
	Centroid  float64 // magnitude-weighted mean frequency (Hz)
	Spread    float64 // magnitude-weighted standard deviation (Hz)
	Flatness  float64 // geometric over arithmetic mean, 0..1
	Rolloff   float64 // frequency below which 85% of the energy lies (Hz)
	Bandwidth float64 // 3 dB bandwidth around the peak (Hz)
}

// DefaultRolloff is the energy fraction used for [Stats.Rolloff].
const DefaultRolloff = 0.85

// Calculate computes all statistics. freqs must be strictly increasing and
// as long as magnitude; magnitudes are linear, not dB.
func Calculate(freqs, magnitude []float64) (Stats, error) {
	if err := checkGrid(freqs, magnitude); err != nil {
		return Stats{}, err
	}

	n := len(magnitude)
	if n == 0 {
		return Stats{Max_dB: math.Inf(-1), Average_dB: math.Inf(-1)}, nil
	}

	var s Stats
	s.BinCount = n
	s.Sum = floats.Sum(magnitude)
	s.Energy = floats.Dot(magnitude, magnitude)
	s.MaxBin = floats.MaxIdx(magnitude)
	s.Max = magnitude[s.MaxBin]
	s.Max_dB = core.LinearToDB(s.Max)
	s.PeakFreq = freqs[s.MaxBin]
	s.MinBin = floats.MinIdx(magnitude)
	s.Min = magnitude[s.MinBin]
	s.Average = s.Sum / float64(n)
	s.Average_dB = core.LinearToDB(s.Average)
	s.Power = s.Energy / float64(n)

	s.Centroid, s.Spread = centroidSpread(freqs, magnitude, s.Sum)
	s.Flatness = flatness(magnitude)
	s.Rolloff = rolloff(freqs, magnitude, DefaultRolloff, s.Energy)
	s.Bandwidth = bandwidth(freqs, magnitude, s.MaxBin)

	return s, nil
}

// FromPowers converts bank powers to magnitudes (square roots) and
// delegates to [Calculate].
func FromPowers(freqs, powers []float64) (Stats, error) {
	mag := make([]float64, len(powers))
	for i, p := range powers {
		mag[i] = math.Sqrt(max(p, 0))
	}

	return Calculate(freqs, mag)
}

func checkGrid(freqs, magnitude []float64) error {
	if len(freqs) != len(magnitude) {
		return fmt.Errorf("frequency: %d frequencies for %d magnitudes", len(freqs), len(magnitude))
	}

	for i := 1; i < len(freqs); i++ {
		if !(freqs[i] > freqs[i-1]) {
			return fmt.Errorf("frequency: grid not increasing at %d: %v <= %v", i, freqs[i], freqs[i-1])
		}
	}

	return nil
}

// Centroid returns the magnitude-weighted mean frequency in Hz, or 0 for an
// empty or silent spectrum.
//
//	centroid = sum(f_i * |X_i|) / sum(|X_i|)
func Centroid(freqs, magnitude []float64) float64 {
	if len(freqs) != len(magnitude) {
		return 0
	}

	c, _ := centroidSpread(freqs, magnitude, floats.Sum(magnitude))

	return c
}

func centroidSpread(freqs, magnitude []float64, sumMag float64) (float64, float64) {
	if len(magnitude) == 0 || sumMag == 0 {
		return 0, 0
	}

	c := stat.Mean(freqs, magnitude)

	v := 0.0
	for i, m := range magnitude {
		d := freqs[i] - c
		v += m * d * d
	}

	v /= sumMag

	return c, math.Sqrt(v)
}

// Flatness returns the spectral flatness (Wiener entropy) of magnitude:
//
//	flatness = exp(mean(log(|X_i|))) / mean(|X_i|)
//
// Any zero bin makes the geometric mean, and so the flatness, zero.
func Flatness(magnitude []float64) float64 {
	return flatness(magnitude)
}

func flatness(magnitude []float64) float64 {
	if len(magnitude) == 0 {
		return 0
	}

	meanLin := stat.Mean(magnitude, nil)
	if meanLin <= 0 {
		return 0
	}

	sumLog := 0.0

	for _, v := range magnitude {
		if v <= 0 {
			return 0
		}

		sumLog += math.Log(v)
	}

	return math.Exp(sumLog/float64(len(magnitude))) / meanLin
}

// Rolloff returns the lowest grid frequency below which the fraction
// percent (0..1) of the energy lies.
func Rolloff(freqs, magnitude []float64, percent float64) float64 {
	if len(freqs) != len(magnitude) {
		return 0
	}

	return rolloff(freqs, magnitude, percent, floats.Dot(magnitude, magnitude))
}

func rolloff(freqs, magnitude []float64, percent, totalEnergy float64) float64 {
	n := len(magnitude)
	if n == 0 || totalEnergy == 0 {
		return 0
	}

	threshold := percent * totalEnergy
	cumEnergy := 0.0

	for i, v := range magnitude {
		cumEnergy += v * v
		if cumEnergy >= threshold {
			return freqs[i]
		}
	}

	return freqs[n-1]
}

// Bandwidth returns the 3 dB bandwidth around the peak in Hz. The -3 dB
// crossings are interpolated linearly in frequency between grid points;
// a side that never drops below the threshold ends at the grid edge.
func Bandwidth(freqs, magnitude []float64) float64 {
	if len(magnitude) == 0 || len(freqs) != len(magnitude) {
		return 0
	}

	return bandwidth(freqs, magnitude, floats.MaxIdx(magnitude))
}

func bandwidth(freqs, magnitude []float64, peakBin int) float64 {
	n := len(magnitude)
	if n < 2 {
		return 0
	}

	peakVal := magnitude[peakBin]
	if peakVal <= 0 {
		return 0
	}

	threshold := peakVal / math.Sqrt2

	lowerFreq := freqs[0]
	for i := peakBin; i >= 1; i-- {
		if magnitude[i-1] <= threshold && magnitude[i] > threshold {
			lowerFreq = interpFreq(freqs[i-1], freqs[i], magnitude[i-1], magnitude[i], threshold)
			break
		}
	}

	upperFreq := freqs[n-1]
	for i := peakBin; i < n-1; i++ {
		if magnitude[i+1] <= threshold && magnitude[i] > threshold {
			upperFreq = interpFreq(freqs[i], freqs[i+1], magnitude[i], magnitude[i+1], threshold)
			break
		}
	}

	return max(upperFreq-lowerFreq, 0)
}

// interpFreq finds the frequency between fLow and fHigh where the magnitude
// crosses threshold.
func interpFreq(fLow, fHigh, magLow, magHigh, threshold float64) float64 {
	denom := magHigh - magLow
	if denom == 0 {
		return (fLow + fHigh) / 2
	}

	t := (threshold - magLow) / denom

	return fLow + t*(fHigh-fLow)
}
