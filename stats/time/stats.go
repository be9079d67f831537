// Package time computes level statistics of a sampled signal, used to put
// resonator bank readings into context.
package time

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-nofft/dsp/core"
)

// Stats holds time-domain signal statistics.
//
//nolint:revive
type Stats struct {
	Length         int
	DC             float64 // mean
	RMS            float64
	RMS_dB         float64
	Max            float64
	MaxPos         int
	Min            float64
	MinPos         int
	Peak           float64 // max(|max|, |min|)
	Peak_dB        float64
	CrestFactor    float64 // peak / RMS (linear)
	CrestFactor_dB float64
	Energy         float64 // sum of squares
	Power          float64 // energy / length
	ZeroCrossings  int
	StdDev         float64
	// TonePower is what a matched resonator bin reads for a pure tone of
	// this RMS: (amplitude/2)^2 = RMS^2/2.
	TonePower float64
}

func emptyStats() Stats {
	return Stats{
		RMS_dB:         math.Inf(-1),
		Peak_dB:        math.Inf(-1),
		CrestFactor_dB: math.Inf(-1),
	}
}

// Calculate computes all statistics of signal.
func Calculate(signal []float64) Stats {
	n := len(signal)
	if n == 0 {
		return emptyStats()
	}

	s := Stats{Length: n}
	s.DC = stat.Mean(signal, nil)
	s.Energy = floats.Dot(signal, signal)
	s.Power = s.Energy / float64(n)
	s.RMS = math.Sqrt(s.Power)
	s.RMS_dB = core.LinearToDB(s.RMS)
	s.MaxPos = floats.MaxIdx(signal)
	s.Max = signal[s.MaxPos]
	s.MinPos = floats.MinIdx(signal)
	s.Min = signal[s.MinPos]
	s.Peak = math.Max(math.Abs(s.Max), math.Abs(s.Min))
	s.Peak_dB = core.LinearToDB(s.Peak)
	s.ZeroCrossings = ZeroCrossings(signal)
	s.TonePower = s.Power / 2

	if n > 1 {
		s.StdDev = stat.PopStdDev(signal, nil)
	}

	if s.RMS > 0 {
		s.CrestFactor = s.Peak / s.RMS
		s.CrestFactor_dB = core.LinearToDB(s.CrestFactor)
	} else {
		s.CrestFactor_dB = math.Inf(-1)
	}

	return s
}

// RMS returns the root-mean-square of the signal.
func RMS(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}

	return floats.Norm(signal, 2) / math.Sqrt(float64(len(signal)))
}

// Peak returns the peak absolute amplitude of the signal.
func Peak(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}

	return math.Max(math.Abs(floats.Max(signal)), math.Abs(floats.Min(signal)))
}

// ZeroCrossings returns the number of sign changes between consecutive
// samples.
func ZeroCrossings(signal []float64) int {
	var count int

	for i := 1; i < len(signal); i++ {
		if signal[i-1]*signal[i] < 0 {
			count++
		}
	}

	return count
}
