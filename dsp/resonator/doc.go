// Package resonator implements a streaming resonator bank that estimates
// the instantaneous power and phase of a signal at a set of target
// frequencies without a windowed Fourier transform.
//
// Each bin correlates the input with a unit phasor rotating at the bin's
// frequency and smooths the result with an exponential moving average:
//
//	phi = -2*pi*f*n/fs
//	c   = (1-alpha)*c + alpha*x*cos(phi)
//	s   = (1-alpha)*s + alpha*x*sin(phi)
//	p   = (1-beta)*p  + beta*(c^2 + s^2)
//	th  = atan2(s, c)
//
// The phasor angle is recomputed from the absolute sample index on every
// step. It is never accumulated incrementally, so long runs do not drift.
// Sample index 0 produces all-zero output by definition.
//
// A unit-amplitude cosine at a bin's frequency drives that bin's power to
// 0.25 (amplitude 0.5) once the accumulators settle, which is the reference
// level used by the calibration sweep in measure/calibrate.
//
// Basic usage:
//
//	freqs := resonator.LogFrequencies(32.7, 84, 12)
//	alphas, _ := resonator.Alphas(freqs, 22050, 1)
//	b, _ := resonator.New(freqs, alphas, alphas, 22050)
//	for _, x := range samples {
//	    frame := b.ProcessSample(x)
//	    _ = frame.Power
//	}
//
// Bins are independent given the shared clock, so [WithWorkers] partitions
// them across goroutines inside [Bank.ProcessBlock]. A Bank is not safe for
// concurrent use by multiple callers.
package resonator
