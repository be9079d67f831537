// Package spectrum provides the spectrum-domain helpers shared by the
// resonator bank and its reference estimators.
//
// Power, magnitude and phase are computed from split real/imaginary slices
// so the resonator bank can hand over its in-phase and quadrature
// accumulators without packing them into complex values. The SIMD paths
// come from algo-vecmath.
//
// Two block estimators are provided for cross-checking streaming output:
//
//   - [TonePower] evaluates a single frequency with the Goertzel recurrence.
//   - [Reference] evaluates a set of frequencies from one Hann-windowed FFT.
//
// Both are normalised to the resonator convention: a unit-amplitude cosine
// at the analysed frequency reads 0.25 (amplitude 0.5).
package spectrum
