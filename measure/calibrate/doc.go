// Package calibrate measures how a resonator bank responds to a unit tone at
// each of its own frequencies and turns the measurement into per-bin gains.
//
// For every frequency f_i a fresh bank is driven by cos(2*pi*f_i*n/fs) for
// a fixed number of time constants. The steady-state power P_i read from
// the last sample gives the gain
//
//	g_i = 0.25 / sqrt(P_i)
//
// and [Result.Power] maps a raw bin power p to g_i*sqrt(p), so a matched
// unit cosine reads 0.25 (amplitude 0.5) in every bin regardless of its
// smoothing coefficients.
//
// Sweeps are independent and run on a bounded pool of goroutines.
package calibrate
