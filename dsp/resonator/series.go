package resonator

import (
	"fmt"

	"github.com/cwbudde/algo-nofft/dsp/spectrum"
)

// OutputKind selects which per-bin quantity [Series.Values] returns.
type OutputKind int

const (
	// OutputPower is the smoothed power p. A matched unit cosine reads 0.25.
	OutputPower OutputKind = iota
	// OutputAmplitude is |c + i*s|. A matched unit cosine reads 0.5.
	OutputAmplitude
	// OutputPhase is atan2(s, c) in (-pi, pi].
	OutputPhase
)

// String returns the lowercase name of the output kind.
func (k OutputKind) String() string {
	switch k {
	case OutputPower:
		return "power"
	case OutputAmplitude:
		return "amplitude"
	case OutputPhase:
		return "phase"
	default:
		return fmt.Sprintf("OutputKind(%d)", int(k))
	}
}

// Series is the recorded output of a block run: one row per recorded frame,
// one column per bin.
type Series struct {
	Hop         int
	Frequencies []float64
	Index       []int // absolute sample index of each frame
	Power       [][]float64
	Phase       [][]float64
	Re          [][]float64
	Im          [][]float64
}

func newSeries(freqs []float64, hop int, index []int) *Series {
	frames := len(index)
	bins := len(freqs)

	s := &Series{
		Hop:         hop,
		Frequencies: append([]float64(nil), freqs...),
		Index:       index,
		Power:       make([][]float64, frames),
		Phase:       make([][]float64, frames),
		Re:          make([][]float64, frames),
		Im:          make([][]float64, frames),
	}

	backing := make([]float64, 4*frames*bins)
	for f := range frames {
		off := 4 * f * bins
		s.Power[f] = backing[off : off+bins : off+bins]
		s.Phase[f] = backing[off+bins : off+2*bins : off+2*bins]
		s.Re[f] = backing[off+2*bins : off+3*bins : off+3*bins]
		s.Im[f] = backing[off+3*bins : off+4*bins : off+4*bins]
	}

	return s
}

// frameIndices lists the indices in [start, start+length) divisible by hop.
func frameIndices(start, length, hop int) []int {
	end := start + length

	first := (start + hop - 1) / hop * hop
	if first >= end {
		return []int{}
	}

	out := make([]int, 0, (end-1-first)/hop+1)
	for n := first; n < end; n += hop {
		out = append(out, n)
	}

	return out
}

// Len returns the number of recorded frames.
func (s *Series) Len() int { return len(s.Index) }

// NumBins returns the number of bins per frame.
func (s *Series) NumBins() int { return len(s.Frequencies) }

// Frame returns recorded frame i. The slices alias the series storage.
func (s *Series) Frame(i int) Frame {
	return Frame{Index: s.Index[i], Power: s.Power[i], Phase: s.Phase[i], Re: s.Re[i], Im: s.Im[i]}
}

// Last returns the final recorded frame, or false when nothing was recorded.
func (s *Series) Last() (Frame, bool) {
	if s.Len() == 0 {
		return Frame{}, false
	}

	return s.Frame(s.Len() - 1), true
}

// Values returns one row per frame of the requested quantity. Power and
// phase rows alias the series storage; amplitude rows are newly allocated.
func (s *Series) Values(kind OutputKind) ([][]float64, error) {
	switch kind {
	case OutputPower:
		return s.Power, nil
	case OutputPhase:
		return s.Phase, nil
	case OutputAmplitude:
		out := make([][]float64, s.Len())
		for f := range out {
			out[f] = make([]float64, s.NumBins())
			spectrum.MagnitudeFromParts(out[f], s.Re[f], s.Im[f])
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown output kind %d", ErrInvalidParameter, int(kind))
	}
}

// Complex returns one row per frame of c + i*s.
func (s *Series) Complex() [][]complex128 {
	out := make([][]complex128, s.Len())
	for f := range out {
		row := make([]complex128, s.NumBins())
		for i := range row {
			row[i] = complex(s.Re[f][i], s.Im[f][i])
		}

		out[f] = row
	}

	return out
}

// Column returns the time series of one bin for the requested quantity.
func (s *Series) Column(bin int, kind OutputKind) ([]float64, error) {
	if bin < 0 || bin >= s.NumBins() {
		return nil, fmt.Errorf("%w: bin %d out of range [0, %d)", ErrInvalidParameter, bin, s.NumBins())
	}

	rows, err := s.Values(kind)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for f, row := range rows {
		out[f] = row[bin]
	}

	return out, nil
}

// Resonate runs a fresh bank over y and returns every hop-th frame. It is
// equivalent to calling [Bank.ProcessSample] for each sample and keeping
// the frames whose index is a multiple of hop.
func Resonate(y []float64, sampleRate float64, freqs, alphas, betas []float64, hop int, opts ...Option) (*Series, error) {
	if hop < 1 {
		return nil, fmt.Errorf("%w: hop must be >= 1: %d", ErrInvalidParameter, hop)
	}

	b, err := New(freqs, alphas, betas, sampleRate, opts...)
	if err != nil {
		return nil, err
	}

	return b.ProcessBlockHop(y, hop)
}
