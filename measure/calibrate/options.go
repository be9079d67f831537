package calibrate

import (
	"fmt"

	"github.com/cwbudde/algo-nofft/dsp/core"
	"github.com/cwbudde/algo-nofft/logging"
)

// Mode selects how the steady-state power of one sweep is read out.
type Mode int

const (
	// ModeOwnBin reads the power of the swept bin only.
	ModeOwnBin Mode = iota
	// ModeBankSum sums the final power of every bin in the bank, so leakage
	// into neighbouring bins counts towards the gain.
	ModeBankSum
)

func (m Mode) String() string {
	switch m {
	case ModeOwnBin:
		return "own"
	case ModeBankSum:
		return "sum"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "own" or "sum" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "own", "":
		return ModeOwnBin, nil
	case "sum":
		return ModeBankSum, nil
	default:
		return 0, fmt.Errorf("calibrate: unknown mode %q", s)
	}
}

// DefaultDurationFactor is the sweep length in time constants of the swept
// bin.
const DefaultDurationFactor = 40.0

type config struct {
	proc           core.ProcessorConfig
	durationFactor float64
	mode           Mode
	betas          []float64
	logger         logging.Logger
}

// Option configures a sweep.
type Option func(*config)

func defaultConfig() config {
	return config{
		proc:           core.ApplyProcessorOptions(core.WithWorkers(0)),
		durationFactor: DefaultDurationFactor,
		mode:           ModeOwnBin,
	}
}

// WithDurationFactor sets the sweep length in time constants.
func WithDurationFactor(factor float64) Option {
	return func(cfg *config) {
		cfg.durationFactor = factor
	}
}

// WithMode selects the power read-out.
func WithMode(mode Mode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithWorkers bounds the number of sweeps that run at once. Zero selects
// GOMAXPROCS, which is also the default.
func WithWorkers(n int) Option {
	return func(cfg *config) {
		core.WithWorkers(n)(&cfg.proc)
	}
}

// WithBetas sets independent power smoothing coefficients. Without it every
// bin uses beta = alpha.
func WithBetas(betas []float64) Option {
	return func(cfg *config) {
		cfg.betas = betas
	}
}

// WithLogger routes sweep progress to logger instead of the global logger.
func WithLogger(logger logging.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}
