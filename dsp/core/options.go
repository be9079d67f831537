package core

import "runtime"

// ProcessorConfig defines common processing settings shared by generators,
// the resonator bank and the calibration sweep.
type ProcessorConfig struct {
	SampleRate float64
	Workers    int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns sensible defaults for offline and streaming use.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 22050,
		Workers:    1,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithWorkers sets the number of goroutines used for work that partitions
// cleanly, such as independent frequency bins. Zero selects GOMAXPROCS.
func WithWorkers(workers int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		switch {
		case workers == 0:
			cfg.Workers = runtime.GOMAXPROCS(0)
		case workers > 0:
			cfg.Workers = workers
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
