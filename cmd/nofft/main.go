// Command nofft runs a resonator bank over synthetic signals.
//
// Usage:
//
//	nofft [flags] calibrate|response|analyze|version [subcommand flags]
//
// The bank is a log-spaced grid of -bins frequencies starting at -fmin with
// -octave bins per octave. Smoothing coefficients come from the alpha
// heuristic with time scale -k.
//
// Examples:
//
//	nofft calibrate
//	nofft -r 44100 -n 48 calibrate -m sum -d 20
//	nofft response -i 440 -s 0.5
//	nofft analyze -t 1000 -a 0.1
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"text/tabwriter"

	"github.com/cwbudde/algo-vecmath/cpu"
	"github.com/integrii/flaggy"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-nofft/dsp/core"
	"github.com/cwbudde/algo-nofft/dsp/resonator"
	dspsignal "github.com/cwbudde/algo-nofft/dsp/signal"
	"github.com/cwbudde/algo-nofft/dsp/spectrum"
	"github.com/cwbudde/algo-nofft/logging"
	"github.com/cwbudde/algo-nofft/measure/calibrate"
	frequencystats "github.com/cwbudde/algo-nofft/stats/frequency"
	timestats "github.com/cwbudde/algo-nofft/stats/time"
)

const (
	appName = "nofft"
	appDesc = "resonator bank spectral analysis without an FFT"
	version = "0.1.0"
)

type config struct {
	sampleRate float64
	fmin       float64
	bins       int
	perOctave  int
	k          float64
	workers    int
	logLevel   string

	durationFactor float64
	mode           string

	inputFreq float64
	seconds   float64
	hop       int

	toneFreq  float64
	noiseAmp  float64
	seed      int
	calibrate bool
}

func defaultConfig() config {
	return config{
		sampleRate:     core.DefaultProcessorConfig().SampleRate,
		fmin:           resonator.DefaultMinFrequency,
		bins:           resonator.DefaultNumFrequencies,
		perOctave:      resonator.DefaultFrequenciesPerOctave,
		k:              1,
		workers:        0,
		logLevel:       "info",
		durationFactor: calibrate.DefaultDurationFactor,
		mode:           calibrate.ModeOwnBin.String(),
		inputFreq:      440,
		seconds:        1,
		toneFreq:       440,
	}
}

func main() {
	log.SetFlags(0)

	cfg := defaultConfig()

	parser := flaggy.NewParser(appName)
	parser.Description = appDesc
	parser.Version = version

	parser.Float64(&cfg.sampleRate, "r", "rate", "sample rate in Hz")
	parser.Float64(&cfg.fmin, "f", "fmin", "lowest bin frequency in Hz")
	parser.Int(&cfg.bins, "n", "bins", "number of bins")
	parser.Int(&cfg.perOctave, "o", "octave", "bins per octave")
	parser.Float64(&cfg.k, "k", "time-scale", "alpha heuristic time scale (> 0, larger is slower)")
	parser.Int(&cfg.workers, "w", "workers", "goroutines (0 uses every CPU)")
	parser.String(&cfg.logLevel, "l", "log", "log level (debug, info, warn, error)")

	calibrateCmd := flaggy.Subcommand{
		Name:        "calibrate",
		ShortName:   "cal",
		Description: "sweep a unit tone over every bin and print the gains",
	}
	calibrateCmd.Float64(&cfg.durationFactor, "d", "duration", "sweep length in time constants")
	calibrateCmd.String(&cfg.mode, "m", "mode", "power read-out: own or sum")
	parser.AttachSubcommand(&calibrateCmd, 1)

	responseCmd := flaggy.Subcommand{
		Name:        "response",
		ShortName:   "resp",
		Description: "drive the bank with one tone and print the final frame",
	}
	responseCmd.Float64(&cfg.inputFreq, "i", "input", "input tone frequency in Hz")
	responseCmd.Float64(&cfg.seconds, "s", "seconds", "tone length in seconds")
	parser.AttachSubcommand(&responseCmd, 1)

	analyzeCmd := flaggy.Subcommand{
		Name:        "analyze",
		ShortName:   "an",
		Description: "compare the bank with FFT and Goertzel estimates of a noisy tone",
	}
	analyzeCmd.Float64(&cfg.toneFreq, "t", "tone", "tone frequency in Hz")
	analyzeCmd.Float64(&cfg.noiseAmp, "a", "noise", "white noise amplitude")
	analyzeCmd.Float64(&cfg.seconds, "s", "seconds", "signal length in seconds")
	analyzeCmd.Int(&cfg.hop, "p", "hop", "record every hop-th frame (0 records the last only)")
	analyzeCmd.Int(&cfg.seed, "e", "seed", "noise seed")
	analyzeCmd.Bool(&cfg.calibrate, "c", "calibrate", "apply calibration gains to the bank output")
	parser.AttachSubcommand(&analyzeCmd, 1)

	versionCmd := flaggy.Subcommand{
		Name:        "version",
		ShortName:   "v",
		Description: "print version and detected SIMD support",
	}
	parser.AttachSubcommand(&versionCmd, 1)

	chk(parser.Parse(), "failed to parse arguments")
	chk(setupLogging(cfg.logLevel), "invalid log level")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case calibrateCmd.Used:
		chk(runCalibrate(ctx, &cfg), "calibrate failed")
	case responseCmd.Used:
		chk(runResponse(&cfg), "response failed")
	case analyzeCmd.Used:
		chk(runAnalyze(ctx, &cfg), "analyze failed")
	case versionCmd.Used:
		printVersion()
	default:
		parser.ShowHelpAndExit("a subcommand is required")
	}
}

func setupLogging(level string) error {
	l, ok := logging.ParseLevel(level)
	if !ok {
		return errors.Errorf("unknown level %q", level)
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(l)
	logging.SetGlobalLogger(logger)

	return nil
}

// bank returns the frequency grid and heuristic alphas selected by the flags.
func (cfg *config) bank() ([]float64, []float64, error) {
	freqs := resonator.LogFrequencies(cfg.fmin, cfg.bins, cfg.perOctave)
	if freqs == nil {
		return nil, nil, errors.Errorf("invalid grid: fmin=%v bins=%d per-octave=%d", cfg.fmin, cfg.bins, cfg.perOctave)
	}

	if top := freqs[len(freqs)-1]; top >= cfg.sampleRate/2 {
		return nil, nil, errors.Errorf("top bin %.2f Hz is not below Nyquist (%.2f Hz); lower --bins or --fmin, or raise --rate",
			top, cfg.sampleRate/2)
	}

	alphas, err := resonator.Alphas(freqs, cfg.sampleRate, cfg.k)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive alphas")
	}

	return freqs, alphas, nil
}

func runCalibrate(ctx context.Context, cfg *config) error {
	freqs, alphas, err := cfg.bank()
	if err != nil {
		return err
	}

	mode, err := calibrate.ParseMode(cfg.mode)
	if err != nil {
		return err
	}

	res, err := calibrate.Sweep(ctx, freqs, alphas, cfg.sampleRate,
		calibrate.WithDurationFactor(cfg.durationFactor),
		calibrate.WithMode(mode),
		calibrate.WithWorkers(cfg.workers),
	)
	if err != nil {
		return errors.Wrap(err, "sweep")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "bin\tfreq Hz\talpha\ttau ms\tsamples\tpower\tgain\tgain dB\t")

	powers, gains, samples := res.Powers(), res.Gains(), res.Samples()
	for i, f := range freqs {
		fmt.Fprintf(tw, "%d\t%.2f\t%.5f\t%.2f\t%d\t%.5f\t%.4f\t%.2f\t\n",
			i, f, alphas[i], 1000*resonator.TimeConstant(alphas[i], cfg.sampleRate),
			samples[i], powers[i], gains[i], core.LinearToDB(gains[i]))
	}

	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "failed to write table")
	}

	s := res.Summary()
	fmt.Printf("\nmode %s: power %.5f +/- %.5f, gain %.4f +/- %.4f (min bin %d, max bin %d)\n",
		res.Mode(), s.MeanPower, s.StdPower, s.MeanGain, s.StdGain, s.MinGainBin, s.MaxGainBin)

	return nil
}

func runResponse(cfg *config) error {
	freqs, alphas, err := cfg.bank()
	if err != nil {
		return err
	}

	series, err := calibrate.Response(cfg.inputFreq, freqs, alphas, nil, cfg.sampleRate, cfg.seconds)
	if err != nil {
		return errors.Wrap(err, "response")
	}

	last, ok := series.Last()
	if !ok {
		return errors.New("no frames recorded")
	}

	amps, err := series.Values(resonator.OutputAmplitude)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "bin\tfreq Hz\tpower\tpower dB\tamplitude\tphase\t")

	for i, f := range freqs {
		fmt.Fprintf(tw, "%d\t%.2f\t%.6f\t%.2f\t%.5f\t%+.4f\t\n",
			i, f, last.Power[i], core.LinearPowerToDB(last.Power[i]), amps[len(amps)-1][i], last.Phase[i])
	}

	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "failed to write table")
	}

	peak := floats.MaxIdx(last.Power)
	fmt.Printf("\ninput %.2f Hz, peak bin %d at %.2f Hz, %d samples\n",
		cfg.inputFreq, peak, freqs[peak], series.Len())

	st, err := frequencystats.FromPowers(freqs, last.Power)
	if err != nil {
		return errors.Wrap(err, "spectral statistics")
	}

	printShape("bank", st)

	return nil
}

func printShape(name string, st frequencystats.Stats) {
	fmt.Printf("%s: centroid %.2f Hz, spread %.2f Hz, rolloff %.2f Hz, 3 dB bandwidth %.2f Hz, flatness %.4f\n",
		name, st.Centroid, st.Spread, st.Rolloff, st.Bandwidth, st.Flatness)
}

func runAnalyze(ctx context.Context, cfg *config) error {
	freqs, alphas, err := cfg.bank()
	if err != nil {
		return err
	}

	gen := dspsignal.NewGeneratorWithOptions(
		[]core.ProcessorOption{core.WithSampleRate(cfg.sampleRate)},
		dspsignal.WithSeed(int64(cfg.seed)),
	)

	n := gen.Samples(cfg.seconds)

	y, err := gen.Cosine(cfg.toneFreq, 1, n)
	if err != nil {
		return errors.Wrap(err, "tone")
	}

	if cfg.noiseAmp > 0 {
		noise, err := gen.WhiteNoise(cfg.noiseAmp, n)
		if err != nil {
			return errors.Wrap(err, "noise")
		}

		if err := dspsignal.Mix(y, noise); err != nil {
			return err
		}
	}

	in := timestats.Calculate(y)
	fmt.Printf("input: %d samples, rms %.2f dB, peak %.2f dB, crest %.2f dB, matched tone power %.4f\n\n",
		in.Length, in.RMS_dB, in.Peak_dB, in.CrestFactor_dB, in.TonePower)

	hop := cfg.hop
	if hop <= 0 {
		hop = max(n-1, 1)
	}

	series, err := resonator.Resonate(y, cfg.sampleRate, freqs, alphas, alphas, hop,
		resonator.WithWorkers(cfg.workers))
	if err != nil {
		return errors.Wrap(err, "resonate")
	}

	last, ok := series.Last()
	if !ok {
		return errors.New("no frames recorded")
	}

	powers := append([]float64(nil), last.Power...)

	if cfg.calibrate {
		res, err := calibrate.Sweep(ctx, freqs, alphas, cfg.sampleRate, calibrate.WithWorkers(cfg.workers))
		if err != nil {
			return errors.Wrap(err, "calibration sweep")
		}

		if err := res.CalibrateFrame(powers); err != nil {
			return err
		}
	}

	ref, err := spectrum.Reference(y, cfg.sampleRate, freqs)
	if err != nil {
		return errors.Wrap(err, "reference spectrum")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "bin\tfreq Hz\tbank dB\tfft dB\tgoertzel dB\t")

	for i, f := range freqs {
		g, err := spectrum.TonePower(y, f, cfg.sampleRate)
		if err != nil {
			return errors.Wrapf(err, "goertzel bin %d", i)
		}

		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			i, f, core.LinearPowerToDB(powers[i]), core.LinearPowerToDB(ref[i]), core.LinearPowerToDB(g))
	}

	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "failed to write table")
	}

	fmt.Printf("\nbank peak %.2f Hz, fft peak %.2f Hz, frames %d, tone %.2f Hz\n",
		freqs[floats.MaxIdx(powers)], freqs[floats.MaxIdx(ref)], series.Len(), cfg.toneFreq)

	for _, row := range []struct {
		name   string
		powers []float64
	}{{"bank", powers}, {"fft", ref}} {
		st, err := frequencystats.FromPowers(freqs, row.powers)
		if err != nil {
			return errors.Wrap(err, "spectral statistics")
		}

		printShape(row.name, st)
	}

	return nil
}

func printVersion() {
	f := cpu.DetectFeatures()

	level := "none"

	switch {
	case cpu.Supports(f, cpu.SIMDAVX2):
		level = "avx2"
	case cpu.Supports(f, cpu.SIMDSSE2):
		level = "sse2"
	case cpu.Supports(f, cpu.SIMDNEON):
		level = "neon"
	}

	fmt.Printf("%s %s (%s/%s, simd %s, %d CPUs)\n",
		appName, version, runtime.GOOS, f.Architecture, level, runtime.NumCPU())
}

func chk(err error, wrap string) {
	if err != nil {
		log.Fatalln(wrap+": ", err)
	}
}
