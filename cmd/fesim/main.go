package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/san-kum/fesim/internal/config"
	"github.com/san-kum/fesim/internal/experiment"
	"github.com/san-kum/fesim/internal/muscle"
	"github.com/san-kum/fesim/internal/storage"
	"github.com/san-kum/fesim/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string
	noColor  bool

	configFile string
	preset     string

	integrator     string
	controller     string
	muscleName     string
	truncation     int
	nShooting      int
	finalTime      float64
	adaptive       bool
	tolerance      float64
	stimTimes      []float64
	frequency      float64
	nStim          int
	roundDown      bool
	pulseMode      string
	pulseDuration  []float64
	pulseIntensity []float64
	forceLength    float64
	forceVelocity  float64
	params         []string

	noSave   bool
	progress int
	perTick  int
	untilF   float64
)

// main wires the fesim commands and exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "fesim",
		Short:         "FES muscle force and fatigue simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".fesim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored logs")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "simulate a pulse train and save the run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().IntVar(&progress, "progress", 0, "log every n-th step at debug level")
	runCmd.Flags().Float64Var(&untilF, "time-to", 0, "also report when force first reaches this value (N)")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "simulate with a live force view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&perTick, "steps-per-frame", 2, "integration steps per frame")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV on stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := muscle.ParseVariant(args[0])
			if err != nil {
				return err
			}
			presets := config.ListPresets(v.String())
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", v)
				return nil
			}
			fmt.Printf("presets for %s:\n", v)
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list model variants and integrators",
		RunE:  listModels,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [integrator1] [integrator2] ...",
		Short: "compare integrators on the same pulse train",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	addRunFlags(compareCmd)

	benchCmd := &cobra.Command{
		Use:   "bench [model]",
		Short: "benchmark float, dual and compiled symbolic evaluation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchModel,
	}
	addRunFlags(benchCmd)

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportCSVCmd,
		presetsCmd, modelsCmd, compareCmd, benchCmd,
		newSweepCmd(), newDesignCmd(), newScenarioCmd(), newMonteCarloCmd(), newExpressCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("fesim failed", "err", err)
		os.Exit(1)
	}
}

func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	})))
	return nil
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator")
	f.StringVar(&controller, "controller", "none", "coupling controller (none|constant)")
	f.StringVar(&muscleName, "muscle", "", "muscle name suffixed to state names")
	f.IntVar(&truncation, "truncation", 0, "keep only the last k pulses in history sums (0 keeps all)")
	f.IntVar(&nShooting, "n-shooting", config.DefaultNShooting, "number of integration steps")
	f.Float64Var(&finalTime, "final-time", config.DefaultFinalTime, "final time (s)")
	f.BoolVar(&adaptive, "adaptive", false, "adaptive step size")
	f.Float64Var(&tolerance, "tol", config.DefaultTolerance, "adaptive tolerance")
	f.Float64SliceVar(&stimTimes, "stim-time", nil, "stimulation times (s)")
	f.Float64Var(&frequency, "frequency", 0, "stimulation frequency (Hz), replaces --stim-time")
	f.IntVar(&nStim, "n-stim", 0, "number of pulses at --frequency; sets the final time")
	f.BoolVar(&roundDown, "round-down", false, "round a fractional pulse count down")
	f.StringVar(&pulseMode, "pulse-mode", config.DefaultPulseMode, "single|doublet|triplet")
	f.Float64SliceVar(&pulseDuration, "pulse-duration", nil, "pulse durations (s), one or per pulse")
	f.Float64SliceVar(&pulseIntensity, "pulse-intensity", nil, "pulse intensities (mA), one or per pulse")
	f.Float64Var(&forceLength, "fl", 1, "force-length coefficient")
	f.Float64Var(&forceVelocity, "fv", 1, "force-velocity coefficient")
	f.StringSliceVar(&params, "param", nil, "model constant override name=value")
}

// loadConfig layers defaults, a preset, a config file and explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	model := ""
	if len(args) > 0 {
		v, err := muscle.ParseVariant(args[0])
		if err != nil {
			return nil, err
		}
		model = v.String()
	}

	if preset != "" {
		name := model
		if name == "" {
			name = config.DefaultModel
		}
		p := config.GetPreset(name, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(name))
		}
		cfg = p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = fileCfg
	}

	if model != "" {
		cfg.Model = model
	}

	flags := cmd.Flags()
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("controller") {
		cfg.Controller = controller
	}
	if flags.Changed("muscle") {
		cfg.Muscle = muscleName
	}
	if flags.Changed("truncation") {
		cfg.Truncation = truncation
	}
	if flags.Changed("n-shooting") {
		cfg.IVP.NShooting = nShooting
	}
	if flags.Changed("final-time") {
		cfg.IVP.FinalTime = finalTime
	}
	if flags.Changed("adaptive") {
		cfg.IVP.Adaptive = adaptive
	}
	if flags.Changed("tol") {
		cfg.IVP.Tolerance = tolerance
	}
	if flags.Changed("stim-time") {
		cfg.Stim.Times = stimTimes
		cfg.Stim.Frequency = 0
	}
	if flags.Changed("frequency") {
		cfg.Stim.Times = nil
		cfg.Stim.Frequency = frequency
	}
	if flags.Changed("n-stim") {
		cfg.Stim.NStim = nStim
	}
	if flags.Changed("round-down") {
		cfg.Stim.RoundDown = roundDown
	}
	if flags.Changed("pulse-mode") {
		cfg.Stim.PulseMode = pulseMode
	}
	if flags.Changed("pulse-duration") {
		cfg.Stim.PulseDuration = pulseDuration
	}
	if flags.Changed("pulse-intensity") {
		cfg.Stim.PulseIntensity = pulseIntensity
	}
	if flags.Changed("fl") || flags.Changed("fv") {
		cfg.Controller = "constant"
		if flags.Changed("fl") {
			cfg.Coupling.ForceLength = forceLength
		}
		if flags.Changed("fv") {
			cfg.Coupling.ForceVelocity = forceVelocity
		}
	}

	for _, kv := range params {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("--param %q: want name=value", kv)
		}
		var v float64
		if _, err := fmt.Sscanf(value, "%g", &v); err != nil {
			return nil, fmt.Errorf("--param %q: %w", kv, err)
		}
		if err := cfg.SetValue(name, v); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func buildExperiment(cmd *cobra.Command, args []string, opts ...experiment.Option) (*experiment.Experiment, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	return experiment.Build(cfg, opts...)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd, args, experiment.WithProgress(progress))
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("model: %s\n", exp.Model())
	fmt.Printf("pulses: %d (%s)\n", exp.Train().N(), exp.Train().Mode)
	fmt.Printf("steps: %d in %v\n", result.StepsTaken, elapsed)
	fmt.Printf("final state:")
	final := result.States[len(result.States)-1]
	for i, name := range result.Names {
		fmt.Printf(" %s=%.6g", name, final[i])
	}
	fmt.Println()
	for _, name := range sortedMetricNames(result.Metrics) {
		fmt.Printf("  %-14s %.6g\n", name, result.Metrics[name])
	}

	if untilF > 0 {
		at, ok, err := exp.TimeToForce(cmd.Context(), untilF)
		if err != nil {
			return err
		}
		if ok {
			fmt.Printf("force reaches %g N at %.4fs\n", untilF, at)
		} else {
			fmt.Printf("force never reaches %g N\n", untilF)
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	runID, err := st.Save(exp.Metadata(), result)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s\n", runID)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd, args)
	if err != nil {
		return err
	}
	return tui.Run(exp, perTick)
}
