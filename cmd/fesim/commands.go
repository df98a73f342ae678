package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fesim/internal/automation"
	"github.com/san-kum/fesim/internal/config"
	"github.com/san-kum/fesim/internal/dynamo"
	"github.com/san-kum/fesim/internal/experiment"
	"github.com/san-kum/fesim/internal/muscle"
	"github.com/san-kum/fesim/internal/optim"
	"github.com/san-kum/fesim/internal/storage"
	"github.com/spf13/cobra"
)

func sortedMetricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tPULSES\tFINAL\tINTEG\tPEAK")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3fs\t%s\t%.2f\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			len(run.StimTimes),
			run.FinalTime,
			run.Integrator,
			run.Metrics["peak_force"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	states, times, names, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("run %s has no samples", args[0])
	}

	fmt.Printf("run %s: %d samples over %.3fs\n\n", args[0], len(times), times[len(times)-1])
	for i, name := range names {
		data := make([]float64, len(states))
		for k, x := range states {
			data[k] = x[i]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, storage.ExportData{RunMetadata: *meta})
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	data, err := st.LoadExport(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, data)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	data, err := st.LoadExport(args[0])
	if err != nil {
		return err
	}
	result := &dynamo.Result{Times: data.Times, Names: data.StateNames}
	for _, s := range data.States {
		result.States = append(result.States, s)
	}
	for _, c := range data.Controls {
		result.Controls = append(result.Controls, c)
	}
	return storage.WriteCSV(os.Stdout, data.StateNames, result)
}

func listModels(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATES\tDESCRIPTION")
	for _, v := range muscle.Variants() {
		m := muscle.New(v)
		fmt.Fprintf(w, "%s\t%s\t%s\n", v, strings.Join(m.StateNames(false), ","), v.Description())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nintegrators: %s\n", strings.Join(experiment.NewRegistry().ListIntegrators(), ", "))
	fmt.Printf("sweepable: %s and any model constant\n", strings.Join(config.Sweepable, ", "))
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	exp, err := experiment.Build(cfg, experiment.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		return err
	}

	reg := experiment.NewRegistry()
	jobs := make([]dynamo.Job, len(args))
	for i, name := range args {
		integ, err := reg.GetIntegrator(name)
		if err != nil {
			return err
		}
		jobs[i] = dynamo.Job{
			Name:       name,
			System:     exp.System(),
			Integrator: integ,
			Controller: exp.Simulator().Controller(),
			Metrics:    func() []dynamo.Metric { return reg.DefaultMetrics(exp.Model()) },
			X0:         exp.System().RestState(),
			Config:     exp.SimConfig(),
		}
	}

	start := time.Now()
	results, err := dynamo.Batch(cmd.Context(), jobs, 0)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INTEGRATOR\tSTEPS\tPEAK\tFINAL F\tMAX DIFF")

	var reference []float64
	for i, result := range results {
		force := result.Column(result.Index(forceName(result.Names)))
		diff := 0.0
		if reference == nil {
			reference = force
		} else {
			for k := 0; k < len(force) && k < len(reference); k++ {
				diff = math.Max(diff, math.Abs(force[k]-reference[k]))
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\t%.2e\n",
			jobs[i].Name, result.StepsTaken, result.Metrics["peak_force"], force[len(force)-1], diff)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d runs in %v\n", len(results), elapsed)
	return nil
}

func forceName(names []string) string {
	for _, n := range names {
		if n == "F" || strings.HasPrefix(n, "F_") {
			return n
		}
	}
	return "F"
}

func benchModel(cmd *cobra.Command, args []string) error {
	exp, err := buildExperiment(cmd, args, experiment.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		return err
	}
	sys := exp.System()
	model := exp.Model()
	x := sys.RestState()
	u := dynamo.Control{exp.Config().Coupling.ForceLength, exp.Config().Coupling.ForceVelocity}
	t := exp.Config().IVP.FinalTime

	const iterations = 20000
	timeIt := func(f func()) time.Duration {
		start := time.Now()
		for i := 0; i < iterations; i++ {
			f()
		}
		return time.Since(start) / iterations
	}

	h := model.History()
	sym := model.Symbolic(h.Len())
	fn, err := sym.Compile()
	if err != nil {
		return err
	}
	in := []float64{t}
	in = append(in, x...)
	in = append(in, u...)
	in = append(in, h.Times...)
	switch model.Variant.Family {
	case muscle.Ding2007:
		in = append(in, h.Durations...)
	case muscle.Hmed2018:
		in = append(in, h.Intensities...)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "model\t%s (%d pulses)\n", model, h.Len())
	fmt.Fprintf(w, "derive (float)\t%v\n", timeIt(func() { sys.Derive(x, u, t) }))
	fmt.Fprintf(w, "jacobian (dual)\t%v\n", timeIt(func() { sys.Jacobian(x, u, t) }))
	fmt.Fprintf(w, "compiled graph\t%v (%d instructions)\n", timeIt(func() { _, _ = fn.Call(in) }), fn.Len())

	start := time.Now()
	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "full run\t%v (%d steps)\n", time.Since(start), result.StepsTaken)
	return w.Flush()
}

func newExpressCmd() *cobra.Command {
	var pulses int
	var jacobian bool

	cmd := &cobra.Command{
		Use:   "express [model]",
		Short: "print the model derivative as expressions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := config.DefaultModel
			if len(args) > 0 {
				name = args[0]
			}
			v, err := muscle.ParseVariant(name)
			if err != nil {
				return err
			}
			m := muscle.New(v, muscle.WithMuscle(muscleName))
			sym := m.Symbolic(pulses)

			fmt.Printf("%s, %d pulses\nsymbols: %s\n\n", m, pulses, strings.Join(sym.Vars(), " "))
			for i, d := range sym.Derivative {
				fmt.Printf("d%s/dt = %s\n\n", sym.States[i].Name(), d)
			}

			fn, err := sym.Compile()
			if err != nil {
				return err
			}
			fmt.Printf("compiled: %d instructions\n", fn.Len())

			if !jacobian {
				return nil
			}
			fmt.Println()
			for i, row := range sym.StateJacobian() {
				for j, e := range row {
					if c, ok := e.IsConst(); ok && c == 0 {
						continue
					}
					fmt.Printf("d(d%s/dt)/d%s = %s\n", sym.States[i].Name(), sym.States[j].Name(), e)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pulses, "pulses", 1, "number of pulses in the history")
	cmd.Flags().BoolVar(&jacobian, "jacobian", false, "also print the state jacobian")
	cmd.Flags().StringVar(&muscleName, "muscle", "", "muscle name suffixed to state names")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var param string
	var minVal, maxVal float64
	var steps, workers int

	cmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "sweep one stimulation setting or model constant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			runner := &automation.Runner{Logger: slog.Default(), Workers: workers}
			results, err := runner.RunSweep(cmd.Context(), &automation.ParameterSweep{
				Base:     base,
				Param:    param,
				Min:      minVal,
				Max:      maxVal,
				NumSteps: steps,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\tPEAK\tIMPULSE\tFATIGUE\n", strings.ToUpper(param))
			peaks := make([]float64, len(results))
			for i, r := range results {
				peaks[i] = r.PeakForce
				fmt.Fprintf(w, "%.6g\t%.4f\t%.4f\t%.4f\n", r.ParamValue, r.PeakForce, r.ForceImpulse, r.FatigueIndex)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(peaks) > 1 {
				fmt.Println()
				fmt.Println(asciigraph.Plot(peaks,
					asciigraph.Height(12),
					asciigraph.Width(60),
					asciigraph.Caption(fmt.Sprintf("peak force vs %s [%g, %g]", param, minVal, maxVal)),
				))
			}
			return nil
		},
	}
	addRunFlags(cmd)
	cmd.Flags().StringVar(&param, "sweep", "frequency", "value to sweep")
	cmd.Flags().Float64Var(&minVal, "min", 10, "first value")
	cmd.Flags().Float64Var(&maxVal, "max", 50, "last value")
	cmd.Flags().IntVar(&steps, "steps", 9, "number of values")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 uses all cores)")
	return cmd
}

// parseGrid reads name=v1,v2,... entries.
func parseGrid(entries []string) ([]string, [][]float64, error) {
	var names []string
	var ranges [][]float64
	for _, e := range entries {
		name, list, ok := strings.Cut(e, "=")
		if !ok || list == "" {
			return nil, nil, fmt.Errorf("--grid %q: want name=v1,v2,...", e)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("--grid %q: %w", e, err)
			}
			values = append(values, v)
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func newDesignCmd() *cobra.Command {
	var grid []string
	var target float64
	var metric string
	var workers int

	cmd := &cobra.Command{
		Use:   "design [model]",
		Short: "grid search stimulation settings for a target peak force",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			names, ranges, err := parseGrid(grid)
			if err != nil {
				return err
			}

			objective := optim.Metric(metric)
			if target > 0 {
				objective = optim.TargetPeakForce(target)
			}

			quiet := experiment.WithLogger(slog.New(slog.DiscardHandler))
			build := func(params map[string]float64) (*experiment.Experiment, error) {
				cfg := base.Clone()
				for name, v := range params {
					if err := cfg.SetValue(name, v); err != nil {
						return nil, err
					}
				}
				return experiment.Build(cfg, quiet)
			}

			g := optim.NewGridSearch(names, ranges)
			g.Workers = workers
			best, err := g.Search(cmd.Context(), build, objective)
			if err != nil {
				return err
			}

			fmt.Printf("evaluated %d candidates\n", best.Evaluated)
			for _, name := range names {
				fmt.Printf("  %-16s %.6g\n", name, best.Params[name])
			}
			fmt.Printf("score: %.6g\n", best.Score)
			fmt.Printf("peak force: %.4f N\n", best.Result.Metrics["peak_force"])
			return nil
		},
	}
	addRunFlags(cmd)
	cmd.Flags().StringArrayVar(&grid, "grid", []string{"frequency=10,20,30,40,50"}, "candidate values name=v1,v2,...")
	cmd.Flags().Float64Var(&target, "target", 0, "target peak force (N); 0 minimizes --metric")
	cmd.Flags().StringVar(&metric, "metric", "force_impulse", "metric to minimize without --target")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 uses all cores)")
	return cmd
}

func newScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of simulations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("scenario: %s\n", scenario.Name)
			if scenario.Description != "" {
				fmt.Printf("  %s\n", scenario.Description)
			}

			runner := &automation.Runner{Logger: slog.Default(), Store: storage.New(dataDir)}
			results, err := runner.RunScenario(cmd.Context(), scenario)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tPEAK\tIMPULSE\tRUN")
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%s\n",
					r.Name, r.Result.Metrics["peak_force"], r.Result.Metrics["force_impulse"], r.RunID)
			}
			return w.Flush()
		},
	}
}

func newMonteCarloCmd() *cobra.Command {
	var mcParams []string
	var perturbation float64
	var trials, workers int
	var seed int64

	cmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "perturb model constants and count stable runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			runner := &automation.Runner{Logger: slog.Default(), Workers: workers}
			results, err := runner.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
				Base:         base,
				Params:       mcParams,
				Perturbation: perturbation,
				NumTrials:    trials,
				Seed:         seed,
			})
			if err != nil {
				return err
			}

			stable, unstable := automation.MonteCarloStats(results)
			var peaks []float64
			for _, r := range results {
				if r.Stable {
					peaks = append(peaks, r.PeakForce)
				}
			}
			sort.Float64s(peaks)

			fmt.Printf("trials: %d stable, %d unstable\n", stable, unstable)
			if len(peaks) > 0 {
				fmt.Printf("peak force: min %.4f  median %.4f  max %.4f\n",
					peaks[0], peaks[len(peaks)/2], peaks[len(peaks)-1])
			}
			return nil
		},
	}
	addRunFlags(cmd)
	cmd.Flags().StringSliceVar(&mcParams, "perturb", []string{"tauc", "tau1_rest", "km_rest"}, "constants to perturb")
	cmd.Flags().Float64Var(&perturbation, "spread", 0.1, "relative perturbation")
	cmd.Flags().IntVar(&trials, "trials", 50, "number of trials")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 uses the clock)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 uses all cores)")
	return cmd
}
