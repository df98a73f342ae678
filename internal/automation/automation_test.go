package automation_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fesim/internal/automation"
	"github.com/san-kum/fesim/internal/config"
	"github.com/san-kum/fesim/internal/muscle"
	"github.com/san-kum/fesim/internal/storage"
)

const scenarioYAML = `
name: warmup
description: frequency then intensity
steps:
  - name: baseline
    model: ding2003
    ivp:
      n_shooting: 30
  - name: intensity
    save_as: hmed_ramp
    model: hmed2018
    stim:
      pulse_intensity: [40, 50, 60]
    ivp:
      n_shooting: 30
`

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func small(model string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Model = model
	cfg.IVP.NShooting = 30
	return cfg
}

var _ = Describe("Scenario", func() {
	It("reads each step over the defaults", func() {
		sc, err := automation.ParseScenario([]byte(scenarioYAML))
		Expect(err).NotTo(HaveOccurred())
		Expect(sc.Name).To(Equal("warmup"))
		Expect(sc.Steps).To(HaveLen(2))

		first := sc.Steps[0]
		Expect(first.Name).To(Equal("baseline"))
		Expect(first.Config.Integrator).To(Equal("rk4"))
		Expect(first.Config.Stim.Times).To(Equal([]float64{0, 0.1, 0.2}))

		second := sc.Steps[1]
		Expect(second.SaveAs).To(Equal("hmed_ramp"))
		Expect([]float64(second.Config.Stim.PulseIntensity)).To(Equal([]float64{40, 50, 60}))
	})

	It("rejects a scenario without steps", func() {
		_, err := automation.ParseScenario([]byte("name: empty\n"))
		Expect(err).To(MatchError(automation.ErrEmptyStudy))
	})

	It("runs the steps in order and saves the marked ones", func() {
		sc, err := automation.ParseScenario([]byte(scenarioYAML))
		Expect(err).NotTo(HaveOccurred())

		st := storage.New(GinkgoT().TempDir())
		r := &automation.Runner{Logger: quiet(), Store: st}
		results, err := r.RunScenario(context.Background(), sc)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].RunID).To(BeEmpty())
		Expect(results[1].RunID).To(HavePrefix("hmed_ramp_"))
		Expect(results[0].Result.States).To(HaveLen(31))

		runs, err := st.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].StateNames).To(Equal([]string{"Cn", "F"}))
	})

	It("fails before running anything when a step is invalid", func() {
		sc, err := automation.ParseScenario([]byte(scenarioYAML))
		Expect(err).NotTo(HaveOccurred())
		sc.Steps[1].Config.Model = "veltink1992"

		r := &automation.Runner{Logger: quiet()}
		results, err := r.RunScenario(context.Background(), sc)
		Expect(err).To(MatchError(muscle.ErrUnknownVariant))
		Expect(results).To(BeEmpty())
	})
})

var _ = Describe("RunSweep", func() {
	It("keeps grid order and grows force with intensity", func() {
		r := &automation.Runner{Logger: quiet(), Workers: 3}
		results, err := r.RunSweep(context.Background(), &automation.ParameterSweep{
			Base:     small("hmed2018"),
			Param:    "pulse_intensity",
			Min:      30,
			Max:      90,
			NumSteps: 4,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))

		for i, res := range results {
			Expect(res.ParamValue).To(BeNumerically("~", 30+20*float64(i), 1e-12))
			Expect(res.FinalState).To(HaveLen(2))
			if i > 0 {
				Expect(res.PeakForce).To(BeNumerically(">", results[i-1].PeakForce))
			}
		}
	})

	It("rejects a point below the minimum pulse duration before running", func() {
		r := &automation.Runner{Logger: quiet()}
		_, err := r.RunSweep(context.Background(), &automation.ParameterSweep{
			Base:     small("ding2007"),
			Param:    "pulse_duration",
			Min:      0.00005,
			Max:      0.0005,
			NumSteps: 3,
		})
		Expect(err).To(MatchError(muscle.ErrBelowMinimum))
	})

	It("needs a base config", func() {
		r := &automation.Runner{Logger: quiet()}
		_, err := r.RunSweep(context.Background(), &automation.ParameterSweep{Param: "frequency", NumSteps: 2})
		Expect(err).To(MatchError(automation.ErrEmptyStudy))
	})
})

var _ = Describe("RunMonteCarlo", func() {
	mc := func(seed int64) *automation.MonteCarloConfig {
		return &automation.MonteCarloConfig{
			Base:         small("ding2003_with_fatigue"),
			Params:       []string{"tau1_rest", "km_rest"},
			Perturbation: 0.1,
			NumTrials:    6,
			Seed:         seed,
		}
	}

	It("is reproducible for a fixed seed", func() {
		r := &automation.Runner{Logger: quiet()}
		a, err := r.RunMonteCarlo(context.Background(), mc(7))
		Expect(err).NotTo(HaveOccurred())
		b, err := r.RunMonteCarlo(context.Background(), mc(7))
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(HaveLen(6))
		for i := range a {
			Expect(a[i].TrialID).To(Equal(i))
			Expect(a[i].Params).To(Equal(b[i].Params))
			Expect(a[i].PeakForce).To(Equal(b[i].PeakForce))
		}
	})

	It("keeps draws within the perturbation band", func() {
		r := &automation.Runner{Logger: quiet()}
		results, err := r.RunMonteCarlo(context.Background(), mc(11))
		Expect(err).NotTo(HaveOccurred())

		for _, res := range results {
			Expect(res.Params["tau1_rest"]).To(BeNumerically("~", 0.050957, 0.0051))
			Expect(res.Params["km_rest"]).To(BeNumerically("~", 0.103, 0.0104))
		}
		stable, unstable := automation.MonteCarloStats(results)
		Expect(stable).To(Equal(6))
		Expect(unstable).To(BeZero())
	})

	It("rejects a parameter the model does not have", func() {
		cfg := mc(1)
		cfg.Params = []string{"pd0"}
		r := &automation.Runner{Logger: quiet()}
		_, err := r.RunMonteCarlo(context.Background(), cfg)
		Expect(err).To(HaveOccurred())
	})
})
