package stim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/fesim/internal/muscle"
	"github.com/san-kum/fesim/internal/stim"
)

var base = []float64{0, 0.1, 0.2}

var _ = Describe("ExpandMode", func() {
	DescribeTable("burst expansion",
		func(mode stim.Mode, want []float64) {
			got, err := stim.ExpandMode(base, mode)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
			Expect(got).To(HaveLen(len(base) * mode.PulsesPerBurst()))
		},
		Entry("single", stim.Single, []float64{0, 0.1, 0.2}),
		Entry("doublet", stim.Doublet, []float64{0, 0.005, 0.1, 0.105, 0.2, 0.205}),
		Entry("triplet", stim.Triplet, []float64{0, 0.005, 0.01, 0.1, 0.105, 0.11, 0.2, 0.205, 0.21}),
	)

	It("produces strictly ascending times", func() {
		got, err := stim.ExpandMode([]float64{0, 0.033, 0.066, 0.099}, stim.Triplet)
		Expect(err).NotTo(HaveOccurred())
		for i := 1; i < len(got); i++ {
			Expect(got[i]).To(BeNumerically(">", got[i-1]))
		}
	})

	It("does not modify its input", func() {
		in := []float64{0, 0.1}
		_, err := stim.ExpandMode(in, stim.Doublet)
		Expect(err).NotTo(HaveOccurred())
		Expect(in).To(Equal([]float64{0, 0.1}))
	})

	It("rejects colliding bursts", func() {
		_, err := stim.ExpandMode([]float64{0, 0.005}, stim.Doublet)
		Expect(err).To(MatchError(stim.ErrOverlappingPulses))
	})

	It("rejects unknown modes", func() {
		_, err := stim.ExpandMode(base, stim.Mode("quadruplet"))
		Expect(err).To(MatchError(stim.ErrPulseModeNotImplemented))
		Expect(err.Error()).To(HavePrefix("stim: pulse mode not implemented"))
		Expect(err.Error()).To(ContainSubstring(`"quadruplet" not yet implemented`))

		_, err = stim.ParseMode("quadruplet")
		Expect(err).To(MatchError(stim.ErrPulseModeNotImplemented))
	})

	It("parses modes case-insensitively and defaults to single", func() {
		Expect(stim.ParseMode(" Doublet ")).To(Equal(stim.Doublet))
		Expect(stim.ParseMode("")).To(Equal(stim.Single))
	})
})

var _ = Describe("frequency helpers", func() {
	It("places final_time*frequency pulses", func() {
		times, err := stim.TimesFromFrequencyAndFinalTime(10, 1, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(HaveLen(10))
		Expect(times[3]).To(BeNumerically("~", 0.3, 1e-12))
	})

	It("rejects a fractional count unless rounding down", func() {
		_, err := stim.TimesFromFrequencyAndFinalTime(33, 0.5, false)
		Expect(err).To(MatchError(stim.ErrNonIntegerStimCount))
		Expect(err.Error()).To(HavePrefix("stim: non-integer stimulation count: 16.5 pulses"))
		Expect(err.Error()).To(ContainSubstring("needs to be integer within the final time"))

		times, err := stim.TimesFromFrequencyAndFinalTime(33, 0.5, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(HaveLen(16))
	})

	It("derives the final time from a stimulation count", func() {
		times, final, err := stim.TimesFromFrequencyAndNStim(20, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(HaveLen(5))
		Expect(final).To(BeNumerically("~", 0.25, 1e-12))
	})

	It("rejects non-positive frequencies", func() {
		_, err := stim.Regular(0, 3)
		Expect(err).To(MatchError(stim.ErrInvalidFrequency))
		_, _, err = stim.TimesFromFrequencyAndNStim(-1, 3)
		Expect(err).To(MatchError(stim.ErrInvalidFrequency))
	})
})

var _ = Describe("Train", func() {
	It("broadcasts a single duration to every expanded pulse", func() {
		tr, err := stim.Build(base, stim.Doublet, []float64{0.0003}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.N()).To(Equal(6))
		Expect(tr.Durations).To(HaveLen(6))
		Expect(tr.Durations).To(HaveEach(0.0003))
	})

	It("rejects lists that do not match the stimulation count", func() {
		_, err := stim.Build(base, stim.Single, []float64{0.0003, 0.0004}, nil)
		Expect(err).To(MatchError(muscle.ErrLengthMismatch))
		Expect(err.Error()).To(ContainSubstring("pulse_duration list must have the same length as n_stim"))

		_, err = stim.Build(base, stim.Doublet, nil, []float64{50, 60, 70})
		Expect(err).To(MatchError(muscle.ErrLengthMismatch))
	})

	It("rejects empty and unordered times", func() {
		_, err := stim.Build(nil, stim.Single, nil, nil)
		Expect(err).To(MatchError(stim.ErrEmptyTrain))
		_, err = stim.Build([]float64{0.2, 0.1}, stim.Single, nil, nil)
		Expect(err).To(MatchError(muscle.ErrUnordered))
	})

	It("reports its mean frequency", func() {
		tr, err := stim.Build([]float64{0, 0.05, 0.1, 0.15}, stim.Single, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.MeanFrequency()).To(BeNumerically("~", 20, 1e-9))
	})

	Context("against a model", func() {
		It("rejects durations below pd0 before anything runs", func() {
			tr, err := stim.Build(base, stim.Single, []float64{0.0001}, nil)
			Expect(err).NotTo(HaveOccurred())

			m := muscle.NewDing2007()
			err = tr.Apply(m)
			Expect(err).To(MatchError(muscle.ErrBelowMinimum))
			Expect(err.Error()).To(ContainSubstring("Pulse duration must be greater than minimum pulse duration"))
			Expect(m.History().Times).To(BeEmpty())
		})

		It("rejects intensities below the model minimum", func() {
			tr, err := stim.Build(base, stim.Single, nil, []float64{10})
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Validate(muscle.NewHmed2018WithFatigue())).To(MatchError(muscle.ErrBelowMinimum))
		})

		It("requires the per-pulse values of the family", func() {
			tr, err := stim.Build(base, stim.Single, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Validate(muscle.NewDing2007())).To(MatchError(muscle.ErrLengthMismatch))
			Expect(tr.Validate(muscle.NewDing2003())).To(Succeed())
		})

		It("pushes times and values through the setter hooks", func() {
			tr, err := stim.Build(base, stim.Triplet, []float64{0.0003}, []float64{50})
			Expect(err).NotTo(HaveOccurred())

			d := muscle.NewDing2007()
			Expect(tr.Apply(d)).To(Succeed())
			Expect(d.History().Times).To(Equal(tr.Times))
			Expect(d.History().Durations).To(HaveLen(9))
			Expect(d.History().Intensities).To(BeEmpty())

			h := muscle.NewHmed2018()
			Expect(tr.Apply(h)).To(Succeed())
			Expect(h.History().Intensities).To(HaveEach(50.0))

			// applying again replaces the previous train
			short, err := stim.Build([]float64{0}, stim.Single, []float64{0.0004}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(short.Apply(d)).To(Succeed())
			Expect(d.History().Durations).To(Equal([]float64{0.0004}))
		})
	})
})
