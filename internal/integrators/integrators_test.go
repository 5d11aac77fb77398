package integrators

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/peridyn/internal/compute"
	"github.com/san-kum/peridyn/internal/dynamo"
	"github.com/san-kum/peridyn/internal/model"
	"github.com/san-kum/peridyn/internal/noise"
)

type fixedNoise struct {
	amp float64
	n   int
}

func (f fixedNoise) Sample(seed int64, steps int) ([]dynamo.Field, error) {
	out := make([]dynamo.Field, steps)
	for s := range out {
		out[s] = dynamo.NewField(f.n)
		for i := range out[s] {
			out[s][i] = f.amp * float64(seed+1)
		}
	}
	return out, nil
}

type brokenDevice struct {
	*compute.CPUBackend
	err error
}

func (d *brokenDevice) Err() error { return d.err }

func deviceContext(m *model.Model) (*compute.Context, *brokenDevice) {
	var dev *brokenDevice
	ctx, err := compute.NewContext(m, compute.Options{NewBackend: func(b *compute.Buffers) (compute.Backend, error) {
		dev = &brokenDevice{CPUBackend: compute.NewCPUBackend(b, 1)}
		return dev, nil
	}})
	Expect(err).NotTo(HaveOccurred())
	return ctx, dev
}

var deterministic = []dynamo.Scheme{
	dynamo.SchemeEuler,
	dynamo.SchemeLumpedEuler,
	dynamo.SchemeEulerCromer,
	dynamo.SchemeVelocityVerlet,
	dynamo.SchemeRK4,
	dynamo.SchemeDormandPrince,
	dynamo.SchemeHeunEuler,
}

var _ = Describe("every scheme", func() {
	for _, s := range deterministic {
		s := s

		Context(string(s), func() {
			It("keeps an unloaded body at rest", func() {
				m := pairModel()
				it := build(m, config(s))
				for i := 0; i < 5; i++ {
					_, _, err := Advance(it, 10)
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(it.Displacement()).To(Equal(dynamo.NewField(2)))
				Expect(it.Report().BrokenBonds).To(BeZero())
				Expect(it.Stats().Steps).To(Equal(5))
			})

			It("moves a free node after its ramped neighbour", func() {
				m := pairModel()
				m.SetDisplacementBC([]int{0}, 0, model.BCRamp, 1)
				it := build(m, config(s))
				for i := 0; i < 3; i++ {
					_, _, err := Advance(it, 100)
					Expect(err).NotTo(HaveOccurred())
				}
				u := it.Displacement()
				t := it.Stats().Time
				Expect(u[0]).To(BeNumerically("~", t, 1e-12))
				Expect(u[3]).To(BeNumerically(">", 0))
				Expect(u[1]).To(BeZero())
			})

			It("never heals a broken bond", func() {
				it := build(tensionPlate(0.05), config(s))
				prev := 0
				for i := 0; i < 40; i++ {
					_, _, err := Advance(it, 100)
					Expect(err).NotTo(HaveOccurred())
					broken := it.Report().BrokenBonds
					Expect(broken).To(BeNumerically(">=", prev))
					prev = broken
				}
				Expect(prev).To(BeNumerically(">", 0))
			})

			It("reports without changing state", func() {
				it := build(tensionPlate(0.01), config(s))
				_, _, err := Advance(it, 100)
				Expect(err).NotTo(HaveOccurred())
				u, st := it.Displacement(), it.Stats()
				a, b := it.Report(), it.Report()
				Expect(a).To(Equal(b))
				Expect(it.Displacement()).To(Equal(u))
				Expect(it.Stats()).To(Equal(st))
				Expect(a.TipDisplacement.Valid).To(BeTrue())
				Expect(a.Damage).To(HaveLen(16 * 16))
			})

			It("restarts from rest after Reset", func() {
				it := build(tensionPlate(0.05), config(s))
				for i := 0; i < 20; i++ {
					_, _, err := Advance(it, 100)
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(it.Reset(20)).To(Succeed())
				Expect(it.Displacement()).To(Equal(dynamo.NewField(16 * 16)))
				Expect(it.Report().BrokenBonds).To(BeZero())
				Expect(it.Report().MaxDamage()).To(BeZero())
				Expect(it.Stats().Steps).To(BeZero())
			})

			It("refuses to step once closed", func() {
				it := build(pairModel(), config(s))
				it.Close()
				_, err := it.Step()
				Expect(err).To(MatchError(dynamo.ErrClosed))
			})
		})
	}
})

var _ = Describe("Euler", func() {
	run := func(s dynamo.Scheme, r dynamo.Reduction, steps int) (dynamo.Field, []int) {
		cfg := config(s)
		cfg.Reduction = r
		it := build(tensionPlate(0.05), cfg)
		for i := 0; i < steps; i++ {
			_, err := it.Step()
			Expect(err).NotTo(HaveOccurred())
		}
		rep := it.Report()
		var broken []int
		for i, d := range rep.Damage {
			if d > 0 {
				broken = append(broken, i)
			}
		}
		return it.Displacement(), broken
	}

	It("gives the same bits inline, buffered and lumped", func() {
		ui, di := run(dynamo.SchemeEuler, dynamo.ReductionInline, 30)
		ub, db := run(dynamo.SchemeEuler, dynamo.ReductionBuffered, 30)
		ul, dl := run(dynamo.SchemeLumpedEuler, dynamo.ReductionInline, 30)
		Expect(ub).To(Equal(ui))
		Expect(ul).To(Equal(ui))
		Expect(db).To(Equal(di))
		Expect(dl).To(Equal(di))
	})

	It("does not report a tip force when lumped", func() {
		it := build(tensionPlate(0.01), config(dynamo.SchemeLumpedEuler))
		_, err := it.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(it.Report().TipForce.Valid).To(BeFalse())
		Expect(it.Report().TipDisplacement.Valid).To(BeTrue())
	})

	It("reports no data without tip nodes", func() {
		it := build(pairModel(), config(dynamo.SchemeEuler))
		_, err := it.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(it.Report().TipDisplacement).To(Equal(dynamo.NoData()))
	})

	It("scales force boundary conditions with the load", func() {
		m := pairModel()
		m.SetForceBC([]int{1}, 1, 1.0)
		it := build(m, config(dynamo.SchemeEuler))
		it.IncrementLoad(0.5)
		_, err := it.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(it.Displacement()[4]).To(BeNumerically("~", 0.5e-3, 1e-15))
	})

	It("ignores the load without force boundary conditions", func() {
		it := build(pairModel(), config(dynamo.SchemeEuler))
		it.IncrementLoad(10)
		_, err := it.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(it.Displacement()).To(Equal(dynamo.NewField(2)))
	})
})

var _ = Describe("adaptive schemes", func() {
	for _, s := range []dynamo.Scheme{dynamo.SchemeDormandPrince, dynamo.SchemeHeunEuler} {
		s := s

		Context(string(s), func() {
			It("grows dt while the error stays small", func() {
				cfg := config(s)
				it := build(pairModel(), cfg)
				res, err := it.Step()
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Accepted).To(BeTrue())
				Expect(res.NextDt).To(BeNumerically("~", cfg.Dt*1.1, 1e-18))
			})

			It("shrinks an oversized dt until the step is accepted", func() {
				cfg := config(s)
				cfg.Dt = 50
				errMax, _ := dynamo.DefaultErrorBounds(s)
				it := build(tensionPlate(0.5), cfg)

				res, rejected, err := Advance(it, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(rejected).To(BeNumerically(">", 0))
				Expect(res.Accepted).To(BeTrue())
				Expect(res.Dt).To(BeNumerically("<", cfg.Dt))
				Expect(res.Error).To(BeNumerically("<=", errMax))
				Expect(it.Stats().Rejected).To(Equal(rejected))
				Expect(it.Stats().Steps).To(Equal(1))
			})

			It("rejects without committing or breaking bonds", func() {
				cfg := config(s)
				cfg.Dt = 0.5
				cfg.ErrorMax = 1e-30
				cfg.ErrorMin = 1e-40
				it := build(tensionPlate(0.5), cfg)

				res, err := it.Step()
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Accepted).To(BeFalse())
				Expect(res.Dt).To(Equal(0.5))
				Expect(res.NextDt).To(BeNumerically("~", 0.5/1.1, 1e-15))
				Expect(res.Error).To(BeNumerically(">", cfg.ErrorMax))
				Expect(it.Displacement()).To(Equal(dynamo.NewField(16 * 16)))
				Expect(it.Report().BrokenBonds).To(BeZero())
				Expect(it.Stats().Rejected).To(Equal(1))
				Expect(it.Stats().Steps).To(BeZero())
			})

			It("gives up after too many rejections", func() {
				cfg := config(s)
				cfg.Dt = 0.5
				cfg.ErrorMax = 1e-30
				cfg.ErrorMin = 1e-40
				it := build(tensionPlate(0.5), cfg)

				_, rejected, err := Advance(it, 5)
				Expect(err).To(MatchError(dynamo.ErrTooManyRejections))
				Expect(rejected).To(Equal(6))
			})

			It("stops at the dt floor", func() {
				cfg := config(s)
				cfg.Dt = 0.5
				cfg.ErrorMax = 1e-30
				cfg.ErrorMin = 1e-40
				cfg.MinDt = 0.4
				it := build(tensionPlate(0.5), cfg)

				_, rejected, err := Advance(it, 0)
				Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
				Expect(rejected).To(Equal(2))
			})
		})
	}
})

var _ = Describe("StochasticEuler", func() {
	It("needs a noise source", func() {
		m := pairModel()
		_, err := New(mustContext(m), config(dynamo.SchemeStochasticEuler))
		Expect(err).To(MatchError(dynamo.ErrSetup))
	})

	It("adds the noise increment of each step", func() {
		cfg := config(dynamo.SchemeStochasticEuler)
		it := build(pairModel(), cfg, WithNoise(fixedNoise{amp: 1e-4, n: 2}, 3))
		for i := 0; i < 3; i++ {
			_, err := it.Step()
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(it.Displacement()[1]).To(BeNumerically("~", 3e-4, 1e-12))

		_, err := it.Step()
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
	})

	It("draws new noise for every realisation", func() {
		cfg := config(dynamo.SchemeStochasticEuler)
		it := build(pairModel(), cfg, WithNoise(fixedNoise{amp: 1e-4, n: 2}, 2))
		_, err := it.Step()
		Expect(err).NotTo(HaveOccurred())
		first := it.Displacement()

		Expect(it.Reset(2)).To(Succeed())
		Expect(it.Displacement()).To(Equal(dynamo.NewField(2)))
		_, err = it.Step()
		Expect(err).NotTo(HaveOccurred())
		Expect(it.Displacement()[1]).To(BeNumerically("~", 2*first[1], 1e-12))
		Expect(it.(*StochasticEuler).Realisation()).To(Equal(1))
	})

	It("runs on correlated noise", func() {
		m := tensionPlate(0.01)
		gen, err := noise.New(noise.SquaredExponential(m.Coords, 0.2, 1, 1e-6), 1e-6)
		Expect(err).NotTo(HaveOccurred())
		cfg := config(dynamo.SchemeStochasticEuler)
		cfg.Seed = 7
		it := build(m, cfg, WithNoise(gen, 5))
		for i := 0; i < 5; i++ {
			_, err := it.Step()
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(it.Displacement().IsValid()).To(BeTrue())
	})
})

var _ = Describe("a failed device", func() {
	for _, s := range []dynamo.Scheme{dynamo.SchemeEuler, dynamo.SchemeVelocityVerlet, dynamo.SchemeDormandPrince} {
		s := s

		It("fails the step of "+string(s)+" without committing it", func() {
			ctx, dev := deviceContext(tensionPlate(0.01))
			it, err := New(ctx, config(s))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(it.Close)

			_, err = it.Step()
			Expect(err).NotTo(HaveOccurred())
			st := it.Stats()

			dev.err = errors.New("kernel launch failed")
			res, err := it.Step()
			Expect(err).To(MatchError(dynamo.ErrDevice))
			Expect(res.Accepted).To(BeFalse())
			Expect(it.Stats().Steps).To(Equal(st.Steps))
			Expect(it.Stats().Time).To(Equal(st.Time))
		})
	}
})

var _ = Describe("New", func() {
	It("rejects unknown schemes", func() {
		cfg := dynamo.DefaultConfig()
		cfg.Scheme = "leapfrog"
		_, err := New(mustContext(pairModel()), cfg)
		Expect(err).To(MatchError(dynamo.ErrUnknownScheme))
	})

	It("lists every scheme", func() {
		Expect(Names()).To(HaveLen(len(dynamo.Schemes)))
	})
})
