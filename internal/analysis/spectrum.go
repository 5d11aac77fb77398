package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spectrum is a one-sided amplitude spectrum.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum returns the amplitude of each frequency bin of a series
// sampled every dt. The mean is removed first so bin 0 only carries drift.
func PowerSpectrum(data []float64, dt float64) Spectrum {
	n := len(data)
	if n < 2 || dt <= 0 {
		return Spectrum{}
	}

	centred := make([]float64, n)
	copy(centred, data)
	floats.AddConst(-stat.Mean(data, nil), centred)

	coeff := fourier.NewFFT(n).Coefficients(nil, centred)
	ps := Spectrum{
		Freqs: make([]float64, len(coeff)),
		Power: make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		ps.Freqs[i] = float64(i) / (float64(n) * dt)
		ps.Power[i] = cmplx.Abs(c) / float64(n)
	}
	return ps
}

// Dominant returns the strongest non-zero frequency and its amplitude.
func (s Spectrum) Dominant() (freq, power float64) {
	if len(s.Power) < 2 {
		return 0, 0
	}
	i := floats.MaxIdx(s.Power[1:]) + 1
	return s.Freqs[i], s.Power[i]
}
