// Package analysis post-processes the reported history of a run.
//
//   - [PowerSpectrum]: one-sided spectrum of a diagnostic series, used to
//     spot the ringing of an undamped dynamic run
//   - [NewCurve]: pairs two record series, e.g. load against tip displacement
//   - [Curve.Fit]: least-squares slope of a curve, the apparent compliance of
//     the elastic part of a load-displacement curve
//   - [CurveToASCII]: scatter plot for the terminal
//
// # Ringing
//
// An explicit dynamic scheme with little damping oscillates at the lowest
// modes of the body:
//
//	ps := analysis.PowerSpectrum(result.TipDisplacements(), dt*float64(interval))
//	f, _ := ps.Dominant()
package analysis
