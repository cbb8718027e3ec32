// Package basis builds the temporal basis sets used to model a
// haemodynamic response: the canonical two-gamma HRF with time and
// dispersion derivatives, gamma densities, and Fourier or Hann-tapered
// Fourier sets.
//
// Every set returned by [Get] is orthogonalised column by column
// ([Orthogonalize]) so each column only carries what the earlier ones do
// not explain.
//
// # Usage
//
//	bf, err := basis.Get(basis.Config{
//		Kind:        basis.KindCanonical,
//		Dt:          tr / 3,
//		Resolution:  3,
//		Length:      24,
//		Derivatives: 2,
//	})
//
// The single-curve form is also available:
//
//	hrf := basis.CanonicalHRF(tr, 16, basis.DefaultCanonicalParams())
package basis
