package dsp

import "github.com/tphakala/simd/f64"

// BandPassOrder is the fixed order of the pipeline's band-pass filters.
// The designed filter has BandPassOrder+1 taps.
const BandPassOrder = 50

// DesignBandPass designs a linear-phase band-pass FIR filter of the
// given order using the windowed-ideal method with a Hamming window.
//
// flow and fhigh are the passband edges in Hz, fs is the sample rate
// the filter will run at. The cutoffs are pre-normalised to 2*f/fs and
// the taps are
//
//	h[i] = w[i] * (fh*sinc(fh*(i-N/2)) - fl*sinc(fl*(i-N/2)))
//
// for i in [0, N]. The coefficients are intentionally NOT renormalised
// after windowing; the resulting passband gain is part of the feature
// tensor's reference behaviour.
func DesignBandPass(order int, flow, fhigh, fs float64) []float64 {
	n := order
	fl := 2.0 * flow / fs
	fh := 2.0 * fhigh / fs

	w := Hamming(n + 1)
	h := make([]float64, n+1)
	center := float64(n) / 2.0

	for i := range n + 1 {
		x := float64(i) - center
		h[i] = w[i] * (fh*Sinc(fh*x) - fl*Sinc(fl*x))
	}
	return h
}

// ConvolveSame convolves x with taps and returns an output of the same
// length as x, centre-aligned: out[k] = sum_i taps[i]*x[k+d-i] with
// d = (len(taps)-1)/2 and x treated as zero outside its bounds. For an
// odd-length linear-phase filter this cancels the group delay, so
// out[k] lines up with x[k].
func ConvolveSame(x, taps []float64) []float64 {
	n := len(x)
	m := len(taps)
	if n == 0 || m == 0 {
		return make([]float64, n)
	}

	trail := (m - 1) / 2
	lead := m - 1 - trail

	padded := make([]float64, lead+n+trail)
	copy(padded[lead:], x)

	// f64.ConvolveValid correlates the signal with the kernel, so the
	// taps go in reversed.
	rev := make([]float64, m)
	for i := range m {
		rev[i] = taps[m-1-i]
	}

	out := make([]float64, n)
	f64.ConvolveValid(out, padded, rev)
	return out
}

// MeanPair returns the sample-wise average of two equal-length signals.
// The two inputs are filtered independently before averaging; keeping
// the average after the convolutions matches the reference rounding.
func MeanPair(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = (a[i] + b[i]) / 2.0
	}
	return out
}
