package dsp

import "math"

const (
	// Threshold between the series and asymptotic I0 expansions.
	besselSmallArg = 3.75

	// Kaiser beta formula breakpoints (Kaiser & Schafer).
	kaiserAttHigh   = 50.0
	kaiserAttMedium = 21.0
)

// BesselI0 computes the modified Bessel function of the first kind,
// order zero. Used for Kaiser window generation in the resampler's
// prototype filter design.
//
// Polynomial approximations from Abramowitz & Stegun (9.8.1, 9.8.2);
// relative error below about 2e-7.
func BesselI0(x float64) float64 {
	ax := math.Abs(x)

	if ax < besselSmallArg {
		t := x / besselSmallArg
		t *= t
		return 1.0 + t*(3.5156229+t*(3.0899424+t*(1.2067492+
			t*(0.2659732+t*(0.0360768+t*0.0045813)))))
	}

	t := besselSmallArg / ax
	result := 0.39894228 + t*(0.01328592+t*(0.00225319+
		t*(-0.00157565+t*(0.00916281+t*(-0.02057706+
			t*(0.02635537+t*(-0.01647633+t*0.00392377)))))))
	return math.Exp(ax) * result / math.Sqrt(ax)
}

// KaiserBeta computes the Kaiser window beta parameter for the desired
// stopband attenuation in dB.
//
// Formula from Kaiser & Schafer:
//   - att > 50 dB:       beta = 0.1102*(att - 8.7)
//   - 21 dB < att <= 50: beta = 0.5842*(att-21)^0.4 + 0.07886*(att-21)
//   - att <= 21 dB:      beta = 0
func KaiserBeta(attenuation float64) float64 {
	if attenuation > kaiserAttHigh {
		return 0.1102 * (attenuation - 8.7)
	}
	if attenuation >= kaiserAttMedium {
		delta := attenuation - kaiserAttMedium
		return 0.5842*math.Pow(delta, 0.4) + 0.07886*delta
	}
	return 0.0
}

// KaiserWindow generates a Kaiser window of the given length and beta.
// The window is symmetric: w[i] == w[length-1-i].
func KaiserWindow(length int, beta float64) []float64 {
	if length < 1 {
		return []float64{}
	}

	window := make([]float64, length)
	if length == 1 {
		window[0] = 1.0
		return window
	}

	alpha := float64(length-1) / 2.0
	i0Beta := BesselI0(beta)

	for n := range length {
		x := (float64(n) - alpha) / alpha
		window[n] = BesselI0(beta*math.Sqrt(1.0-x*x)) / i0Beta
	}
	return window
}
