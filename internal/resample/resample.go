// Package resample implements deterministic rational-ratio polyphase
// resampling between integer sample rates.
//
// The resampler models the classic upsample-filter-decimate chain: the
// input is conceptually zero-stuffed by L, low-pass filtered at the
// lower of the two Nyquist frequencies, and decimated by M, where
// L/M = outputRate/inputRate reduced to lowest terms. The filter is a
// Kaiser-windowed sinc, so the impulse response is fully documented by
// the (halfWidth, attenuation) constants below and the output is a
// pure function of the input samples and the two rates.
package resample

import (
	"fmt"
	"math"

	"github.com/amiyapatanaik/edf2cfs/internal/dsp"
	"github.com/tphakala/simd/f64"
)

const (
	// halfWidth is the prototype filter's half-width in input samples.
	// The prototype spans 2*halfWidth*L+1 taps; each polyphase branch
	// sees 2*halfWidth+1 input samples.
	halfWidth = 10

	// attenuation is the Kaiser design stopband attenuation in dB.
	attenuation = 80.0
)

// Resampler converts a signal from one integer sample rate to another.
// Construction designs the polyphase filter bank; Process is a pure
// function of its input, so a Resampler is safe for concurrent use.
type Resampler struct {
	inputRate  int
	outputRate int

	up   int // L
	down int // M

	// phases[p] holds the branch coefficients for output phase p,
	// ordered to line up with an ascending window of input samples.
	phases   [][]float64
	taps     int // taps per branch, 2*halfWidth+1
	identity bool
}

// New creates a resampler from inputRate to outputRate (both in Hz).
func New(inputRate, outputRate int) (*Resampler, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("sample rates must be positive: input=%d, output=%d", inputRate, outputRate)
	}

	g := gcd(inputRate, outputRate)
	up := outputRate / g
	down := inputRate / g

	r := &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		up:         up,
		down:       down,
		taps:       2*halfWidth + 1,
		identity:   up == 1 && down == 1,
	}

	if !r.identity {
		r.phases = designBank(up, down)
	}
	return r, nil
}

// Ratio returns outputRate / inputRate.
func (r *Resampler) Ratio() float64 {
	return float64(r.outputRate) / float64(r.inputRate)
}

// OutLen returns the output length for an input of n samples:
// round(n * outputRate / inputRate).
func (r *Resampler) OutLen(n int) int {
	return int(math.Round(float64(n) * float64(r.up) / float64(r.down)))
}

// Process resamples the input and returns exactly OutLen(len(input))
// samples. The output is time-aligned with the input: output sample i
// corresponds to input position i*M/L, with the prototype's group
// delay removed and zero-padded edges.
func (r *Resampler) Process(input []float64) []float64 {
	n := len(input)
	outLen := r.OutLen(n)
	out := make([]float64, outLen)
	if outLen == 0 {
		return out
	}

	if r.identity {
		copy(out, input)
		return out
	}

	// Output i draws on input samples q0-halfWidth .. q0+halfWidth
	// with q0 = floor(i*M/L); pad both edges so the window slice
	// always stays in bounds.
	padded := make([]float64, n+2*halfWidth+1)
	copy(padded[halfWidth:], input)

	up64 := int64(r.up)
	down64 := int64(r.down)

	for i := range outLen {
		u := int64(i) * down64
		q0 := int(u / up64)
		p := int(u % up64)
		window := padded[q0 : q0+r.taps]
		out[i] = f64.DotProductUnsafe(window, r.phases[p])
	}
	return out
}

// designBank builds the per-branch coefficient slices from a
// Kaiser-windowed sinc prototype.
//
// The prototype runs at the upsampled rate inputRate*L with normalised
// cutoff 1/max(L,M) and gain L to compensate the zero stuffing. For
// output phase p, the tap applied to input sample q0-halfWidth+t is
// prototype index p + (2*halfWidth-t)*L; indices beyond the prototype
// (only reachable for p > 0 at t = 0) stay zero.
func designBank(up, down int) [][]float64 {
	taps := 2*halfWidth + 1
	protoLen := 2*halfWidth*up + 1
	center := halfWidth * up

	fc := 1.0 / float64(max(up, down))
	beta := dsp.KaiserBeta(attenuation)
	window := dsp.KaiserWindow(protoLen, beta)

	proto := make([]float64, protoLen)
	for i := range protoLen {
		x := float64(i - center)
		proto[i] = float64(up) * fc * dsp.Sinc(fc*x) * window[i]
	}

	phases := make([][]float64, up)
	for p := range up {
		branch := make([]float64, taps)
		for t := range taps {
			src := p + (2*halfWidth-t)*up
			if src < protoLen {
				branch[t] = proto[src]
			}
		}
		phases[p] = branch
	}
	return phases
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
