// Package spectral extracts the fixed-shape per-epoch STFT feature
// tensor consumed by the CFS container.
package spectral

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/amiyapatanaik/edf2cfs/internal/dsp"
)

// Tensor geometry. The serialised payload is epoch-major, then
// channel, then time bin, then frequency bin.
const (
	WindowLen = 128  // samples per DFT frame
	EpochLen  = 3000 // samples per epoch (30 s at 100 Hz)
	Hop       = 90   // frame hop within an epoch
	TimeBins  = 32   // frames per epoch, starts j = t*Hop
	FreqBins  = 32   // DFT magnitude bins kept, DC through bin 31
	Channels  = 3    // EEG, EOG-left, EOG-right

	// EpochSize is the number of tensor values per epoch.
	EpochSize = Channels * TimeBins * FreqBins
)

// EpochCount returns the number of whole epochs in a signal of n
// samples; trailing samples are discarded.
func EpochCount(n int) int {
	return n / EpochLen
}

// Extractor computes short-time magnitude spectra with a fixed
// 128-point real FFT plan. An Extractor is not safe for concurrent
// use; each worker creates its own, which amortises the plan across
// that worker's epochs.
type Extractor struct {
	fft    *fourier.FFT
	window []float64
	frame  []float64
	coeffs []complex128
}

// NewExtractor creates an extractor with a fresh FFT plan and Hamming
// window.
func NewExtractor() *Extractor {
	return &Extractor{
		fft:    fourier.NewFFT(WindowLen),
		window: dsp.Hamming(WindowLen),
		frame:  make([]float64, WindowLen),
		coeffs: make([]complex128, WindowLen/2+1),
	}
}

// Features fills the [E, 3, 32, 32] tensor from the three resampled
// channels, in the fixed order EEG, EOG-left, EOG-right. The epoch
// count E is derived from the EEG length alone; a shorter EOG channel
// contributes zero-padded frames past its end.
//
// Values are returned as float64 in serialisation order; narrowing to
// binary32 happens at payload encoding.
func (e *Extractor) Features(eeg, eogl, eogr []float64) []float64 {
	epochs := EpochCount(len(eeg))
	tensor := make([]float64, epochs*EpochSize)

	channels := [Channels][]float64{eeg, eogl, eogr}

	for ep := range epochs {
		for t := range TimeBins {
			start := ep*EpochLen + t*Hop
			for c, ch := range channels {
				e.windowedFrame(ch, start)
				e.fft.Coefficients(e.coeffs, e.frame)

				base := ((ep*Channels+c)*TimeBins + t) * FreqBins
				for f := range FreqBins {
					tensor[base+f] = cmplx.Abs(e.coeffs[f])
				}
			}
		}
	}
	return tensor
}

// windowedFrame loads WindowLen samples starting at start into the
// frame buffer, multiplied by the Hamming window, zero-filling beyond
// the channel's end.
func (e *Extractor) windowedFrame(ch []float64, start int) {
	for i := range WindowLen {
		idx := start + i
		if idx < len(ch) {
			e.frame[i] = ch[idx] * e.window[i]
		} else {
			e.frame[i] = 0
		}
	}
}
