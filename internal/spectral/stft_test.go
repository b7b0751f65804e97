package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiyapatanaik/edf2cfs/internal/dsp"
	"github.com/amiyapatanaik/edf2cfs/internal/testutil"
)

func TestEpochCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{2999, 0},
		{3000, 1},
		{3001, 1},
		{6000, 2},
		{6500, 2},
		{60000, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EpochCount(tt.n), "n=%d", tt.n)
	}
}

func TestFrameGeometry(t *testing.T) {
	// All 32 frame starts fit inside an epoch.
	lastStart := (TimeBins - 1) * Hop
	assert.Equal(t, 2790, lastStart)
	assert.LessOrEqual(t, lastStart+WindowLen, EpochLen)
}

func TestFeaturesShape(t *testing.T) {
	e := NewExtractor()

	for _, epochs := range []int{0, 1, 3} {
		n := epochs*EpochLen + 137 // trailing samples are discarded
		sig := make([]float64, n)
		tensor := e.Features(sig, sig, sig)
		assert.Len(t, tensor, epochs*EpochSize, "epochs=%d", epochs)
	}
}

func TestFeaturesConstantSignal(t *testing.T) {
	e := NewExtractor()

	const level = 2.0
	eeg := make([]float64, EpochLen)
	for i := range eeg {
		eeg[i] = level
	}
	zero := make([]float64, EpochLen)

	tensor := e.Features(eeg, zero, zero)
	require.Len(t, tensor, EpochSize)
	testutil.AssertNoNaNOrInf(t, tensor)

	var windowSum float64
	for _, w := range dsp.Hamming(WindowLen) {
		windowSum += w
	}

	// EEG DC bin of every frame equals level * sum(window); the EOG
	// channels stay all zero.
	for tb := range TimeBins {
		base := (0*TimeBins + tb) * FreqBins
		assert.InDelta(t, level*windowSum, tensor[base], 1e-9, "frame %d", tb)
	}
	for c := 1; c < Channels; c++ {
		base := c * TimeBins * FreqBins
		for i := range TimeBins * FreqBins {
			assert.Zero(t, tensor[base+i])
		}
	}
}

func TestFeaturesSineBin(t *testing.T) {
	e := NewExtractor()

	// A sine exactly on DFT bin 16 concentrates its energy there.
	const bin = 16
	eeg := make([]float64, EpochLen)
	for i := range eeg {
		eeg[i] = math.Sin(2 * math.Pi * bin * float64(i) / WindowLen)
	}
	zero := make([]float64, EpochLen)

	tensor := e.Features(eeg, zero, zero)
	require.Len(t, tensor, EpochSize)

	for tb := range TimeBins {
		base := tb * FreqBins
		peak := 1
		for f := 1; f < FreqBins; f++ {
			if tensor[base+f] > tensor[base+peak] {
				peak = f
			}
		}
		assert.Equal(t, bin, peak, "frame %d", tb)
	}
}

func TestFeaturesChannelOrder(t *testing.T) {
	e := NewExtractor()

	mk := func(level float64) []float64 {
		s := make([]float64, EpochLen)
		for i := range s {
			s[i] = level
		}
		return s
	}

	tensor := e.Features(mk(1), mk(2), mk(3))
	require.Len(t, tensor, EpochSize)

	// DC bins scale with each channel's level, in EEG, EOG-left,
	// EOG-right order.
	dc := func(c int) float64 { return tensor[c*TimeBins*FreqBins] }
	assert.InDelta(t, 2*dc(0), dc(1), 1e-9)
	assert.InDelta(t, 3*dc(0), dc(2), 1e-9)
}

func TestFeaturesShortEOG(t *testing.T) {
	e := NewExtractor()

	eeg := make([]float64, 2*EpochLen)
	short := make([]float64, EpochLen/2) // EOG shorter than the EEG
	for i := range short {
		short[i] = 1.0
	}

	tensor := e.Features(eeg, short, short)
	require.Len(t, tensor, 2*EpochSize)
	testutil.AssertNoNaNOrInf(t, tensor)

	// Frames entirely past the short channel's end are silent.
	base := ((1*Channels+1)*TimeBins + 0) * FreqBins
	for f := range FreqBins {
		assert.Zero(t, tensor[base+f])
	}
}

func TestFeaturesDeterministic(t *testing.T) {
	sig := make([]float64, EpochLen)
	for i := range sig {
		sig[i] = math.Sin(0.05 * float64(i))
	}

	a := NewExtractor().Features(sig, sig, sig)
	b := NewExtractor().Features(sig, sig, sig)
	assert.Equal(t, a, b)
}
