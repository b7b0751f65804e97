package edf2cfs

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amiyapatanaik/edf2cfs/internal/cfs"
	"github.com/amiyapatanaik/edf2cfs/internal/edfio"
	"github.com/amiyapatanaik/edf2cfs/internal/spectral"
)

// testRecording describes a synthetic EDF to write for a test.
type testRecording struct {
	rates   [4]int    // per-role sample rates in Hz
	seconds int       // recording length, one data record per second
	units   [4]string // per-role physical dimensions
	labels  [4]string
}

func defaultRecording(rate, seconds int) testRecording {
	return testRecording{
		rates:   [4]int{rate, rate, rate, rate},
		seconds: seconds,
		units:   [4]string{"uV", "uV", "uV", "uV"},
		labels:  [4]string{"C3-A2", "C4-A1", "EOG(L)", "EOG(R)"},
	}
}

// writeTestEDF synthesises a four-channel recording with slow sine
// activity on every channel and returns its path.
func writeTestEDF(t *testing.T, dir, name string, rec testRecording) string {
	t.Helper()

	signals := make([]edfio.Signal, 4)
	for i := range signals {
		signals[i] = edfio.Signal{
			Label:             rec.labels[i],
			PhysicalDimension: rec.units[i],
			PhysicalMin:       -32768,
			PhysicalMax:       32767,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  rec.rates[i],
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := edfio.Create(f, edfio.Header{
		Version:            "0",
		PatientID:          "X X X X",
		RecordingID:        "Startdate 01-JAN-2024",
		StartTime:          time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		Signals:            signals,
	})
	require.NoError(t, err)

	freqs := [4]float64{2.0, 2.5, 0.7, 0.9}
	amps := [4]float64{30, 25, 40, 35}
	for sec := range rec.seconds {
		record := make([][]float64, 4)
		for ch := range 4 {
			rate := rec.rates[ch]
			record[ch] = make([]float64, rate)
			for i := range rate {
				tt := float64(sec) + float64(i)/float64(rate)
				record[ch][i] = amps[ch] * math.Sin(2*math.Pi*freqs[ch]*tt)
			}
		}
		require.NoError(t, w.WriteRecord(record))
	}
	require.NoError(t, w.Close())
	return path
}

func TestConvert200Hz(t *testing.T) {
	dir := t.TempDir()
	path := writeTestEDF(t, dir, "night1.edf", defaultRecording(200, 600))

	res := Convert(path, Options{Channels: fullSelection()})
	require.NoError(t, res.Err)
	assert.Equal(t, 20, res.Epochs)
	assert.Equal(t, filepath.Join(dir, "night1.cfs"), res.Output)

	image, err := os.ReadFile(res.Output)
	require.NoError(t, err)

	// 600 s at 200 Hz resamples to 60000 samples: 20 epochs.
	want := []byte{0x43, 0x46, 0x53, 0x01, 0x20, 0x20, 0x03, 0x14, 0x00}
	assert.Equal(t, want, image[:9])

	hdr, payload, err := cfs.Decode(image)
	require.NoError(t, err)
	assert.Equal(t, uint16(20), hdr.NEpochs)
	assert.Len(t, payload, 20*spectral.EpochSize)
}

func TestConvertMissingLabel(t *testing.T) {
	dir := t.TempDir()
	rec := defaultRecording(200, 35)
	rec.labels[1] = "F4-A1" // no C4 in the file
	path := writeTestEDF(t, dir, "night1.edf", rec)

	res := Convert(path, Options{Channels: fullSelection()})
	var labelErr *LabelNotFoundError
	require.ErrorAs(t, res.Err, &labelErr)
	assert.Equal(t, RoleC4, labelErr.Role)

	_, err := os.Stat(res.Output)
	assert.True(t, os.IsNotExist(err), "no artifact after a failed job")
}

func TestConvertAlreadyConverted(t *testing.T) {
	dir := t.TempDir()
	path := writeTestEDF(t, dir, "night1.edf", defaultRecording(200, 35))

	existing := filepath.Join(dir, "night1.cfs")
	require.NoError(t, os.WriteFile(existing, []byte("existing artifact"), 0o644))

	res := Convert(path, Options{Channels: fullSelection()})
	assert.ErrorIs(t, res.Err, ErrAlreadyConverted)

	got, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, []byte("existing artifact"), got, "existing artifact is untouched")

	// Overwrite enabled converts over it.
	res = Convert(path, Options{Channels: fullSelection(), Overwrite: true})
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Epochs)
}

func TestConvertRateMismatch(t *testing.T) {
	dir := t.TempDir()
	rec := defaultRecording(200, 35)
	rec.rates[0] = 256
	path := writeTestEDF(t, dir, "night1.edf", rec)

	res := Convert(path, Options{Channels: fullSelection()})
	var rateErr *RateMismatchError
	require.ErrorAs(t, res.Err, &rateErr)
	assert.Equal(t, 256, rateErr.C3Rate)
	assert.Equal(t, 200, rateErr.C4Rate)
}

func TestConvertOpenFailure(t *testing.T) {
	dir := t.TempDir()

	res := Convert(filepath.Join(dir, "missing.edf"), Options{Channels: fullSelection()})
	var openErr *OpenError
	assert.ErrorAs(t, res.Err, &openErr)
	assert.Equal(t, "edf-open-failure", ReportCode(res.Err))

	bad := filepath.Join(dir, "garbage.edf")
	require.NoError(t, os.WriteFile(bad, []byte("not an EDF"), 0o644))
	res = Convert(bad, Options{Channels: fullSelection()})
	assert.ErrorAs(t, res.Err, &openErr)
}

func TestConvertUnitScaling(t *testing.T) {
	dir := t.TempDir()

	uv := defaultRecording(200, 35)
	uvPath := writeTestEDF(t, dir, "uv.edf", uv)

	// Same digital data, relabelled millivolts: the tensor scales by
	// the unit multiplier.
	mv := defaultRecording(200, 35)
	mv.units = [4]string{"mV", "mV", "mV", "mV"}
	mvPath := writeTestEDF(t, dir, "mv.edf", mv)

	resUV := Convert(uvPath, Options{Channels: fullSelection()})
	require.NoError(t, resUV.Err)
	resMV := Convert(mvPath, Options{Channels: fullSelection()})
	require.NoError(t, resMV.Err)

	_, pUV, err := cfs.Decode(mustRead(t, resUV.Output))
	require.NoError(t, err)
	_, pMV, err := cfs.Decode(mustRead(t, resMV.Output))
	require.NoError(t, err)
	require.Len(t, pMV, len(pUV))

	for i := range pUV {
		want := 1000 * float64(pUV[i])
		assert.InDelta(t, want, float64(pMV[i]), 1e-2+1e-4*math.Abs(want), "value %d", i)
	}
}

func TestConvertReproducible(t *testing.T) {
	dir := t.TempDir()
	path := writeTestEDF(t, dir, "night1.edf", defaultRecording(256, 35))

	res1 := Convert(path, Options{Channels: fullSelection(), Overwrite: true})
	require.NoError(t, res1.Err)
	first := mustRead(t, res1.Output)

	res2 := Convert(path, Options{Channels: fullSelection(), Overwrite: true})
	require.NoError(t, res2.Err)
	second := mustRead(t, res2.Output)

	assert.Equal(t, first, second, "byte-identical artifacts for the same input")
}

func TestConvertShortRecording(t *testing.T) {
	// Fewer than 3000 resampled samples: zero epochs, but still a
	// valid container.
	dir := t.TempDir()
	path := writeTestEDF(t, dir, "short.edf", defaultRecording(100, 20))

	res := Convert(path, Options{Channels: fullSelection()})
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Epochs)

	hdr, payload, err := cfs.Decode(mustRead(t, res.Output))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), hdr.NEpochs)
	assert.Empty(t, payload)
}

func TestConvert100HzBypass(t *testing.T) {
	// Channels already at 100 Hz skip the resampler and still satisfy
	// the round-trip law.
	dir := t.TempDir()
	path := writeTestEDF(t, dir, "native100.edf", defaultRecording(100, 90))

	res := Convert(path, Options{Channels: fullSelection()})
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Epochs)

	hdr, payload, err := cfs.Decode(mustRead(t, res.Output))
	require.NoError(t, err)
	assert.Equal(t, uint16(3), hdr.NEpochs)
	assert.Len(t, payload, 3*spectral.EpochSize)
}

func TestConvertMixedRates(t *testing.T) {
	// EEG at 200 Hz with EOGs at 100 Hz: each channel resamples (or
	// not) independently.
	dir := t.TempDir()
	rec := defaultRecording(200, 90)
	rec.rates[2] = 100
	rec.rates[3] = 100
	path := writeTestEDF(t, dir, "mixed.edf", rec)

	res := Convert(path, Options{Channels: fullSelection()})
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Epochs)
}

func TestConvertDiagStream(t *testing.T) {
	dir := t.TempDir()
	path := writeTestEDF(t, dir, "night1.edf", defaultRecording(200, 35))

	res := Convert(path, Options{Channels: fullSelection()})
	require.NoError(t, res.Err)

	lines := res.Diag.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "night1.edf")
	assert.Contains(t, lines[1], "Total Samples found: 7000")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "a/b.cfs", OutputPath("a/b.edf"))
	assert.Equal(t, "rec.cfs", OutputPath("rec.edf"))
	assert.Equal(t, "noext.cfs", OutputPath("noext"))
	assert.Equal(t, "a.b/c.cfs", OutputPath("a.b/c.edf"))
}

func TestReportCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrAlreadyConverted, "already-converted"},
		{ErrIntegrityFailure, "integrity-failure"},
		{cfs.ErrBufferTooSmall, "buffer-too-small"},
		{cfs.ErrOutOfMemory, "out-of-memory"},
		{cfs.ErrEpochOverflow, "epoch-overflow"},
		{&OpenError{Path: "x", Err: errors.New("no")}, "edf-open-failure"},
		{&LabelNotFoundError{Role: RoleEL}, "label-not-found"},
		{&UnsupportedUnitError{Role: RoleER, Unit: "T"}, "unsupported-unit"},
		{&RateMismatchError{C3Rate: 256, C4Rate: 200}, "channel-rate-mismatch"},
		{&ReadError{Role: RoleC3, Err: errors.New("no")}, "read-failure"},
		{&WriteError{Path: "x", Err: errors.New("no")}, "write-failure"},
		{errors.New("surprise"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReportCode(tt.err))
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}
