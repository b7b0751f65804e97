package edf2cfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/simd/f64"

	"github.com/amiyapatanaik/edf2cfs/internal/cfs"
	"github.com/amiyapatanaik/edf2cfs/internal/dsp"
	"github.com/amiyapatanaik/edf2cfs/internal/edfio"
	"github.com/amiyapatanaik/edf2cfs/internal/resample"
	"github.com/amiyapatanaik/edf2cfs/internal/spectral"
)

// TargetRate is the canonical feature-extraction sample rate in Hz.
// Channels already at this nominal rate bypass the resampler.
const TargetRate = 100

// Band-pass edges in Hz.
const (
	bandLow = 0.3
	eegHigh = 45.0
	eogHigh = 12.0
)

// OutputExt is the extension of emitted artifacts, replacing the
// input's extension on the same stem.
const OutputExt = ".cfs"

// Options parameterises a conversion job.
type Options struct {
	// Channels binds the four logical roles to EDF labels.
	Channels ChannelSelection

	// Overwrite allows replacing an existing output artifact. When
	// false a present output fails the job with ErrAlreadyConverted
	// before any work is done.
	Overwrite bool

	// OutputPath overrides the derived destination (input stem with
	// the OutputExt extension). Leave empty for the default.
	OutputPath string
}

// Result is the outcome of one conversion job.
type Result struct {
	// Path is the input EDF path.
	Path string

	// Output is the destination artifact path.
	Output string

	// Epochs is the number of 30 s epochs emitted (0 on failure).
	Epochs int

	// Err is nil on success, otherwise one of the typed failures; see
	// ReportCode.
	Err error

	// Diag carries the job's ordered diagnostic messages.
	Diag *Diag
}

// Ok reports whether the job succeeded.
func (r Result) Ok() bool { return r.Err == nil }

// Diag collects a job's diagnostic messages. Jobs write to their own
// Diag only, so no locking is involved; the dispatcher renders streams
// after each batch joins.
type Diag struct {
	lines []string
}

// Printf appends a formatted diagnostic line.
func (d *Diag) Printf(format string, args ...any) {
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

// Lines returns the recorded messages in order.
func (d *Diag) Lines() []string { return d.lines }

// OutputPath derives the artifact path for an input: same directory,
// same stem, OutputExt extension.
func OutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + OutputExt
}

// Convert runs the full pipeline for one EDF file: channel resolution,
// microvolt scaling, band-pass filtering, resampling to TargetRate,
// STFT feature extraction and container emission. Errors are returned
// inside the Result; Convert never panics on malformed input.
func Convert(path string, opts Options) Result {
	diag := &Diag{}
	out := opts.OutputPath
	if out == "" {
		out = OutputPath(path)
	}
	res := Result{Path: path, Output: out, Diag: diag}
	diag.Printf("Filename: %s", path)

	res.Err = convert(path, res.Output, opts, diag, &res.Epochs)
	if res.Err != nil {
		diag.Printf("ERROR: %s (%s)", res.Err, ReportCode(res.Err))
	}
	return res
}

func convert(path, outPath string, opts Options, diag *Diag, epochsOut *int) error {
	if !opts.Overwrite {
		if _, err := os.Stat(outPath); err == nil {
			return ErrAlreadyConverted
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return &OpenError{Path: path, Err: err}
	}
	defer f.Close()

	r, err := edfio.Open(f)
	if err != nil {
		return &OpenError{Path: path, Err: err}
	}

	hdr := r.Header()
	if hdr.DataRecords < 0 {
		return &OpenError{Path: path, Err: errors.New("unknown data record count")}
	}

	bound, err := resolveChannels(hdr, opts.Channels)
	if err != nil {
		return err
	}

	diag.Printf("Total Samples found: %d", bound[RoleC3].samples)

	roleNames := [roleCount]string{"C3:A2", "C4:A1", "EOGl:A2", "EOGr:A1"}
	var raw [roleCount][]float64
	for role := RoleC3; role <= RoleER; role++ {
		ch := bound[role]
		diag.Printf("%s channel, sampling rate: %gHz measured in %s", roleNames[role], ch.rate, ch.unit)

		data, err := readChannel(r, ch)
		if err != nil {
			return &ReadError{Role: role, Err: err}
		}

		// Normalise to microvolts before filtering.
		f64.Scale(data, data, ch.scale)
		raw[role] = data
	}

	eegRate := bound[RoleC3].rate
	elRate := bound[RoleEL].rate
	erRate := bound[RoleER].rate

	eegTaps := dsp.DesignBandPass(dsp.BandPassOrder, bandLow, eegHigh, eegRate)
	eoglTaps := dsp.DesignBandPass(dsp.BandPassOrder, bandLow, eogHigh, elRate)
	eogrTaps := eoglTaps
	if bound[RoleER].nominalRate() != bound[RoleEL].nominalRate() {
		eogrTaps = dsp.DesignBandPass(dsp.BandPassOrder, bandLow, eogHigh, erRate)
	}

	// C3 and C4 are filtered independently and averaged afterwards;
	// the averaging order is part of the reference rounding behaviour.
	eeg := dsp.MeanPair(
		dsp.ConvolveSame(raw[RoleC3], eegTaps),
		dsp.ConvolveSame(raw[RoleC4], eegTaps),
	)
	eogl := dsp.ConvolveSame(raw[RoleEL], eoglTaps)
	eogr := dsp.ConvolveSame(raw[RoleER], eogrTaps)

	if eeg, err = toTargetRate(eeg, bound[RoleC3].nominalRate()); err != nil {
		return err
	}
	if eogl, err = toTargetRate(eogl, bound[RoleEL].nominalRate()); err != nil {
		return err
	}
	if eogr, err = toTargetRate(eogr, bound[RoleER].nominalRate()); err != nil {
		return err
	}

	extractor := spectral.NewExtractor()
	tensor := extractor.Features(eeg, eogl, eogr)
	epochs := spectral.EpochCount(len(eeg))
	diag.Printf("Epochs: %d", epochs)

	payload := make([]float32, len(tensor))
	for i, v := range tensor {
		payload[i] = float32(v)
	}

	image, err := cfs.Encode(payload, epochs)
	if err != nil {
		return err
	}

	if err := cfs.WriteFile(outPath, image); err != nil {
		return &WriteError{Path: outPath, Err: err}
	}

	*epochsOut = epochs
	return nil
}

// readChannel extracts a channel's physical samples. A short read at
// end of file is accepted; any other failure is reported to the
// caller.
func readChannel(r *edfio.Reader, ch boundChannel) ([]float64, error) {
	sr, err := r.Signal(ch.index)
	if err != nil {
		return nil, err
	}

	data := make([]float64, ch.samples)
	n, err := sr.Read(data)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return data[:n], nil
}

// toTargetRate resamples a channel to TargetRate unless its nominal
// rate already matches.
func toTargetRate(x []float64, rate int) ([]float64, error) {
	if rate == TargetRate {
		return x, nil
	}
	r, err := resample.New(rate, TargetRate)
	if err != nil {
		return nil, err
	}
	return r.Process(x), nil
}
