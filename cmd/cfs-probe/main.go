// Command cfs-probe runs the conversion pipeline stages on a single
// EDF file and reports what the converter would emit: resolved
// channels, epoch count, container header and tensor statistics.
//
// With -wav, each channel's DC-magnitude envelope over the epoch
// frames is also written as a mono WAV file next to the input for
// inspection in an audio editor.
//
// Usage:
//
//	cfs-probe -a C3A2 -b C4A1 -x ELA2 -z ERA1 [-wav] file.edf
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/amiyapatanaik/edf2cfs"
	"github.com/amiyapatanaik/edf2cfs/internal/cfs"
	"github.com/amiyapatanaik/edf2cfs/internal/spectral"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("cfs-probe", flag.ContinueOnError)
	var sel edf2cfs.ChannelSelection
	fs.StringVar(&sel.C3, "a", "", "C3-A2 channel label")
	fs.StringVar(&sel.C4, "b", "", "C4-A1 channel label")
	fs.StringVar(&sel.EL, "x", "", "EL-A2 channel label")
	fs.StringVar(&sel.ER, "z", "", "ER-A1 channel label")
	dumpWAV := fs.Bool("wav", false, "dump per-channel DC envelopes as WAV files")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 || !sel.Complete() {
		fmt.Fprintln(os.Stderr, "Usage: cfs-probe -a C3A2 -b C4A1 -x ELA2 -z ERA1 [-wav] file.edf")
		return 1
	}
	path := fs.Arg(0)

	tmp, err := os.MkdirTemp("", "cfs-probe")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer os.RemoveAll(tmp)

	// Convert into a scratch directory so the probe never touches the
	// real artifact next to the input.
	res := edf2cfs.Convert(path, edf2cfs.Options{
		Channels:   sel,
		OutputPath: filepath.Join(tmp, stem(path)+edf2cfs.OutputExt),
	})
	for _, line := range res.Diag.Lines() {
		fmt.Println(line)
	}
	if !res.Ok() {
		fmt.Fprintf(os.Stderr, "conversion failed: %v (%s)\n", res.Err, edf2cfs.ReportCode(res.Err))
		return 1
	}

	image, err := os.ReadFile(res.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	hdr, payload, err := cfs.Decode(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf("Container: %d bytes (%d header + %d stream)\n",
		len(image), cfs.HeaderSize, len(image)-cfs.HeaderSize)
	fmt.Printf("Header: version=%d freq=%d times=%d channels=%d epochs=%d compression=%v hash=%v\n",
		hdr.Version, hdr.NFreq, hdr.NTimes, hdr.NChannels, hdr.NEpochs, hdr.Compressed, hdr.Hashed)
	fmt.Printf("Digest: %x\n", hdr.Digest)
	fmt.Printf("Payload: %d values (%d bytes uncompressed)\n", len(payload), 4*len(payload))
	printTensorStats(payload)

	if *dumpWAV {
		if err := dumpChannels(path, payload, int(hdr.NEpochs)); err != nil {
			fmt.Fprintf(os.Stderr, "wav dump: %v\n", err)
			return 1
		}
	}
	return 0
}

// printTensorStats reports per-channel magnitude ranges.
func printTensorStats(payload []float32) {
	names := [spectral.Channels]string{"EEG", "EOG-left", "EOG-right"}
	epochs := len(payload) / spectral.EpochSize

	for c, name := range names {
		minV := float32(math.Inf(1))
		maxV := float32(math.Inf(-1))
		var sum float64
		count := 0

		for e := range epochs {
			base := e*spectral.EpochSize + c*spectral.TimeBins*spectral.FreqBins
			for i := range spectral.TimeBins * spectral.FreqBins {
				v := payload[base+i]
				minV = min(minV, v)
				maxV = max(maxV, v)
				sum += float64(v)
				count++
			}
		}
		if count == 0 {
			fmt.Printf("%-10s empty\n", name)
			continue
		}
		fmt.Printf("%-10s min=%.4g max=%.4g mean=%.4g\n", name, minV, maxV, sum/float64(count))
	}
}

// dumpChannels writes the per-channel bin-0 (DC magnitude) envelope of
// each epoch frame as a 100 Hz WAV next to the input. The envelope is
// a coarse but listenable rendition of each channel's energy over
// time.
func dumpChannels(input string, payload []float32, epochs int) error {
	names := [spectral.Channels]string{"eeg", "eogl", "eogr"}

	for c, name := range names {
		envelope := make([]float64, 0, epochs*spectral.TimeBins)
		for e := range epochs {
			base := e*spectral.EpochSize + c*spectral.TimeBins*spectral.FreqBins
			for t := range spectral.TimeBins {
				envelope = append(envelope, float64(payload[base+t*spectral.FreqBins]))
			}
		}

		out := fmt.Sprintf("%s_%s.wav", strings.TrimSuffix(input, ".edf"), name)
		if err := writeWAV(out, envelope); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d samples)\n", out, len(envelope))
	}
	return nil
}

// writeWAV emits a mono 16-bit 100 Hz WAV, peak-normalised.
func writeWAV(path string, samples []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	peak := 0.0
	for _, v := range samples {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak == 0 {
		peak = 1
	}

	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v / peak * math.MaxInt16)
	}

	enc := wav.NewEncoder(f, edf2cfs.TargetRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: edf2cfs.TargetRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".edf")
}
