// Package edf2cfs converts polysomnography recordings in European
// Data Format (EDF) into Compressed Feature Set (CFS) artifacts, the
// ingestion format of an upstream sleep-staging service.
//
// A conversion keeps no raw waveforms. Four channels (two central EEG
// electrodes and the two electrooculograms) are normalised to
// microvolts, band-pass filtered with a fixed order-50 Hamming FIR,
// resampled to a canonical 100 Hz, and reduced to a per-epoch spectral
// feature tensor of shape [epochs, 3, 32, 32] in float32. The tensor
// is hashed with SHA-1, DEFLATE-compressed, and emitted inside a
// fixed-layout little-endian container. CFS files are roughly an order
// of magnitude smaller than their source EDF and carry no
// patient-identifying header fields.
//
// # Usage
//
// Convert one file:
//
//	res := edf2cfs.Convert("night1.edf", edf2cfs.Options{
//	    Channels: edf2cfs.ChannelSelection{C3: "C3-A2", C4: "C4-A1", EL: "EOG(L)", ER: "EOG(R)"},
//	})
//	if !res.Ok() {
//	    log.Fatal(res.Err)
//	}
//
// Convert many files across worker threads:
//
//	summary := edf2cfs.ConvertAll(paths, opts, func(res edf2cfs.Result) {
//	    fmt.Println(res.Path, edf2cfs.ReportCode(res.Err))
//	})
//
// Each job is self-contained and either writes its artifact atomically
// or leaves the filesystem untouched. Failures are returned as typed
// values (see ReportCode) and never terminate the batch.
//
// The cmd/edf2cfs command wraps this package with label flags,
// directory scanning, interactive channel selection and HTML logging.
package edf2cfs
