// Package edfio reads and writes European Data Format (EDF) files.
//
// Only the pieces the conversion pipeline needs are implemented:
// header and per-signal metadata parsing, and extraction of a signal's
// physical samples. Annotations and EDF+ extensions are ignored.
package edfio

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// EDF header geometry: a 256-byte fixed header followed by 256 bytes
// of metadata per signal, split into fixed-width ASCII fields.
const (
	fixedHeaderSize = 256
	bytesPerSample  = 2

	maxRecordBytes = 61440 // recommended data record ceiling
)

// Signal describes one channel of an EDF recording.
type Signal struct {
	Label             string
	TransducerType    string
	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int
	Prefiltering      string
	SamplesPerRecord  int
}

// Header is the parsed EDF file header.
type Header struct {
	Version            string
	PatientID          string
	RecordingID        string
	StartTime          time.Time
	HeaderBytes        int
	DataRecordDuration time.Duration
	DataRecords        int // -1 when the writer never finalised
	Signals            []Signal
}

// Reader reads EDF files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open parses the header of an EDF stream and returns a Reader over
// its signals.
func Open(r io.ReadSeeker) (*Reader, error) {
	b := make([]byte, fixedHeaderSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	hdr := &Header{
		Version:     field(b, 0, 8),
		PatientID:   field(b, 8, 80),
		RecordingID: field(b, 88, 80),
	}

	start, err := time.Parse("02.01.06 15.04.05", field(b, 168, 8)+" "+field(b, 176, 8))
	if err != nil {
		return nil, fmt.Errorf("parsing start time: %w", err)
	}
	hdr.StartTime = start

	if hdr.HeaderBytes, err = strconv.Atoi(field(b, 184, 8)); err != nil {
		return nil, fmt.Errorf("parsing header size: %w", err)
	}
	if hdr.DataRecords, err = strconv.Atoi(field(b, 236, 8)); err != nil {
		return nil, fmt.Errorf("parsing data record count: %w", err)
	}

	durSecs, err := strconv.ParseFloat(field(b, 244, 8), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing data record duration: %w", err)
	}
	hdr.DataRecordDuration = time.Duration(durSecs * float64(time.Second))

	signalCount, err := strconv.Atoi(field(b, 252, 4))
	if err != nil {
		return nil, fmt.Errorf("parsing signal count: %w", err)
	}
	if signalCount < 0 {
		return nil, fmt.Errorf("invalid signal count %d", signalCount)
	}

	hdr.Signals = make([]Signal, signalCount)
	if err := readSignalHeaders(r, hdr.Signals); err != nil {
		return nil, err
	}

	return &Reader{r: r, hdr: hdr}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header { return er.hdr }

// readSignalHeaders parses the per-signal metadata block, which stores
// each field contiguously for all signals.
func readSignalHeaders(r io.Reader, signals []Signal) error {
	n := len(signals)

	read := func(width int, assign func(i int, s string) error) error {
		b := make([]byte, width)
		for i := range n {
			if _, err := io.ReadFull(r, b); err != nil {
				return fmt.Errorf("reading signal headers: %w", err)
			}
			if err := assign(i, strings.TrimSpace(string(b))); err != nil {
				return err
			}
		}
		return nil
	}

	str := func(dst func(i int) *string) func(int, string) error {
		return func(i int, s string) error {
			*dst(i) = s
			return nil
		}
	}
	num := func(name string, dst func(i int, v float64)) func(int, string) error {
		return func(i int, s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("parsing signal %d %s: %w", i, name, err)
			}
			dst(i, v)
			return nil
		}
	}

	steps := []struct {
		width  int
		assign func(int, string) error
	}{
		{16, str(func(i int) *string { return &signals[i].Label })},
		{80, str(func(i int) *string { return &signals[i].TransducerType })},
		{8, str(func(i int) *string { return &signals[i].PhysicalDimension })},
		{8, num("physical min", func(i int, v float64) { signals[i].PhysicalMin = v })},
		{8, num("physical max", func(i int, v float64) { signals[i].PhysicalMax = v })},
		{8, num("digital min", func(i int, v float64) { signals[i].DigitalMin = int(v) })},
		{8, num("digital max", func(i int, v float64) { signals[i].DigitalMax = int(v) })},
		{80, str(func(i int) *string { return &signals[i].Prefiltering })},
		{8, num("samples per record", func(i int, v float64) { signals[i].SamplesPerRecord = int(v) })},
		{32, func(int, string) error { return nil }}, // reserved
	}
	for _, step := range steps {
		if err := read(step.width, step.assign); err != nil {
			return err
		}
	}
	for i, sig := range signals {
		if sig.SamplesPerRecord < 0 {
			return fmt.Errorf("signal %d: invalid samples per record %d", i, sig.SamplesPerRecord)
		}
	}
	return nil
}

// SignalReader extracts one signal's physical samples, record by
// record.
type SignalReader struct {
	r   io.ReadSeeker
	hdr *Header
	sig Signal

	recordSize   int // bytes per data record, all signals
	signalOffset int // byte offset of this signal within a record

	currentRecord int
	currentSample int
	recordBuf     []byte
}

// Signal returns a reader over the physical samples of the signal at
// the given index.
func (er *Reader) Signal(index int) (*SignalReader, error) {
	if index < 0 || index >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index %d out of range", index)
	}

	recordSize := 0
	signalOffset := 0
	for i, sig := range er.hdr.Signals {
		if i < index {
			signalOffset += sig.SamplesPerRecord * bytesPerSample
		}
		recordSize += sig.SamplesPerRecord * bytesPerSample
	}

	sig := er.hdr.Signals[index]
	return &SignalReader{
		r:            er.r,
		hdr:          er.hdr,
		sig:          sig,
		recordSize:   recordSize,
		signalOffset: signalOffset,
		recordBuf:    make([]byte, sig.SamplesPerRecord*bytesPerSample),
	}, nil
}

// Read fills data with physical values, converting each stored digital
// sample through the signal's calibration. Returns io.EOF once all
// data records are consumed.
func (sr *SignalReader) Read(data []float64) (int, error) {
	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords {
			return n, io.EOF
		}

		if sr.currentSample == 0 {
			pos := int64(sr.hdr.HeaderBytes) +
				int64(sr.currentRecord)*int64(sr.recordSize) +
				int64(sr.signalOffset)
			if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
				return n, fmt.Errorf("seeking record %d: %w", sr.currentRecord, err)
			}
			if _, err := io.ReadFull(sr.r, sr.recordBuf); err != nil {
				return n, fmt.Errorf("reading record %d: %w", sr.currentRecord, err)
			}
		}

		digital := int16(binary.LittleEndian.Uint16(sr.recordBuf[sr.currentSample*bytesPerSample:]))
		data[n] = physical(digital, sr.sig)
		n++

		sr.currentSample++
		if sr.currentSample >= sr.sig.SamplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}
	return n, nil
}

// physical converts a digital sample through the signal's calibration
// factors.
func physical(digital int16, sig Signal) float64 {
	if sig.DigitalMax == sig.DigitalMin {
		return 0
	}
	return sig.PhysicalMin + (float64(digital)-float64(sig.DigitalMin))*
		(sig.PhysicalMax-sig.PhysicalMin)/float64(sig.DigitalMax-sig.DigitalMin)
}

// field returns the trimmed ASCII field at [off, off+width).
func field(b []byte, off, width int) string {
	return strings.TrimSpace(string(b[off : off+width]))
}
