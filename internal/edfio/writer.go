package edfio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer writes EDF files. It is used by tests and tooling to
// synthesise recordings; the conversion pipeline itself only reads.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int
}

// Create writes an initial header (with an unknown record count) and
// returns a Writer. Close must be called to finalise the count.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1
	hdr.HeaderBytes = fixedHeaderSize + 256*len(hdr.Signals)

	ew := &Writer{w: w, hdr: &hdr}
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	return ew, nil
}

// WriteRecord appends one data record; signals must match the header's
// signal list, each with its SamplesPerRecord physical values.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != len(ew.hdr.Signals) {
		return fmt.Errorf("expected %d signals, got %d", len(ew.hdr.Signals), len(signals))
	}

	total := 0
	for i, samples := range signals {
		if len(samples) != ew.hdr.Signals[i].SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d",
				i, ew.hdr.Signals[i].SamplesPerRecord, len(samples))
		}
		total += len(samples)
	}
	if total*bytesPerSample > maxRecordBytes {
		return fmt.Errorf("data record too large: %d bytes, max %d", total*bytesPerSample, maxRecordBytes)
	}

	w := bufio.NewWriter(ew.w)
	buf := make([]byte, bytesPerSample)
	for i, samples := range signals {
		sig := ew.hdr.Signals[i]
		for _, sample := range samples {
			binary.LittleEndian.PutUint16(buf, uint16(digital(sample, sig)))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// Close rewrites the header with the actual record count.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("finalising header: %w", err)
	}
	return nil
}

func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	w := bufio.NewWriter(ew.w)
	hdr := ew.hdr

	durSecs := hdr.DataRecordDuration.Seconds()
	fields := []string{
		fmt.Sprintf("%-8s", hdr.Version),
		fmt.Sprintf("%-80s", hdr.PatientID),
		fmt.Sprintf("%-80s", hdr.RecordingID),
		fmt.Sprintf("%-8s", hdr.StartTime.Format("02.01.06")),
		fmt.Sprintf("%-8s", hdr.StartTime.Format("15.04.05")),
		fmt.Sprintf("%-8d", hdr.HeaderBytes),
		fmt.Sprintf("%-44s", ""), // reserved
		fmt.Sprintf("%-8d", hdr.DataRecords),
		fmt.Sprintf("%-8s", trimNumber(durSecs, 8)),
		fmt.Sprintf("%-4d", len(hdr.Signals)),
	}
	for _, f := range fields {
		if _, err := w.WriteString(f); err != nil {
			return err
		}
	}

	steps := []struct {
		width  int
		format func(sig Signal) string
	}{
		{16, func(s Signal) string { return s.Label }},
		{80, func(s Signal) string { return s.TransducerType }},
		{8, func(s Signal) string { return s.PhysicalDimension }},
		{8, func(s Signal) string { return trimNumber(s.PhysicalMin, 8) }},
		{8, func(s Signal) string { return trimNumber(s.PhysicalMax, 8) }},
		{8, func(s Signal) string { return fmt.Sprintf("%d", s.DigitalMin) }},
		{8, func(s Signal) string { return fmt.Sprintf("%d", s.DigitalMax) }},
		{80, func(s Signal) string { return s.Prefiltering }},
		{8, func(s Signal) string { return fmt.Sprintf("%d", s.SamplesPerRecord) }},
		{32, func(Signal) string { return "" }}, // reserved
	}
	for _, step := range steps {
		for _, sig := range hdr.Signals {
			if _, err := fmt.Fprintf(w, "%-*s", step.width, step.format(sig)); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// digital converts a physical value through the signal's calibration,
// clamping to the digital range.
func digital(sample float64, sig Signal) int16 {
	if sig.PhysicalMax == sig.PhysicalMin {
		return int16(sig.DigitalMin)
	}
	v := float64(sig.DigitalMin) + (sample-sig.PhysicalMin)*
		float64(sig.DigitalMax-sig.DigitalMin)/(sig.PhysicalMax-sig.PhysicalMin)
	v = math.Round(v)
	if v > float64(sig.DigitalMax) {
		v = float64(sig.DigitalMax)
	}
	if v < float64(sig.DigitalMin) {
		v = float64(sig.DigitalMin)
	}
	return int16(v)
}

// trimNumber formats a float inside an ASCII field of the given width.
func trimNumber(v float64, width int) string {
	s := fmt.Sprintf("%g", v)
	if len(s) > width {
		s = fmt.Sprintf("%.*f", width-2, v)[:width]
	}
	return s
}
