// Package cfs encodes and decodes the Compressed Feature Set
// container: a 31-byte header followed by a zlib DEFLATE stream of the
// little-endian float32 feature payload.
package cfs

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Container layout constants. All multi-byte fields are little-endian
// on disk regardless of host byte order.
const (
	HeaderSize = 31

	Version   = 1
	NFreq     = 32
	NTimes    = 32
	NChannels = 3

	MaxEpochs = math.MaxUint16

	signature = "CFS"
)

var (
	// ErrBufferTooSmall reports a DEFLATE stream that exceeded the
	// worst-case output bound.
	ErrBufferTooSmall = errors.New("compressed stream exceeds DEFLATE bound")

	// ErrOutOfMemory reports an allocation failure in the compression
	// stage.
	ErrOutOfMemory = errors.New("not enough memory for compression")

	// ErrEpochOverflow reports an epoch count that does not fit the
	// container's 16-bit field.
	ErrEpochOverflow = errors.New("epoch count exceeds uint16 range")

	// ErrBadContainer reports a malformed container on decode.
	ErrBadContainer = errors.New("malformed CFS container")
)

// Header is the decoded fixed-layout CFS header.
type Header struct {
	Version    uint8
	NFreq      uint8
	NTimes     uint8
	NChannels  uint8
	NEpochs    uint16
	Compressed bool
	Hashed     bool
	Digest     [sha1.Size]byte
}

// PayloadBytes serialises the tensor values as little-endian binary32,
// in the order they are given.
func PayloadBytes(payload []float32) []byte {
	b := make([]byte, 4*len(payload))
	for i, v := range payload {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

// compressBound is zlib's worst-case DEFLATE output size for n source
// bytes.
func compressBound(n int) int {
	return n + n/1000 + 12
}

// Encode builds the full container byte image for the given payload
// and epoch count: header, SHA-1 digest of the uncompressed payload
// bytes, then the DEFLATE stream.
func Encode(payload []float32, epochs int) ([]byte, error) {
	if epochs < 0 || epochs > MaxEpochs {
		return nil, fmt.Errorf("%w: %d", ErrEpochOverflow, epochs)
	}

	raw := PayloadBytes(payload)
	digest := sha1.Sum(raw)

	bound := compressBound(len(raw))
	var stream bytes.Buffer
	stream.Grow(bound)

	zw := zlib.NewWriter(&stream)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if stream.Len() > bound {
		return nil, ErrBufferTooSmall
	}

	out := make([]byte, 0, HeaderSize+stream.Len())
	out = append(out, signature...)
	out = append(out, Version, NFreq, NTimes, NChannels)
	out = binary.LittleEndian.AppendUint16(out, uint16(epochs))
	out = append(out, 1, 1) // compression and hash flags
	out = append(out, digest[:]...)
	out = append(out, stream.Bytes()...)
	return out, nil
}

// Decode parses a container image and returns the header and the
// decompressed float32 payload. The payload digest is verified against
// the header.
func Decode(b []byte) (Header, []float32, error) {
	var hdr Header
	if len(b) < HeaderSize {
		return hdr, nil, fmt.Errorf("%w: %d bytes", ErrBadContainer, len(b))
	}
	if string(b[0:3]) != signature {
		return hdr, nil, fmt.Errorf("%w: bad signature", ErrBadContainer)
	}

	hdr.Version = b[3]
	hdr.NFreq = b[4]
	hdr.NTimes = b[5]
	hdr.NChannels = b[6]
	hdr.NEpochs = binary.LittleEndian.Uint16(b[7:9])
	hdr.Compressed = b[9] != 0
	hdr.Hashed = b[10] != 0
	copy(hdr.Digest[:], b[11:31])

	zr, err := zlib.NewReader(bytes.NewReader(b[HeaderSize:]))
	if err != nil {
		return hdr, nil, fmt.Errorf("%w: %v", ErrBadContainer, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return hdr, nil, fmt.Errorf("%w: %v", ErrBadContainer, err)
	}
	if len(raw)%4 != 0 {
		return hdr, nil, fmt.Errorf("%w: payload not binary32 aligned", ErrBadContainer)
	}
	if sha1.Sum(raw) != hdr.Digest {
		return hdr, nil, fmt.Errorf("%w: payload digest mismatch", ErrBadContainer)
	}

	payload := make([]float32, len(raw)/4)
	for i := range payload {
		payload[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return hdr, payload, nil
}

// WriteFile atomically writes the container image: the bytes go to a
// temporary sibling which is renamed over path, so a crash mid-write
// never leaves a truncated artifact. On failure the temporary is
// removed.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
