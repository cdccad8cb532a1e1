package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// DefaultSampleRate is the rate of the PCM returned by the speech model.
	DefaultSampleRate = 24000

	// HeaderSize is the length of the canonical RIFF/WAVE header.
	HeaderSize = 44

	ContentType = "audio/wav"

	numChannels    = 1
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
	formatPCM      = 1
	fmtChunkSize   = 16
)

// Header holds the fields of a canonical 44-byte WAV header.
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Duration is the playback length the header describes, in seconds.
func (h Header) Duration() float64 {
	if h.ByteRate == 0 {
		return 0
	}
	return float64(h.DataSize) / float64(h.ByteRate)
}

// EncodeWAV wraps 16-bit little-endian mono PCM in a WAV container and
// returns it with the clip's duration. The payload is copied unmodified;
// an odd trailing byte is kept and left for the decoder to drop.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, float64) {
	dataLen := uint32(len(pcm))

	out := make([]byte, HeaderSize+len(pcm))
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], 36+dataLen)
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], fmtChunkSize)
	le.PutUint16(out[20:22], formatPCM)
	le.PutUint16(out[22:24], numChannels)
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(sampleRate*numChannels*bytesPerSample))
	le.PutUint16(out[32:34], numChannels*bytesPerSample)
	le.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], dataLen)

	copy(out[HeaderSize:], pcm)

	return out, Duration(len(pcm), sampleRate)
}

// Duration approximates the length in seconds of pcmLen bytes of 16-bit
// mono PCM.
func Duration(pcmLen, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	samples := float64(pcmLen) / bytesPerSample
	return samples / float64(sampleRate)
}

var ErrNotWAV = errors.New("not a canonical PCM WAV container")

// ParseHeader reads the canonical header produced by EncodeWAV.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrNotWAV, len(b), HeaderSize)
	}
	if !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return Header{}, fmt.Errorf("%w: missing RIFF/WAVE tags", ErrNotWAV)
	}
	if !bytes.Equal(b[12:16], []byte("fmt ")) || !bytes.Equal(b[36:40], []byte("data")) {
		return Header{}, fmt.Errorf("%w: unexpected chunk layout", ErrNotWAV)
	}

	le := binary.LittleEndian
	if size := le.Uint32(b[16:20]); size != fmtChunkSize {
		return Header{}, fmt.Errorf("%w: fmt chunk size %d", ErrNotWAV, size)
	}

	return Header{
		ChunkSize:     le.Uint32(b[4:8]),
		AudioFormat:   le.Uint16(b[20:22]),
		NumChannels:   le.Uint16(b[22:24]),
		SampleRate:    le.Uint32(b[24:28]),
		ByteRate:      le.Uint32(b[28:32]),
		BlockAlign:    le.Uint16(b[32:34]),
		BitsPerSample: le.Uint16(b[34:36]),
		DataSize:      le.Uint32(b[40:44]),
	}, nil
}

// DecodeWAV parses the header and returns the PCM payload it declares.
func DecodeWAV(b []byte) (Header, []byte, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return Header{}, nil, err
	}
	end := HeaderSize + int(h.DataSize)
	if end > len(b) {
		return Header{}, nil, fmt.Errorf("%w: data chunk declares %d bytes, have %d", ErrNotWAV, h.DataSize, len(b)-HeaderSize)
	}
	return h, b[HeaderSize:end], nil
}
