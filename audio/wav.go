// Package audio loads single-channel PCM recordings.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// MinSampleRate is the lowest sample rate accepted for acoustic analysis.
const MinSampleRate = 16000

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// WAVHeader holds the parsed RIFF/WAV header fields.
type WAVHeader struct {
	Format        uint16
	SampleRate    uint32
	BitsPerSample uint16
	NumChannels   uint16
	NumSamples    int
}

// Waveform is an immutable mono signal with samples normalised to [-1, 1].
type Waveform struct {
	SampleRate int
	Samples    []float64
}

// Duration returns the length of the signal in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Index converts a time in seconds to the nearest sample index, clamped to the signal.
func (w *Waveform) Index(t float64) int {
	i := int(math.Round(t * float64(w.SampleRate)))
	if i < 0 {
		return 0
	}
	if i > len(w.Samples) {
		return len(w.Samples)
	}
	return i
}

// Slice returns the samples covering [start, end). The result aliases the waveform.
func (w *Waveform) Slice(start, end float64) []float64 {
	return w.Samples[w.Index(start):w.Index(end)]
}

// ReadWAV reads a mono WAV stream. Integer PCM of 8, 16, 24 or 32 bits and
// 32-bit IEEE float are supported; the sample rate must be at least MinSampleRate.
func ReadWAV(r io.ReadSeeker) (*Waveform, WAVHeader, error) {
	var header WAVHeader

	var riffID [4]byte
	if err := binary.Read(r, binary.LittleEndian, &riffID); err != nil {
		return nil, header, fmt.Errorf("read RIFF ID: %w", err)
	}
	if string(riffID[:]) != "RIFF" {
		return nil, header, errors.New("not a RIFF file")
	}

	var fileSize uint32
	if err := binary.Read(r, binary.LittleEndian, &fileSize); err != nil {
		return nil, header, fmt.Errorf("read file size: %w", err)
	}

	var waveID [4]byte
	if err := binary.Read(r, binary.LittleEndian, &waveID); err != nil {
		return nil, header, fmt.Errorf("read WAVE ID: %w", err)
	}
	if string(waveID[:]) != "WAVE" {
		return nil, header, errors.New("not a WAVE file")
	}

	var fmtFound, dataFound bool
	var samples []float64

	for !(fmtFound && dataFound) {
		var chunkID [4]byte
		if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, header, fmt.Errorf("read chunk ID: %w", err)
		}

		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, header, fmt.Errorf("read chunk size: %w", err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			if err := readFmtChunk(r, chunkSize, &header); err != nil {
				return nil, header, err
			}
			fmtFound = true

		case "data":
			if !fmtFound {
				return nil, header, errors.New("data chunk before fmt chunk")
			}
			var err error
			samples, err = readDataChunk(r, chunkSize, &header)
			if err != nil {
				return nil, header, err
			}
			dataFound = true

		default:
			// Unknown chunks are skipped; chunks are padded to an even size.
			skip := int64(chunkSize)
			if chunkSize%2 != 0 {
				skip++
			}
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return nil, header, fmt.Errorf("skip chunk %q: %w", chunkID, err)
			}
		}
	}

	if !fmtFound {
		return nil, header, errors.New("missing fmt chunk")
	}
	if !dataFound {
		return nil, header, errors.New("missing data chunk")
	}

	return &Waveform{SampleRate: int(header.SampleRate), Samples: samples}, header, nil
}

// ReadWAVFile is a convenience wrapper that opens a file path.
func ReadWAVFile(path string) (*Waveform, WAVHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WAVHeader{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}

func readFmtChunk(r io.ReadSeeker, size uint32, h *WAVHeader) error {
	if size < 16 {
		return fmt.Errorf("fmt chunk too small (%d bytes)", size)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Format); err != nil {
		return fmt.Errorf("read audio format: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.NumChannels); err != nil {
		return fmt.Errorf("read num channels: %w", err)
	}
	if h.NumChannels != 1 {
		return fmt.Errorf("unsupported channel count %d (only mono supported)", h.NumChannels)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.SampleRate); err != nil {
		return fmt.Errorf("read sample rate: %w", err)
	}
	if h.SampleRate < MinSampleRate {
		return fmt.Errorf("unsupported sample rate %d (need at least %d)", h.SampleRate, MinSampleRate)
	}

	// Skip byteRate (4 bytes) and blockAlign (2 bytes)
	if _, err := r.Seek(6, io.SeekCurrent); err != nil {
		return fmt.Errorf("skip byte rate / block align: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.BitsPerSample); err != nil {
		return fmt.Errorf("read bits per sample: %w", err)
	}
	consumed := uint32(16)

	if h.Format == formatExtensible && size >= 40 {
		// cbSize(2) validBits(2) channelMask(4), then the GUID whose first two bytes are the subformat.
		if _, err := r.Seek(8, io.SeekCurrent); err != nil {
			return fmt.Errorf("skip extensible header: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &h.Format); err != nil {
			return fmt.Errorf("read subformat: %w", err)
		}
		consumed += 10
	}

	switch {
	case h.Format == formatPCM && (h.BitsPerSample == 8 || h.BitsPerSample == 16 || h.BitsPerSample == 24 || h.BitsPerSample == 32):
	case h.Format == formatFloat && h.BitsPerSample == 32:
	default:
		return fmt.Errorf("unsupported encoding: format %d with %d bits", h.Format, h.BitsPerSample)
	}

	skip := int64(size) - int64(consumed)
	if size%2 != 0 {
		skip++
	}
	if skip > 0 {
		if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
			return fmt.Errorf("skip extra fmt bytes: %w", err)
		}
	}
	return nil
}

func readDataChunk(r io.Reader, size uint32, h *WAVHeader) ([]float64, error) {
	bytesPerSample := int(h.BitsPerSample) / 8
	numSamples := int(size) / bytesPerSample
	h.NumSamples = numSamples

	raw := make([]byte, numSamples*bytesPerSample)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read PCM data: %w", err)
	}

	samples := make([]float64, numSamples)
	for i := range samples {
		b := raw[i*bytesPerSample : (i+1)*bytesPerSample]
		switch {
		case h.Format == formatFloat:
			samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case bytesPerSample == 1:
			samples[i] = (float64(b[0]) - 128) / 128.0
		case bytesPerSample == 2:
			samples[i] = float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
		case bytesPerSample == 3:
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			samples[i] = float64(v) / 8388608.0
		default:
			samples[i] = float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648.0
		}
	}
	return samples, nil
}
