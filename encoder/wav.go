package encoder

import (
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps float samples in a RIFF/WAVE container: PCM format
// code 1, one channel, 16-bit depth. Samples are clamped to [-1, 1]
// and quantized to signed 16-bit, so the data chunk declares exactly
// len(samples)*2 bytes.
func EncodeWAV(samples []float64, sampleRate int) []byte {
	const bytesPerSample = BitsPerSample / 8
	blockAlign := bytesPerSample * Channels
	dataSize := len(samples) * bytesPerSample

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // format = PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(quantize(s)))
	}
	return buf
}

// quantize clamps to [-1, 1] and scales asymmetrically so both -1 and
// +1 map onto representable int16 extremes.
func quantize(s float64) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// WAVInfo describes a parsed container's fmt chunk.
type WAVInfo struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int
}

// ParseWAV reads a RIFF/WAVE container holding 16-bit PCM and returns
// float samples (interleaved when multi-channel) plus format info.
func ParseWAV(data []byte) ([]float64, WAVInfo, error) {
	var info WAVInfo
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, info, fmt.Errorf("parsing wav: %w", ErrUnsupportedFormat)
	}

	var pcm []byte
	foundFmt := false
	// Walk chunks; fmt and data can be separated by LIST/fact chunks.
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, info, fmt.Errorf("parsing wav: short fmt chunk: %w", ErrUnsupportedFormat)
			}
			info.Format = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			foundFmt = true
		case "data":
			pcm = data[body : body+size]
			info.DataSize = size
		}
		off = body + size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}

	if !foundFmt || pcm == nil {
		return nil, info, fmt.Errorf("parsing wav: missing fmt or data chunk: %w", ErrUnsupportedFormat)
	}
	if info.Format != 1 || info.BitsPerSample != 16 || info.Channels < 1 {
		return nil, info, fmt.Errorf("parsing wav: format=%d bits=%d: %w",
			info.Format, info.BitsPerSample, ErrUnsupportedFormat)
	}

	samples := pcm16ToFloat(pcm)
	return samples, info, nil
}

func pcm16ToFloat(pcm []byte) []float64 {
	samples := make([]float64, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float64(v) / 0x8000
	}
	return samples
}
