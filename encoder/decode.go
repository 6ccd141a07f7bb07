package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// Decode turns recorded bytes into mono float samples at the source
// rate. Containers are sniffed by magic: RIFF/WAVE and FLAC streams
// carry their own rate; anything else is treated as the raw 16-bit
// little-endian PCM the capture devices deliver, at nativeRate.
// Multi-channel input is downmixed by averaging.
func Decode(recorded []byte, nativeRate int) ([]float64, int, error) {
	switch {
	case len(recorded) >= 4 && string(recorded[0:4]) == "RIFF":
		samples, info, err := ParseWAV(recorded)
		if err != nil {
			return nil, 0, err
		}
		return downmix(samples, info.Channels), info.SampleRate, nil

	case len(recorded) >= 4 && string(recorded[0:4]) == "fLaC":
		return decodeFLAC(recorded)

	default:
		if len(recorded)%2 != 0 || nativeRate <= 0 {
			return nil, 0, fmt.Errorf("decoding raw pcm: %w", ErrUnsupportedFormat)
		}
		return pcm16ToFloat(recorded), nativeRate, nil
	}
}

func decodeFLAC(data []byte) ([]float64, int, error) {
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decoding flac: %w", ErrUnsupportedFormat)
	}

	info := stream.Info
	scale := float64(int64(1) << (info.BitsPerSample - 1))
	nch := int(info.NChannels)

	var samples []float64
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("decoding flac frame: %w", ErrUnsupportedFormat)
		}
		n := f.Subframes[0].NSamples
		for i := 0; i < n; i++ {
			var sum float64
			for ch := 0; ch < nch; ch++ {
				sum += float64(f.Subframes[ch].Samples[i]) / scale
			}
			samples = append(samples, sum/float64(nch))
		}
	}
	return samples, int(info.SampleRate), nil
}

// downmix averages interleaved channels into mono.
func downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	out := make([]float64, len(interleaved)/channels)
	for i := range out {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
