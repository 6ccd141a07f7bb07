package encoder

import "errors"

// Canonical waveform format accepted by the assessment boundary.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

// ErrUnsupportedFormat is returned when recorded bytes cannot be
// decoded into PCM samples.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Encode turns recorded bytes of any supported encoding into the
// canonical container: mono 16 kHz 16-bit PCM in a RIFF/WAVE wrapper.
// nativeRate is the capture device's sample rate, used when the bytes
// are a raw PCM stream with no container of their own.
func Encode(recorded []byte, nativeRate int) ([]byte, error) {
	samples, rate, err := Decode(recorded, nativeRate)
	if err != nil {
		return nil, err
	}
	samples = Resample(samples, rate, SampleRate)
	return EncodeWAV(samples, SampleRate), nil
}
