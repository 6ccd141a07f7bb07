package encoder

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	const n = 1234
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * 440 * float64(i) / SampleRate)
	}

	buf := EncodeWAV(samples, SampleRate)

	if got := string(buf[0:4]); got != "RIFF" {
		t.Errorf("magic = %q, want RIFF", got)
	}
	if got := string(buf[8:12]); got != "WAVE" {
		t.Errorf("wave id = %q", got)
	}
	if got := binary.LittleEndian.Uint16(buf[20:22]); got != 1 {
		t.Errorf("format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(buf[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(buf[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint32(buf[28:32]); got != SampleRate*2 {
		t.Errorf("byte rate = %d, want %d", got, SampleRate*2)
	}
	if got := binary.LittleEndian.Uint16(buf[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(buf[34:36]); got != BitsPerSample {
		t.Errorf("bits per sample = %d, want %d", got, BitsPerSample)
	}
	if got := binary.LittleEndian.Uint32(buf[40:44]); got != n*2 {
		t.Errorf("data size = %d, want %d", got, n*2)
	}
	if len(buf) != 44+n*2 {
		t.Errorf("buffer length = %d, want %d", len(buf), 44+n*2)
	}
}

func TestQuantizeClamps(t *testing.T) {
	for _, tt := range []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 0x7FFF},
		{-1, -0x8000},
		{2.5, 0x7FFF},
		{-3.1, -0x8000},
		{0.5, 0x3FFF},
	} {
		if got := quantize(tt.in); got != tt.want {
			t.Errorf("quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []float64{0, 0.25, -0.25, 0.9, -0.9, 1, -1}
	buf := EncodeWAV(samples, SampleRate)

	decoded, info, err := ParseWAV(buf)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if info.SampleRate != SampleRate || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Errorf("info = %+v", info)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	for i, want := range samples {
		if math.Abs(decoded[i]-want) > 1.0/0x4000 {
			t.Errorf("sample %d = %v, want ~%v", i, decoded[i], want)
		}
	}
}

func TestParseWAVRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"truncated": []byte("RIFF"),
		"not wav":   []byte("OggS\x00\x00\x00\x00\x00\x00\x00\x00"),
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseWAV(data); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestDecodeRawPCM(t *testing.T) {
	pcm := make([]byte, 8)
	for i, v := range []int16{0, 16384, -16384, 32767} {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	samples, rate, err := Decode(pcm, 48000)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rate != 48000 {
		t.Errorf("rate = %d, want 48000", rate)
	}
	want := []float64{0, 0.5, -0.5, float64(32767) / 0x8000}
	for i := range want {
		if math.Abs(samples[i]-want[i]) > 1e-9 {
			t.Errorf("sample %d = %v, want %v", i, samples[i], want[i])
		}
	}
}

func TestDecodeOddRawLength(t *testing.T) {
	if _, _, err := Decode([]byte{1, 2, 3}, 16000); err == nil {
		t.Error("expected error for odd-length raw pcm")
	}
}

func TestResample(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		in := []float64{0.1, 0.2, 0.3}
		out := Resample(in, 16000, 16000)
		if len(out) != 3 {
			t.Fatalf("length = %d", len(out))
		}
	})

	t.Run("downsample halves length", func(t *testing.T) {
		in := make([]float64, 32000)
		out := Resample(in, 32000, 16000)
		if len(out) != 16000 {
			t.Errorf("length = %d, want 16000", len(out))
		}
	})

	t.Run("upsample doubles length", func(t *testing.T) {
		in := make([]float64, 8000)
		out := Resample(in, 8000, 16000)
		if len(out) != 16000 {
			t.Errorf("length = %d, want 16000", len(out))
		}
	})

	t.Run("interpolates between neighbors", func(t *testing.T) {
		in := []float64{0, 1}
		out := Resample(in, 1, 2)
		if len(out) != 4 {
			t.Fatalf("length = %d, want 4", len(out))
		}
		if out[1] != 0.5 {
			t.Errorf("out[1] = %v, want 0.5 (midpoint)", out[1])
		}
	})
}

func TestEncodeFullPipeline(t *testing.T) {
	// Raw 48 kHz PCM in, canonical 16 kHz WAV out.
	const inSamples = 4800 // 100ms at 48 kHz
	pcm := make([]byte, inSamples*2)
	for i := 0; i < inSamples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/48000))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	wav, err := Encode(pcm, 48000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, info, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV: %v", err)
	}
	if info.SampleRate != SampleRate {
		t.Errorf("sample rate = %d, want %d", info.SampleRate, SampleRate)
	}
	wantSamples := inSamples / 3 // 100ms at 16 kHz
	if info.DataSize != wantSamples*2 {
		t.Errorf("data size = %d, want %d", info.DataSize, wantSamples*2)
	}
}

func TestDownmix(t *testing.T) {
	stereo := []float64{1, 0, 0.5, 0.5, -1, 1}
	mono := downmix(stereo, 2)
	want := []float64{0.5, 0.5, 0}
	if len(mono) != 3 {
		t.Fatalf("length = %d", len(mono))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("mono[%d] = %v, want %v", i, mono[i], want[i])
		}
	}
}
