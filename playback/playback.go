package playback

import (
	"fmt"
	"math"
	"os"
	"sync"

	"shuoba/encoder"
)

var (
	disabled  bool
	soundOnce sync.Once
)

// Disable turns all playback into no-ops. Used by the headless mode
// and by tests.
func Disable() { disabled = true }

const (
	cueRate = 44100

	// Record cue: high pitch, snappy
	recordFreq   = 1200
	recordVolume = 0.5
	recordDecay  = 60

	// Done cue: medium pitch, slightly longer
	doneFreq   = 900
	doneVolume = 0.5
	doneDecay  = 40

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30

	// Success cue: rising two-note chime for a strong score
	successLowFreq  = 880
	successHighFreq = 1320
	successVolume   = 0.5
	successDecay    = 25
)

var (
	recordSamples  []int16
	doneSamples    []int16
	errorSamples   []int16
	successSamples []int16
)

func initSound() {
	recordSamples = generateTick(cueRate, recordFreq, cueDuration, recordVolume, recordDecay)
	doneSamples = generateTick(cueRate, doneFreq, cueDuration, doneVolume, doneDecay)
	errorSamples = generateDoubleBeep(cueRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	successSamples = generateChime(cueRate, successLowFreq, successHighFreq, 0.09, successVolume, successDecay)
}

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

func generateChime(sampleRate int, lowFreq, highFreq float64, noteDur float64, volume float64, decay float64) []int16 {
	low := generateTick(sampleRate, lowFreq, noteDur, volume, decay)
	high := generateTick(sampleRate, highFreq, noteDur, volume, decay)
	return append(low, high...)
}

func Init() {
	soundOnce.Do(initSound)
}

// CueRecord plays the recording-started tick.
func CueRecord() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playSamples(recordSamples, cueRate, 1)
}

// CueDone plays the recording-stopped tick.
func CueDone() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playSamples(doneSamples, cueRate, 1)
}

// CueError plays the failure double-beep.
func CueError() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playSamples(errorSamples, cueRate, 1)
}

// CueSuccess plays the rising chime for a high score.
func CueSuccess() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playSamples(successSamples, cueRate, 1)
}

// PlayReference plays a sentence's pre-rendered reference audio. The
// caller must have released the capture handle first; holding the mic
// open while playing routes audio badly on some platforms.
func PlayReference(path string) error {
	if disabled {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading reference audio: %w", err)
	}
	floats, info, err := encoder.ParseWAV(data)
	if err != nil {
		return fmt.Errorf("decoding reference audio: %w", err)
	}
	samples := make([]int16, len(floats))
	for i, s := range floats {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			samples[i] = int16(s * 0x8000)
		} else {
			samples[i] = int16(s * 0x7FFF)
		}
	}
	playSamples(samples, info.SampleRate, info.Channels)
	return nil
}
