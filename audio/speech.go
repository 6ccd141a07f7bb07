package audio

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode     = 3
	vadFrameMs  = 20
	vadDebounce = 3 // consecutive speech frames to confirm voice

	// Fraction of recent frames that must be speech for the current
	// tick to count as "speaking".
	speechTickRatio = 0.10
)

// SpeechDetector runs WebRTC voice activity detection over captured
// PCM so the interface can warn when the learner's mic picks up no
// speech. Frames are fixed 20ms windows at the capture rate.
type SpeechDetector struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
	tickTotal     int
	tickSpeech    int
}

func NewSpeechDetector(sampleRate int) (*SpeechDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &SpeechDetector{
		vad:        v,
		sampleRate: sampleRate,
		frameBytes: sampleRate * vadFrameMs / 1000 * 2,
	}, nil
}

// Process consumes captured bytes. Safe to call from the capture
// callback.
func (d *SpeechDetector) Process(data []byte, _ uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = append(d.buf, data...)
	for len(d.buf) >= d.frameBytes {
		frame := d.buf[:d.frameBytes]
		d.buf = d.buf[d.frameBytes:]

		active, err := d.vad.Process(d.sampleRate, frame)
		if err != nil {
			continue
		}
		d.totalFrames++
		if active {
			d.speechFrames++
			d.speechRun++
			if d.speechRun >= vadDebounce {
				d.voiceDetected = true
			}
		} else {
			d.speechRun = 0
		}
	}
}

// VoiceDetected reports whether any confirmed speech has been heard
// since the last Reset.
func (d *SpeechDetector) VoiceDetected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voiceDetected
}

// HasSpeechTick reports whether the frames since the previous call
// contained enough speech to count as active speaking.
func (d *SpeechDetector) HasSpeechTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.totalFrames - d.tickTotal
	s := d.speechFrames - d.tickSpeech
	d.tickTotal, d.tickSpeech = d.totalFrames, d.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechTickRatio
}

func (d *SpeechDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = d.buf[:0]
	d.voiceDetected = false
	d.speechRun = 0
	d.totalFrames = 0
	d.speechFrames = 0
	d.tickTotal = 0
	d.tickSpeech = 0
}
