package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// Recorder accumulates captured bytes until the utterance is stopped.
// It is fed from the device callback goroutine and drained from the
// session loop, so all state is mutex-guarded.
type Recorder struct {
	mu     sync.Mutex
	buf    []byte
	frames uint64
	level  float64
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Write appends one callback's worth of capture data.
func (r *Recorder) Write(data []byte, frameCount uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, data...)
	r.frames += uint64(frameCount)
	r.level = rms(data)
}

// Bytes returns a copy of everything captured so far.
func (r *Recorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out
}

// Frames reports the captured frame count.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Level reports the most recent chunk's RMS level in [0, 1], for the
// recording meter.
func (r *Recorder) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// Reset discards accumulated audio before a new utterance.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = r.buf[:0]
	r.frames = 0
	r.level = 0
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 0x8000
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
