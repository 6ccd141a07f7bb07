package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"shuoba/assess"
	"shuoba/audio"
	"shuoba/encoder"
	"shuoba/log"
	"shuoba/store"
)

// State is one phase of the per-sentence practice cycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateEncoding
	StateAssessing
	StateResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateEncoding:
		return "encoding"
	case StateAssessing:
		return "assessing"
	case StateResult:
		return "result"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// validTransitions lists the states each state may move to. Error
// paths from the middle of a cycle fall back to idle on the same
// sentence.
var validTransitions = map[State][]State{
	StateIdle:      {StateRecording},
	StateRecording: {StateEncoding, StateIdle},
	StateEncoding:  {StateAssessing, StateIdle},
	StateAssessing: {StateResult, StateIdle},
	StateResult:    {StateIdle},
}

var ErrEmptySet = errors.New("session: daily set is empty")

// InvalidTransitionError is returned when an action arrives in a state
// that does not allow it, e.g. starting a recording mid-assessment.
type InvalidTransitionError struct {
	From, To State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("session: cannot move %s -> %s", e.From, e.To)
}

// Orchestrator runs one learner's practice session over a daily set:
// record, encode, assess, display, persist, advance. One cycle is in
// flight at a time.
type Orchestrator struct {
	repo     store.Repository
	assessor assess.Assessor
	guard    *audio.Guard
	audioCtx audio.Context
	device   *audio.DeviceInfo

	userID string
	locale string
	set    []store.Sentence

	// mu guards state, index, lastResult and attempts; the interface
	// polls them while an assessment command runs on another
	// goroutine.
	mu    sync.Mutex
	index int

	state       State
	recorder    *audio.Recorder
	speech      *audio.SpeechDetector
	captureRate int
	lastResult  *assess.Result
	attempts    int

	newID func() string
	now   func() time.Time
}

func New(repo store.Repository, assessor assess.Assessor, audioCtx audio.Context, userID, locale string, set []store.Sentence) (*Orchestrator, error) {
	if len(set) == 0 {
		return nil, ErrEmptySet
	}
	return &Orchestrator{
		repo:        repo,
		assessor:    assessor,
		guard:       audio.NewGuard(),
		audioCtx:    audioCtx,
		userID:      userID,
		locale:      locale,
		set:         set,
		recorder:    audio.NewRecorder(),
		captureRate: encoder.SampleRate,
		newID:       uuid.NewString,
		now:         time.Now,
	}, nil
}

// SetDevice pins capture to a specific input device.
func (o *Orchestrator) SetDevice(d *audio.DeviceInfo) { o.device = d }

// SetSpeechDetector tees captured audio into a voice activity
// detector so the interface can warn about silent takes.
func (o *Orchestrator) SetSpeechDetector(d *audio.SpeechDetector) { o.speech = d }

// SetCaptureRate overrides the rate requested from the device. The
// encoder resamples whatever arrives down to the canonical rate.
func (o *Orchestrator) SetCaptureRate(rate int) { o.captureRate = rate }

// SetClock and SetIDSource are test hooks.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }
func (o *Orchestrator) SetIDSource(fn func() string)  { o.newID = fn }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Index() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.index
}

func (o *Orchestrator) Len() int { return len(o.set) }

func (o *Orchestrator) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts
}

// Current returns the sentence the session is positioned on.
func (o *Orchestrator) Current() store.Sentence {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set[o.index]
}

// Result returns the assessment shown in the result state, nil
// otherwise.
func (o *Orchestrator) Result() *assess.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateResult {
		return nil
	}
	return o.lastResult
}

// Level reports the recorder's recent input level for a live meter.
func (o *Orchestrator) Level() float64 { return o.recorder.Level() }

func (o *Orchestrator) to(next State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range validTransitions[o.state] {
		if s == next {
			o.state = next
			return nil
		}
	}
	return &InvalidTransitionError{From: o.state, To: next}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// StartRecording acquires the microphone and begins capturing. Any
// handle left over from a previous cycle is released first.
func (o *Orchestrator) StartRecording() error {
	if err := o.to(StateRecording); err != nil {
		return err
	}
	o.recorder.Reset()

	cb := audio.DataCallback(o.recorder.Write)
	if o.speech != nil {
		o.speech.Reset()
		cb = func(data []byte, frameCount uint32) {
			o.recorder.Write(data, frameCount)
			o.speech.Process(data, frameCount)
		}
	}

	_, err := o.guard.Acquire(func() (audio.CaptureDevice, error) {
		cfg := audio.CaptureConfig{SampleRate: uint32(o.captureRate), Channels: 1}
		return o.audioCtx.NewCapture(o.device, cfg, cb)
	})
	if err != nil {
		o.setState(StateIdle)
		return err
	}
	return nil
}

// StopAndAssess ends the capture, encodes whatever was recorded (even
// a very short take), and submits it for scoring. On success the
// session moves to the result state; on any failure it returns to idle
// on the same sentence with nothing persisted.
func (o *Orchestrator) StopAndAssess(ctx context.Context) (*assess.Result, error) {
	if err := o.to(StateEncoding); err != nil {
		return nil, err
	}
	o.guard.Release()

	encodeStart := o.now()
	wav, err := encoder.Encode(o.recorder.Bytes(), o.captureRate)
	if err != nil {
		o.setState(StateIdle)
		return nil, audio.NewCaptureError(audio.KindUnsupportedFormat, err)
	}
	encodeMs := float64(time.Since(encodeStart)) / float64(time.Millisecond)

	if err := o.to(StateAssessing); err != nil {
		return nil, err
	}

	sentence := o.Current()
	result, err := o.assessor.Assess(ctx, wav, sentence.Script, o.locale)
	if err != nil {
		o.setState(StateIdle)
		return nil, err
	}

	// A transcript without scores still gets a number, from
	// position-wise token match against the reference text.
	if result.Overall == nil && result.Recognized != "" {
		result.Overall = assess.FallbackScore(result.Recognized, sentence.Script)
	}

	o.logAttempt(result, wav, encodeMs)

	if err := o.to(StateResult); err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.lastResult = result
	o.mu.Unlock()
	return result, nil
}

// Dismiss leaves the result view: persist the attempt, then advance to
// the next sentence, wrapping from the last back to the first. A
// persistence failure is logged but never retracts the score the
// learner already saw, so the session advances regardless.
func (o *Orchestrator) Dismiss(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateResult {
		err := &InvalidTransitionError{From: o.state, To: StateIdle}
		o.mu.Unlock()
		return err
	}
	o.state = StateIdle
	result := o.lastResult
	o.lastResult = nil
	o.attempts++
	sentence := o.set[o.index]
	o.index = (o.index + 1) % len(o.set)
	o.mu.Unlock()
	o.recorder.Reset()

	attempt := store.Attempt{
		ID:         o.newID(),
		SentenceID: sentence.ID,
		Scores:     scoresFrom(result),
	}
	if err := o.repo.SaveProgress(ctx, o.userID, attempt); err != nil {
		log.Errorf("saving progress for %s: %v", sentence.ID, err)
		return nil
	}
	if err := o.repo.IncrementDailyAttempts(ctx, o.userID, store.YMD(o.now().UTC()), attempt.ID); err != nil {
		log.Errorf("counting attempt for %s: %v", sentence.ID, err)
	}
	log.AttemptScore(sentence.ID, sentence.Script, attempt.Scores.Overall)
	return nil
}

func scoresFrom(r *assess.Result) store.Scores {
	s := store.Scores{
		Accuracy:     r.Accuracy,
		Fluency:      r.Fluency,
		Completeness: r.Completeness,
		Prosody:      r.Prosody,
	}
	if r.Overall != nil {
		s.Overall = *r.Overall
	}
	return s
}

func (o *Orchestrator) logAttempt(result *assess.Result, wav []byte, encodeMs float64) {
	m := log.Metrics{
		AudioLengthS: float64(len(wav)-44) / 2 / float64(encoder.SampleRate),
		WAVSizeKB:    float64(len(wav)) / 1024,
		EncodeTimeMs: encodeMs,
	}
	var connReused bool
	var tlsProto string
	if nm := result.Metrics; nm != nil {
		m.DNSTimeMs = float64(nm.DNS) / float64(time.Millisecond)
		m.TLSTimeMs = float64(nm.TLS) / float64(time.Millisecond)
		m.TTFBMs = float64(nm.TTFB) / float64(time.Millisecond)
		m.TotalTimeMs = float64(nm.Total) / float64(time.Millisecond)
		connReused = nm.ConnReused
		tlsProto = nm.TLSProtocol
	}
	log.AttemptMetrics(m, o.locale, result.Retried, connReused, tlsProto)
}

// ReleaseAudio drops any held capture handle. Call before playing
// reference audio or on shutdown.
func (o *Orchestrator) ReleaseAudio() { o.guard.Release() }
