package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"shuoba/assess"
	"shuoba/audio"
	"shuoba/store"
)

var testSentences = []store.Sentence{
	{ID: "greet-001", Topic: "greetings", Script: "你好世界"},
	{ID: "greet-002", Topic: "greetings", Script: "早上好"},
	{ID: "food-001", Topic: "food", Script: "我想吃面条"},
}

func testPCM(frames int) []byte {
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		pcm[i*2] = 0x00
		pcm[i*2+1] = 0x10
	}
	return pcm
}

func newTestOrchestrator(t *testing.T, assessor assess.Assessor) (*Orchestrator, *store.Memory, *audio.FakeContext) {
	t.Helper()
	repo := store.NewMemory(testSentences...)
	ctx := audio.NewFakeContextPCM(testPCM(8000))
	o, err := New(repo, assessor, ctx, "learner-1", "zh-CN", testSentences)
	if err != nil {
		t.Fatal(err)
	}
	var seq int
	o.SetIDSource(func() string {
		seq++
		return string(rune('a' + seq - 1))
	})
	o.SetClock(func() time.Time {
		return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	})
	return o, repo, ctx
}

func TestFullCycle(t *testing.T) {
	o, repo, audioCtx := newTestOrchestrator(t, &assess.Fake{Results: []*assess.Result{assess.Scored(82)}})
	ctx := context.Background()

	if o.State() != StateIdle {
		t.Fatalf("initial state = %v", o.State())
	}
	if err := o.StartRecording(); err != nil {
		t.Fatal(err)
	}
	if o.State() != StateRecording {
		t.Fatalf("state = %v, want recording", o.State())
	}

	res, err := o.StopAndAssess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o.State() != StateResult {
		t.Fatalf("state = %v, want result", o.State())
	}
	if *res.Overall != 82 {
		t.Errorf("Overall = %v", *res.Overall)
	}
	if audioCtx.OpenHandles() != 0 {
		t.Error("capture handle still open after stop")
	}

	if err := o.Dismiss(ctx); err != nil {
		t.Fatal(err)
	}
	if o.State() != StateIdle || o.Index() != 1 {
		t.Errorf("after dismiss: state = %v index = %d", o.State(), o.Index())
	}

	rec, err := repo.Progress(ctx, "learner-1", "greet-001")
	if err != nil {
		t.Fatal(err)
	}
	if rec.TimesPracticed != 1 || rec.Scores.Overall != 82 {
		t.Errorf("progress = %+v", rec)
	}
	n, err := repo.AttemptsOn(ctx, "learner-1", "2026-03-14")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("daily attempts = %d, want 1", n)
	}
}

func TestAdvanceWrapsToFirst(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &assess.Fake{Results: []*assess.Result{assess.Scored(70)}})
	ctx := context.Background()

	for i := 0; i < len(testSentences); i++ {
		if o.Index() != i {
			t.Fatalf("cycle %d: index = %d", i, o.Index())
		}
		if err := o.StartRecording(); err != nil {
			t.Fatal(err)
		}
		if _, err := o.StopAndAssess(ctx); err != nil {
			t.Fatal(err)
		}
		if err := o.Dismiss(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if o.Index() != 0 {
		t.Errorf("index = %d, want wrap to 0", o.Index())
	}
	if o.Attempts() != 3 {
		t.Errorf("attempts = %d, want 3", o.Attempts())
	}
}

func TestInvalidTransitions(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, &assess.Fake{Results: []*assess.Result{assess.Scored(70)}})
	ctx := context.Background()

	var invalid *InvalidTransitionError
	if _, err := o.StopAndAssess(ctx); !errors.As(err, &invalid) {
		t.Errorf("stop in idle: err = %v", err)
	}
	if err := o.Dismiss(ctx); !errors.As(err, &invalid) {
		t.Errorf("dismiss in idle: err = %v", err)
	}

	if err := o.StartRecording(); err != nil {
		t.Fatal(err)
	}
	if err := o.StartRecording(); !errors.As(err, &invalid) {
		t.Errorf("double start: err = %v", err)
	}
	if _, err := o.StopAndAssess(ctx); err != nil {
		t.Fatal(err)
	}
	// Result state: no new recording until the score is dismissed.
	if err := o.StartRecording(); !errors.As(err, &invalid) {
		t.Errorf("start in result: err = %v", err)
	}
}

func TestAssessFailureStaysOnItem(t *testing.T) {
	fake := &assess.Fake{
		Results: []*assess.Result{nil, assess.Scored(65)},
		Errs:    []error{&assess.Error{Kind: assess.KindNetworkFailure, Err: errors.New("conn reset")}},
	}
	o, repo, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.StartRecording(); err != nil {
		t.Fatal(err)
	}
	_, err := o.StopAndAssess(ctx)
	var aerr *assess.Error
	if !errors.As(err, &aerr) || aerr.Kind != assess.KindNetworkFailure {
		t.Fatalf("err = %v, want network-failure", err)
	}
	if o.State() != StateIdle || o.Index() != 0 {
		t.Errorf("state = %v index = %d, want idle on same item", o.State(), o.Index())
	}
	if rec, _ := repo.Progress(ctx, "learner-1", "greet-001"); rec != nil {
		t.Errorf("progress written on failed assessment: %+v", rec)
	}

	// Same item scores on the retry.
	if err := o.StartRecording(); err != nil {
		t.Fatal(err)
	}
	res, err := o.StopAndAssess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *res.Overall != 65 {
		t.Errorf("Overall = %v", *res.Overall)
	}
}

func TestCaptureFailureReturnsToIdle(t *testing.T) {
	o, _, audioCtx := newTestOrchestrator(t, &assess.Fake{})
	audioCtx.FailNext(errors.New("pulse: access denied"))

	err := o.StartRecording()
	var cerr *audio.CaptureError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CaptureError", err)
	}
	if o.State() != StateIdle {
		t.Errorf("state = %v, want idle", o.State())
	}
	if audioCtx.OpenHandles() != 0 {
		t.Error("handle leaked on failed start")
	}
}

type failingSaves struct {
	store.Repository
	saveErr error
}

func (f *failingSaves) SaveProgress(ctx context.Context, userID string, a store.Attempt) error {
	return f.saveErr
}

func TestPersistenceFailureStillAdvances(t *testing.T) {
	repo := &failingSaves{
		Repository: store.NewMemory(testSentences...),
		saveErr:    errors.New("disk full"),
	}
	audioCtx := audio.NewFakeContextPCM(testPCM(8000))
	o, err := New(repo, &assess.Fake{Results: []*assess.Result{assess.Scored(90)}}, audioCtx, "learner-1", "zh-CN", testSentences)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := o.StartRecording(); err != nil {
		t.Fatal(err)
	}
	if _, err := o.StopAndAssess(ctx); err != nil {
		t.Fatal(err)
	}
	if err := o.Dismiss(ctx); err != nil {
		t.Fatalf("dismiss must not fail on persistence error: %v", err)
	}
	if o.Index() != 1 {
		t.Errorf("index = %d, want advance despite write failure", o.Index())
	}
}

func TestFallbackScoreWhenUnscored(t *testing.T) {
	fake := &assess.Fake{
		Results: []*assess.Result{{Recognized: "你好世界"}},
	}
	o, _, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.StartRecording(); err != nil {
		t.Fatal(err)
	}
	res, err := o.StopAndAssess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Overall == nil || *res.Overall != 100 {
		t.Errorf("Overall = %v, want 100 from transcript match", res.Overall)
	}
}

func TestEmptySetRejected(t *testing.T) {
	repo := store.NewMemory()
	if _, err := New(repo, &assess.Fake{}, audio.NewFakeContextPCM(nil), "u", "zh-CN", nil); !errors.Is(err, ErrEmptySet) {
		t.Errorf("err = %v, want ErrEmptySet", err)
	}
}
