package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"shuoba/store"
)

func sentences(n int) []store.Sentence {
	out := make([]store.Sentence, n)
	for i := range out {
		out[i] = store.Sentence{ID: fmt.Sprintf("s%02d", i), Topic: "t"}
	}
	return out
}

func record(id string, score float64, date string) store.ProgressRecord {
	return store.ProgressRecord{
		SentenceID: id,
		Date:       date,
		Scores:     store.Scores{Overall: score},
	}
}

func planner(seed int64) *Planner {
	return NewPlanner(rand.New(rand.NewSource(seed)))
}

func assertUniqueIDs(t *testing.T, set []store.Sentence) {
	t.Helper()
	seen := make(map[string]bool)
	for _, s := range set {
		if seen[s.ID] {
			t.Errorf("duplicate id %s in set", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestDailySetBounds(t *testing.T) {
	corpus := sentences(40)
	var history []store.ProgressRecord
	for i := 0; i < 15; i++ {
		history = append(history, record(fmt.Sprintf("s%02d", i), float64(i*5), store.Yesterday()))
	}

	for seed := int64(0); seed < 20; seed++ {
		set := planner(seed).DailySet(corpus, history, history)
		if len(set) > SetSize {
			t.Fatalf("seed %d: set size %d exceeds %d", seed, len(set), SetSize)
		}
		assertUniqueIDs(t, set)
	}
}

func TestReviewSubsetIsWorstFive(t *testing.T) {
	corpus := sentences(30)
	yesterday := []store.ProgressRecord{
		record("s07", 90, store.Yesterday()),
		record("s03", 42, store.Yesterday()),
		record("s05", 42, store.Yesterday()), // tie with s03; stable order keeps s03 first
		record("s01", 15, store.Yesterday()),
		record("s09", 77, store.Yesterday()),
		record("s02", 60, store.Yesterday()),
		record("s08", 33, store.Yesterday()),
	}

	set := planner(1).DailySet(corpus, yesterday, yesterday)
	assertUniqueIDs(t, set)

	want := map[string]bool{"s01": true, "s08": true, "s03": true, "s05": true, "s02": true}
	got := make(map[string]bool)
	for _, s := range set {
		if want[s.ID] {
			got[s.ID] = true
		}
	}
	for id := range want {
		if !got[id] {
			t.Errorf("worst-scored sentence %s missing from set", id)
		}
	}
	// s07 (90) and s09 (77) lost to the five lower scores.
	for _, s := range set {
		if s.ID == "s07" || s.ID == "s09" {
			t.Errorf("sentence %s should not be in the review subset", s.ID)
		}
	}
}

func TestReviewDropsRemovedSentences(t *testing.T) {
	corpus := sentences(8)
	yesterday := []store.ProgressRecord{
		record("gone", 5, store.Yesterday()),
		record("s01", 50, store.Yesterday()),
	}
	set := planner(3).DailySet(corpus, yesterday, yesterday)
	for _, s := range set {
		if s.ID == "gone" {
			t.Error("removed sentence admitted to set")
		}
	}
	assertUniqueIDs(t, set)
}

func TestSmallNewRemainder(t *testing.T) {
	// Only 3 sentences were never attempted; the new subset must be
	// exactly those 3 with no error and no duplicates.
	corpus := sentences(10)
	var history []store.ProgressRecord
	for i := 0; i < 7; i++ {
		history = append(history, record(fmt.Sprintf("s%02d", i), 80, "2026-01-01"))
	}

	set := planner(5).DailySet(corpus, history, nil)
	assertUniqueIDs(t, set)
	if len(set) != 3 {
		t.Fatalf("set size = %d, want 3 (the untried remainder)", len(set))
	}
	for _, s := range set {
		if s.ID != "s07" && s.ID != "s08" && s.ID != "s09" {
			t.Errorf("unexpected sentence %s in new subset", s.ID)
		}
	}
}

func TestEmptyCorpus(t *testing.T) {
	set := planner(7).DailySet(nil, nil, nil)
	if len(set) != 0 {
		t.Fatalf("set size = %d for empty corpus, want 0", len(set))
	}
}

func TestNoHistoryAllNew(t *testing.T) {
	corpus := sentences(3)
	set := planner(11).DailySet(corpus, nil, nil)
	if len(set) != 3 {
		t.Fatalf("set size = %d, want all 3 sentences", len(set))
	}
	assertUniqueIDs(t, set)
	want := map[string]bool{"s00": true, "s01": true, "s02": true}
	for _, s := range set {
		if !want[s.ID] {
			t.Errorf("unexpected id %s", s.ID)
		}
	}
}

func TestCorpusSmallerThanSet(t *testing.T) {
	corpus := sentences(6)
	yesterday := []store.ProgressRecord{
		record("s00", 10, store.Yesterday()),
		record("s01", 20, store.Yesterday()),
	}
	set := planner(13).DailySet(corpus, yesterday, yesterday)
	if len(set) != 6 {
		t.Fatalf("set size = %d, want all 6 available", len(set))
	}
	assertUniqueIDs(t, set)
}

func TestDeterministicUnderFixedSeed(t *testing.T) {
	corpus := sentences(25)
	a := planner(42).DailySet(corpus, nil, nil)
	b := planner(42).DailySet(corpus, nil, nil)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("order differs at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

type flakyRepo struct {
	store.Repository
	failTopics map[string]bool
}

func (r *flakyRepo) SentencesByTopic(ctx context.Context, topic string, max int) ([]store.Sentence, error) {
	if r.failTopics[topic] {
		return nil, errors.New("backend unavailable")
	}
	return r.Repository.SentencesByTopic(ctx, topic, max)
}

func TestLoadCorpusSkipsFailedTopics(t *testing.T) {
	mem := store.NewMemory(
		store.Sentence{ID: "a", Topic: "ok"},
		store.Sentence{ID: "b", Topic: "broken"},
	)
	repo := &flakyRepo{Repository: mem, failTopics: map[string]bool{"broken": true}}

	corpus, err := LoadCorpus(context.Background(), repo, []string{"ok", "broken"}, 100)
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if len(corpus) != 1 || corpus[0].ID != "a" {
		t.Fatalf("corpus = %v, want only sentence a", corpus)
	}
}

func TestLoadCorpusTotalFailure(t *testing.T) {
	repo := &flakyRepo{
		Repository: store.NewMemory(),
		failTopics: map[string]bool{"t1": true, "t2": true},
	}
	_, err := LoadCorpus(context.Background(), repo, []string{"t1", "t2"}, 100)
	if !errors.Is(err, store.ErrNoContent) {
		t.Fatalf("err = %v, want ErrNoContent", err)
	}
}

func TestYesterdayRecords(t *testing.T) {
	history := []store.ProgressRecord{
		record("s1", 50, store.Yesterday()),
		record("s2", 60, store.Today()),
		record("s3", 70, "2020-01-01"),
	}
	got := YesterdayRecords(history)
	if len(got) != 1 || got[0].SentenceID != "s1" {
		t.Fatalf("got %v, want only s1", got)
	}
}
