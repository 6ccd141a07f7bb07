package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func setupSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "practice.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func repos(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"memory": NewMemory(),
		"sqlite": setupSQLite(t),
	}
}

func TestSaveProgressMerges(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			a1 := Attempt{ID: "a1", SentenceID: "s1",
				Scores: Scores{Overall: 62, Accuracy: f(70), Fluency: f(55)}}
			if err := repo.SaveProgress(ctx, "u1", a1); err != nil {
				t.Fatalf("save: %v", err)
			}

			// Second attempt omits fluency; the stored value must survive.
			a2 := Attempt{ID: "a2", SentenceID: "s1",
				Scores: Scores{Overall: 81, Accuracy: f(85)}}
			if err := repo.SaveProgress(ctx, "u1", a2); err != nil {
				t.Fatalf("save: %v", err)
			}

			rec, err := repo.Progress(ctx, "u1", "s1")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if rec == nil {
				t.Fatal("expected a progress record")
			}
			if rec.TimesPracticed != 2 {
				t.Errorf("TimesPracticed = %d, want 2", rec.TimesPracticed)
			}
			if rec.Scores.Overall != 81 {
				t.Errorf("Overall = %v, want 81", rec.Scores.Overall)
			}
			if rec.Scores.Accuracy == nil || *rec.Scores.Accuracy != 85 {
				t.Errorf("Accuracy = %v, want 85", rec.Scores.Accuracy)
			}
			if rec.Scores.Fluency == nil || *rec.Scores.Fluency != 55 {
				t.Errorf("Fluency = %v, want merged 55", rec.Scores.Fluency)
			}
			if rec.Date != Today() {
				t.Errorf("Date = %q, want %q", rec.Date, Today())
			}
		})
	}
}

func TestSaveProgressReplaySafe(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			a := Attempt{ID: "a1", SentenceID: "s1", Scores: Scores{Overall: 70}}
			for i := 0; i < 3; i++ {
				if err := repo.SaveProgress(ctx, "u1", a); err != nil {
					t.Fatalf("save #%d: %v", i, err)
				}
			}
			rec, err := repo.Progress(ctx, "u1", "s1")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if rec.TimesPracticed != 1 {
				t.Errorf("TimesPracticed = %d after replays, want 1", rec.TimesPracticed)
			}
		})
	}
}

func TestDailyAttemptsCounter(t *testing.T) {
	ctx := context.Background()
	day := Today()
	for name, repo := range repos(t) {
		t.Run(name, func(t *testing.T) {
			// Two distinct attempts increment; a replay does not.
			for _, id := range []string{"a1", "a2", "a2"} {
				if err := repo.IncrementDailyAttempts(ctx, "u1", day, id); err != nil {
					t.Fatalf("increment: %v", err)
				}
			}
			n, err := repo.AttemptsOn(ctx, "u1", day)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if n != 2 {
				t.Errorf("attempts = %d, want 2", n)
			}

			other, err := repo.AttemptsOn(ctx, "u2", day)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if other != 0 {
				t.Errorf("attempts for other user = %d, want 0", other)
			}
		})
	}
}

func TestSentencesByTopic(t *testing.T) {
	ctx := context.Background()
	sentences := []Sentence{
		{ID: "s1", Topic: "greetings", Script: "你好", Phonetic: "Nǐ hǎo"},
		{ID: "s2", Topic: "greetings", Script: "再见", Phonetic: "Zàijiàn"},
		{ID: "s3", Topic: "food", Script: "好吃", Phonetic: "Hǎochī"},
	}

	s := setupSQLite(t)
	if err := s.ImportSentences(ctx, sentences); err != nil {
		t.Fatalf("import: %v", err)
	}
	for name, repo := range map[string]Repository{
		"memory": NewMemory(sentences...),
		"sqlite": s,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := repo.SentencesByTopic(ctx, "greetings", 10)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d sentences, want 2", len(got))
			}
			limited, err := repo.SentencesByTopic(ctx, "greetings", 1)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(limited) != 1 {
				t.Errorf("got %d sentences with max=1, want 1", len(limited))
			}
			none, err := repo.SentencesByTopic(ctx, "missing", 10)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(none) != 0 {
				t.Errorf("got %d sentences for unknown topic, want 0", len(none))
			}
		})
	}
}

func TestAllProgress(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	repo.SetClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })
	for _, id := range []string{"s1", "s2"} {
		a := Attempt{ID: "a-" + id, SentenceID: id, Scores: Scores{Overall: 50}}
		if err := repo.SaveProgress(ctx, "u1", a); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	all, err := repo.AllProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d records, want 2", len(all))
	}
	for _, rec := range all {
		if rec.Date != "2026-03-01" {
			t.Errorf("Date = %q, want 2026-03-01", rec.Date)
		}
	}
}
