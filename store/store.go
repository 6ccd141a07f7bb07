package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoContent is returned when no sentence corpus is available at all.
// Individual topic read failures are skipped by callers; this is the
// total-unavailability case.
var ErrNoContent = errors.New("no practice content available")

// Sentence is an authored reference sentence. Authoring happens outside
// this program; records are read-only here.
type Sentence struct {
	ID          string
	Topic       string
	Script      string // target-language text, e.g. 你好
	Phonetic    string // transcription, e.g. Nǐ hǎo
	Translation string
	AudioRef    string // reference audio location, may be empty
	Level       int
}

// Scores holds one assessment's numeric outcome. Sub-metrics are
// optional; the boundary does not always return them.
type Scores struct {
	Overall      float64
	Accuracy     *float64
	Fluency      *float64
	Completeness *float64
	Prosody      *float64
}

// ProgressRecord is the per-(user, sentence) practice state. It is
// merged on every successful assessment, never replaced wholesale.
type ProgressRecord struct {
	SentenceID      string
	Date            string // YYYY-MM-DD of the most recent practice
	Scores          Scores
	TimesPracticed  int
	LastPracticedAt time.Time
}

// Attempt identifies one successful assessment write. The ID makes
// persistence replays safe: delivering the same attempt twice must not
// double-increment counters.
type Attempt struct {
	ID         string
	SentenceID string
	Scores     Scores
}

// Repository supplies sentences and holds per-user progress.
type Repository interface {
	SentencesByTopic(ctx context.Context, topic string, max int) ([]Sentence, error)
	Progress(ctx context.Context, userID, sentenceID string) (*ProgressRecord, error)
	AllProgress(ctx context.Context, userID string) ([]ProgressRecord, error)

	// SaveProgress merge-writes the progress record for the attempt's
	// sentence: score fields overwritten, TimesPracticed incremented,
	// Date stamped to today. A replayed attempt ID is a no-op.
	SaveProgress(ctx context.Context, userID string, a Attempt) error

	// IncrementDailyAttempts merge-writes the per-day attempt counter.
	// The attempt ID deduplicates replays, as in SaveProgress.
	IncrementDailyAttempts(ctx context.Context, userID, date, attemptID string) error

	// AttemptsOn reports the counter value for one day.
	AttemptsOn(ctx context.Context, userID, date string) (int, error)
}

// YMD formats a time as YYYY-MM-DD in UTC.
func YMD(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Today returns today's YMD key.
func Today() string {
	return YMD(time.Now())
}

// Yesterday returns the previous calendar day's YMD key.
func Yesterday() string {
	return YMD(time.Now().AddDate(0, 0, -1))
}
