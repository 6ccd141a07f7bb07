package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Repository used by tests and by the built-in
// demo corpus when no database is configured.
type Memory struct {
	mu        sync.Mutex
	sentences []Sentence
	progress  map[string]map[string]*ProgressRecord // userID -> sentenceID
	attempts  map[string]map[string]int             // userID -> date -> count
	seen      map[string]bool                       // attempt IDs already applied
	now       func() time.Time
}

// NewMemory returns an empty in-memory repository.
func NewMemory(sentences ...Sentence) *Memory {
	return &Memory{
		sentences: sentences,
		progress:  make(map[string]map[string]*ProgressRecord),
		attempts:  make(map[string]map[string]int),
		seen:      make(map[string]bool),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) SentencesByTopic(_ context.Context, topic string, max int) ([]Sentence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sentence
	for _, s := range m.sentences {
		if s.Topic != topic {
			continue
		}
		out = append(out, s)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (m *Memory) Progress(_ context.Context, userID, sentenceID string) (*ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.progress[userID][sentenceID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) AllProgress(_ context.Context, userID string) ([]ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ProgressRecord
	for _, rec := range m.progress[userID] {
		out = append(out, *rec)
	}
	return out, nil
}

func (m *Memory) SaveProgress(_ context.Context, userID string, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "/" + a.ID + "/progress"
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true

	byUser := m.progress[userID]
	if byUser == nil {
		byUser = make(map[string]*ProgressRecord)
		m.progress[userID] = byUser
	}
	rec := byUser[a.SentenceID]
	if rec == nil {
		rec = &ProgressRecord{SentenceID: a.SentenceID}
		byUser[a.SentenceID] = rec
	}
	merged := a.Scores
	if merged.Accuracy == nil {
		merged.Accuracy = rec.Scores.Accuracy
	}
	if merged.Fluency == nil {
		merged.Fluency = rec.Scores.Fluency
	}
	if merged.Completeness == nil {
		merged.Completeness = rec.Scores.Completeness
	}
	if merged.Prosody == nil {
		merged.Prosody = rec.Scores.Prosody
	}
	rec.Scores = merged
	rec.Date = YMD(m.now())
	rec.TimesPracticed++
	rec.LastPracticedAt = m.now()
	return nil
}

func (m *Memory) IncrementDailyAttempts(_ context.Context, userID, date, attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "/" + attemptID + "/attempts"
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true

	byUser := m.attempts[userID]
	if byUser == nil {
		byUser = make(map[string]int)
		m.attempts[userID] = byUser
	}
	byUser[date]++
	return nil
}

func (m *Memory) AttemptsOn(_ context.Context, userID, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[userID][date], nil
}

// AddSentences appends to the corpus. Tests only.
func (m *Memory) AddSentences(sentences ...Sentence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentences = append(m.sentences, sentences...)
}

// SeedProgress installs a record directly, bypassing merge logic. Tests only.
func (m *Memory) SeedProgress(userID string, rec ProgressRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser := m.progress[userID]
	if byUser == nil {
		byUser = make(map[string]*ProgressRecord)
		m.progress[userID] = byUser
	}
	cp := rec
	byUser[rec.SentenceID] = &cp
}
