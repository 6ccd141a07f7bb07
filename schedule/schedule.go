package schedule

import (
	"context"
	"math/rand"
	"sort"

	"shuoba/log"
	"shuoba/store"
)

const (
	// SetSize is the maximum number of sentences in one daily set.
	SetSize = 10
	// ReviewSize caps the subset drawn from yesterday's worst scores.
	ReviewSize = 5
)

// Planner selects the sentences a learner practices in one session.
// All randomness comes from the injected source, so sets are
// reproducible under a fixed seed.
type Planner struct {
	rng *rand.Rand
}

func NewPlanner(rng *rand.Rand) *Planner {
	return &Planner{rng: rng}
}

// DailySet builds the day's ordered practice set: up to ReviewSize of
// yesterday's lowest-scoring sentences, topped up with never-attempted
// ones to SetSize, then shuffled so review items are not always first.
// IDs in the result are unique. An empty corpus yields an empty set.
func (p *Planner) DailySet(corpus []store.Sentence, history, yesterday []store.ProgressRecord) []store.Sentence {
	byID := make(map[string]store.Sentence, len(corpus))
	for _, s := range corpus {
		byID[s.ID] = s
	}

	// Review subset: worst of yesterday, stable on ties. A record that
	// no longer resolves against the corpus gives its slot to the
	// next-worst resolvable one rather than shrinking the subset.
	worst := make([]store.ProgressRecord, len(yesterday))
	copy(worst, yesterday)
	sort.SliceStable(worst, func(i, j int) bool {
		return worst[i].Scores.Overall < worst[j].Scores.Overall
	})

	seen := make(map[string]bool, SetSize)
	var set []store.Sentence
	for _, rec := range worst {
		if len(set) >= ReviewSize {
			break
		}
		s, ok := byID[rec.SentenceID]
		if !ok || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		set = append(set, s)
	}

	// New candidates: never attempted, uniformly shuffled.
	learned := make(map[string]bool, len(history))
	for _, rec := range history {
		learned[rec.SentenceID] = true
	}
	var fresh []store.Sentence
	for _, s := range corpus {
		if !learned[s.ID] {
			fresh = append(fresh, s)
		}
	}
	p.rng.Shuffle(len(fresh), func(i, j int) {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	})

	// Fill to SetSize from the shuffled candidates. One seen set covers
	// every fill pass, so no id can be admitted twice even when the
	// primary slice and the remainder overlap with review items.
	for _, s := range fresh {
		if len(set) >= SetSize {
			break
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		set = append(set, s)
	}

	p.rng.Shuffle(len(set), func(i, j int) {
		set[i], set[j] = set[j], set[i]
	})
	return set
}

// LoadCorpus reads every topic from the repository. A topic that fails
// to read is skipped with a warning; if no topic could be read at all,
// the repository is considered unavailable and ErrNoContent is
// returned.
func LoadCorpus(ctx context.Context, repo store.Repository, topics []string, perTopic int) ([]store.Sentence, error) {
	var corpus []store.Sentence
	readable := 0
	for _, topic := range topics {
		sentences, err := repo.SentencesByTopic(ctx, topic, perTopic)
		if err != nil {
			log.Warnf("skipping topic %q: %v", topic, err)
			continue
		}
		readable++
		corpus = append(corpus, sentences...)
	}
	if readable == 0 && len(topics) > 0 {
		return nil, store.ErrNoContent
	}
	return corpus, nil
}

// YesterdayRecords filters a progress history down to records dated on
// the previous calendar day.
func YesterdayRecords(history []store.ProgressRecord) []store.ProgressRecord {
	yesterday := store.Yesterday()
	var out []store.ProgressRecord
	for _, rec := range history {
		if rec.Date == yesterday {
			out = append(out, rec)
		}
	}
	return out
}
