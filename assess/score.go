package assess

import (
	"strings"
	"unicode"
)

// FallbackScore estimates pronunciation quality by position-wise token
// match between the recognized transcript and the reference text. It
// is used when the response carried a transcript but no scores, so
// the learner still sees a number instead of a dash.
func FallbackScore(recognized, reference string) *float64 {
	ref := tokenize(reference)
	if len(ref) == 0 {
		return nil
	}
	got := tokenize(recognized)

	matched := 0
	for i, tok := range ref {
		if i < len(got) && got[i] == tok {
			matched++
		}
	}
	score := float64(matched) / float64(len(ref)) * 100
	return &score
}

// tokenize lowercases and strips punctuation. CJK text has no spaces,
// so each Han rune becomes its own token.
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			toks = append(toks, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return toks
}
