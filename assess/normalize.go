package assess

import (
	"encoding/json"
	"fmt"
)

// Raw response shapes. Detailed-format responses put the scores either
// flat on NBest[0] or nested under NBest[0].PronunciationAssessment,
// depending on service version; both are accepted.
type rawResponse struct {
	RecognitionStatus string     `json:"RecognitionStatus"`
	DisplayText       string     `json:"DisplayText"`
	NBest             []rawNBest `json:"NBest"`
}

type rawNBest struct {
	Display    string  `json:"Display"`
	Lexical    string  `json:"Lexical"`
	Confidence float64 `json:"Confidence"`

	PronScore          *float64 `json:"PronScore"`
	PronunciationScore *float64 `json:"PronunciationScore"`
	AccuracyScore      *float64 `json:"AccuracyScore"`
	FluencyScore       *float64 `json:"FluencyScore"`
	CompletenessScore  *float64 `json:"CompletenessScore"`
	ProsodyScore       *float64 `json:"ProsodyScore"`

	PronunciationAssessment *rawAssessment `json:"PronunciationAssessment"`
	Words                   []rawWord      `json:"Words"`
}

type rawAssessment struct {
	PronScore         *float64 `json:"PronScore"`
	AccuracyScore     *float64 `json:"AccuracyScore"`
	FluencyScore      *float64 `json:"FluencyScore"`
	CompletenessScore *float64 `json:"CompletenessScore"`
	ProsodyScore      *float64 `json:"ProsodyScore"`
}

type rawWord struct {
	Word                    string         `json:"Word"`
	AccuracyScore           *float64       `json:"AccuracyScore"`
	ErrorType               string         `json:"ErrorType"`
	PronunciationAssessment *rawAssessment `json:"PronunciationAssessment"`
}

// normalize flattens a detailed recognition response into a Result.
// An empty NBest list yields a Result with nil scores rather than an
// error; the recognizer can legitimately hear nothing.
func normalize(body []byte) (*Result, error) {
	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding assessment response: %w", err)
	}

	result := &Result{Recognized: raw.DisplayText}
	if len(raw.NBest) == 0 {
		return result, nil
	}

	best := raw.NBest[0]
	if result.Recognized == "" {
		result.Recognized = best.Display
	}

	nested := best.PronunciationAssessment
	result.Overall = coalesce(best.PronScore, best.PronunciationScore,
		nestedField(nested, func(a *rawAssessment) *float64 { return a.PronScore }),
		best.AccuracyScore)
	result.Accuracy = coalesce(best.AccuracyScore,
		nestedField(nested, func(a *rawAssessment) *float64 { return a.AccuracyScore }))
	result.Fluency = coalesce(best.FluencyScore,
		nestedField(nested, func(a *rawAssessment) *float64 { return a.FluencyScore }))
	result.Completeness = coalesce(best.CompletenessScore,
		nestedField(nested, func(a *rawAssessment) *float64 { return a.CompletenessScore }))
	result.Prosody = coalesce(best.ProsodyScore,
		nestedField(nested, func(a *rawAssessment) *float64 { return a.ProsodyScore }))

	for _, w := range best.Words {
		ws := WordScore{Token: w.Word, ErrorKind: w.ErrorType}
		acc := w.AccuracyScore
		if acc == nil && w.PronunciationAssessment != nil {
			acc = w.PronunciationAssessment.AccuracyScore
		}
		if acc != nil {
			ws.Accuracy = *acc
		}
		if ws.ErrorKind == "" {
			ws.ErrorKind = "None"
		}
		result.Words = append(result.Words, ws)
	}
	return result, nil
}

func coalesce(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func nestedField(a *rawAssessment, get func(*rawAssessment) *float64) *float64 {
	if a == nil {
		return nil
	}
	return get(a)
}
