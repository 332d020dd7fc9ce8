package interview

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// UnavailableSummary is stored when the evaluator could not produce a result.
const UnavailableSummary = "Summary unavailable"

// Evaluation is the end-of-session verdict.
type Evaluation struct {
	Score      float64  `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Summary    string   `json:"summary"`
}

func DecodeEvaluation(raw string) (Evaluation, error) {
	var ev Evaluation
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return Evaluation{}, fmt.Errorf("unmarshal evaluation: %w (raw: %s)", err, raw)
	}
	return ev.Normalize()
}

// Normalize clamps the score, caps list lengths at three and the summary at
// three sentences. Fewer than two strengths or weaknesses is a schema error.
func (ev Evaluation) Normalize() (Evaluation, error) {
	if math.IsNaN(ev.Score) {
		return Evaluation{}, fmt.Errorf("%w: score is NaN", ErrSchema)
	}
	ev.Score = math.Max(0, math.Min(100, ev.Score))

	ev.Strengths = nonEmpty(ev.Strengths)
	ev.Weaknesses = nonEmpty(ev.Weaknesses)
	if len(ev.Strengths) < 2 {
		return Evaluation{}, fmt.Errorf("%w: %d strengths", ErrSchema, len(ev.Strengths))
	}
	if len(ev.Weaknesses) < 2 {
		return Evaluation{}, fmt.Errorf("%w: %d weaknesses", ErrSchema, len(ev.Weaknesses))
	}
	if len(ev.Strengths) > 3 {
		ev.Strengths = ev.Strengths[:3]
	}
	if len(ev.Weaknesses) > 3 {
		ev.Weaknesses = ev.Weaknesses[:3]
	}

	ev.Summary = LimitSentences(strings.TrimSpace(ev.Summary), 3)
	if ev.Summary == "" {
		return Evaluation{}, fmt.Errorf("%w: empty summary", ErrSchema)
	}
	return ev, nil
}

// Degraded is the placeholder evaluation persisted when summarization fails.
func Degraded() Evaluation {
	return Evaluation{
		Score:      0,
		Strengths:  []string{},
		Weaknesses: []string{},
		Summary:    UnavailableSummary,
	}
}

// LimitSentences keeps at most n sentences of s. A sentence ends with '.',
// '!' or '?' followed by whitespace or end of text.
func LimitSentences(s string, n int) string {
	count := 0
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(s) && s[i+1] != ' ' && s[i+1] != '\n' && s[i+1] != '\t' {
			continue
		}
		count++
		if count == n {
			return strings.TrimSpace(s[:i+1])
		}
	}
	return s
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
