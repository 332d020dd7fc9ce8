package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrSchema marks a model reply that parsed as JSON but does not honor the
// envelope contract.
var ErrSchema = errors.New("envelope schema violation")

type Analysis struct {
	Phase                  string   `json:"phase"`
	UserPersona            string   `json:"user_persona"`
	AnswerQuality          string   `json:"answer_quality"`
	Reasoning              string   `json:"reasoning"`
	CurrentScore           float64  `json:"current_score"`
	BehaviorLog            string   `json:"behavior_log,omitempty"`
	PlagiarismScore        *float64 `json:"plagiarism_score,omitempty"`
	SessionPlagiarismScore *float64 `json:"session_plagiarism_score,omitempty"`
}

// Note is the memory object the model may attach to a reply.
type Note struct {
	Text string   `json:"text"`
	Type Category `json:"type"`
}

// Envelope is the JSON object the interviewer model returns on every turn.
type Envelope struct {
	Response string    `json:"response"`
	Analysis *Analysis `json:"analysis,omitempty"`
	Stage    Stage     `json:"stage"`
	Feedback string    `json:"feedback,omitempty"`
	Memory   *Note     `json:"memory"`
}

// DecodeEnvelope parses raw model output and validates it.
func DecodeEnvelope(raw string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w (raw: %s)", err, raw)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Response) == "" {
		return fmt.Errorf("%w: empty response", ErrSchema)
	}
	if !e.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrSchema, e.Stage)
	}
	if a := e.Analysis; a != nil {
		if err := checkScore("current_score", &a.CurrentScore); err != nil {
			return err
		}
		if err := checkScore("plagiarism_score", a.PlagiarismScore); err != nil {
			return err
		}
		if err := checkScore("session_plagiarism_score", a.SessionPlagiarismScore); err != nil {
			return err
		}
	}
	if n := e.Memory; n != nil {
		if strings.TrimSpace(n.Text) == "" {
			return fmt.Errorf("%w: memory without text", ErrSchema)
		}
		if !n.Type.Valid() {
			return fmt.Errorf("%w: unknown memory type %q", ErrSchema, n.Type)
		}
	}
	return nil
}

func checkScore(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 100 {
		return fmt.Errorf("%w: %s %v out of range", ErrSchema, name, *v)
	}
	return nil
}

// CodingRequested reports whether the reply asks the candidate to write code
// or design a system.
func (e Envelope) CodingRequested() bool {
	if e.Analysis != nil && strings.EqualFold(e.Analysis.Phase, "Technical Deep Dive") {
		return true
	}
	text := strings.ToLower(e.Response)
	for _, kw := range []string{"write code", "write a function", "implement", "design a system", "system design"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// TechnicalRole reports whether role names an engineering position.
func TechnicalRole(role string) bool {
	r := strings.ToLower(role)
	for _, kw := range []string{"engineer", "developer", "data scientist", "programmer"} {
		if strings.Contains(r, kw) {
			return true
		}
	}
	return false
}
