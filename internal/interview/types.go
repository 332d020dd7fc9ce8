// Package interview holds the conversation data model shared by the
// orchestrator, the model gateway and the stores.
package interview

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Stage is the coarse interview stage reported by the model on every turn.
type Stage string

const (
	StageIntro      Stage = "intro"
	StageExperience Stage = "experience"
	StageTechnical  Stage = "technical"
	StageBehavioral Stage = "behavioral"
	StageConclusion Stage = "conclusion"
)

func (s Stage) Valid() bool {
	switch s {
	case StageIntro, StageExperience, StageTechnical, StageBehavioral, StageConclusion:
		return true
	}
	return false
}

// Category classifies a memory note.
type Category string

const (
	CategorySkill      Category = "skill"
	CategoryExperience Category = "experience"
	CategoryPreference Category = "preference"
	CategoryWeakness   Category = "weakness"
	CategoryFact       Category = "fact"
	CategorySummary    Category = "summary"
)

func (c Category) Valid() bool {
	switch c {
	case CategorySkill, CategoryExperience, CategoryPreference,
		CategoryWeakness, CategoryFact, CategorySummary:
		return true
	}
	return false
}

// CountUser returns how many messages in log were written by the candidate.
func CountUser(log []Message) int {
	n := 0
	for _, m := range log {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}
