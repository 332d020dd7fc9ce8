package interview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullReply = `{
  "analysis": {
    "phase": "Discovery",
    "user_persona": "Normal",
    "answer_quality": "Strong",
    "reasoning": "Candidate gave concrete detail",
    "current_score": 62,
    "behavior_log": "Confident and concise",
    "plagiarism_score": 10,
    "session_plagiarism_score": 5
  },
  "response": "Tell me about the hardest bug you fixed with React.",
  "stage": "experience",
  "feedback": "Good use of specifics.",
  "memory": {"text": "Three years of React", "type": "skill"}
}`

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope(fullReply)
	require.NoError(t, err)

	assert.Equal(t, StageExperience, env.Stage)
	require.NotNil(t, env.Analysis)
	assert.Equal(t, 62.0, env.Analysis.CurrentScore)
	require.NotNil(t, env.Analysis.PlagiarismScore)
	assert.Equal(t, 10.0, *env.Analysis.PlagiarismScore)
	require.NotNil(t, env.Memory)
	assert.Equal(t, CategorySkill, env.Memory.Type)
}

func TestEnvelopeRoundTripKeepsRequiredFields(t *testing.T) {
	env, err := DecodeEnvelope(fullReply)
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	again, err := DecodeEnvelope(string(data))
	require.NoError(t, err)
	assert.Equal(t, env, again)
}

func TestEnvelopeNullMemory(t *testing.T) {
	env, err := DecodeEnvelope(`{"response":"Hi there.","stage":"intro","memory":null}`)
	require.NoError(t, err)
	assert.Nil(t, env.Memory)
	assert.Nil(t, env.Analysis)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"memory":null`)
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `Sure! Here is my answer`},
		{"empty response", `{"response":"  ","stage":"intro"}`},
		{"missing stage", `{"response":"Hello"}`},
		{"unknown stage", `{"response":"Hello","stage":"lunch"}`},
		{"score above range", `{"response":"Hello","stage":"intro","analysis":{"current_score":140}}`},
		{"negative plagiarism", `{"response":"Hello","stage":"intro","analysis":{"current_score":10,"plagiarism_score":-1}}`},
		{"memory without text", `{"response":"Hello","stage":"intro","memory":{"text":"","type":"skill"}}`},
		{"memory bad type", `{"response":"Hello","stage":"intro","memory":{"text":"Go","type":"hobby"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestCodingRequested(t *testing.T) {
	env := Envelope{Response: "Let's talk.", Analysis: &Analysis{Phase: "Technical Deep Dive"}}
	assert.True(t, env.CodingRequested())

	env = Envelope{Response: "Please write a function that reverses a list."}
	assert.True(t, env.CodingRequested())

	env = Envelope{Response: "Tell me about your team.", Analysis: &Analysis{Phase: "Discovery"}}
	assert.False(t, env.CodingRequested())
}

func TestTechnicalRole(t *testing.T) {
	assert.True(t, TechnicalRole("Senior Software Engineer"))
	assert.True(t, TechnicalRole("data scientist"))
	assert.False(t, TechnicalRole("Product Manager"))
}
