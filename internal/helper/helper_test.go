package helper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"rehearse/internal/history"
	"rehearse/internal/interview"
	"rehearse/internal/memory"
)

type fakeLLM struct {
	got   []llms.MessageContent
	reply string
	err   error
}

func (f *fakeLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: " " + f.reply + "\n"}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func text(m llms.MessageContent) string {
	return m.Parts[0].(llms.TextContent).Text
}

func TestAskWithContext(t *testing.T) {
	llm := &fakeLLM{reply: "Practice STAR stories."}
	a := New(llm)

	sessions := []history.Session{
		{Role: "Backend", Score: 62, Summary: "Good depth."},
		{Role: "Backend", Score: 55, Summary: "Rushed."},
		{Role: "QA", Score: 30, Summary: "Short."},
		{Role: "Old", Score: 10, Summary: "Ancient."},
	}
	got, err := a.Ask(context.Background(), "How do I improve?", &Context{
		User:     &User{Name: "Ada", Role: "Backend Developer", Resume: strings.Repeat("x", 600)},
		History:  sessions,
		Memories: []memory.Memory{{Text: "Knows Go", Category: interview.CategorySkill}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Practice STAR stories.", got)

	require.Len(t, llm.got, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, llm.got[0].Role)
	user := text(llm.got[1])
	assert.Contains(t, user, "- Name: Ada")
	assert.Contains(t, user, "- Resume Summary: "+strings.Repeat("x", 500)+"...\n")
	assert.Contains(t, user, "- Role: QA, Score: 30%, Summary: Short.")
	assert.NotContains(t, user, "Ancient")
	assert.Contains(t, user, "- Knows Go (skill)")
	assert.True(t, strings.HasSuffix(user, "User's Question: How do I improve?"))
}

func TestAskDefaults(t *testing.T) {
	block := RenderContext(Context{})
	assert.Contains(t, block, "- Name: Candidate")
	assert.Contains(t, block, "- Target Role: Software Engineer")
	assert.Contains(t, block, "- Resume Summary: Not provided")
	assert.Equal(t, 2, strings.Count(block, "None\n"))
}

func TestAskErrors(t *testing.T) {
	a := New(&fakeLLM{err: errors.New("quota")})

	_, err := a.Ask(context.Background(), "  ", nil)
	require.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = a.Ask(context.Background(), "Tips?", nil)
	require.ErrorContains(t, err, "quota")
}

func TestNewModelRequiresKey(t *testing.T) {
	_, err := NewModel(ModelConfig{Provider: ProviderOpenAI})
	require.Error(t, err)
	_, err = NewModel(ModelConfig{Provider: "gemini"})
	require.Error(t, err)
}
