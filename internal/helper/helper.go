// Package helper is the career assistant: free-form interview preparation
// questions answered with the candidate's profile, recent sessions and known
// memories in view.
package helper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"rehearse/internal/history"
	"rehearse/internal/memory"
)

const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

const (
	resumeExcerpt = 500
	recentLimit   = 3
)

var ErrEmptyQuestion = errors.New("empty question")

const systemPrompt = `You are a helpful Interview Preparation Assistant.
Your goal is to answer the user's questions about interview tips, common questions, or career advice.
Use the provided context to personalize your advice.
Keep your answers concise, encouraging, and practical.`

type ModelConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	OllamaHost string
}

// NewModel builds the langchaingo model for the configured provider.
func NewModel(cfg ModelConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderOllama:
		m, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.OllamaHost))
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return m, nil

	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, errors.New("OpenAI API key required")
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return m, nil

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, errors.New("Anthropic API key required")
		}
		m, err := anthropic.New(anthropic.WithToken(cfg.APIKey), anthropic.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
}

// User is who is asking.
type User struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Resume string `json:"resume"`
}

type Context struct {
	User     *User             `json:"user,omitempty"`
	History  []history.Session `json:"history,omitempty"`
	Memories []memory.Memory   `json:"memories,omitempty"`
}

type Assistant struct {
	llm llms.Model
}

func New(llm llms.Model) *Assistant {
	return &Assistant{llm: llm}
}

// Ask answers one question. A nil context gives generic advice.
func (a *Assistant) Ask(ctx context.Context, question string, c *Context) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	var user strings.Builder
	if c != nil {
		user.WriteString(RenderContext(*c))
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "User's Question: %s", question)

	resp, err := a.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, user.String()),
	})
	if err != nil {
		return "", fmt.Errorf("generate advice: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// RenderContext formats the candidate context block. Only the three most
// recent sessions are listed and the resume is cut to 500 characters.
func RenderContext(c Context) string {
	var b strings.Builder

	u := User{}
	if c.User != nil {
		u = *c.User
	}
	b.WriteString("USER CONTEXT:\n")
	fmt.Fprintf(&b, "- Name: %s\n", orDefault(u.Name, "Candidate"))
	fmt.Fprintf(&b, "- Target Role: %s\n", orDefault(u.Role, "Software Engineer"))
	fmt.Fprintf(&b, "- Resume Summary: %s\n", excerpt(u.Resume))

	b.WriteString("\nPAST INTERVIEWS (Last 3):\n")
	sessions := c.History
	if len(sessions) > recentLimit {
		sessions = sessions[:recentLimit]
	}
	if len(sessions) == 0 {
		b.WriteString("None\n")
	}
	for _, s := range sessions {
		fmt.Fprintf(&b, "- Role: %s, Score: %d%%, Summary: %s\n", s.Role, s.Score, s.Summary)
	}

	b.WriteString("\nKNOWN FACTS (Memories):\n")
	if len(c.Memories) == 0 {
		b.WriteString("None\n")
	}
	for _, m := range c.Memories {
		fmt.Fprintf(&b, "- %s (%s)\n", m.Text, m.Category)
	}
	return b.String()
}

func excerpt(resume string) string {
	if resume == "" {
		return "Not provided"
	}
	r := []rune(resume)
	if len(r) <= resumeExcerpt {
		return resume
	}
	return string(r[:resumeExcerpt]) + "..."
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
