// Package gateway talks to the hosted chat model: one interviewer call per
// turn and one evaluator call per session.
package gateway

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"rehearse/internal/interview"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
)

var (
	ErrNoChoices    = errors.New("no choices in response")
	ErrEmptyContent = errors.New("empty message content")
)

type Config struct {
	Model       string
	Temperature float64
}

type Gateway struct {
	client openai.Client
	cfg    Config
}

func New(client openai.Client, cfg Config) *Gateway {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &Gateway{client: client, cfg: cfg}
}

// TurnRequest is everything the interviewer needs for one reply. Memories is
// the already rendered learning-history block.
type TurnRequest struct {
	Messages       []interview.Message
	Resume         string
	JobDescription string
	Role           string
	UserID         string
	Memories       string
}

func (g *Gateway) SystemPrompt(req TurnRequest) string {
	return interview.InterviewerPrompt(interview.Context{
		Role:           req.Role,
		Resume:         req.Resume,
		JobDescription: req.JobDescription,
		Memories:       req.Memories,
	})
}

// Turn performs a single interviewer call. It never retries.
func (g *Gateway) Turn(ctx context.Context, req TurnRequest) (interview.Envelope, error) {
	content, err := g.complete(ctx, g.SystemPrompt(req), req.Messages)
	if err != nil {
		return interview.Envelope{}, err
	}

	log.Debug("Interviewer reply", "user", req.UserID, "data", content)

	env, err := interview.DecodeEnvelope(content)
	if err != nil {
		return interview.Envelope{}, fmt.Errorf("decode reply: %w", err)
	}
	return env, nil
}

// Summarize asks the evaluator for the final verdict over the whole log.
func (g *Gateway) Summarize(ctx context.Context, messages []interview.Message, role string) (interview.Evaluation, error) {
	content, err := g.complete(ctx, interview.SummaryPrompt(role), messages)
	if err != nil {
		return interview.Evaluation{}, err
	}

	log.Debug("Evaluator reply", "role", role, "data", content)

	ev, err := interview.DecodeEvaluation(content)
	if err != nil {
		return interview.Evaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	return ev, nil
}

func (g *Gateway) complete(ctx context.Context, system string, messages []interview.Message) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	params = append(params, openai.SystemMessage(system))
	for _, m := range messages {
		switch m.Role {
		case interview.RoleUser:
			params = append(params, openai.UserMessage(m.Content))
		case interview.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		case interview.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		}
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: params,
		Model:    shared.ChatModel(g.cfg.Model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(g.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrEmptyContent
	}
	return content, nil
}
