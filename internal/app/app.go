// Package app assembles the provider clients and stores both binaries share
// from a resolved configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"rehearse/internal/config"
	"rehearse/internal/embedding"
	"rehearse/internal/gateway"
	"rehearse/internal/helper"
	"rehearse/internal/history"
	"rehearse/internal/memory"
	"rehearse/internal/proxy"
	"rehearse/internal/synth"
)

// Stack is every long-lived dependency of a session.
type Stack struct {
	HTTP     *http.Client
	OpenAI   openai.Client
	Gateway  *gateway.Gateway
	Memories *memory.Retriever
	History  history.Store
	Voice    *synth.Gateway
	Helper   *helper.Assistant

	closers []func(context.Context) error
}

// Build connects to the configured stores. player and device may be nil
// when no local audio is available.
func Build(ctx context.Context, cfg config.Config, player synth.Player, device synth.Device) (*Stack, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY not set")
	}

	httpClient, err := proxy.NewClient(cfg.Proxy, 0)
	if err != nil {
		return nil, fmt.Errorf("proxy client: %w", err)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey), option.WithHTTPClient(httpClient)}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client := openai.NewClient(opts...)

	// SDKs that build their own http.Client still go through the proxy.
	if cfg.Proxy != "" {
		http.DefaultTransport = httpClient.Transport
	}

	s := &Stack{HTTP: httpClient, OpenAI: client}
	s.Gateway = gateway.New(client, gateway.Config{Model: cfg.OpenAI.Model, Temperature: cfg.OpenAI.Temperature})

	if err := s.buildMemory(ctx, cfg); err != nil {
		s.Close(ctx)
		return nil, err
	}
	if err := s.buildHistory(cfg); err != nil {
		s.Close(ctx)
		return nil, err
	}

	providers := []synth.Provider{}
	if cfg.ElevenLabs.APIKey != "" {
		providers = append(providers, synth.NewElevenLabs(synth.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabs.APIKey,
			VoiceID: cfg.ElevenLabs.VoiceID,
		}))
	}
	providers = append(providers, synth.NewOpenAI(client))
	s.Voice = synth.NewGateway(player, device, providers...)

	llm, err := helper.NewModel(helper.ModelConfig{
		Provider:   cfg.Helper.Provider,
		Model:      cfg.Helper.Model,
		APIKey:     helperKey(cfg),
		BaseURL:    cfg.OpenAI.BaseURL,
		OllamaHost: cfg.Embedding.OllamaHost,
	})
	if err != nil {
		log.Warn("Helper assistant disabled", "err", err)
	} else {
		s.Helper = helper.New(llm)
	}

	return s, nil
}

func helperKey(cfg config.Config) string {
	if cfg.Helper.Provider == helper.ProviderAnthropic {
		return cfg.Helper.APIKey
	}
	return cfg.OpenAI.APIKey
}

func (s *Stack) buildMemory(ctx context.Context, cfg config.Config) error {
	mc := memory.Config{Strategy: memory.Strategy(cfg.Memory.Strategy), Limit: cfg.Memory.Limit}

	var embedder embedding.Embedder
	if mc.Strategy == memory.StrategySimilarity {
		switch cfg.Embedding.Provider {
		case "ollama":
			e, err := embedding.NewOllama(cfg.Embedding.OllamaHost, cfg.Embedding.Model, cfg.Embedding.Dimension)
			if err != nil {
				return fmt.Errorf("ollama embedder: %w", err)
			}
			embedder = e
		default:
			embedder = embedding.NewOpenAI(s.OpenAI, cfg.Embedding.Model, cfg.Embedding.Dimension)
		}
	}

	var store memory.Store
	switch cfg.Memory.Backend {
	case "surreal":
		dim := embedding.DefaultOpenAIDimension
		if embedder != nil {
			dim = embedder.Dimension()
		}
		sc := cfg.Memory.Surreal
		ss, err := memory.NewSurrealStore(ctx, memory.SurrealConfig{
			URL:       sc.URL,
			Namespace: sc.Namespace,
			Database:  sc.Database,
			Username:  sc.Username,
			Password:  sc.Password,
			AuthLevel: sc.AuthLevel,
			Dimension: dim,
		}, log.Default())
		if err != nil {
			return fmt.Errorf("surrealdb: %w", err)
		}
		s.closers = append(s.closers, ss.Close)
		if err := ss.InitSchema(ctx); err != nil {
			return fmt.Errorf("surrealdb schema: %w", err)
		}
		store = ss
	case "redis":
		rs, err := memory.NewRedisStore(ctx, cfg.Memory.RedisURL)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func(context.Context) error { return rs.Close() })
		store = rs
	default:
		bs, err := memory.NewBoltStore(cfg.Memory.Path)
		if err != nil {
			return fmt.Errorf("local memory: %w", err)
		}
		store = bs
	}

	r, err := memory.NewRetriever(store, embedder, mc)
	if err != nil {
		return fmt.Errorf("memory retriever: %w", err)
	}
	s.Memories = r
	log.Info("Memory ready", "backend", cfg.Memory.Backend, "strategy", r.Strategy())
	return nil
}

func (s *Stack) buildHistory(cfg config.Config) error {
	if cfg.History.Backend != "postgres" {
		bs, err := history.NewBoltStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("local history: %w", err)
		}
		s.History = bs
		return nil
	}
	ps, err := history.NewPostgresStore(history.PostgresConfig{
		DSN:     cfg.History.DSN,
		MaxIdle: cfg.History.MaxIdle,
		MaxOpen: cfg.History.MaxOpen,
		MaxLife: cfg.History.MaxLife,
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	s.closers = append(s.closers, func(context.Context) error { return ps.Close() })
	s.History = ps
	return nil
}

// Close releases store connections in reverse order.
func (s *Stack) Close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			log.Warn("Close failed", "err", err)
		}
	}
	s.closers = nil
}
