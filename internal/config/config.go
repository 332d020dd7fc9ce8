// Package config loads settings from flags, environment, an optional YAML
// file and a .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "REHEARSE"

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	Proxy    string `mapstructure:"proxy"`
	Owner    string `mapstructure:"owner"`

	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	History    HistoryConfig    `mapstructure:"history"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Session    SessionConfig    `mapstructure:"session"`
	Audio      AudioConfig      `mapstructure:"audio"`
	Helper     HelperConfig     `mapstructure:"helper"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
	API        APIConfig        `mapstructure:"api"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

type ElevenLabsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	VoiceID string `mapstructure:"voice_id"`
}

type MemoryConfig struct {
	Strategy string        `mapstructure:"strategy"`
	Limit    int           `mapstructure:"limit"`
	Backend  string        `mapstructure:"backend"` // surreal, redis or local (bbolt)
	RedisURL string        `mapstructure:"redis_url"`
	Path     string        `mapstructure:"path"` // bbolt file of the local backend
	Surreal  SurrealConfig `mapstructure:"surreal"`
}

type SurrealConfig struct {
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
	Database  string `mapstructure:"database"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	AuthLevel string `mapstructure:"auth_level"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai or ollama
	Model      string `mapstructure:"model"`
	Dimension  int    `mapstructure:"dimension"`
	OllamaHost string `mapstructure:"ollama_host"`
}

type HistoryConfig struct {
	Backend string        `mapstructure:"backend"` // postgres or local (bbolt)
	DSN     string        `mapstructure:"dsn"`
	Path    string        `mapstructure:"path"` // bbolt file of the local backend
	MaxIdle int           `mapstructure:"max_idle"`
	MaxOpen int           `mapstructure:"max_open"`
	MaxLife time.Duration `mapstructure:"max_life"`
}

type CaptureConfig struct {
	Silence      time.Duration `mapstructure:"silence"`
	WhisperModel string        `mapstructure:"whisper_model"`
	Language     string        `mapstructure:"language"`
	Threshold    float64       `mapstructure:"threshold"`
}

type SessionConfig struct {
	Inactivity time.Duration `mapstructure:"inactivity"`
	Role       string        `mapstructure:"role"`
}

type AudioConfig struct {
	Cue       string `mapstructure:"cue"`
	Duck      bool   `mapstructure:"duck"`
	DuckFloor int    `mapstructure:"duck_floor"`
	Voice     string `mapstructure:"voice"` // espeak language
}

type HelperConfig struct {
	Provider string `mapstructure:"provider"` // openai, ollama or anthropic
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"` // anthropic only
}

type DaemonConfig struct {
	Socket string `mapstructure:"socket"`
	BusURL string `mapstructure:"bus_url"`
	State  string `mapstructure:"state"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

var defaults = map[string]any{
	"log_level": "info",
	"log_file":  "",
	"proxy":     "",
	"owner":     "",

	"openai.api_key":     "",
	"openai.base_url":    "",
	"openai.model":       "gpt-4o-mini",
	"openai.temperature": 0.7,

	"elevenlabs.api_key":  "",
	"elevenlabs.voice_id": "21m00Tcm4TlvDq8ikWAM",

	"memory.strategy":           "recency",
	"memory.limit":              10,
	"memory.backend":            "local",
	"memory.redis_url":          "redis://localhost:6379/0",
	"memory.path":               "data/memories.db",
	"memory.surreal.url":        "ws://localhost:8000/rpc",
	"memory.surreal.namespace":  "rehearse",
	"memory.surreal.database":   "memory",
	"memory.surreal.username":   "root",
	"memory.surreal.password":   "root",
	"memory.surreal.auth_level": "root",

	"embedding.provider":    "openai",
	"embedding.model":       "",
	"embedding.dimension":   0,
	"embedding.ollama_host": "http://localhost:11434",

	"history.backend":  "local",
	"history.dsn":      "",
	"history.path":     "data/history.db",
	"history.max_idle": 5,
	"history.max_open": 20,
	"history.max_life": time.Hour,

	"capture.silence":       2000 * time.Millisecond,
	"capture.whisper_model": "models/ggml-base.en.bin",
	"capture.language":      "en",
	"capture.threshold":     0.015,

	"session.inactivity": 2 * time.Minute,
	"session.role":       "General",

	"audio.cue":        "",
	"audio.duck":       true,
	"audio.duck_floor": 15,
	"audio.voice":      "en",

	"helper.provider": "openai",
	"helper.model":    "gpt-4o-mini",
	"helper.api_key":  "",

	"daemon.socket":  "/tmp/rehearse.sock",
	"daemon.bus_url": "",
	"daemon.state":   "rehearse.db",

	"api.addr": ":8080",
}

// Provider keys keep their conventional names.
var envAliases = map[string]string{
	"openai.api_key":      "OPENAI_API_KEY",
	"elevenlabs.api_key":  "ELEVENLABS_API_KEY",
	"elevenlabs.voice_id": "ELEVENLABS_VOICE_ID",
	"history.dsn":         "DATABASE_URL",
	"helper.api_key":      "ANTHROPIC_API_KEY",
}

// Flags registers the command line flags shared by every binary.
func Flags(fs *pflag.FlagSet) {
	fs.StringP("env", "e", ".env", "Env file path")
	fs.StringP("config", "c", "", "YAML config file")
	fs.StringP("log", "l", "info", "Log level")
	fs.String("log-file", "", "Also write JSON logs to this file")
	fs.StringP("proxy", "p", "", "SOCKS5 proxy address for provider calls")
	fs.String("owner", "", "Candidate id that owns memories and history")
	fs.String("role", "General", "Target role for the interview")
	fs.String("socket", "/tmp/rehearse.sock", "Control socket path")
	fs.String("addr", ":8080", "HTTP listen address")
}

var flagKeys = map[string]string{
	"log":      "log_level",
	"log-file": "log_file",
	"proxy":    "proxy",
	"owner":    "owner",
	"role":     "session.role",
	"socket":   "daemon.socket",
	"addr":     "api.addr",
}

// Load reads the .env file named by the env flag, then resolves every key.
// A missing .env file is not an error.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if fs != nil {
		if envFile, err := fs.GetString("env"); err == nil && envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if file, err := fs.GetString("config"); err == nil && file != "" {
			v.SetConfigFile(file)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Memory.Strategy {
	case "recency", "similarity":
	default:
		return fmt.Errorf("memory.strategy: unknown %q", c.Memory.Strategy)
	}
	switch c.Memory.Backend {
	case "local", "surreal", "redis":
	default:
		return fmt.Errorf("memory.backend: unknown %q", c.Memory.Backend)
	}
	if c.Memory.Backend == "redis" && c.Memory.Strategy == "similarity" {
		return errors.New("memory: redis backend supports the recency strategy only")
	}
	switch c.History.Backend {
	case "local":
	case "postgres":
		if c.History.DSN == "" {
			return errors.New("history.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("history.backend: unknown %q", c.History.Backend)
	}
	if c.Capture.Silence <= 0 || c.Session.Inactivity <= 0 {
		return errors.New("capture.silence and session.inactivity must be positive")
	}
	return nil
}
