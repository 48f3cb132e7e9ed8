package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Text      ModelConfig     `toml:"text"`
	Vision    ModelConfig     `toml:"vision"`
	Tools     ModelConfig     `toml:"tools"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Persona   PersonaConfig   `toml:"persona"`
	Turn      TurnConfig      `toml:"turn"`
	Index     IndexConfig     `toml:"index"`
	Filter    FilterConfig    `toml:"filter"`
	Observer  ObserverConfig  `toml:"observer"`
}

type ServerConfig struct {
	Addr          string `toml:"addr"`
	MaxChatLength int    `toml:"max_chat_length"`
	ChatBacklog   int    `toml:"chat_backlog"`
}

type ModelConfig struct {
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	APIKey    string `toml:"api_key"`
	MaxTokens int    `toml:"max_tokens"`
}

type EmbeddingConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
}

type PersonaConfig struct {
	AIName           string   `toml:"ai_name"`
	HostName         string   `toml:"host_name"`
	SystemPromptPath string   `toml:"system_prompt_path"`
	ContextTokens    int      `toml:"context_tokens"`
	StopStrings      []string `toml:"stop_strings"`
}

type TurnConfig struct {
	PatienceSeconds float64 `toml:"patience_seconds"`
	TickMillis      int     `toml:"tick_millis"`
	Strategy        string  `toml:"strategy"`
	MaxTools        int     `toml:"max_tools"`
}

type IndexConfig struct {
	Path string `toml:"path"`
}

type FilterConfig struct {
	BlacklistPath string `toml:"blacklist_path"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server:    ServerConfig{Addr: ":8765", MaxChatLength: 500, ChatBacklog: 100},
		Text:      ModelConfig{BaseURL: "http://localhost:5000/v1", Model: "local", MaxTokens: 256},
		Vision:    ModelConfig{BaseURL: "http://localhost:5000/v1", Model: "local", MaxTokens: 256},
		Tools:     ModelConfig{BaseURL: "http://localhost:5000/v1", Model: "local", MaxTokens: 512},
		Embedding: EmbeddingConfig{BaseURL: "http://localhost:5000/v1", Model: "local-embed"},
		Persona:   PersonaConfig{AIName: "Luna", HostName: "Host", ContextTokens: 4096},
		Turn:      TurnConfig{PatienceSeconds: 60, TickMillis: 100, Strategy: "hybrid", MaxTools: 5},
		Index:     IndexConfig{Path: "luna.db"},
		Filter:    FilterConfig{BlacklistPath: "blacklist.txt"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "luna.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("LUNA_TEXT_API_KEY"); v != "" {
		cfg.Text.APIKey = v
	}
	if v := os.Getenv("LUNA_VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("LUNA_TOOLS_API_KEY"); v != "" {
		cfg.Tools.APIKey = v
	}
	if v := os.Getenv("LUNA_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("LUNA_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if os.Getenv("LUNA_OBSERVER_ENABLED") == "true" || os.Getenv("LUNA_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks: the vision and tool paths usually share the text
	// endpoint and credentials.
	if cfg.Vision.APIKey == "" {
		cfg.Vision.APIKey = cfg.Text.APIKey
	}
	if cfg.Tools.APIKey == "" {
		cfg.Tools.APIKey = cfg.Text.APIKey
	}
	if cfg.Tools.Model == "" {
		cfg.Tools.BaseURL = cfg.Text.BaseURL
		cfg.Tools.Model = cfg.Text.Model
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.Text.APIKey
	}

	return cfg
}

// Patience returns the idle-trigger duration.
func (c Config) Patience() time.Duration {
	return time.Duration(c.Turn.PatienceSeconds * float64(time.Second))
}

// Tick returns the scheduler tick interval.
func (c Config) Tick() time.Duration {
	return time.Duration(c.Turn.TickMillis) * time.Millisecond
}
