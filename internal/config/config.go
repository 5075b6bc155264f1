// Package config loads the gateway configuration from YAML with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/parley/internal/tools"
	"github.com/haasonsaas/parley/internal/tools/notion"
	"github.com/haasonsaas/parley/internal/tools/websearch"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Tools    tools.Config   `yaml:"tools"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ServerConfig configures the HTTP/websocket listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// AllowedOrigins restricts websocket upgrades. Empty allows any
	// origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig configures the model backend.
type LLMConfig struct {
	APIKey          string `yaml:"api_key"`
	ChatModel       string `yaml:"chat_model"`
	VisionModel     string `yaml:"vision_model"`
	MaxOutputTokens int32  `yaml:"max_output_tokens"`

	// MaxToolRounds caps tool-dispatch rounds per turn.
	MaxToolRounds int `yaml:"max_tool_rounds"`

	// SendTimeout bounds each model call.
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// SessionsConfig configures idle eviction.
type SessionsConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Default returns the configuration used when no file is given. Credentials
// come from the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: "127.0.0.1:5000"},
		LLM: LLMConfig{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
		},
		Tools: tools.Config{
			Search: websearch.Config{
				APIKey:   os.Getenv("GOOGLE_CSE_API_KEY"),
				EngineID: os.Getenv("GOOGLE_CSE_ID"),
			},
			Notion: notion.Config{
				APIKey: os.Getenv("NOTION_API_KEY"),
			},
		},
	}
}

// Load reads a YAML config file, expanding ${VAR} references against the
// environment before decoding. Unset fields keep their zero value; the
// consumers apply defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings a server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config: llm.api_key is required (or set GOOGLE_API_KEY)")
	}
	return nil
}
