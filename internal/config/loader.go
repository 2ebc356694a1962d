// Package config loads localchat settings from YAML, JSON or TOML files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters. Zero values mean "unspecified" and are
// replaced by defaults (see WithDefaults) or by command-line flags.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`

	MemoryBudgetMB    int `json:"memory_budget_mb" yaml:"memory_budget_mb" toml:"memory_budget_mb"`
	ContextOverheadMB int `json:"context_overhead_mb" yaml:"context_overhead_mb" toml:"context_overhead_mb"`

	ContextSize int `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers   int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`

	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature   float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP          float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	TopK          int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	SystemPrompt  string  `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	Template      string  `json:"template" yaml:"template" toml:"template"`

	MaxTurns       int `json:"max_turns" yaml:"max_turns" toml:"max_turns"`
	MaxPromptChars int `json:"max_prompt_chars" yaml:"max_prompt_chars" toml:"max_prompt_chars"`
	MaxQueueDepth  int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`

	GenerateTimeoutSeconds int `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`
	CancelGraceSeconds     int `json:"cancel_grace_seconds" yaml:"cancel_grace_seconds" toml:"cancel_grace_seconds"`
	DrainTimeoutSeconds    int `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds" toml:"drain_timeout_seconds"`

	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods  []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders  []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Defaults used when neither file nor flags set a value.
const (
	DefaultAddr            = ":8080"
	DefaultModelsDir       = "~/models/llm"
	DefaultLogLevel        = "info"
	DefaultGenerateTimeout = 120 * time.Second
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values that can never be meaningful.
func (c Config) Validate() error {
	neg := map[string]int{
		"memory_budget_mb":         c.MemoryBudgetMB,
		"context_overhead_mb":      c.ContextOverheadMB,
		"context_size":             c.ContextSize,
		"threads":                  c.Threads,
		"gpu_layers":               c.GPULayers,
		"max_tokens":               c.MaxTokens,
		"max_turns":                c.MaxTurns,
		"max_prompt_chars":         c.MaxPromptChars,
		"max_queue_depth":          c.MaxQueueDepth,
		"generate_timeout_seconds": c.GenerateTimeoutSeconds,
		"cancel_grace_seconds":     c.CancelGraceSeconds,
		"drain_timeout_seconds":    c.DrainTimeoutSeconds,
	}
	for k, v := range neg {
		if v < 0 {
			return fmt.Errorf("%s must not be negative (got %d)", k, v)
		}
	}
	if c.Temperature < 0 || c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("invalid sampling settings: temperature=%v top_p=%v", c.Temperature, c.TopP)
	}
	return nil
}

// WithDefaults fills unspecified fields. addrEnv, when non-empty, replaces
// the built-in listen address default.
func (c Config) WithDefaults(addrEnv string) Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
		if addrEnv != "" {
			c.Addr = addrEnv
		}
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.GenerateTimeoutSeconds == 0 {
		c.GenerateTimeoutSeconds = int(DefaultGenerateTimeout / time.Second)
	}
	return c
}

// GenerateTimeout returns the per-generation timeout.
func (c Config) GenerateTimeout() time.Duration {
	return time.Duration(c.GenerateTimeoutSeconds) * time.Second
}

// CancelGrace returns the grace period after cancelling a generation.
func (c Config) CancelGrace() time.Duration {
	return time.Duration(c.CancelGraceSeconds) * time.Second
}

// DrainTimeout returns how long unload waits for in-flight work.
func (c Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}
