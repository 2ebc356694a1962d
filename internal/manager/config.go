package manager

import (
	"time"

	"localchat/internal/engine"
	"localchat/internal/pipeline"
	"localchat/internal/session"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxTurns       = 32
	defaultMaxPromptChars = 16000
	defaultContextOverMB  = 512
)

// Config holds everything needed to build a Manager.
type Config struct {
	// ModelsDir is scanned for *.gguf files; empty disables the catalog.
	ModelsDir string
	// CatalogDebounce delays rescans after directory changes.
	CatalogDebounce time.Duration

	Session session.Config
	Limits  pipeline.Limits

	// Engine runs inference. Nil selects the go-llama.cpp engine, which is a
	// stub unless built with -tags=llama.
	Engine engine.Engine
}

func (c *Config) applyDefaults() {
	if c.Limits.MaxTurns <= 0 {
		c.Limits.MaxTurns = defaultMaxTurns
	}
	if c.Limits.MaxPromptChars <= 0 {
		c.Limits.MaxPromptChars = defaultMaxPromptChars
	}
	if c.Session.ContextOverheadMB <= 0 {
		c.Session.ContextOverheadMB = defaultContextOverMB
	}
	if c.Engine == nil {
		c.Engine = engine.NewLlama(c.Session.Open.Threads)
	}
}
