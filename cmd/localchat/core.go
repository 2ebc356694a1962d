package main

import (
	"github.com/rs/zerolog"

	"localchat/internal/config"
	"localchat/internal/engine"
	"localchat/internal/manager"
	"localchat/internal/pipeline"
	"localchat/internal/session"
)

// managerConfig maps file/flag settings onto the core.
func managerConfig(cfg config.Config, modelsDir string) manager.Config {
	return manager.Config{
		ModelsDir: modelsDir,
		Session: session.Config{
			MemoryBudgetMB:    cfg.MemoryBudgetMB,
			ContextOverheadMB: cfg.ContextOverheadMB,
			MaxQueueDepth:     cfg.MaxQueueDepth,
			GenerateTimeout:   cfg.GenerateTimeout(),
			CancelGrace:       cfg.CancelGrace(),
			DrainTimeout:      cfg.DrainTimeout(),
			Open: engine.OpenOptions{
				ContextSize: cfg.ContextSize,
				Threads:     cfg.Threads,
				GPULayers:   cfg.GPULayers,
			},
			Params: engine.Params{
				Temperature:   float32(cfg.Temperature),
				TopP:          float32(cfg.TopP),
				TopK:          cfg.TopK,
				MaxTokens:     cfg.MaxTokens,
				RepeatPenalty: float32(cfg.RepeatPenalty),
			},
			SystemPrompt: cfg.SystemPrompt,
			Template:     cfg.Template,
		},
		Limits: pipeline.Limits{
			MaxTurns:       cfg.MaxTurns,
			MaxPromptChars: cfg.MaxPromptChars,
		},
	}
}

// newManager builds the core. eng may be nil to use the default engine.
func newManager(cfg config.Config, modelsDir string, eng engine.Engine, log zerolog.Logger) (*manager.Manager, error) {
	mc := managerConfig(cfg, modelsDir)
	mc.Engine = eng
	return manager.New(mc, manager.WithLogger(log))
}
