//go:build !llama

package engine

import (
	"context"

	"localchat/internal/chaterr"
)

// Built reports whether this binary carries a real inference runtime.
const Built = false

type llamaEngine struct {
	threads int
}

// NewLlama returns the stub engine. Open always fails with EngineUnavailable.
func NewLlama(threads int) Engine {
	return &llamaEngine{threads: threads}
}

func (e *llamaEngine) Open(ctx context.Context, path string, opts OpenOptions) (Handle, error) {
	return nil, chaterr.New(chaterr.EngineUnavailable, "open", "llama support not built (missing 'llama' build tag)")
}
