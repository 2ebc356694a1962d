//go:build !llama

package engine

import (
	"context"
	"testing"

	"localchat/internal/chaterr"
)

func TestStubOpen_DependencyUnavailable(t *testing.T) {
	e := NewLlama(4)
	h, err := e.Open(context.Background(), "/models/m.gguf", OpenOptions{ContextSize: 512})
	if h != nil {
		t.Fatalf("stub must not return a handle")
	}
	if !chaterr.IsDependencyUnavailable(err) {
		t.Fatalf("expected EngineUnavailable, got %v", err)
	}
	if Built {
		t.Fatalf("Built must be false without the llama tag")
	}
}
