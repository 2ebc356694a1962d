package e2e

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"localchat/internal/artifact"
	"localchat/internal/engine"
	"localchat/internal/manager"
)

// TestRealModel_Haiku asks a real model for a haiku. Skips unless the binary
// was built with -tags=llama and LOCALCHAT_TEST_MODEL names a .gguf file.
func TestRealModel_Haiku(t *testing.T) {
	if !engine.Built {
		t.Skip("built without the llama tag")
	}
	path := strings.TrimSpace(os.Getenv("LOCALCHAT_TEST_MODEL"))
	if path == "" {
		t.Skip("LOCALCHAT_TEST_MODEL not set")
	}
	ref, err := artifact.FromPath(path)
	if err != nil {
		t.Fatalf("model: %v", err)
	}

	cfg := manager.Config{}
	cfg.Session.Params.MaxTokens = 64
	cfg.Session.GenerateTimeout = 2 * time.Minute
	mgr, err := manager.New(cfg)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := mgr.LoadModel(ctx, ref); err != nil {
		t.Fatalf("load: %v", err)
	}
	turn, err := mgr.Submit(ctx, "Write a haiku about the ocean.")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if strings.TrimSpace(turn.Text) == "" {
		t.Fatalf("empty reply")
	}
	t.Logf("haiku:\n%s", turn.Text)
}
