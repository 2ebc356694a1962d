package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"localchat/internal/artifact"
	"localchat/internal/chaterr"
	"localchat/internal/conversation"
	"localchat/internal/engine/enginetest"
	"localchat/internal/gguf/gguftest"
	"localchat/internal/session"
)

func newTestManager(t *testing.T, dir string) (*Manager, *enginetest.Engine) {
	t.Helper()
	eng := enginetest.New()
	m, err := New(Config{ModelsDir: dir, Engine: eng})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, eng
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func TestNewAppliesDefaults(t *testing.T) {
	m, _ := newTestManager(t, "")
	if m.cfg.Limits.MaxTurns != defaultMaxTurns {
		t.Fatalf("MaxTurns=%d", m.cfg.Limits.MaxTurns)
	}
	if m.cfg.Limits.MaxPromptChars != defaultMaxPromptChars {
		t.Fatalf("MaxPromptChars=%d", m.cfg.Limits.MaxPromptChars)
	}
	if m.Ready() {
		t.Fatalf("fresh manager should not be ready")
	}
	if got := m.State(); got != session.StateUnloaded {
		t.Fatalf("state=%s", got)
	}
}

func TestNewMissingModelsDir(t *testing.T) {
	_, err := New(Config{ModelsDir: filepath.Join(t.TempDir(), "missing"), Engine: enginetest.New()})
	if err == nil {
		t.Fatalf("expected error for missing models dir")
	}
}

func TestLoadModelRejectsNonGGUF(t *testing.T) {
	m, eng := newTestManager(t, "")
	_, err := m.LoadModel(testCtx(t), artifact.FileRef{Name: "model.bin"})
	if !chaterr.Is(err, chaterr.InvalidFileType) {
		t.Fatalf("expected InvalidFileType, got %v", err)
	}
	if eng.Opens() != 0 || m.State() != session.StateUnloaded {
		t.Fatalf("rejected pick must not touch the session")
	}
}

func TestChatFlowAndModelChangeResetsConversation(t *testing.T) {
	dir := t.TempDir()
	p := gguftest.WriteFile(t, dir, "tiny.gguf", gguftest.Llama("tiny"))
	m, eng := newTestManager(t, dir)
	eng.Reply = func(string) (string, error) { return "hello back", nil }

	ref, err := artifact.FromPath(p)
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if _, err := m.LoadModel(testCtx(t), ref); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	for _, msg := range []string{"hi", "again"} {
		if _, err := m.Submit(testCtx(t), msg); err != nil {
			t.Fatalf("Submit(%q): %v", msg, err)
		}
	}
	h := m.History()
	want := []conversation.Role{conversation.RoleUser, conversation.RoleAssistant, conversation.RoleUser, conversation.RoleAssistant}
	if len(h) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(h))
	}
	for i, r := range want {
		if h[i].Role != r {
			t.Fatalf("turn %d role=%s want %s", i, h[i].Role, r)
		}
	}
	if st := m.Status(); st.Turns != 4 || st.State != "ready" || st.Model == nil || st.Model.Name != "tiny.gguf" {
		t.Fatalf("unexpected status: %+v", st)
	}

	m.ChangeModel()
	if len(m.History()) != 0 {
		t.Fatalf("conversation should reset on model change")
	}
	if eng.Live() != 0 {
		t.Fatalf("handle leaked after change: live=%d", eng.Live())
	}
	if m.Status().Model != nil {
		t.Fatalf("status still reports a model after change")
	}
}

func TestLoadingAnotherModelResetsConversation(t *testing.T) {
	dir := t.TempDir()
	gguftest.WriteFile(t, dir, "a.gguf", gguftest.Llama("a"))
	gguftest.WriteFile(t, dir, "b.gguf", gguftest.Llama("b"))
	m, eng := newTestManager(t, dir)

	if _, err := m.LoadByName(testCtx(t), "a.gguf"); err != nil {
		t.Fatalf("load a: %v", err)
	}
	if _, err := m.Submit(testCtx(t), "x"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := m.LoadByName(testCtx(t), "b.gguf"); err != nil {
		t.Fatalf("load b: %v", err)
	}
	if n := len(m.History()); n != 0 {
		t.Fatalf("expected empty history after swap, got %d", n)
	}
	if eng.Live() != 1 {
		t.Fatalf("expected exactly one live handle, got %d", eng.Live())
	}
}

func TestLoadByName(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, dir)

	if _, err := m.LoadByName(testCtx(t), "model.bin"); !chaterr.Is(err, chaterr.InvalidFileType) {
		t.Fatalf("expected InvalidFileType, got %v", err)
	}
	if _, err := m.LoadByName(testCtx(t), "absent.gguf"); !chaterr.IsModelNotFound(err) {
		t.Fatalf("expected ModelNotFound, got %v", err)
	}

	// Added after the initial scan; the lookup rescans on a miss.
	gguftest.WriteFile(t, dir, "late.gguf", gguftest.Llama("late"))
	art, err := m.LoadByName(testCtx(t), "late.gguf")
	if err != nil {
		t.Fatalf("LoadByName: %v", err)
	}
	if art.Size == nil || *art.Size <= 0 {
		t.Fatalf("catalog size not carried into artifact: %+v", art)
	}
	if len(m.ListModels()) != 1 {
		t.Fatalf("expected one model listed")
	}
}

func TestFailedLoadKeepsManagerUsable(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.gguf")
	if err := os.WriteFile(bad, []byte("not a model"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gguftest.WriteFile(t, dir, "good.gguf", gguftest.Llama("good"))
	m, eng := newTestManager(t, dir)

	if _, err := m.LoadByName(testCtx(t), "broken.gguf"); !chaterr.Is(err, chaterr.ParseFailure) {
		t.Fatalf("expected ParseFailure, got %v", err)
	}
	if st := m.Status(); st.State != "failed" || st.Reason == "" {
		t.Fatalf("unexpected status after failure: %+v", st)
	}
	if _, err := m.Submit(testCtx(t), "hi"); !chaterr.Is(err, chaterr.SessionNotReady) {
		t.Fatalf("expected SessionNotReady, got %v", err)
	}
	if _, err := m.LoadByName(testCtx(t), "good.gguf"); err != nil {
		t.Fatalf("retry with another file: %v", err)
	}
	if eng.Live() != 1 {
		t.Fatalf("live=%d", eng.Live())
	}
}

func TestSubmitFailureKeepsUserTurn(t *testing.T) {
	dir := t.TempDir()
	gguftest.WriteFile(t, dir, "m.gguf", gguftest.Llama("m"))
	m, eng := newTestManager(t, dir)
	eng.Reply = func(string) (string, error) { return "", errors.New("kv cache full") }
	if _, err := m.LoadByName(testCtx(t), "m.gguf"); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := m.Submit(testCtx(t), "hello")
	if !chaterr.Is(err, chaterr.GenerationFailure) {
		t.Fatalf("expected GenerationFailure, got %v", err)
	}
	h := m.History()
	if len(h) != 1 || h[0].Role != conversation.RoleUser || h[0].Text != "hello" {
		t.Fatalf("unexpected history: %+v", h)
	}
}

func TestResetHistoryKeepsModel(t *testing.T) {
	dir := t.TempDir()
	gguftest.WriteFile(t, dir, "m.gguf", gguftest.Llama("m"))
	m, _ := newTestManager(t, dir)
	if _, err := m.LoadByName(testCtx(t), "m.gguf"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.Submit(testCtx(t), "hello"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	m.ResetHistory()
	if len(m.History()) != 0 || !m.Ready() {
		t.Fatalf("reset should clear turns and keep the model")
	}
}

func TestCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	gguftest.WriteFile(t, dir, "m.gguf", gguftest.Llama("m"))
	m, eng := newTestManager(t, dir)
	if _, err := m.LoadByName(testCtx(t), "m.gguf"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if eng.Live() != 0 {
		t.Fatalf("live=%d after Close", eng.Live())
	}
}

func TestModelFilesAndTurnsConversion(t *testing.T) {
	dir := t.TempDir()
	gguftest.WriteFile(t, dir, "m.gguf", gguftest.Llama("m"))
	m, _ := newTestManager(t, dir)
	files := ModelFiles(m.ListModels())
	if len(files) != 1 || files[0].Name != "m.gguf" || files[0].SizeBytes <= 0 || files[0].DisplaySize == "" {
		t.Fatalf("unexpected files: %+v", files)
	}
	ts := Turns([]conversation.Turn{{Role: conversation.RoleUser, Text: "x", Seq: 1}})
	if len(ts) != 1 || ts[0].Role != "user" || ts[0].Seq != 1 {
		t.Fatalf("unexpected turns: %+v", ts)
	}
}
