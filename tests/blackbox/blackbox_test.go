package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"localchat/internal/gguf/gguftest"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

// buildBinary builds the CLI without the llama tag, so model loads report
// the engine as unavailable.
func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping binary build in -short mode")
	}
	binPath := filepath.Join(t.TempDir(), "localchat")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/localchat")
	cmd.Dir = projectRootFromThisFile(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, out)
	}
	return binPath
}

func createModelsDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		gguftest.WriteFile(t, dir, n, gguftest.Llama(n))
	}
	return dir
}

func startServer(t *testing.T, bin, modelsDir string, port int, extra ...string) string {
	t.Helper()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := append([]string{"serve", "--addr", fmt.Sprintf("127.0.0.1:%d", port), "--models-dir", modelsDir}, extra...)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() { _ = cmd.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			_ = cmd.Process.Kill()
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return base
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func do(t *testing.T, method, url, payload string) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != "" {
		body = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func errorKind(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("error json: %v body=%s", err, body)
	}
	return e.Kind
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	modelsDir := createModelsDir(t, "alpha.gguf", "beta.GGUF")
	if err := os.WriteFile(filepath.Join(modelsDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	base := startServer(t, bin, modelsDir, findFreePort(t))

	resp, body := do(t, http.MethodGet, base+"/models", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/models content-type=%s", ct)
	}
	var models struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &models); err != nil {
		t.Fatalf("/models json: %v body=%s", err, body)
	}
	if len(models.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models.Models))
	}

	if resp, _ := do(t, http.MethodGet, base+"/readyz", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodPost, base+"/model", `{"name":"model.bin"}`)
	if resp.StatusCode != http.StatusUnsupportedMediaType || errorKind(t, body) != "invalid_file_type" {
		t.Fatalf("model.bin: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodPost, base+"/model", `{"name":"missing.gguf"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing: %d %s", resp.StatusCode, body)
	}

	// Without the llama tag the header parses but no engine can open it.
	resp, body = do(t, http.MethodPost, base+"/model", `{"name":"alpha.gguf"}`)
	if resp.StatusCode != http.StatusServiceUnavailable || errorKind(t, body) != "engine_unavailable" {
		t.Fatalf("alpha: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, base+"/status", "")
	var st struct {
		State       string `json:"state"`
		EngineBuilt bool   `json:"engine_built"`
	}
	if err := json.Unmarshal(body, &st); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %v", resp.StatusCode, err)
	}
	if st.State != "failed" || st.EngineBuilt {
		t.Fatalf("unexpected status: %s", body)
	}

	resp, body = do(t, http.MethodPost, base+"/chat", `{"text":"hi"}`)
	if resp.StatusCode != http.StatusConflict || errorKind(t, body) != "session_not_ready" {
		t.Fatalf("/chat %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, base+"/metrics", "")
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("localchat_http_requests_total")) {
		t.Fatalf("/metrics %d", resp.StatusCode)
	}
}

func TestBlackbox_InitialModelFlag(t *testing.T) {
	bin := buildBinary(t)
	modelsDir := createModelsDir(t, "alpha.gguf")
	base := startServer(t, bin, modelsDir, findFreePort(t), "--model", "alpha.gguf")

	// The startup load fails without an engine; the server keeps serving.
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body := do(t, http.MethodGet, base+"/status", "")
		if bytes.Contains(body, []byte(`"state":"failed"`)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("startup load did not run; last status %s", body)
		}
		time.Sleep(25 * time.Millisecond)
	}
	if resp, _ := do(t, http.MethodGet, base+"/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz %d", resp.StatusCode)
	}
}
