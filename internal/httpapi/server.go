// Package httpapi exposes the chat core over HTTP/JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localchat/internal/artifact"
	"localchat/internal/catalog"
	"localchat/internal/conversation"
	"localchat/internal/manager"
	"localchat/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []catalog.Entry
	Status() types.StatusResponse
	LoadModel(ctx context.Context, ref artifact.FileRef) (artifact.Artifact, error)
	LoadByName(ctx context.Context, name string) (artifact.Artifact, error)
	ChangeModel()
	SubmitStream(ctx context.Context, text string, onToken func(string) error) (conversation.Turn, error)
	History() []conversation.Turn
	ResetHistory()
	Ready() bool
}

// NewMux builds the router. modelsDir is reported by GET /models.
func NewMux(svc Service, modelsDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		origins, methods, headers := corsDefaults()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc, modelsDir: modelsDir}

	// Compression would buffer NDJSON streams, so it only wraps the plain
	// JSON endpoints.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json"))
		r.Get("/models", h.listModels)
		r.Get("/status", h.status)
		r.Get("/history", h.history)
	})
	r.Post("/model", h.loadModel)
	r.Delete("/model", h.changeModel)
	r.Delete("/history", h.resetHistory)
	r.Post("/chat", h.chat)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no model loaded"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc       Service
	modelsDir string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("encode response")
	}
}

// decodeJSON enforces the content type and body limit and decodes into v.
// It writes the error response itself and reports whether decoding worked.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// listModels godoc
// @Summary      List model files
// @Description  Lists *.gguf files found in the models directory.
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.ModelsResponse
// @Router       /models [get]
func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{
		Dir:    h.modelsDir,
		Models: manager.ModelFiles(h.svc.ListModels()),
	})
}

// status godoc
// @Summary      Session status
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// loadModel godoc
// @Summary      Select and load a model
// @Description  Validates the file name, then loads it. Without a locator the name is looked up in the models directory. Loading replaces the current model and clears the conversation.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        request  body      types.LoadRequest  true  "Model to load"
// @Success      200      {object}  types.StatusResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      422      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Failure      507      {object}  types.ErrorResponse
// @Router       /model [post]
func (h *handlers) loadModel(w http.ResponseWriter, r *http.Request) {
	var req types.LoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	var err error
	if req.Locator == "" {
		_, err = h.svc.LoadByName(ctx, req.Name)
	} else {
		_, err = h.svc.LoadModel(ctx, artifact.FileRef{
			Name:    req.Name,
			Size:    req.SizeBytes,
			Locator: artifact.Locator(req.Locator),
		})
	}
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// changeModel godoc
// @Summary      Unload the model
// @Description  Releases the loaded model and clears the conversation so another model can be picked.
// @Tags         models
// @Success      204
// @Router       /model [delete]
func (h *handlers) changeModel(w http.ResponseWriter, r *http.Request) {
	h.svc.ChangeModel()
	w.WriteHeader(http.StatusNoContent)
}

// history godoc
// @Summary      Conversation transcript
// @Tags         chat
// @Produce      json
// @Success      200  {object}  types.HistoryResponse
// @Router       /history [get]
func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HistoryResponse{Turns: manager.Turns(h.svc.History())})
}

// resetHistory godoc
// @Summary      Clear the conversation
// @Tags         chat
// @Success      204
// @Router       /history [delete]
func (h *handlers) resetHistory(w http.ResponseWriter, r *http.Request) {
	h.svc.ResetHistory()
	w.WriteHeader(http.StatusNoContent)
}

// chat godoc
// @Summary      Send a message
// @Description  Appends the user message, generates a reply and appends it. With stream=true the response is NDJSON: {"token":...} lines followed by {"done":true,"turn":{...}} or {"done":true,"error":...}.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Produce      application/x-ndjson
// @Param        request  body      types.ChatRequest  true  "User message"
// @Success      200      {object}  types.ChatResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse
// @Failure      504      {object}  types.ErrorResponse
// @Router       /chat [post]
func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	if !req.Stream {
		turn, err := h.svc.SubmitStream(ctx, req.Text, nil)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ChatResponse{Turn: manager.Turn(turn)})
		return
	}
	h.chatStream(ctx, w, r, req.Text)
}

// chatStream writes NDJSON. Headers are sent with the first token, so errors
// that happen before any output still get a proper status code.
func (h *handlers) chatStream(ctx context.Context, w http.ResponseWriter, r *http.Request, text string) {
	var out io.Writer = w
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &lineLogger{rid: middleware.GetReqID(r.Context())})
	}
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(out)

	var mu sync.Mutex
	started := false
	start := func() {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
	}
	onToken := func(tok string) error {
		mu.Lock()
		defer mu.Unlock()
		start()
		if err := enc.Encode(types.StreamLine{Token: tok}); err != nil {
			return err
		}
		_ = rc.Flush()
		return nil
	}

	turn, err := h.svc.SubmitStream(ctx, text, onToken)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		if !started {
			writeError(w, err)
			return
		}
		resp := errorResponse(err)
		_ = enc.Encode(types.StreamLine{Done: true, Error: resp.Error, Kind: resp.Kind})
		_ = rc.Flush()
		return
	}
	start()
	t := manager.Turn(turn)
	_ = enc.Encode(types.StreamLine{Done: true, Turn: &t})
	_ = rc.Flush()
}
