//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"localchat/internal/chaterr"
)

// Built reports whether this binary carries a real inference runtime.
const Built = true

// llamaEngine holds process-wide settings used for every handle.
type llamaEngine struct {
	threads int
}

// NewLlama returns the go-llama.cpp engine.
func NewLlama(threads int) Engine {
	return &llamaEngine{threads: threads}
}

// llamaHandle owns one loaded model.
type llamaHandle struct {
	model   *llama.LLama
	threads int
}

func (e *llamaEngine) Open(ctx context.Context, path string, opts OpenOptions) (Handle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{
		llama.SetContext(zn(opts.ContextSize, 2048)),
	}
	if opts.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(opts.GPULayers))
	}
	threads := e.threads
	if opts.Threads > 0 {
		threads = opts.Threads
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		// The header was validated before we got here, so a failing load is
		// almost always an allocation problem (context or weights).
		return nil, chaterr.Wrap(chaterr.ResourceExhausted, "open", err)
	}
	return &llamaHandle{model: m, threads: threads}, nil
}

func (h *llamaHandle) Run(ctx context.Context, prompt string, params Params, onToken func(string) error) (Result, error) {
	if h.model == nil {
		return Result{}, errors.New("llama model not initialized")
	}
	completion := 0
	h.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		completion++
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return false
			}
		}
		return true
	})

	text, err := h.model.Predict(prompt, predictOptions(params, h.threads)...)
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		return Result{}, err
	}
	finish := "stop"
	if params.MaxTokens > 0 && completion >= params.MaxTokens {
		finish = "length"
	}
	return Result{
		Content:      text,
		Usage:        Usage{CompletionTokens: completion, TotalTokens: completion},
		FinishReason: finish,
	}, nil
}

func (h *llamaHandle) Close() error {
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts Params into go-llama.cpp options.
func predictOptions(params Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, zn(params.MaxTokens, 256))),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(params.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(params.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(params.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(params.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}
