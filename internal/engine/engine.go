// Package engine is the contract with the native inference runtime.
//
// Build tags:
//
//   - `-tags=llama`: in-process go-llama.cpp (CGO). Files: llama.go,
//     llama_cgo.go (linker rpath hints).
//   - default: a no-CGO stub (stub.go) that refuses to open models with an
//     EngineUnavailable error, keeping default builds and CI CGO-free.
//
// A Handle is not safe for concurrent use. The session serializes calls to
// Run and never calls Close while a Run is outstanding.
package engine

import "context"

// Engine opens model files into runtime handles.
type Engine interface {
	// Open loads the model at path. Implementations must release anything
	// they acquired before returning an error.
	Open(ctx context.Context, path string, opts OpenOptions) (Handle, error)
}

// Handle is a loaded model.
type Handle interface {
	// Run generates a completion for prompt. onToken, when non-nil, receives
	// each token as it is produced; returning an error from it stops
	// generation. Implementations must return promptly once ctx is done.
	Run(ctx context.Context, prompt string, params Params, onToken func(string) error) (Result, error)
	// Close releases the runtime resources.
	Close() error
}

// OpenOptions configures model loading.
type OpenOptions struct {
	ContextSize int
	Threads     int
	GPULayers   int
}

// Params captures generation parameters.
type Params struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
}

// Result summarizes one generation.
type Result struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
