// Package enginetest provides a resource-counting fake inference engine.
package enginetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"localchat/internal/engine"
)

// ErrClosed is returned by Run on a closed handle.
var ErrClosed = errors.New("enginetest: handle closed")

// Engine is a fake engine. The zero value is not usable; call New.
type Engine struct {
	// OpenErr, when set, makes Open fail.
	OpenErr error
	// OpenGate, when set, blocks Open until it is closed or ctx is done.
	OpenGate chan struct{}
	// RunGate, when set, blocks Run until it is closed (or ctx is done unless
	// IgnoreCancel is set).
	RunGate chan struct{}
	// IgnoreCancel simulates a runtime that cannot be interrupted.
	IgnoreCancel bool
	// Reply computes the completion; default is Ack.
	Reply func(prompt string) (string, error)

	mu      sync.Mutex
	live    int
	opens   int
	closes  int
	prompts []string
	paths   []string

	running int32
	overlap atomic.Bool
}

// New returns a ready-to-use fake engine.
func New() *Engine { return &Engine{} }

func (e *Engine) Open(ctx context.Context, path string, opts engine.OpenOptions) (engine.Handle, error) {
	if e.OpenGate != nil {
		select {
		case <-e.OpenGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	e.mu.Lock()
	e.live++
	e.opens++
	e.paths = append(e.paths, path)
	e.mu.Unlock()
	return &handle{e: e}, nil
}

// Live is the number of open handles.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

// Opens is the number of successful opens.
func (e *Engine) Opens() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opens
}

// Closes is the number of Close calls that released a handle.
func (e *Engine) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// Prompts returns every prompt passed to Run, in call order.
func (e *Engine) Prompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}

// Paths returns every path passed to a successful Open.
func (e *Engine) Paths() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.paths...)
}

// Overlapped reports whether two Runs were ever in flight at once.
func (e *Engine) Overlapped() bool { return e.overlap.Load() }

type handle struct {
	e      *Engine
	mu     sync.Mutex
	closed bool
}

func (h *handle) Run(ctx context.Context, prompt string, params engine.Params, onToken func(string) error) (engine.Result, error) {
	e := h.e
	if atomic.AddInt32(&e.running, 1) > 1 {
		e.overlap.Store(true)
	}
	defer atomic.AddInt32(&e.running, -1)

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return engine.Result{}, ErrClosed
	}

	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	e.mu.Unlock()

	if e.RunGate != nil {
		if e.IgnoreCancel {
			<-e.RunGate
		} else {
			select {
			case <-e.RunGate:
			case <-ctx.Done():
				return engine.Result{}, ctx.Err()
			}
		}
	}
	if !e.IgnoreCancel {
		if err := ctx.Err(); err != nil {
			return engine.Result{}, err
		}
	}

	reply := e.Reply
	if reply == nil {
		reply = Ack
	}
	text, err := reply(prompt)
	if err != nil {
		return engine.Result{}, err
	}
	words := strings.Fields(text)
	for i, w := range words {
		tok := w
		if i > 0 {
			tok = " " + w
		}
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return engine.Result{}, err
			}
		}
	}
	return engine.Result{
		Content:      text,
		Usage:        engine.Usage{CompletionTokens: len(words), TotalTokens: len(words)},
		FinishReason: "stop",
	}, nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.e.mu.Lock()
	h.e.live--
	h.e.closes++
	h.e.mu.Unlock()
	return nil
}

// Ack answers every prompt with "ack".
func Ack(prompt string) (string, error) { return "ack", nil }
