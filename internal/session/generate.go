package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"localchat/internal/chaterr"
	"localchat/internal/conversation"
	"localchat/internal/engine"
)

var (
	errGenerateTimeout = errors.New("generation timed out")
	errAbandoned       = errors.New("generation abandoned")
)

type runResult struct {
	res engine.Result
	err error
}

// tokenSink forwards tokens to the caller until Generate has returned.
type tokenSink struct {
	mu     sync.Mutex
	fn     func(string) error
	closed bool
}

func (t *tokenSink) emit(tok string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errAbandoned
	}
	if t.fn == nil {
		return nil
	}
	return t.fn(tok)
}

func (t *tokenSink) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Generate produces the assistant reply to text given the prior turns. It
// does not touch any conversation log; the returned turn has no sequence
// number. onToken, when non-nil, receives tokens as they are produced and is
// never called after Generate returns.
func (s *Session) Generate(ctx context.Context, history []conversation.Turn, text string, onToken func(string) error) (conversation.Turn, error) {
	s.mu.RLock()
	inst := s.inst
	ready := s.state == StateReady && inst != nil
	s.mu.RUnlock()
	if !ready {
		generationsTotal.WithLabelValues("not_ready").Inc()
		return conversation.Turn{}, chaterr.New(chaterr.SessionNotReady, "generate", "no model is loaded")
	}

	release, err := s.admit(ctx, inst)
	if err != nil {
		return conversation.Turn{}, err
	}

	p, err := inst.tmpl.Render(s.cfg.SystemPrompt, history, text)
	if err != nil {
		release()
		generationsTotal.WithLabelValues("failed").Inc()
		return conversation.Turn{}, chaterr.Wrap(chaterr.GenerationFailure, "generate", err)
	}

	s.mu.Lock()
	inst.lastUsed = time.Now()
	s.generations++
	s.mu.Unlock()

	rctx, cancel := context.WithCancelCause(inst.ctx)
	defer cancel(nil)
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	defer stop()
	if d := s.cfg.GenerateTimeout; d > 0 {
		var cancelT context.CancelFunc
		rctx, cancelT = context.WithTimeoutCause(rctx, d, errGenerateTimeout)
		defer cancelT()
	}

	start := time.Now()
	s.pub.Publish(Event{Name: "generate_start", SessionID: inst.id, Model: inst.art.Name, Fields: map[string]any{
		"history": len(history), "prompt_chars": len(p),
	}})

	sink := &tokenSink{fn: onToken}
	done := make(chan runResult, 1)
	go func() {
		// The run owns the in-flight slot until the engine returns, even if
		// Generate has already given up on it.
		defer release()
		res, err := inst.handle.Run(rctx, p, inst.params, sink.emit)
		done <- runResult{res: res, err: err}
	}()

	var r runResult
	select {
	case r = <-done:
	case <-rctx.Done():
		grace := time.NewTimer(s.cfg.CancelGrace)
		select {
		case r = <-done:
			grace.Stop()
		case <-grace.C:
			sink.close()
			s.abandon(inst)
			err := s.cancelled(rctx)
			s.generateFailed(inst, start, err)
			return conversation.Turn{}, err
		}
	}
	sink.close()

	if r.err != nil {
		err := r.err
		if rctx.Err() != nil {
			err = s.cancelled(rctx)
		} else {
			err = chaterr.Wrap(chaterr.GenerationFailure, "generate", err)
		}
		s.generateFailed(inst, start, err)
		return conversation.Turn{}, err
	}

	dur := time.Since(start)
	generationsTotal.WithLabelValues("ok").Inc()
	generateDuration.Observe(dur.Seconds())
	s.log.Debug().
		Str("session", inst.id).
		Int("tokens", r.res.Usage.CompletionTokens).
		Str("finish", r.res.FinishReason).
		Dur("dur", dur).
		Msg("generate done")
	s.pub.Publish(Event{Name: "generate_done", SessionID: inst.id, Model: inst.art.Name, Fields: map[string]any{
		"dur_ms": dur.Milliseconds(), "tokens": r.res.Usage.CompletionTokens, "finish_reason": r.res.FinishReason,
	}})
	return conversation.Turn{
		Role: conversation.RoleAssistant,
		Text: cleanReply(r.res.Content, inst.params.Stop),
		At:   time.Now(),
	}, nil
}

// admit waits in FIFO order for the in-flight slot, or fails fast when the
// queue is full. The returned func frees the slot.
func (s *Session) admit(ctx context.Context, inst *instance) (func(), error) {
	unloaded := chaterr.New(chaterr.SessionNotReady, "generate", "model was unloaded")
	select {
	case <-inst.retired:
		return nil, unloaded
	default:
	}
	slot, ok := inst.gate.enter(false)
	if !ok {
		generationsTotal.WithLabelValues("busy").Inc()
		return nil, chaterr.New(chaterr.SessionBusy, "generate",
			fmt.Sprintf("%d requests already waiting", inst.gate.depth))
	}

	select {
	case <-slot:
	case <-inst.retired:
		inst.gate.abandon(slot)
		return nil, unloaded
	case <-ctx.Done():
		inst.gate.abandon(slot)
		return nil, s.cancelled(ctx)
	}
	select {
	case <-inst.retired:
		inst.gate.leave()
		return nil, unloaded
	default:
	}
	return inst.gate.leave, nil
}

// cancelled maps the reason a run context ended to a session error.
func (s *Session) cancelled(ctx context.Context) error {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errUnloaded):
		return chaterr.New(chaterr.SessionNotReady, "generate", "model was unloaded")
	case errors.Is(cause, errGenerateTimeout), errors.Is(cause, context.DeadlineExceeded):
		return chaterr.Wrap(chaterr.GenerationTimeout, "generate", context.DeadlineExceeded)
	case cause != nil:
		return fmt.Errorf("generate: %w", cause)
	}
	return fmt.Errorf("generate: %w", context.Canceled)
}

// abandon marks the session failed when the engine ignored cancellation.
// The handle is closed once the stuck run returns.
func (s *Session) abandon(inst *instance) {
	s.mu.Lock()
	if s.inst != inst {
		s.mu.Unlock()
		return
	}
	s.inst = nil
	s.epoch++
	s.setState(StateFailed, "inference engine did not stop after cancellation")
	s.mu.Unlock()
	s.log.Error().Str("session", inst.id).Dur("grace", s.cfg.CancelGrace).Msg("engine ignored cancellation; session failed")
	s.release(inst, 0)
}

func (s *Session) generateFailed(inst *instance, start time.Time, err error) {
	result := "failed"
	switch chaterr.KindOf(err) {
	case chaterr.GenerationTimeout:
		result = "timeout"
	case chaterr.SessionNotReady:
		result = "unloaded"
	case "":
		result = "cancelled"
	}
	generationsTotal.WithLabelValues(result).Inc()
	generateDuration.Observe(time.Since(start).Seconds())
	s.log.Warn().Err(err).Str("session", inst.id).Msg("generate failed")
	s.pub.Publish(Event{Name: "generate_failed", SessionID: inst.id, Model: inst.art.Name, Fields: map[string]any{
		"error": err.Error(), "kind": string(chaterr.KindOf(err)),
	}})
}

// cleanReply trims whitespace and any trailing stop sequence the engine echoed.
func cleanReply(s string, stops []string) string {
	s = strings.TrimSpace(s)
	for _, stop := range stops {
		if stop != "" {
			s = strings.TrimSpace(strings.TrimSuffix(s, stop))
		}
	}
	return s
}
