// Package pipeline turns user text into conversation turns: it validates
// input, caps the history fed to the model, and records both sides of the
// exchange in the conversation log.
package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"localchat/internal/chaterr"
	"localchat/internal/conversation"
)

// Generator is the part of the model session the pipeline needs.
type Generator interface {
	Ready() bool
	Generate(ctx context.Context, history []conversation.Turn, text string, onToken func(string) error) (conversation.Turn, error)
}

// Limits bound the prompt. Zero means unlimited.
type Limits struct {
	// MaxTurns counts every turn in the prompt, the new user turn included.
	MaxTurns int
	// MaxPromptChars counts characters of retained history plus the new text.
	MaxPromptChars int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option { return func(p *Pipeline) { p.log = l } }

// Pipeline is safe for concurrent use. Concurrent submits are ordered by the
// session's admission queue; their user turns may interleave in the log.
type Pipeline struct {
	gen    Generator
	conv   *conversation.Log
	limits Limits
	log    zerolog.Logger
}

// New returns a pipeline writing to conv.
func New(gen Generator, conv *conversation.Log, limits Limits, opts ...Option) *Pipeline {
	p := &Pipeline{gen: gen, conv: conv, limits: limits, log: zerolog.Nop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Submit records text as a user turn, asks the model for a reply and records
// that too. The user turn stays in the log when generation fails.
func (p *Pipeline) Submit(ctx context.Context, text string) (conversation.Turn, error) {
	return p.SubmitStream(ctx, text, nil)
}

// SubmitStream is Submit with tokens forwarded to onToken as they arrive.
func (p *Pipeline) SubmitStream(ctx context.Context, text string, onToken func(string) error) (conversation.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return conversation.Turn{}, chaterr.New(chaterr.EmptyInput, "submit", "message is empty")
	}
	// A reset after this point means the model changed or the user cleared
	// the log; the exchange no longer belongs to it.
	epoch := p.conv.Epoch()
	if !p.gen.Ready() {
		return conversation.Turn{}, chaterr.New(chaterr.SessionNotReady, "submit", "no model is loaded")
	}
	history := Cap(p.conv.History(), text, p.limits)
	user, ok := p.conv.AppendIf(epoch, conversation.Turn{Role: conversation.RoleUser, Text: text, At: time.Now()})
	if !ok {
		return conversation.Turn{}, errConversationReset()
	}

	start := time.Now()
	reply, err := p.gen.Generate(ctx, history, text, onToken)
	if err != nil {
		p.log.Warn().Err(err).Uint64("seq", user.Seq).Msg("reply failed")
		return conversation.Turn{}, err
	}
	reply.Role = conversation.RoleAssistant
	reply, ok = p.conv.AppendIf(epoch, reply)
	if !ok {
		p.log.Info().Uint64("seq", user.Seq).Msg("conversation reset during reply; reply dropped")
		return conversation.Turn{}, errConversationReset()
	}
	p.log.Debug().
		Uint64("seq", reply.Seq).
		Int("context_turns", len(history)).
		Dur("dur", time.Since(start)).
		Msg("reply appended")
	return reply, nil
}

func errConversationReset() error {
	return chaterr.New(chaterr.SessionNotReady, "submit", "conversation was reset while the reply was generated")
}

// Cap returns the most recent turns of history that fit the limits alongside
// text. Turns are dropped oldest-first; the result keeps log order.
func Cap(history []conversation.Turn, text string, l Limits) []conversation.Turn {
	start := 0
	if l.MaxTurns > 0 {
		keep := l.MaxTurns - 1
		if len(history) > keep {
			start = len(history) - keep
		}
	}
	if l.MaxPromptChars > 0 {
		budget := l.MaxPromptChars - utf8.RuneCountInString(text)
		used := 0
		i := len(history)
		for i > start {
			n := utf8.RuneCountInString(history[i-1].Text)
			if used+n > budget {
				break
			}
			used += n
			i--
		}
		start = i
	}
	out := make([]conversation.Turn, len(history)-start)
	copy(out, history[start:])
	return out
}
