package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"localchat/internal/catalog"
	"localchat/internal/conversation"
	"localchat/internal/pipeline"
	"localchat/internal/session"
)

// Option customizes a Manager.
type Option func(*options)

type options struct {
	log zerolog.Logger
	pub session.EventPublisher
}

// WithLogger sets the logger shared by every component.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithEventPublisher receives session lifecycle events.
func WithEventPublisher(p session.EventPublisher) Option { return func(o *options) { o.pub = p } }

// Manager owns one session, its conversation and the catalog of model files.
type Manager struct {
	sess *session.Session
	conv *conversation.Log
	pipe *pipeline.Pipeline
	cat  *catalog.Catalog
	cfg  Config
	log  zerolog.Logger

	startTime time.Time
	closeOnce sync.Once
}

// New builds the core. It fails only when the models directory cannot be read.
func New(cfg Config, opts ...Option) (*Manager, error) {
	o := options{log: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	cfg.applyDefaults()

	cat, err := catalog.New(cfg.ModelsDir,
		catalog.WithLogger(o.log.With().Str("component", "catalog").Logger()),
		catalog.WithDebounce(cfg.CatalogDebounce))
	if err != nil {
		return nil, err
	}

	conv := conversation.New()
	sess := session.New(cfg.Engine, cfg.Session,
		session.WithLogger(o.log.With().Str("component", "session").Logger()),
		session.WithPublisher(o.pub))
	// A model swap invalidates prior context.
	sess.OnModelChange(conv.Reset)

	m := &Manager{
		sess:      sess,
		conv:      conv,
		pipe:      pipeline.New(sess, conv, cfg.Limits, pipeline.WithLogger(o.log.With().Str("component", "pipeline").Logger())),
		cat:       cat,
		cfg:       cfg,
		log:       o.log,
		startTime: time.Now(),
	}
	m.log.Debug().
		Str("models_dir", cfg.ModelsDir).
		Int("max_turns", cfg.Limits.MaxTurns).
		Int("max_prompt_chars", cfg.Limits.MaxPromptChars).
		Int("budget_mb", cfg.Session.MemoryBudgetMB).
		Msg("manager ready")
	return m, nil
}

// Ready reports whether a model is loaded and can answer.
func (m *Manager) Ready() bool { return m.sess.Ready() }

// State is the session lifecycle state.
func (m *Manager) State() session.State { return m.sess.State() }

// Catalog exposes the model catalog, e.g. to run its watcher.
func (m *Manager) Catalog() *catalog.Catalog { return m.cat }

// ListModels returns the catalog entries.
func (m *Manager) ListModels() []catalog.Entry { return m.cat.List() }

// Close unloads the model and clears the conversation. Safe to call twice.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.sess.Unload()
		m.conv.Reset()
		m.log.Info().Msg("manager closed")
	})
	return nil
}
