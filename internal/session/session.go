// Package session owns the single loaded model: its lifecycle state machine,
// the engine handle, and admission of generate calls against it.
//
// A session moves unloaded -> loading -> ready | failed. Loading a new model
// while ready drains and releases the current handle first. At most one load
// runs at a time, and each handle serves one generation at a time with a
// bounded FIFO queue in front of it.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"localchat/internal/artifact"
	"localchat/internal/chaterr"
	"localchat/internal/engine"
	"localchat/internal/gguf"
	"localchat/internal/prompt"
)

const (
	defaultMaxQueueDepth = 8
	defaultCancelGrace   = 2 * time.Second
	defaultDrainTimeout  = 5 * time.Second
)

var errUnloaded = errors.New("model unloaded")

// Config holds session tunables. Zero values select defaults.
type Config struct {
	// MemoryBudgetMB caps file size plus ContextOverheadMB; 0 disables the check.
	MemoryBudgetMB    int
	ContextOverheadMB int
	// MaxQueueDepth is the number of callers that may wait behind the one
	// in-flight generation.
	MaxQueueDepth int
	// GenerateTimeout bounds each generation; 0 leaves it to the caller's context.
	GenerateTimeout time.Duration
	// CancelGrace is how long a cancelled run may take to return before the
	// session is marked failed.
	CancelGrace time.Duration
	// DrainTimeout is how long unload waits for an in-flight generation.
	DrainTimeout time.Duration

	Open   engine.OpenOptions
	Params engine.Params
	// SystemPrompt is prepended to every prompt when non-empty.
	SystemPrompt string
	// Template forces a prompt format by name; empty means detect from the file.
	Template string
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Session) { s.log = l } }

// WithPublisher sets the lifecycle event sink.
func WithPublisher(p EventPublisher) Option {
	return func(s *Session) {
		if p != nil {
			s.pub = p
		}
	}
}

// Session manages one model at a time. Safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	state   State
	reason  string
	inst    *instance
	loading *loadOp
	// epoch increments whenever the active model changes; a load that
	// finishes under a stale epoch discards its handle.
	epoch       uint64
	generations uint64
	onChange    []func()

	eng engine.Engine
	cfg Config
	log zerolog.Logger
	pub EventPublisher
}

type loadOp struct {
	art    artifact.Artifact
	cancel context.CancelFunc
}

// instance is one open engine handle and its admission gate.
type instance struct {
	id     string
	art    artifact.Artifact
	header *gguf.File
	handle engine.Handle
	tmpl   *prompt.Template
	params engine.Params
	estMB  int

	gate *gate

	ctx     context.Context
	cancel  context.CancelCauseFunc
	retired chan struct{}
	once    sync.Once

	loadedAt time.Time
	lastUsed time.Time
}

func (i *instance) retire() { i.once.Do(func() { close(i.retired) }) }

// New returns an unloaded session backed by eng.
func New(eng engine.Engine, cfg Config, opts ...Option) *Session {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = defaultCancelGrace
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	s := &Session{
		state: StateUnloaded,
		eng:   eng,
		cfg:   cfg,
		log:   zerolog.Nop(),
		pub:   noopPublisher{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnModelChange registers fn to run whenever the active model changes: at
// the start of every load and of every unload, before the previous model is
// drained. fn runs without session locks held.
func (s *Session) OnModelChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Session) notifyChange() {
	s.mu.RLock()
	fns := append([]func(){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Ready reports whether Generate can be called.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateReady && s.inst != nil
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		State:       s.state,
		Reason:      s.reason,
		BudgetMB:    s.cfg.MemoryBudgetMB,
		MaxQueue:    s.cfg.MaxQueueDepth,
		Generations: s.generations,
	}
	if s.loading != nil {
		a := s.loading.art
		snap.Artifact = &a
	}
	if inst := s.inst; inst != nil {
		a := inst.art
		snap.Artifact = &a
		snap.SessionID = inst.id
		snap.Architecture = inst.header.Architecture()
		snap.ModelName = inst.header.ModelName()
		snap.ContextLength = inst.header.ContextLength()
		snap.Template = inst.tmpl.Name
		snap.EstimatedMB = inst.estMB
		snap.LoadedAt = inst.loadedAt
		snap.LastUsed = inst.lastUsed
		snap.InFlight, snap.Queued = inst.gate.stats()
	}
	return snap
}

func (s *Session) setState(st State, reason string) {
	s.state = st
	s.reason = reason
	setStateGauge(st)
}

// Load validates and opens art, replacing any loaded model. A second Load
// while one is in progress fails with LoadInProgress and leaves the first
// untouched. On failure the session is left failed with no handle held.
func (s *Session) Load(ctx context.Context, art artifact.Artifact) error {
	s.mu.Lock()
	if s.state == StateLoading {
		s.mu.Unlock()
		return chaterr.New(chaterr.LoadInProgress, "load", "a model is already loading")
	}
	prev := s.inst
	s.inst = nil
	s.epoch++
	epoch := s.epoch
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.loading = &loadOp{art: art, cancel: cancel}
	s.setState(StateLoading, "")
	s.mu.Unlock()

	start := time.Now()
	s.log.Info().Str("model", art.Name).Str("size", art.HumanSize()).Msg("load start")
	s.pub.Publish(Event{Name: "load_start", Model: art.Name, Fields: map[string]any{"size": art.Size}})
	// Before the drain, so a reply still being produced by prev is already
	// stale when it returns.
	s.notifyChange()

	if prev != nil {
		s.log.Info().Str("session", prev.id).Str("model", prev.art.Name).Msg("releasing previous model")
		s.release(prev, s.cfg.DrainTimeout)
	}

	inst, err := s.open(lctx, art)
	dur := time.Since(start)

	s.mu.Lock()
	if s.epoch != epoch {
		// Unloaded while we were opening.
		s.mu.Unlock()
		if inst != nil {
			s.closeHandle(inst)
		}
		loadsTotal.WithLabelValues("cancelled").Inc()
		s.log.Info().Str("model", art.Name).Msg("load cancelled")
		return fmt.Errorf("load %s: %w", art.Name, context.Canceled)
	}
	s.loading = nil
	if err != nil {
		s.setState(StateFailed, err.Error())
		s.mu.Unlock()
		loadsTotal.WithLabelValues("failed").Inc()
		loadDuration.Observe(dur.Seconds())
		s.log.Warn().Err(err).Str("model", art.Name).Dur("dur", dur).Msg("load failed")
		s.pub.Publish(Event{Name: "load_failed", Model: art.Name, Fields: map[string]any{
			"error": err.Error(), "kind": string(chaterr.KindOf(err)),
		}})
		return err
	}
	s.inst = inst
	s.setState(StateReady, "")
	s.mu.Unlock()

	loadsTotal.WithLabelValues("ready").Inc()
	loadDuration.Observe(dur.Seconds())
	s.log.Info().
		Str("session", inst.id).
		Str("model", art.Name).
		Str("arch", inst.header.Architecture()).
		Str("template", inst.tmpl.Name).
		Int("est_mb", inst.estMB).
		Dur("dur", dur).
		Msg("model ready")
	s.pub.Publish(Event{Name: "load_ready", SessionID: inst.id, Model: art.Name, Fields: map[string]any{
		"dur_ms": dur.Milliseconds(), "est_mb": inst.estMB,
	}})
	return nil
}

// open does the work of a load: parse, budget, engine. Nothing it acquires
// outlives a failure.
func (s *Session) open(ctx context.Context, art artifact.Artifact) (*instance, error) {
	path := art.Path()
	if path == "" {
		return nil, chaterr.New(chaterr.ParseFailure, "load", "artifact has no locator")
	}
	header, err := gguf.ReadFile(path)
	if err != nil {
		if chaterr.KindOf(err) == "" {
			err = chaterr.Wrap(chaterr.ParseFailure, "load", err)
		}
		return nil, err
	}

	estMB, err := s.estimateMB(art)
	if err != nil {
		return nil, chaterr.Wrap(chaterr.ParseFailure, "load", err)
	}
	if b := s.cfg.MemoryBudgetMB; b > 0 && estMB > b {
		return nil, chaterr.New(chaterr.ResourceExhausted, "load",
			fmt.Sprintf("model needs about %d MB, budget is %d MB", estMB, b))
	}

	tmpl := prompt.Detect(header.Architecture(), header.ChatTemplate())
	if s.cfg.Template != "" {
		if t, ok := prompt.ByName(s.cfg.Template); ok {
			tmpl = t
		}
	}

	opts := s.cfg.Open
	// Never ask for more context than the model was trained with.
	if n := header.ContextLength(); n > 0 && opts.ContextSize > 0 && uint64(opts.ContextSize) > n {
		opts.ContextSize = int(n)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := s.eng.Open(ctx, path, opts)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case chaterr.KindOf(err) != "":
			return nil, err
		default:
			return nil, chaterr.Wrap(chaterr.ResourceExhausted, "load", err)
		}
	}

	params := s.cfg.Params
	params.Stop = append(append([]string(nil), params.Stop...), tmpl.Stop...)

	ictx, icancel := context.WithCancelCause(context.Background())
	now := time.Now()
	return &instance{
		id:       uuid.NewString(),
		art:      art,
		header:   header,
		handle:   h,
		tmpl:     tmpl,
		params:   params,
		estMB:    estMB,
		gate:     newGate(s.cfg.MaxQueueDepth),
		ctx:      ictx,
		cancel:   icancel,
		retired:  make(chan struct{}),
		loadedAt: now,
		lastUsed: now,
	}, nil
}

// estimateMB is the size of the file on disk in MiB (rounded up) plus the
// context overhead. The size a picker reported is not used.
func (s *Session) estimateMB(art artifact.Artifact) (int, error) {
	fi, err := os.Stat(art.Path())
	if err != nil {
		return 0, err
	}
	const mb = 1024 * 1024
	return int((fi.Size()+mb-1)/mb) + s.cfg.ContextOverheadMB, nil
}

// Unload releases the loaded model, or cancels an in-flight load, and
// leaves the session unloaded. Calling it when already unloaded is a no-op.
func (s *Session) Unload() {
	s.mu.Lock()
	inst, op := s.inst, s.loading
	if inst == nil && op == nil && s.state == StateUnloaded {
		s.mu.Unlock()
		return
	}
	s.epoch++
	s.inst = nil
	s.loading = nil
	s.setState(StateUnloaded, "")
	s.mu.Unlock()

	var id, name string
	if inst != nil {
		id, name = inst.id, inst.art.Name
	} else if op != nil {
		name = op.art.Name
	}
	s.pub.Publish(Event{Name: "unload_start", SessionID: id, Model: name})
	s.notifyChange()
	if op != nil {
		op.cancel()
	}
	if inst != nil {
		s.release(inst, s.cfg.DrainTimeout)
	}
	s.log.Info().Str("session", id).Str("model", name).Msg("model unloaded")
	s.pub.Publish(Event{Name: "unload_done", SessionID: id, Model: name})
}

// release retires inst and closes its handle once no generation holds it.
// Queued callers are turned away immediately. The in-flight run gets up to
// wait to finish; after that it is cancelled and the handle is closed in the
// background when the run returns.
func (s *Session) release(inst *instance, wait time.Duration) {
	inst.retire()
	slot, _ := inst.gate.enter(true)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-slot:
		s.closeHandle(inst)
		return
	case <-timer.C:
	}
	inst.cancel(errUnloaded)
	s.log.Warn().Str("session", inst.id).Dur("waited", wait).Msg("generation still running; closing handle when it returns")
	go func() {
		<-slot
		s.closeHandle(inst)
	}()
}

func (s *Session) closeHandle(inst *instance) {
	inst.cancel(errUnloaded)
	if err := inst.handle.Close(); err != nil {
		s.log.Warn().Err(err).Str("session", inst.id).Msg("close handle")
	}
}
